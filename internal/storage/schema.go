package storage

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/BuzzLyutic/ptask/internal/model"
)

const schemaURL = "https://ptask.dev/schema/collection.schema.json"

//go:embed schema/collection.schema.json
var schemaJSON []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func documentSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("add document schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// decode parses and validates a persisted document. Every problem found is
// reported; nothing is dropped or repaired.
func decode(path string, data []byte) (*model.Collection, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &model.CorruptDataError{Path: path, Err: err}
	}

	schema, err := documentSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, &model.CorruptDataError{Path: path, Problems: schemaProblems(err), Err: err}
	}

	var c model.Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, &model.CorruptDataError{Path: path, Err: err}
	}
	if problems := semanticProblems(&c); len(problems) > 0 {
		return nil, &model.CorruptDataError{Path: path, Problems: problems}
	}
	return &c, nil
}

// semanticProblems covers the invariants the schema cannot express.
func semanticProblems(c *model.Collection) []string {
	var problems []string
	if c.Version > model.CurrentVersion {
		problems = append(problems, fmt.Sprintf("version: unsupported version %d (max %d)", c.Version, model.CurrentVersion))
	}

	seen := make(map[string]int, len(c.Tasks))
	for i, t := range c.Tasks {
		path := fmt.Sprintf("tasks[%d]", i)
		if first, ok := seen[t.ID]; ok {
			problems = append(problems, fmt.Sprintf("%s.id: duplicate of tasks[%d]", path, first))
		} else {
			seen[t.ID] = i
		}
		if (t.Status == model.StatusCompleted) != (t.CompletedAt != nil) {
			problems = append(problems, fmt.Sprintf("%s.completedAt: must be set exactly when status is completed", path))
		}
		if t.UpdatedAt.Before(t.CreatedAt) {
			problems = append(problems, fmt.Sprintf("%s.updatedAt: precedes createdAt", path))
		}
	}
	return problems
}

func schemaProblems(err error) []string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []string{err.Error()}
	}
	var out []string
	collectSchemaProblems(&out, ve)
	return out
}

func collectSchemaProblems(out *[]string, ve *jsonschema.ValidationError) {
	if len(ve.Causes) == 0 {
		path := jsonPointerToPath(ve.InstanceLocation)
		if path == "" {
			path = "document"
		}
		*out = append(*out, fmt.Sprintf("%s: %s", path, ve.Message))
		return
	}
	for _, cause := range ve.Causes {
		collectSchemaProblems(out, cause)
	}
}

// jsonPointerToPath turns "/tasks/0/status" into "tasks[0].status".
func jsonPointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "#")
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return ""
	}

	var b strings.Builder
	for _, part := range strings.Split(ptr, "/") {
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		if part == "" {
			continue
		}
		if idx, err := strconv.Atoi(part); err == nil {
			fmt.Fprintf(&b, "[%d]", idx)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(part)
	}
	return b.String()
}
