// Package export serializes tasks and reports to json, csv and yaml.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BuzzLyutic/ptask/internal/metrics"
	"github.com/BuzzLyutic/ptask/internal/model"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatYAML Format = "yaml"
)

var Formats = []Format{FormatJSON, FormatCSV, FormatYAML}

func ParseFormat(raw string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(raw)))
	switch f {
	case FormatJSON, FormatCSV, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	}
	names := make([]string, len(Formats))
	for i, known := range Formats {
		names[i] = string(known)
	}
	return "", &model.ValidationError{Field: "format", Value: raw, Reason: "must be one of " + strings.Join(names, ", ")}
}

// Extension is the file suffix for f, without the dot.
func (f Format) Extension() string {
	return string(f)
}

var taskHeader = []string{
	"id", "description", "status", "priority", "category",
	"createdAt", "updatedAt", "dueDate", "completedAt",
	"estimatedHours", "actualHours", "tags", "notes", "assignee",
}

// Tasks writes tasks in format f. An empty slice still produces a valid
// document (an empty array, or a header-only csv).
func Tasks(w io.Writer, f Format, tasks []model.Task) error {
	if tasks == nil {
		tasks = []model.Task{}
	}
	switch f {
	case FormatJSON:
		return writeJSON(w, tasks)
	case FormatYAML:
		return writeYAML(w, tasks)
	case FormatCSV:
		return writeTasksCSV(w, tasks)
	}
	return &model.ValidationError{Field: "format", Value: string(f), Reason: "unsupported export format"}
}

// Report writes a productivity report. In csv the report becomes metric,value
// rows followed by one section per breakdown.
func Report(w io.Writer, f Format, r metrics.Report) error {
	switch f {
	case FormatJSON:
		return writeJSON(w, r)
	case FormatYAML:
		return writeYAML(w, r)
	case FormatCSV:
		return writeReportCSV(w, r)
	}
	return &model.ValidationError{Field: "format", Value: string(f), Reason: "unsupported report format"}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

func writeYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

func writeTasksCSV(w io.Writer, tasks []model.Task) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(taskHeader); err != nil {
		return err
	}
	for _, t := range tasks {
		if err := cw.Write(taskRecord(t)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func taskRecord(t model.Task) []string {
	return []string{
		t.ID,
		t.Description,
		string(t.Status),
		string(t.Priority),
		t.Category,
		formatTime(&t.CreatedAt),
		formatTime(&t.UpdatedAt),
		formatTime(t.DueDate),
		formatTime(t.CompletedAt),
		formatFloat(t.EstimatedHours),
		optionalFloat(t.ActualHours),
		strings.Join(t.Tags, ";"),
		t.Notes,
		t.Assignee,
	}
}

func writeReportCSV(w io.Writer, r metrics.Report) error {
	cw := csv.NewWriter(w)
	s := r.Summary
	rows := [][]string{
		{"metric", "value"},
		{"period", string(r.Period)},
		{"startDate", formatTime(&r.Start)},
		{"endDate", formatTime(&r.End)},
		{"totalTasks", strconv.Itoa(s.Total)},
		{"pendingTasks", strconv.Itoa(s.Pending)},
		{"inProgressTasks", strconv.Itoa(s.InProgress)},
		{"completedTasks", strconv.Itoa(s.Completed)},
		{"cancelledTasks", strconv.Itoa(s.Cancelled)},
		{"overdueTasks", strconv.Itoa(s.Overdue)},
		{"completionRate", formatFloat(s.CompletionRate)},
		{"averageActualHours", formatFloat(s.AverageActualHours)},
		{"averageCompletionHours", formatFloat(s.AverageCompletionTime)},
		{"productivityScore", formatFloat(s.ProductivityScore)},
		{},
		{"category", "taskCount", "completedCount", "estimatedHours", "actualHours", "averagePriority"},
	}
	for _, c := range r.Categories {
		rows = append(rows, []string{
			c.Category,
			strconv.Itoa(c.TaskCount),
			strconv.Itoa(c.CompletedCount),
			formatFloat(c.EstimatedHours),
			formatFloat(c.ActualHours),
			string(c.AveragePriority),
		})
	}
	rows = append(rows, []string{}, []string{"priority", "taskCount", "completedCount"})
	for _, p := range r.Priorities {
		rows = append(rows, []string{string(p.Priority), strconv.Itoa(p.TaskCount), strconv.Itoa(p.CompletedCount)})
	}

	// csv.Writer пишет пустую запись как пустую строку
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func optionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
