package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BuzzLyutic/ptask/internal/model"
)

const sampleDocument = `{
  "version": 1,
  "tasks": [
    {
      "id": "1",
      "description": "Write quarterly report",
      "status": "pending",
      "priority": "high",
      "category": "work",
      "createdAt": "2025-01-01T10:00:00Z",
      "updatedAt": "2025-01-01T10:00:00Z",
      "dueDate": "2025-01-10T00:00:00Z",
      "estimatedHours": 3,
      "tags": [
        "finance",
        "q1"
      ],
      "notes": "",
      "assignee": "alice"
    },
    {
      "id": "2",
      "description": "Gym",
      "status": "completed",
      "priority": "low",
      "category": "personal",
      "createdAt": "2025-01-02T08:00:00Z",
      "updatedAt": "2025-01-02T09:30:00.5Z",
      "completedAt": "2025-01-02T09:30:00.5Z",
      "estimatedHours": 1,
      "actualHours": 1.5,
      "tags": [],
      "notes": "leg day",
      "assignee": ""
    }
  ]
}
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFileStore_LoadMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "nested", "tasks.json"))

	c, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.CurrentVersion, c.Version)
	assert.Empty(t, c.Tasks)
	assert.NotNil(t, c.Tasks)
}

func TestFileStore_RoundTripIsByteIdentical(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	writeFile(t, path, sampleDocument)
	store := NewFileStore(path)
	ctx := context.Background()

	c, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, c.Tasks, 2)
	assert.Equal(t, "1", c.Tasks[0].ID)
	assert.Equal(t, model.PriorityHigh, c.Tasks[0].Priority)
	require.NotNil(t, c.Tasks[1].ActualHours)
	assert.Equal(t, 1.5, *c.Tasks[1].ActualHours)

	require.NoError(t, store.Save(ctx, c))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleDocument, string(got))
}

func TestFileStore_SaveCreatesDirectoriesAndLeavesNoTempFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	path := filepath.Join(dir, "tasks.json")
	store := NewFileStore(path)

	c := model.NewCollection()
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	c.Tasks = append(c.Tasks, model.Task{
		ID: "x", Description: "d", Status: model.StatusPending, Priority: model.PriorityMedium,
		Category: "general", CreatedAt: now, UpdatedAt: now, EstimatedHours: 2,
	})
	require.NoError(t, store.Save(context.Background(), c))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "tasks.json", entries[0].Name())

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{}, loaded.Tasks[0].Tags)
}

func TestFileStore_LoadCorruptDocuments(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantProblem string
	}{
		{
			name:        "not json",
			content:     `{"version": 1, "tasks": [`,
			wantProblem: "",
		},
		{
			name:        "missing tasks",
			content:     `{"version": 1}`,
			wantProblem: "document",
		},
		{
			name:        "tasks not an array",
			content:     `{"version": 1, "tasks": {}}`,
			wantProblem: "tasks",
		},
		{
			name: "unknown status",
			content: `{"version":1,"tasks":[{"id":"1","description":"d","status":"done","priority":"low","category":"c",
				"createdAt":"2025-01-01T00:00:00Z","updatedAt":"2025-01-01T00:00:00Z","estimatedHours":1,"tags":[],"notes":"","assignee":""}]}`,
			wantProblem: "tasks[0].status",
		},
		{
			name: "non-positive estimate",
			content: `{"version":1,"tasks":[{"id":"1","description":"d","status":"pending","priority":"low","category":"c",
				"createdAt":"2025-01-01T00:00:00Z","updatedAt":"2025-01-01T00:00:00Z","estimatedHours":0,"tags":[],"notes":"","assignee":""}]}`,
			wantProblem: "tasks[0].estimatedHours",
		},
		{
			name: "bad timestamp",
			content: `{"version":1,"tasks":[{"id":"1","description":"d","status":"pending","priority":"low","category":"c",
				"createdAt":"yesterday","updatedAt":"2025-01-01T00:00:00Z","estimatedHours":1,"tags":[],"notes":"","assignee":""}]}`,
			wantProblem: "tasks[0].createdAt",
		},
		{
			name: "numeric assignee",
			content: `{"version":1,"tasks":[{"id":"1","description":"d","status":"pending","priority":"low","category":"c",
				"createdAt":"2025-01-01T00:00:00Z","updatedAt":"2025-01-01T00:00:00Z","estimatedHours":1,"tags":[],"notes":"","assignee":123}]}`,
			wantProblem: "tasks[0].assignee",
		},
		{
			name: "duplicate ids",
			content: `{"version":1,"tasks":[
				{"id":"1","description":"d","status":"pending","priority":"low","category":"c","createdAt":"2025-01-01T00:00:00Z","updatedAt":"2025-01-01T00:00:00Z","estimatedHours":1,"tags":[],"notes":"","assignee":""},
				{"id":"1","description":"e","status":"pending","priority":"low","category":"c","createdAt":"2025-01-01T00:00:00Z","updatedAt":"2025-01-01T00:00:00Z","estimatedHours":1,"tags":[],"notes":"","assignee":""}]}`,
			wantProblem: "tasks[1].id",
		},
		{
			name: "completed without completedAt",
			content: `{"version":1,"tasks":[{"id":"1","description":"d","status":"completed","priority":"low","category":"c",
				"createdAt":"2025-01-01T00:00:00Z","updatedAt":"2025-01-01T00:00:00Z","estimatedHours":1,"tags":[],"notes":"","assignee":""}]}`,
			wantProblem: "tasks[0].completedAt",
		},
		{
			name:        "future version",
			content:     `{"version": 7, "tasks": []}`,
			wantProblem: "unsupported version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tasks.json")
			writeFile(t, path, tt.content)

			c, err := NewFileStore(path).Load(context.Background())
			assert.Nil(t, c)
			require.ErrorIs(t, err, model.ErrCorruptData)

			var ce *model.CorruptDataError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, path, ce.Path)
			if tt.wantProblem != "" {
				assert.Contains(t, err.Error(), tt.wantProblem)
			}
		})
	}
}

func TestFileStore_LoadIOError(t *testing.T) {
	dir := t.TempDir()
	_, err := NewFileStore(dir).Load(context.Background())
	assert.ErrorIs(t, err, model.ErrIO)
}

func TestFileStore_Backup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.json")
	writeFile(t, path, sampleDocument)
	store := NewFileStore(path)

	dst := filepath.Join(dir, "backups", "tasks.bak.json")
	n, err := store.Backup(context.Background(), dst)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, sampleDocument, string(got))
}

func TestFileStore_BackupRefusesCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.json")
	writeFile(t, path, `{"version": 1}`)

	dst := filepath.Join(dir, "out.json")
	_, err := NewFileStore(path).Backup(context.Background(), dst)
	require.ErrorIs(t, err, model.ErrCorruptData)
	_, statErr := os.Stat(dst)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestFileStore_LockContention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	store := NewFileStore(path, WithLockTimeout(50*time.Millisecond))
	ctx := context.Background()

	unlock, err := store.Lock(ctx)
	require.NoError(t, err)

	_, err = store.Lock(ctx)
	require.ErrorIs(t, err, model.ErrBusy)
	var be *model.BusyError
	require.ErrorAs(t, err, &be)
	assert.GreaterOrEqual(t, be.Waited, 40*time.Millisecond)

	unlock()

	unlock, err = store.Lock(ctx)
	require.NoError(t, err)
	unlock()
}

func TestFileStore_LockAcrossStores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	first := NewFileStore(path)
	second := NewFileStore(path, WithLockTimeout(50*time.Millisecond))
	ctx := context.Background()

	unlock, err := first.Lock(ctx)
	require.NoError(t, err)
	defer unlock()

	_, err = second.Lock(ctx)
	assert.ErrorIs(t, err, model.ErrBusy)
}

func TestFileStore_LockCancelledContext(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "tasks.json"))
	unlock, err := store.Lock(context.Background())
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Lock(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, model.ErrBusy)
}

func TestJSONPointerToPath(t *testing.T) {
	assert.Equal(t, "tasks[3].status", jsonPointerToPath("/tasks/3/status"))
	assert.Equal(t, "", jsonPointerToPath(""))
	assert.Equal(t, "a/b", jsonPointerToPath("#/a~1b"))
}
