package repo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/BuzzLyutic/ptask/internal/model"
	"github.com/BuzzLyutic/ptask/internal/storage"
)

// stepClock advances by one minute on every call.
type stepClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newStepClock() *stepClock {
	return &stepClock{cur: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Minute)
	return c.cur
}

func setupRepo(t *testing.T, opts ...Option) (*TaskRepo, *storage.FileStore) {
	t.Helper()
	store := storage.NewFileStore(filepath.Join(t.TempDir(), "tasks.json"))
	clock := newStepClock()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewTaskRepo(store, opts...), store
}

func seedScenario(t *testing.T, r *TaskRepo) {
	t.Helper()
	ctx := context.Background()
	_, err := r.Create(ctx, model.Task{ID: "1", Description: "Plan sprint", Priority: model.PriorityHigh, Category: "work", EstimatedHours: 2})
	require.NoError(t, err)
	_, err = r.Create(ctx, model.Task{ID: "2", Description: "Gym", Priority: model.PriorityLow, Category: "personal", EstimatedHours: 1})
	require.NoError(t, err)
	inProgress := model.StatusInProgress
	_, err = r.Update(ctx, "2", model.TaskPatch{Status: &inProgress})
	require.NoError(t, err)
}

func TestTaskRepo_Create(t *testing.T) {
	r, store := setupRepo(t, WithIDGenerator(func() string { return "generated" }))
	ctx := context.Background()

	created, err := r.Create(ctx, model.Task{
		Description:    "  Write docs  ",
		EstimatedHours: 1.5,
		Tags:           []string{"docs", " docs", "alpha"},
	})
	require.NoError(t, err)

	assert.Equal(t, "generated", created.ID)
	assert.Equal(t, "Write docs", created.Description)
	assert.Equal(t, model.StatusPending, created.Status)
	assert.Equal(t, model.PriorityMedium, created.Priority)
	assert.Equal(t, model.DefaultCategory, created.Category)
	assert.Equal(t, []string{"alpha", "docs"}, created.Tags)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)
	assert.Nil(t, created.CompletedAt)

	c, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, c.Tasks, 1)
	assert.Equal(t, created, c.Tasks[0])
}

func TestTaskRepo_CreateValidation(t *testing.T) {
	future := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		task      model.Task
		wantField string
	}{
		{name: "empty description", task: model.Task{Description: " ", EstimatedHours: 1}, wantField: "description"},
		{name: "zero estimate", task: model.Task{Description: "x", EstimatedHours: 0}, wantField: "estimatedHours"},
		{name: "negative estimate", task: model.Task{Description: "x", EstimatedHours: -2}, wantField: "estimatedHours"},
		{name: "created in the future", task: model.Task{Description: "x", EstimatedHours: 1, CreatedAt: future}, wantField: "createdAt"},
		{name: "unknown priority", task: model.Task{Description: "x", EstimatedHours: 1, Priority: "extreme"}, wantField: "priority"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, store := setupRepo(t)
			ctx := context.Background()
			_, err := r.Create(ctx, model.Task{ID: "keep", Description: "existing", EstimatedHours: 1})
			require.NoError(t, err)

			_, err = r.Create(ctx, tt.task)
			require.ErrorIs(t, err, model.ErrValidation)
			var ve *model.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)

			c, err := store.Load(ctx)
			require.NoError(t, err)
			assert.Len(t, c.Tasks, 1, "collection must be unchanged")
		})
	}
}

func TestTaskRepo_CreateDuplicateID(t *testing.T) {
	r, store := setupRepo(t)
	ctx := context.Background()

	_, err := r.Create(ctx, model.Task{ID: "dup", Description: "first", EstimatedHours: 1})
	require.NoError(t, err)

	_, err = r.Create(ctx, model.Task{ID: "dup", Description: "second", EstimatedHours: 1})
	require.ErrorIs(t, err, model.ErrValidation)
	var ve *model.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "id", ve.Field)
	assert.Equal(t, "dup", ve.Value)

	c, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, c.Tasks, 1)
	assert.Equal(t, "first", c.Tasks[0].Description)
}

func TestTaskRepo_Get(t *testing.T) {
	r, _ := setupRepo(t)
	seedScenario(t, r)
	ctx := context.Background()

	task, found, err := r.Get(ctx, "1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Plan sprint", task.Description)

	_, found, err = r.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTaskRepo_ListScenario(t *testing.T) {
	r, _ := setupRepo(t)
	seedScenario(t, r)

	pending := model.StatusPending
	got, err := r.List(context.Background(), model.Filter{Status: &pending})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)

	all, err := r.List(context.Background(), model.Filter{})
	require.NoError(t, err)
	assert.Equal(t, "1", all[0].ID)
	assert.Equal(t, "2", all[1].ID)
}

func TestTaskRepo_CompleteScenario(t *testing.T) {
	r, store := setupRepo(t)
	seedScenario(t, r)
	ctx := context.Background()

	before, _, err := r.Get(ctx, "2")
	require.NoError(t, err)

	hours := 2.5
	done, err := r.Complete(ctx, "2", &hours, "went well")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	require.NotNil(t, done.ActualHours)
	assert.Equal(t, 2.5, *done.ActualHours)
	assert.True(t, done.UpdatedAt.After(before.UpdatedAt))
	assert.Equal(t, "went well", done.Notes)

	again := 4.0
	_, err = r.Complete(ctx, "2", &again, "twice")
	require.ErrorIs(t, err, model.ErrInvalidTransition)
	var te *model.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, model.StatusCompleted, te.From)

	c, err := store.Load(ctx)
	require.NoError(t, err)
	stored := c.Tasks[c.Index("2")]
	assert.Equal(t, 2.5, *stored.ActualHours)
	assert.Equal(t, *done.CompletedAt, *stored.CompletedAt)
	assert.Equal(t, "went well", stored.Notes)
}

func TestTaskRepo_CompleteAppendsNotes(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()
	_, err := r.Create(ctx, model.Task{ID: "n", Description: "x", EstimatedHours: 1, Notes: "initial"})
	require.NoError(t, err)

	done, err := r.Complete(ctx, "n", nil, "finished early")
	require.NoError(t, err)
	assert.Equal(t, "initial\nfinished early", done.Notes)
	assert.Nil(t, done.ActualHours)
}

func TestTaskRepo_CompleteErrors(t *testing.T) {
	r, _ := setupRepo(t)
	ctx := context.Background()
	_, err := r.Create(ctx, model.Task{ID: "c", Description: "x", EstimatedHours: 1})
	require.NoError(t, err)
	cancelled := model.StatusCancelled
	_, err = r.Update(ctx, "c", model.TaskPatch{Status: &cancelled})
	require.NoError(t, err)

	_, err = r.Complete(ctx, "c", nil, "")
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	_, err = r.Complete(ctx, "nope", nil, "")
	assert.ErrorIs(t, err, model.ErrNotFound)

	for _, hours := range []float64{-1, math.NaN(), math.Inf(1)} {
		h := hours
		_, err = r.Complete(ctx, "c", &h, "")
		var ve *model.ValidationError
		require.ErrorAs(t, err, &ve, "hours %v", hours)
		assert.Equal(t, "actualHours", ve.Field)
	}
}

func TestTaskRepo_NonFiniteEstimateRejected(t *testing.T) {
	r, store := setupRepo(t)
	ctx := context.Background()

	for _, est := range []float64{math.NaN(), math.Inf(1)} {
		_, err := r.Create(ctx, model.Task{Description: "x", EstimatedHours: est})
		var ve *model.ValidationError
		require.ErrorAs(t, err, &ve, "estimate %v", est)
		assert.Equal(t, "estimatedHours", ve.Field)
	}

	_, err := r.Create(ctx, model.Task{ID: "ok", Description: "x", EstimatedHours: 1})
	require.NoError(t, err)
	inf := math.Inf(1)
	_, err = r.Update(ctx, "ok", model.TaskPatch{EstimatedHours: &inf})
	assert.ErrorIs(t, err, model.ErrValidation)

	c, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, c.Tasks, 1)
	assert.Equal(t, 1.0, c.Tasks[0].EstimatedHours)
}

func TestTaskRepo_Update(t *testing.T) {
	r, _ := setupRepo(t)
	seedScenario(t, r)
	ctx := context.Background()

	before, _, err := r.Get(ctx, "1")
	require.NoError(t, err)

	desc := "Plan sprint 12"
	urgent := model.PriorityUrgent
	tags := []string{"b", "a"}
	due := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	updated, err := r.Update(ctx, "1", model.TaskPatch{Description: &desc, Priority: &urgent, Tags: &tags, DueDate: &due})
	require.NoError(t, err)

	assert.Equal(t, desc, updated.Description)
	assert.Equal(t, urgent, updated.Priority)
	assert.Equal(t, []string{"a", "b"}, updated.Tags)
	assert.Equal(t, due, *updated.DueDate)
	assert.Equal(t, before.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(before.UpdatedAt))

	cleared, err := r.Update(ctx, "1", model.TaskPatch{ClearDueDate: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.DueDate)
}

func TestTaskRepo_UpdateStatusTransitions(t *testing.T) {
	r, _ := setupRepo(t)
	seedScenario(t, r)
	ctx := context.Background()

	completed := model.StatusCompleted
	done, err := r.Update(ctx, "1", model.TaskPatch{Status: &completed})
	require.NoError(t, err, "pending may skip straight to completed")
	assert.NotNil(t, done.CompletedAt)

	pending := model.StatusPending
	_, err = r.Update(ctx, "1", model.TaskPatch{Status: &pending})
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	_, err = r.Update(ctx, "2", model.TaskPatch{Status: &pending})
	assert.ErrorIs(t, err, model.ErrInvalidTransition, "in_progress cannot go back to pending")

	note := "edit after completion"
	edited, err := r.Update(ctx, "1", model.TaskPatch{Notes: &note})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, edited.Status)

	_, err = r.Update(ctx, "1", model.TaskPatch{Status: &completed})
	assert.ErrorIs(t, err, model.ErrInvalidTransition, "completed is terminal, even for itself")
	after, _, err := r.Get(ctx, "1")
	require.NoError(t, err)
	assert.True(t, edited.UpdatedAt.Equal(after.UpdatedAt), "rejected update must not touch updatedAt")
	require.NotNil(t, after.CompletedAt)
	assert.True(t, edited.CompletedAt.Equal(*after.CompletedAt))

	cancelled := model.StatusCancelled
	_, err = r.Update(ctx, "2", model.TaskPatch{Status: &cancelled})
	require.NoError(t, err)
	_, err = r.Update(ctx, "2", model.TaskPatch{Status: &cancelled})
	assert.ErrorIs(t, err, model.ErrInvalidTransition, "cancelled is terminal, even for itself")

	_, err = r.Create(ctx, model.Task{ID: "3", Description: "Read", EstimatedHours: 1})
	require.NoError(t, err)
	pendingAgain, err := r.Update(ctx, "3", model.TaskPatch{Status: &pending})
	require.NoError(t, err, "same status is a no-op for open tasks")
	assert.Equal(t, model.StatusPending, pendingAgain.Status)
}

func TestTaskRepo_UpdateErrors(t *testing.T) {
	r, store := setupRepo(t)
	seedScenario(t, r)
	ctx := context.Background()

	_, err := r.Update(ctx, "1", model.TaskPatch{})
	assert.ErrorIs(t, err, model.ErrValidation)

	desc := "x"
	_, err = r.Update(ctx, "missing", model.TaskPatch{Description: &desc})
	assert.ErrorIs(t, err, model.ErrNotFound)

	zero := 0.0
	_, err = r.Update(ctx, "1", model.TaskPatch{EstimatedHours: &zero})
	assert.ErrorIs(t, err, model.ErrValidation)

	c, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2.0, c.Tasks[0].EstimatedHours)
}

func TestTaskRepo_Delete(t *testing.T) {
	r, _ := setupRepo(t)
	seedScenario(t, r)
	ctx := context.Background()

	require.NoError(t, r.Delete(ctx, "1"))
	_, found, err := r.Get(ctx, "1")
	require.NoError(t, err)
	assert.False(t, found)

	err = r.Delete(ctx, "1")
	assert.ErrorIs(t, err, model.ErrNotFound)

	all, err := r.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "2", all[0].ID)
}

func TestTaskRepo_ConcurrentCreatesKeepEveryRecord(t *testing.T) {
	r, store := setupRepo(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, errs[idx] = r.Create(ctx, model.Task{Description: fmt.Sprintf("task %d", idx), EstimatedHours: 1})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "create %d", i)
	}
	c, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, c.Tasks, n)
}

func TestTaskRepo_LogsEvents(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r, _ := setupRepo(t, WithLogger(zap.New(core)))

	_, err := r.Create(context.Background(), model.Task{ID: "log", Description: "x", EstimatedHours: 1})
	require.NoError(t, err)

	entries := logs.FilterMessage("task created").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "log", entries[0].ContextMap()["task_id"])
}

// MockStorage - мок хранилища
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Load(ctx context.Context) (*model.Collection, error) {
	args := m.Called(ctx)
	c, _ := args.Get(0).(*model.Collection)
	return c, args.Error(1)
}

func (m *MockStorage) Save(ctx context.Context, c *model.Collection) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockStorage) Lock(ctx context.Context) (func(), error) {
	args := m.Called(ctx)
	unlock, _ := args.Get(0).(func())
	return unlock, args.Error(1)
}

func (m *MockStorage) Backup(ctx context.Context, dst string) (int, error) {
	args := m.Called(ctx, dst)
	return args.Int(0), args.Error(1)
}

func TestTaskRepo_StorageFailures(t *testing.T) {
	ioErr := &model.IOError{Op: "write", Path: "tasks.json", Err: errors.New("disk full")}
	busy := &model.BusyError{Path: "tasks.json", Waited: time.Second}

	tests := []struct {
		name      string
		setupMock func(*MockStorage)
		wantErr   error
		wantSave  bool
	}{
		{
			name: "save failure surfaces io error",
			setupMock: func(m *MockStorage) {
				m.On("Lock", mock.Anything).Return(func() {}, nil)
				m.On("Load", mock.Anything).Return(model.NewCollection(), nil)
				m.On("Save", mock.Anything, mock.Anything).Return(ioErr)
			},
			wantErr:  model.ErrIO,
			wantSave: true,
		},
		{
			name: "lock timeout surfaces busy",
			setupMock: func(m *MockStorage) {
				m.On("Lock", mock.Anything).Return(nil, busy)
			},
			wantErr: model.ErrBusy,
		},
		{
			name: "corrupt document is not overwritten",
			setupMock: func(m *MockStorage) {
				m.On("Lock", mock.Anything).Return(func() {}, nil)
				m.On("Load", mock.Anything).Return(nil, &model.CorruptDataError{Path: "tasks.json"})
			},
			wantErr: model.ErrCorruptData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockStore := new(MockStorage)
			tt.setupMock(mockStore)

			r := NewTaskRepo(mockStore)
			_, err := r.Create(context.Background(), model.Task{Description: "x", EstimatedHours: 1})
			assert.ErrorIs(t, err, tt.wantErr)

			mockStore.AssertExpectations(t)
			if !tt.wantSave {
				mockStore.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
			}
		})
	}
}
