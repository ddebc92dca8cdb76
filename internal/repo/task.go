package repo

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BuzzLyutic/ptask/internal/metrics"
	"github.com/BuzzLyutic/ptask/internal/model"
)

type TaskRepo struct { // Репозиторий поверх документа с задачами
	store  Storage
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

type Option func(*TaskRepo)

func WithLogger(l *zap.Logger) Option {
	return func(r *TaskRepo) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock replaces time.Now; tests use it to pin timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *TaskRepo) {
		if now != nil {
			r.now = now
		}
	}
}

func WithIDGenerator(gen func() string) Option {
	return func(r *TaskRepo) {
		if gen != nil {
			r.newID = gen
		}
	}
}

func NewTaskRepo(store Storage, opts ...Option) *TaskRepo { // Конструктор
	r := &TaskRepo{
		store:  store,
		logger: zap.NewNop(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *TaskRepo) clock() time.Time {
	return r.now().UTC()
}

// mutate runs one load-mutate-save cycle inside the write lock. Nothing is
// saved when fn fails.
func (r *TaskRepo) mutate(ctx context.Context, fn func(c *model.Collection) error) error {
	unlock, err := r.store.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	c, err := r.store.Load(ctx)
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		return err
	}
	return r.store.Save(ctx, c)
}

func (r *TaskRepo) Create(ctx context.Context, t model.Task) (model.Task, error) {
	now := r.clock()

	t.Description = strings.TrimSpace(t.Description)
	t.Category = strings.TrimSpace(t.Category)
	if t.Category == "" {
		t.Category = model.DefaultCategory
	}
	if t.Status == "" {
		t.Status = model.StatusPending
	}
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}
	if t.ID == "" {
		t.ID = r.newID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = now
	if t.DueDate != nil {
		due := t.DueDate.UTC()
		t.DueDate = &due
	}
	t.Tags = model.NormalizeTags(t.Tags)

	if err := t.Validate(now); err != nil { // Валидация до захвата блокировки
		return model.Task{}, err
	}

	err := r.mutate(ctx, func(c *model.Collection) error {
		if c.Index(t.ID) >= 0 {
			return &model.ValidationError{Field: "id", Value: t.ID, Reason: "already exists"}
		}
		c.Tasks = append(c.Tasks, t)
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}

	r.logger.Info("task created",
		zap.String("task_id", t.ID),
		zap.String("priority", string(t.Priority)),
		zap.String("category", t.Category),
	)
	return t, nil
}

// Get reports absence through found=false; err is reserved for storage failures.
func (r *TaskRepo) Get(ctx context.Context, id string) (model.Task, bool, error) {
	c, err := r.store.Load(ctx)
	if err != nil {
		return model.Task{}, false, err
	}
	idx := c.Index(id)
	if idx < 0 {
		return model.Task{}, false, nil
	}
	return c.Tasks[idx], true, nil
}

func (r *TaskRepo) Update(ctx context.Context, id string, patch model.TaskPatch) (model.Task, error) {
	if patch.Empty() {
		return model.Task{}, &model.ValidationError{Field: "patch", Reason: "no fields to update"}
	}

	var updated model.Task
	err := r.mutate(ctx, func(c *model.Collection) error {
		idx := c.Index(id)
		if idx < 0 {
			return &model.NotFoundError{ID: id}
		}

		now := r.clock()
		next, err := applyPatch(c.Tasks[idx], patch, now)
		if err != nil {
			return err
		}
		if err := next.Validate(now); err != nil {
			return err
		}
		c.Tasks[idx] = next
		updated = next
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}

	r.logger.Info("task updated", zap.String("task_id", id), zap.String("status", string(updated.Status)))
	return updated, nil
}

func applyPatch(t model.Task, p model.TaskPatch, now time.Time) (model.Task, error) {
	if p.Status != nil {
		// терминальные статусы отклоняют даже переход в самих себя
		if !t.Status.CanTransition(*p.Status) {
			return t, &model.TransitionError{ID: t.ID, From: t.Status, To: *p.Status}
		}
		if *p.Status != t.Status {
			t.Status = *p.Status
			if t.Status == model.StatusCompleted {
				completed := now
				t.CompletedAt = &completed
			}
		}
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Category != nil {
		t.Category = strings.TrimSpace(*p.Category)
		if t.Category == "" {
			t.Category = model.DefaultCategory
		}
	}
	if p.ClearDueDate {
		t.DueDate = nil
	} else if p.DueDate != nil {
		due := p.DueDate.UTC()
		t.DueDate = &due
	}
	if p.EstimatedHours != nil {
		t.EstimatedHours = *p.EstimatedHours
	}
	if p.Tags != nil {
		t.Tags = model.NormalizeTags(*p.Tags)
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	if p.Assignee != nil {
		t.Assignee = strings.TrimSpace(*p.Assignee)
	}
	t.UpdatedAt = now
	return t, nil
}

// Complete is the one-way move into completed. Terminal tasks are rejected.
func (r *TaskRepo) Complete(ctx context.Context, id string, actualHours *float64, notes string) (model.Task, error) {
	if actualHours != nil && !model.ValidActualHours(*actualHours) {
		return model.Task{}, &model.ValidationError{Field: "actualHours", Value: strconv.FormatFloat(*actualHours, 'g', -1, 64), Reason: "must be a finite number, not negative"}
	}

	var completed model.Task
	err := r.mutate(ctx, func(c *model.Collection) error {
		idx := c.Index(id)
		if idx < 0 {
			return &model.NotFoundError{ID: id}
		}

		t := c.Tasks[idx]
		if !t.Status.CanTransition(model.StatusCompleted) {
			return &model.TransitionError{ID: id, From: t.Status, To: model.StatusCompleted}
		}

		now := r.clock()
		t.Status = model.StatusCompleted
		t.CompletedAt = &now
		t.UpdatedAt = now
		if actualHours != nil {
			hours := *actualHours
			t.ActualHours = &hours
		}
		if note := strings.TrimSpace(notes); note != "" {
			if t.Notes == "" {
				t.Notes = note
			} else {
				t.Notes += "\n" + note
			}
		}
		if err := t.Validate(now); err != nil {
			return err
		}
		c.Tasks[idx] = t
		completed = t
		return nil
	})
	if err != nil {
		return model.Task{}, err
	}

	fields := []zap.Field{zap.String("task_id", id)}
	if completed.ActualHours != nil {
		fields = append(fields, zap.Float64("actual_hours", *completed.ActualHours))
	}
	r.logger.Info("task completed", fields...)
	return completed, nil
}

func (r *TaskRepo) Delete(ctx context.Context, id string) error {
	err := r.mutate(ctx, func(c *model.Collection) error {
		idx := c.Index(id)
		if idx < 0 {
			return &model.NotFoundError{ID: id}
		}
		c.Tasks = append(c.Tasks[:idx], c.Tasks[idx+1:]...)
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Info("task deleted", zap.String("task_id", id))
	return nil
}

func (r *TaskRepo) List(ctx context.Context, filter model.Filter) ([]model.Task, error) {
	tasks, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return metrics.Apply(tasks, filter), nil
}

// Snapshot returns every stored task in insertion order.
func (r *TaskRepo) Snapshot(ctx context.Context) ([]model.Task, error) {
	c, err := r.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return c.Tasks, nil
}

func (r *TaskRepo) Backup(ctx context.Context, dst string) (int, error) {
	return r.store.Backup(ctx, dst)
}
