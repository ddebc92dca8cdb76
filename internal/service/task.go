// Package service is the command/query facade: it turns raw caller input into
// typed arguments for the repository and metrics engine.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/ptask/internal/export"
	"github.com/BuzzLyutic/ptask/internal/metrics"
	"github.com/BuzzLyutic/ptask/internal/model"
	"github.com/BuzzLyutic/ptask/internal/repo"
	"github.com/BuzzLyutic/ptask/internal/worker"
)

const defaultPeriod = metrics.PeriodWeek

type TaskService struct {
	repo            repo.TaskRepository
	logger          *zap.Logger
	now             func() time.Time
	defaultCategory string
	dataFile        string
	workers         int
}

type Option func(*TaskService)

func WithLogger(l *zap.Logger) Option {
	return func(s *TaskService) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *TaskService) {
		if now != nil {
			s.now = now
		}
	}
}

func WithDefaultCategory(c string) Option {
	return func(s *TaskService) {
		if c = strings.TrimSpace(c); c != "" {
			s.defaultCategory = c
		}
	}
}

// WithDataFile names the persisted document; default backup paths derive from it.
func WithDataFile(path string) Option {
	return func(s *TaskService) { s.dataFile = path }
}

func WithWorkers(n int) Option {
	return func(s *TaskService) {
		if n > 0 {
			s.workers = n
		}
	}
}

func NewTaskService(repo repo.TaskRepository, opts ...Option) *TaskService {
	s := &TaskService{
		repo:            repo,
		logger:          zap.NewNop(),
		now:             time.Now,
		defaultCategory: model.DefaultCategory,
		dataFile:        "tasks.json",
		workers:         4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TaskService) clock() time.Time {
	return s.now().UTC()
}

func (s *TaskService) AddTask(ctx context.Context, req AddTaskRequest) (model.Task, error) {
	t, err := req.task(s.defaultCategory) // Валидация входных данных до обращения к хранилищу
	if err != nil {
		return model.Task{}, err
	}
	return s.repo.Create(ctx, t)
}

func (s *TaskService) GetTask(ctx context.Context, id string) (model.Task, error) {
	id, err := parseID(id)
	if err != nil {
		return model.Task{}, err
	}
	t, found, err := s.repo.Get(ctx, id)
	if err != nil {
		return model.Task{}, err
	}
	if !found {
		return model.Task{}, &model.NotFoundError{ID: id}
	}
	return t, nil
}

func (s *TaskService) UpdateTask(ctx context.Context, req UpdateTaskRequest) (model.Task, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return model.Task{}, err
	}
	patch, err := req.patch()
	if err != nil {
		return model.Task{}, err
	}
	return s.repo.Update(ctx, id, patch)
}

func (s *TaskService) StartTask(ctx context.Context, id string) (model.Task, error) {
	return s.setStatus(ctx, id, model.StatusInProgress)
}

func (s *TaskService) CancelTask(ctx context.Context, id string) (model.Task, error) {
	return s.setStatus(ctx, id, model.StatusCancelled)
}

func (s *TaskService) setStatus(ctx context.Context, id string, status model.Status) (model.Task, error) {
	id, err := parseID(id)
	if err != nil {
		return model.Task{}, err
	}
	return s.repo.Update(ctx, id, model.TaskPatch{Status: &status})
}

func (s *TaskService) CompleteTask(ctx context.Context, req CompleteTaskRequest) (model.Task, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return model.Task{}, err
	}
	var hours *float64
	if strings.TrimSpace(req.Hours) != "" {
		h, err := parseHours("actualHours", req.Hours)
		if err != nil {
			return model.Task{}, err
		}
		hours = &h
	}
	return s.repo.Complete(ctx, id, hours, req.Notes)
}

func (s *TaskService) DeleteTask(ctx context.Context, id string) error {
	id, err := parseID(id)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *TaskService) ListTasks(ctx context.Context, req ListTasksRequest) ([]model.Task, error) {
	filter, err := req.filter(s.clock())
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, filter)
}

// Stats is the all-time summary with both breakdowns.
type Stats struct {
	Summary    metrics.Summary           `json:"metrics" yaml:"metrics"`
	Categories []metrics.CategoryMetrics `json:"categoryBreakdown" yaml:"categoryBreakdown"`
	Priorities []metrics.PriorityMetrics `json:"priorityBreakdown" yaml:"priorityBreakdown"`
}

func (s *TaskService) Stats(ctx context.Context) (Stats, error) {
	tasks, err := s.repo.Snapshot(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Summary:    metrics.Summarize(tasks, s.clock()),
		Categories: metrics.CategoryBreakdown(tasks),
		Priorities: metrics.PriorityBreakdown(tasks),
	}, nil
}

func (s *TaskService) Report(ctx context.Context, req ReportRequest) (metrics.Report, error) {
	period := defaultPeriod
	if req.Period != "" {
		p, err := metrics.ParsePeriod(req.Period)
		if err != nil {
			return metrics.Report{}, err
		}
		period = p
	}

	tasks, err := s.repo.Snapshot(ctx)
	if err != nil {
		return metrics.Report{}, err
	}
	return metrics.BuildReport(tasks, period, s.clock()), nil
}

type ExportResult struct {
	Format export.Format
	Tasks  []model.Task
}

// Export selects the tasks to serialize. The date range keeps tasks created
// or completed inside it.
func (s *TaskService) Export(ctx context.Context, req ExportRequest) (ExportResult, error) {
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		return ExportResult{}, err
	}

	list := ListTasksRequest{Status: req.Status}
	filter, err := list.filter(s.clock())
	if err != nil {
		return ExportResult{}, err
	}

	var start, end time.Time
	if req.DateRange != "" {
		if start, end, err = parseDateRange(req.DateRange); err != nil {
			return ExportResult{}, err
		}
	}

	tasks, err := s.repo.List(ctx, filter)
	if err != nil {
		return ExportResult{}, err
	}
	if req.DateRange != "" {
		selected := make([]model.Task, 0, len(tasks))
		for _, t := range tasks {
			if metrics.InWindow(t, start, end) {
				selected = append(selected, t)
			}
		}
		tasks = selected
	}

	s.logger.Debug("export prepared", zap.String("format", string(format)), zap.Int("tasks", len(tasks)))
	return ExportResult{Format: format, Tasks: tasks}, nil
}

type BackupResult struct {
	Path  string `json:"path"`
	Tasks int    `json:"tasks"`
}

// Backup copies the current document. Without a path it writes next to the
// data file as <data-file>.<timestamp>.bak.
func (s *TaskService) Backup(ctx context.Context, req BackupRequest) (BackupResult, error) {
	path := strings.TrimSpace(req.Path)
	if path == "" {
		path = fmt.Sprintf("%s.%s.bak", s.dataFile, s.clock().Format("20060102T150405Z"))
	}
	if path == s.dataFile {
		return BackupResult{}, &model.ValidationError{Field: "path", Value: path, Reason: "must differ from the data file"}
	}

	n, err := s.repo.Backup(ctx, path)
	if err != nil {
		return BackupResult{}, err
	}
	return BackupResult{Path: path, Tasks: n}, nil
}

// BatchResult reports the outcome for one id of a batch command.
type BatchResult struct {
	ID   string
	Task model.Task
	Err  error
}

// CompleteTasks completes every id concurrently on the worker pool. Each job
// takes the write lock on its own, so one failure does not stop the rest.
func (s *TaskService) CompleteTasks(ctx context.Context, ids []string, hours, notes string) []BatchResult {
	results := make([]BatchResult, len(ids))
	jobs := make([]worker.Job, len(ids))
	for i, id := range ids {
		i, id := i, id
		results[i].ID = id
		jobs[i] = worker.Job{Key: id, Run: func(ctx context.Context) error {
			t, err := s.CompleteTask(ctx, CompleteTaskRequest{ID: id, Hours: hours, Notes: notes})
			results[i].Task = t
			return err
		}}
	}
	return s.runBatch(ctx, jobs, results)
}

func (s *TaskService) DeleteTasks(ctx context.Context, ids []string) []BatchResult {
	results := make([]BatchResult, len(ids))
	jobs := make([]worker.Job, len(ids))
	for i, id := range ids {
		id := id
		results[i].ID = id
		jobs[i] = worker.Job{Key: id, Run: func(ctx context.Context) error {
			return s.DeleteTask(ctx, id)
		}}
	}
	return s.runBatch(ctx, jobs, results)
}

func (s *TaskService) runBatch(ctx context.Context, jobs []worker.Job, results []BatchResult) []BatchResult {
	pool := worker.NewPool(s.logger, s.workers)
	for i, r := range pool.Run(ctx, jobs) {
		results[i].Err = r.Err
	}
	return results
}
