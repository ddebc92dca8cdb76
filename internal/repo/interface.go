package repo

import (
	"context"

	"github.com/BuzzLyutic/ptask/internal/model"
)

// TaskRepository определяет интерфейс для работы с задачами
type TaskRepository interface {
	Create(ctx context.Context, t model.Task) (model.Task, error)
	Get(ctx context.Context, id string) (model.Task, bool, error)
	Update(ctx context.Context, id string, patch model.TaskPatch) (model.Task, error)
	Complete(ctx context.Context, id string, actualHours *float64, notes string) (model.Task, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter model.Filter) ([]model.Task, error)
	Snapshot(ctx context.Context) ([]model.Task, error)
	Backup(ctx context.Context, dst string) (int, error)
}

// Storage is the persistence the repository reads and writes through.
type Storage interface {
	Load(ctx context.Context) (*model.Collection, error)
	Save(ctx context.Context, c *model.Collection) error
	Lock(ctx context.Context) (unlock func(), err error)
	Backup(ctx context.Context, dst string) (int, error)
}
