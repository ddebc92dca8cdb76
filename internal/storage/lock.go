package storage

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/BuzzLyutic/ptask/internal/model"
)

const lockRetryDelay = 25 * time.Millisecond

// Lock enters the write critical section guarding load+mutate+save. The
// semaphore serializes callers in this process; the advisory lock file
// serializes separate ptask processes. Waiting longer than the lock timeout
// fails with a BusyError.
func (s *FileStore) Lock(ctx context.Context) (func(), error) {
	start := time.Now()
	lctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	if err := s.sem.Acquire(lctx, 1); err != nil {
		return nil, s.lockFailure(ctx, start)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.sem.Release(1)
		return nil, &model.IOError{Op: "create directory", Path: dir, Err: err}
	}

	locked, err := s.flock.TryLockContext(lctx, lockRetryDelay)
	if err != nil || !locked {
		s.sem.Release(1)
		if lctx.Err() != nil {
			return nil, s.lockFailure(ctx, start)
		}
		return nil, &model.IOError{Op: "lock", Path: s.flock.Path(), Err: err}
	}

	return func() {
		if err := s.flock.Unlock(); err != nil {
			s.logger.Warn("release task file lock", zap.String("path", s.flock.Path()), zap.Error(err))
		}
		s.sem.Release(1)
	}, nil
}

func (s *FileStore) lockFailure(ctx context.Context, start time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	waited := time.Since(start)
	s.logger.Warn("task file busy", zap.String("path", s.path), zap.Duration("waited", waited))
	return &model.BusyError{Path: s.path, Waited: waited}
}
