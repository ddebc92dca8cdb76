// Package storage persists the task collection as a single JSON document.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/BuzzLyutic/ptask/internal/model"
)

const DefaultLockTimeout = 5 * time.Second

type FileStore struct {
	path        string
	lockTimeout time.Duration
	logger      *zap.Logger
	sem         *semaphore.Weighted
	flock       *flock.Flock
}

type Option func(*FileStore)

func WithLockTimeout(d time.Duration) Option {
	return func(s *FileStore) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *FileStore) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewFileStore(path string, opts ...Option) *FileStore {
	s := &FileStore{
		path:        path,
		lockTimeout: DefaultLockTimeout,
		logger:      zap.NewNop(),
		sem:         semaphore.NewWeighted(1),
		flock:       flock.New(path + ".lock"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the document. A missing file yields an empty collection.
func (s *FileStore) Load(ctx context.Context) (*model.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("task file absent, starting empty", zap.String("path", s.path))
			return model.NewCollection(), nil
		}
		return nil, &model.IOError{Op: "read", Path: s.path, Err: err}
	}

	c, err := decode(s.path, data)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("task file loaded", zap.String("path", s.path), zap.Int("tasks", len(c.Tasks)))
	return c, nil
}

// Save replaces the document atomically.
func (s *FileStore) Save(ctx context.Context, c *model.Collection) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := Encode(c)
	if err != nil {
		return err
	}
	if err := writeAtomic(s.path, data); err != nil {
		return err
	}
	s.logger.Debug("task file saved", zap.String("path", s.path), zap.Int("tasks", len(c.Tasks)))
	return nil
}

// Backup copies the current, validated document to dst and returns the
// number of tasks written. A corrupt document is never copied.
func (s *FileStore) Backup(ctx context.Context, dst string) (int, error) {
	c, err := s.Load(ctx)
	if err != nil {
		return 0, err
	}
	data, err := Encode(c)
	if err != nil {
		return 0, err
	}
	if err := writeAtomic(dst, data); err != nil {
		return 0, err
	}
	s.logger.Info("backup written", zap.String("source", s.path), zap.String("destination", dst), zap.Int("tasks", len(c.Tasks)))
	return len(c.Tasks), nil
}

// Encode renders c the way it is stored: two-space indentation and a
// trailing newline. Output is deterministic for a given collection.
func Encode(c *model.Collection) ([]byte, error) {
	out := model.Collection{Version: c.Version, Tasks: make([]model.Task, len(c.Tasks))}
	if out.Version == 0 {
		out.Version = model.CurrentVersion
	}
	copy(out.Tasks, c.Tasks)
	for i := range out.Tasks {
		if out.Tasks[i].Tags == nil {
			out.Tasks[i].Tags = []string{}
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal task file: %w", err)
	}
	return append(data, '\n'), nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &model.IOError{Op: "create directory", Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &model.IOError{Op: "create temp file", Path: dir, Err: err}
	}
	tmpPath := tmp.Name()
	cleanup := func() { os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return &model.IOError{Op: "write", Path: tmpPath, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return &model.IOError{Op: "sync", Path: tmpPath, Err: err}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return &model.IOError{Op: "close", Path: tmpPath, Err: err}
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		cleanup()
		return &model.IOError{Op: "chmod", Path: tmpPath, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return &model.IOError{Op: "rename", Path: path, Err: err}
	}
	return nil
}
