package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one unit of batch work, e.g. completing a single task id.
type Job struct {
	Key string
	Run func(ctx context.Context) error
}

type Result struct {
	Key string
	Err error
}

type Pool struct {
	logger *zap.Logger
	count  int
}

func NewPool(logger *zap.Logger, count int) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if count < 1 {
		count = 1
	}
	return &Pool{
		logger: logger,
		count:  count,
	}
}

type indexedJob struct {
	idx int
	job Job
}

// Run executes jobs on at most count goroutines and returns one Result per
// job in input order. Jobs not yet started when ctx is cancelled report ctx.Err().
func (p *Pool) Run(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	workers := p.count
	if workers > len(jobs) {
		workers = len(jobs)
	}
	p.logger.Debug("Starting worker pool", zap.Int("workers", workers), zap.Int("jobs", len(jobs)))

	queue := make(chan indexedJob)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go p.worker(ctx, i, queue, results, &wg)
	}

	for i, job := range jobs {
		select {
		case queue <- indexedJob{idx: i, job: job}:
		case <-ctx.Done():
			// Остаток очереди помечаем отменённым
			for j := i; j < len(jobs); j++ {
				results[j] = Result{Key: jobs[j].Key, Err: ctx.Err()}
			}
			close(queue)
			wg.Wait()
			return results
		}
	}
	close(queue)
	wg.Wait()

	p.logger.Debug("Worker pool stopped")
	return results
}

func (p *Pool) worker(ctx context.Context, id int, queue <-chan indexedJob, results []Result, wg *sync.WaitGroup) {
	defer wg.Done()

	for item := range queue {
		start := time.Now()
		err := ctx.Err()
		if err == nil {
			err = item.job.Run(ctx)
		}
		results[item.idx] = Result{Key: item.job.Key, Err: err}

		if err != nil {
			p.logger.Warn("job failed",
				zap.Int("worker", id),
				zap.String("key", item.job.Key),
				zap.Error(err),
			)
			continue
		}
		p.logger.Debug("job done",
			zap.Int("worker", id),
			zap.String("key", item.job.Key),
			zap.Duration("took", time.Since(start)),
		)
	}
}
