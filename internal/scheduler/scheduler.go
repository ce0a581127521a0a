// Package scheduler runs the metaserver's periodic background jobs —
// ranking recomputation and game GC/auto-abort sweeps —
// each on its own interval. It generalizes the teacher's fixed-tick ECS
// Runner (internal/core/system.Runner, which ticks every System once
// per frame in Phase order) to independent, self-paced jobs: this
// server has no simulation tick to synchronize against, so each job
// gets its own ticker instead of sharing one global dt.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is one named periodic task.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Runner owns a set of Jobs and runs each on its own goroutine/ticker,
// recovering panics so one misbehaving job can't take down the others
// or the server (mirrors internal/net/packet.Registry's safeCall idiom
// from the teacher, applied here to background jobs instead of packet
// handlers).
type Runner struct {
	jobs []Job
	log  *zap.Logger

	wg sync.WaitGroup
}

func NewRunner(log *zap.Logger) *Runner {
	return &Runner{log: log}
}

// Register adds a job. Must be called before Run.
func (r *Runner) Register(j Job) {
	r.jobs = append(r.jobs, j)
}

// Run starts every registered job and blocks until ctx is canceled, then
// waits for all in-flight job executions to finish before returning.
func (r *Runner) Run(ctx context.Context) {
	for _, j := range r.jobs {
		r.wg.Add(1)
		go r.runJob(ctx, j)
	}
	r.wg.Wait()
}

func (r *Runner) runJob(ctx context.Context, j Job) {
	defer r.wg.Done()

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.execute(ctx, j)
		}
	}
}

func (r *Runner) execute(ctx context.Context, j Job) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("scheduled job panicked", zap.String("job", j.Name), zap.Any("panic", rec))
		}
	}()
	if err := j.Run(ctx); err != nil {
		r.log.Warn("scheduled job returned an error", zap.String("job", j.Name), zap.Error(err))
	}
}
