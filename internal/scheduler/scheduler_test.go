package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRunnerExecutesJobOnItsInterval(t *testing.T) {
	var count atomic.Int32
	r := NewRunner(zap.NewNop())
	r.Register(Job{
		Name:     "tick",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			count.Add(1)
			return nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	if got := count.Load(); got < 2 {
		t.Fatalf("expected the job to fire at least twice, got %d", got)
	}
}

func TestRunnerRecoversJobPanic(t *testing.T) {
	var ran atomic.Bool
	r := NewRunner(zap.NewNop())
	r.Register(Job{
		Name:     "boom",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			panic("deliberate")
		},
	})
	r.Register(Job{
		Name:     "survivor",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			ran.Store(true)
			return nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	if !ran.Load() {
		t.Fatal("expected the surviving job to keep running despite the other panicking")
	}
}
