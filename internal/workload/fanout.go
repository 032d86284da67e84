package workload

import (
	"context"
	"time"

	"github.com/fyh275905/sofa-sub006/core"
)

// LeafFunc is the body of one fan-out child.
type LeafFunc func(ctx context.Context, root, child int) error

// FanOutResult describes one FanOut run.
type FanOutResult struct {
	Tasks    int
	Duration time.Duration
}

// FanOut submits roots tasks from ctx, each spawning children tasks that call
// fn, and helps until all of them finished. ctx must be bound to a worker of s.
// Errors returned by fn are joined into the returned error.
func FanOut(ctx context.Context, s *core.Scheduler, roots, children int, fn LeafFunc) (FanOutResult, error) {
	start := time.Now()
	status := core.NewStatus()
	for r := 0; r < roots; r++ {
		r := r
		err := s.SubmitNamed(ctx, "fan-out-root", status, func(ctx context.Context) error {
			for c := 0; c < children; c++ {
				c := c
				if err := s.Spawn(ctx, status, func(ctx context.Context) error {
					return fn(ctx, r, c)
				}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			_ = s.WorkUntilDone(ctx, status)
			return FanOutResult{Tasks: r, Duration: time.Since(start)}, err
		}
	}
	if err := s.WorkUntilDone(ctx, status); err != nil {
		return FanOutResult{}, err
	}
	return FanOutResult{
		Tasks:    roots * (children + 1),
		Duration: time.Since(start),
	}, status.Err()
}

// Burn spins for iterations rounds of floating point work and returns a value
// the compiler cannot discard.
func Burn(iterations int) float64 {
	x := 1.0
	for i := 0; i < iterations; i++ {
		x = x*1.0000001 + 1e-9
	}
	return x
}
