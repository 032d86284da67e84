package core

import "context"

// RangeFunc processes the half-open index range [lo, hi).
type RangeFunc func(ctx context.Context, lo, hi int) error

// ForEachRange runs fn over [begin, end) split into chunks of at most grain
// indices. The range is halved recursively: each task keeps the lower half and
// spawns the upper half as a child, so idle workers steal the largest pending
// pieces first. The caller helps until every chunk finished and gets the joined
// errors of the chunks.
//
// ctx must be bound to a worker of s, either a MainContext or the context of a
// running task. A grain below 1 picks roughly four chunks per thread.
func ForEachRange(ctx context.Context, s *Scheduler, begin, end, grain int, fn RangeFunc) error {
	if end <= begin {
		return nil
	}
	if grain < 1 {
		grain = max(1, (end-begin)/(s.ThreadCount()*4))
	}

	status := NewStatus()
	var split func(lo, hi int) TaskFunc
	split = func(lo, hi int) TaskFunc {
		return func(ctx context.Context) error {
			for hi-lo > grain {
				mid := lo + (hi-lo)/2
				if err := s.Spawn(ctx, status, split(mid, hi)); err != nil {
					return err
				}
				hi = mid
			}
			return fn(ctx, lo, hi)
		}
	}

	if err := s.SubmitNamed(ctx, "for-each-range", status, split(begin, end)); err != nil {
		return err
	}
	if err := s.WorkUntilDone(ctx, status); err != nil {
		return err
	}
	return status.Err()
}

// ParallelForEach calls fn for every item, distributing the items over the pool
// with ForEachRange.
func ParallelForEach[T any](ctx context.Context, s *Scheduler, items []T, grain int, fn func(ctx context.Context, item T) error) error {
	return ForEachRange(ctx, s, 0, len(items), grain, func(ctx context.Context, lo, hi int) error {
		for i := lo; i < hi; i++ {
			if err := fn(ctx, items[i]); err != nil {
				return err
			}
		}
		return nil
	})
}
