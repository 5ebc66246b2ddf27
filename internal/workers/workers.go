package workers

import (
	"context"
	"os"
	"runtime"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// OverrideEnv names the environment variable that pins the worker count.
const OverrideEnv = "THUMBNAIL_WORKERS"

// Count returns the worker count for a workload, scaled from GOMAXPROCS
// (which follows container CPU limits) by multiplier and capped at limit.
// A limit of 0 means no cap. THUMBNAIL_WORKERS, when set to a positive
// integer, replaces the computed value but is still capped.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(OverrideEnv); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	workers := int(float64(runtime.GOMAXPROCS(0)) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
// The limit parameter caps the maximum number of workers.
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
// The limit parameter caps the maximum number of workers.
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// Limiter bounds how many units of work run at once.
type Limiter struct {
	sem  *semaphore.Weighted
	size int
	busy atomic.Int64

	// OnChange, when set, is called with the number of busy slots after
	// every acquire and release.
	OnChange func(busy int)
}

// NewLimiter creates a limiter with size slots. Sizes below 1 become 1.
func NewLimiter(size int) *Limiter {
	if size < 1 {
		size = 1
	}
	return &Limiter{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	l.changed(l.busy.Add(1))
	return nil
}

// Release frees a slot taken by Acquire.
func (l *Limiter) Release() {
	l.changed(l.busy.Add(-1))
	l.sem.Release(1)
}

// Size returns the number of slots.
func (l *Limiter) Size() int {
	return l.size
}

// Busy returns the number of slots currently held.
func (l *Limiter) Busy() int {
	return int(l.busy.Load())
}

func (l *Limiter) changed(busy int64) {
	if l.OnChange != nil {
		l.OnChange(int(busy))
	}
}
