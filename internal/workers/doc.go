/*
Package workers sizes and bounds concurrent work in containerized
environments.

Go sets GOMAXPROCS from the container CPU limit, while runtime.NumCPU still
reports the host. Worker counts are derived from GOMAXPROCS so that a pod
limited to 2 CPUs on a 64-core node runs 2 decoders, not 64.

# Sizing

	// One worker per CPU, never more than 8
	n := workers.ForCPU(8)

	// Two per CPU for I/O-heavy work
	n := workers.ForIO(16)

	// Any ratio
	n := workers.Count(3.0, 24)

Every function honours the THUMBNAIL_WORKERS environment variable, which pins
the count (still subject to the cap):

	env:
	- name: THUMBNAIL_WORKERS
	  value: "4"

# Bounding

[Limiter] wraps a weighted semaphore from golang.org/x/sync. Callers acquire
a slot before starting an external decoder and release it afterwards:

	lim := workers.NewLimiter(workers.ForCPU(8))

	if err := lim.Acquire(ctx); err != nil {
	    return err
	}
	defer lim.Release()

Acquire respects context cancellation, so a generation whose deadline expires
while queued gives up without ever holding a slot.
*/
package workers
