// Package memory configures the Go memory limit for containerized deployments
// and applies backpressure to thumbnail generation under memory pressure.
//
// # Configuration
//
// Call [ConfigureFromEnv] early in main, before significant allocations:
//
//	result := memory.ConfigureFromEnv()
//	logging.Info("Memory: %s", result)
//
// Environment variables:
//
//   - GOMEMLIMIT: standard Go variable, read by the runtime at startup. When
//     set it takes precedence and the other variables are ignored.
//
//   - MEMORY_LIMIT: container limit, usually injected through the Kubernetes
//     Downward API as a byte count. Binary suffixes ("512Mi", "2GiB") are
//     accepted for hand-written values.
//
//   - MEMORY_RATIO: share of MEMORY_LIMIT given to the Go heap, between 0 and
//     1. Default 0.85. Lower it when many ffmpeg processes run in parallel;
//     their memory is outside the Go heap.
//
// Downward API example:
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//	- name: MEMORY_RATIO
//	  value: "0.75"
//
// # Backpressure
//
// [Monitor] samples heap usage on an interval. Once usage crosses the critical
// water mark, [Monitor.WaitIfPaused] blocks new thumbnail generations until
// usage falls below the high water mark:
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
//
//	if err := monitor.WaitIfPaused(ctx); err != nil {
//	    return err
//	}
//
// Without a limit (neither GOMEMLIMIT nor MEMORY_LIMIT) the monitor never
// pauses.
package memory
