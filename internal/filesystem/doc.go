/*
Package filesystem guards every filesystem access the media explorer makes on
behalf of a client.

# Path containment

A Resolver holds the canonical media root. Resolve joins a client-supplied relative
path onto it, checks containment lexically (so an escaping path never reaches the
filesystem), resolves symlinks on the longest existing prefix, and checks containment
again to stop symlink escapes:

	resolver, err := filesystem.NewResolver("/media")
	abs, err := resolver.Resolve("shows/pilot.mp4") // "/media/shows/pilot.mp4"
	_, err = resolver.Resolve("../../etc/passwd")   // ErrOutsideRoot

Containment is separator-aware: a root of /media never contains /media-archive.
Components that receive a resolved path do not validate it again.

# NFS resilience

StatWithRetry, OpenWithRetry and ReadFileWithRetry wrap the os calls with
exponential-backoff retries on ESTALE (stale NFS file handle). Every other error is
returned immediately.

	info, err := filesystem.StatWithRetry(abs, filesystem.DefaultRetryConfig())

# Metrics

Operation durations, stale-handle errors and retry outcomes are reported through the
Observer interface, labeled with a volume name from the VolumeResolver. The metrics
package provides the Prometheus implementation; set it once at startup:

	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
	    "media": cfg.MediaDir,
	    "cache": cfg.CacheDir,
	}))
*/
package filesystem
