package media

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"media-explorer/internal/filesystem"
	"media-explorer/internal/logging"
	"media-explorer/internal/mediatypes"
	"media-explorer/internal/metrics"
	"media-explorer/internal/workers"

	"github.com/google/renameio/v2"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultThumbnailWidth is the maximum thumbnail width in pixels.
	DefaultThumbnailWidth = 320

	// DefaultFrameAt is where video thumbnails are taken from.
	DefaultFrameAt = time.Second

	// DefaultGenerationTimeout bounds a single generation task.
	DefaultGenerationTimeout = 30 * time.Second

	cacheExt = ".jpg"
)

// FrameExtractor pulls a single frame from a video as JPEG bytes no wider
// than maxWidth.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, videoPath string, atSeconds float64, maxWidth int) ([]byte, error)
}

// ImageDownscaler produces a JPEG no wider than maxWidth from an image file.
type ImageDownscaler interface {
	Downscale(ctx context.Context, imagePath string, maxWidth int) ([]byte, error)
}

// Gate holds back new generations, for example under memory pressure.
type Gate interface {
	WaitIfPaused(ctx context.Context) error
}

// CacheOptions configures a ThumbnailCache. Zero values take defaults.
type CacheOptions struct {
	// Dir holds one <md5>.jpg file per thumbnail. Created if missing.
	Dir string

	MaxWidth int
	FrameAt  time.Duration
	Timeout  time.Duration

	Extractor  FrameExtractor
	Downscaler ImageDownscaler

	// Workers caps concurrent decoder runs across all keys.
	Workers int

	Gate  Gate
	Retry filesystem.RetryConfig
}

// CacheStats describes the cache directory contents.
type CacheStats struct {
	Entries int
	Bytes   int64
}

// ThumbnailCache returns JPEG thumbnails for media files, generating each one
// at most once at a time and keeping the result on disk forever. Entries are
// keyed by path only, so a source file replaced in place keeps its old
// thumbnail.
type ThumbnailCache struct {
	dir        string
	maxWidth   int
	frameAt    float64
	timeout    time.Duration
	extractor  FrameExtractor
	downscaler ImageDownscaler
	limiter    *workers.Limiter
	gate       Gate
	retry      filesystem.RetryConfig

	group singleflight.Group
}

// NewThumbnailCache creates the cache directory if needed and verifies that it
// is writable.
func NewThumbnailCache(opts CacheOptions) (*ThumbnailCache, error) {
	if opts.Dir == "" {
		return nil, errors.New("thumbnail cache directory is empty")
	}

	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve cache dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if err := checkWritable(dir); err != nil {
		return nil, fmt.Errorf("cache dir %s not writable: %w", dir, err)
	}

	c := &ThumbnailCache{
		dir:        dir,
		maxWidth:   opts.MaxWidth,
		frameAt:    opts.FrameAt.Seconds(),
		timeout:    opts.Timeout,
		extractor:  opts.Extractor,
		downscaler: opts.Downscaler,
		gate:       opts.Gate,
		retry:      opts.Retry,
	}

	if c.maxWidth <= 0 {
		c.maxWidth = DefaultThumbnailWidth
	}
	if opts.FrameAt <= 0 {
		c.frameAt = DefaultFrameAt.Seconds()
	}
	if c.timeout <= 0 {
		c.timeout = DefaultGenerationTimeout
	}
	if c.extractor == nil {
		c.extractor = NewFFmpegExtractor()
	}
	if c.downscaler == nil {
		c.downscaler = NewImagingDownscaler()
	}
	if c.retry.MaxRetries == 0 && c.retry.InitialBackoff == 0 {
		c.retry = filesystem.DefaultRetryConfig()
	}

	size := opts.Workers
	if size <= 0 {
		size = workers.ForCPU(4)
	}
	c.limiter = workers.NewLimiter(size)
	c.limiter.OnChange = func(busy int) { metrics.ThumbnailWorkersBusy.Set(float64(busy)) }

	logging.Debug("ThumbnailCache: dir=%s width=%d frameAt=%.1fs timeout=%v workers=%d",
		c.dir, c.maxWidth, c.frameAt, c.timeout, size)

	return c, nil
}

func checkWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".writecheck-*")
	if err != nil {
		return err
	}
	name := f.Name()
	closeErr := f.Close()
	if err := os.Remove(name); err != nil {
		return err
	}
	return closeErr
}

// Dir returns the absolute cache directory.
func (c *ThumbnailCache) Dir() string {
	return c.dir
}

// CacheKey returns the hex MD5 of a resolved path.
func CacheKey(resolvedPath string) string {
	sum := md5.Sum([]byte(resolvedPath))
	return hex.EncodeToString(sum[:])
}

func (c *ThumbnailCache) entryPath(key string) string {
	return filepath.Join(c.dir, key+cacheExt)
}

// GetThumbnail returns the thumbnail for a path already resolved against the
// media root. Concurrent callers for the same path share one generation. If
// ctx ends first the caller stops waiting, but the generation carries on and
// still populates the cache. The returned slice may be shared and must not be
// modified.
func (c *ThumbnailCache) GetThumbnail(ctx context.Context, resolvedPath string) ([]byte, error) {
	key := CacheKey(resolvedPath)

	if data, err := filesystem.ReadFileWithRetry(c.entryPath(key), c.retry); err == nil {
		metrics.ThumbnailCacheHits.Inc()
		logging.Debug("Thumbnail cache hit: %s", resolvedPath)
		return data, nil
	}
	metrics.ThumbnailCacheMisses.Inc()

	ch := c.group.DoChan(key, func() (interface{}, error) {
		return c.generate(key, resolvedPath)
	})

	select {
	case res := <-ch:
		if res.Shared {
			metrics.ThumbnailSharedResults.Inc()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// generate runs once per key at a time, under a context detached from every
// requester.
func (c *ThumbnailCache) generate(key, sourcePath string) ([]byte, error) {
	metrics.ThumbnailGenerationsInFlight.Inc()
	defer metrics.ThumbnailGenerationsInFlight.Dec()

	cachePath := c.entryPath(key)

	// Another task may have finished between the fast path and now.
	if data, err := filesystem.ReadFileWithRetry(cachePath, c.retry); err == nil {
		return data, nil
	}

	info, err := filesystem.StatWithRetry(sourcePath, c.retry)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", filesystem.ErrSourceNotFound, err)
	}
	if info.IsDir() {
		return nil, ErrUnsupportedMediaType
	}

	kind := mediatypes.Classify(sourcePath)
	if kind != mediatypes.KindVideo && kind != mediatypes.KindImage {
		return nil, ErrUnsupportedMediaType
	}

	logging.Debug("Thumbnail generating: %s (type: %s)", sourcePath, kind)

	data, took, err := c.render(kind, sourcePath)
	if err != nil {
		var genErr *GenerationError
		if !errors.As(err, &genErr) {
			err = generationError(sourcePath, ReasonExtract, err)
			errors.As(err, &genErr)
		}

		status := "error"
		if genErr.Reason == ReasonTimeout {
			status = "timeout"
		}
		metrics.ThumbnailGenerationsTotal.WithLabelValues(string(kind), status).Inc()
		logging.Warn("Thumbnail generation failed for %s: %v", sourcePath, err)
		return nil, err
	}

	metrics.ThumbnailGenerationsTotal.WithLabelValues(string(kind), "success").Inc()
	metrics.ThumbnailGenerationDuration.WithLabelValues(string(kind)).Observe(took.Seconds())

	if err := c.persist(cachePath, data); err != nil {
		metrics.ThumbnailCachePersistErrors.Inc()
		logging.Warn("Failed to cache thumbnail %s: %v", cachePath, err)
	} else {
		logging.Debug("Thumbnail cached: %s (%d bytes, %v)", cachePath, len(data), took)
	}

	return data, nil
}

// render waits for the memory gate and a worker slot, then runs the decoder
// under the generation timeout. Only the decoder run counts against the
// timeout; time spent queued does not.
func (c *ThumbnailCache) render(kind mediatypes.Kind, sourcePath string) ([]byte, time.Duration, error) {
	queueCtx := context.Background()

	if c.gate != nil {
		if err := c.gate.WaitIfPaused(queueCtx); err != nil {
			return nil, 0, contextFailure(sourcePath, err)
		}
	}

	if err := c.limiter.Acquire(queueCtx); err != nil {
		return nil, 0, contextFailure(sourcePath, err)
	}
	defer c.limiter.Release()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	start := time.Now()
	var (
		data []byte
		err  error
	)
	if kind == mediatypes.KindVideo {
		data, err = c.extractor.ExtractFrame(ctx, sourcePath, c.frameAt, c.maxWidth)
	} else {
		data, err = c.downscaler.Downscale(ctx, sourcePath, c.maxWidth)
	}
	took := time.Since(start)

	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		var genErr *GenerationError
		if !errors.As(err, &genErr) || genErr.Reason != ReasonTimeout {
			err = generationError(sourcePath, ReasonTimeout, err)
		}
	}
	return data, took, err
}

// persist writes data through a temp file in the cache directory and renames
// it into place, so the final path is either absent or complete.
func (c *ThumbnailCache) persist(cachePath string, data []byte) error {
	pendingFile, err := renameio.NewPendingFile(cachePath,
		renameio.WithTempDir(c.dir),
		renameio.WithPermissions(0o644),
	)
	if err != nil {
		return fmt.Errorf("create pending thumbnail: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logging.Debug("cleanup pending thumbnail %s: %v", cachePath, err)
		}
	}()

	if _, err := pendingFile.Write(data); err != nil {
		return fmt.Errorf("write thumbnail: %w", err)
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace thumbnail: %w", err)
	}

	return nil
}

// Stats counts completed entries in the cache directory. Temporary files
// from in-progress writes are skipped.
func (c *ThumbnailCache) Stats() (CacheStats, error) {
	var stats CacheStats

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return stats, err
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, cacheExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		stats.Entries++
		stats.Bytes += info.Size()
	}

	return stats, nil
}

// GetStats adapts Stats to metrics.StatsProvider.
func (c *ThumbnailCache) GetStats() metrics.Stats {
	stats, err := c.Stats()
	if err != nil {
		logging.Debug("Thumbnail cache stats unavailable: %v", err)
	}
	return metrics.Stats{ThumbnailCount: stats.Entries, ThumbnailBytes: stats.Bytes}
}
