package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"media-explorer/internal/logging"
	"media-explorer/internal/metrics"
)

var (
	// ErrWriteTimeout means a single write, or the gap between writes,
	// exceeded its limit. Usually a client reading too slowly.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone means the request context ended before the body was sent.
	ErrClientGone = errors.New("client disconnected")

	// ErrStreamClosed is returned by writes after Close.
	ErrStreamClosed = errors.New("stream closed")
)

// WriterConfig bounds how long a stream may stall.
type WriterConfig struct {
	// WriteTimeout caps a single chunk write, enforced as a connection
	// write deadline.
	WriteTimeout time.Duration
	// IdleTimeout caps the time between successful writes. Zero disables it.
	IdleTimeout time.Duration
	// ChunkSize is both the copy buffer size and the largest single write.
	ChunkSize int
}

// DefaultWriterConfig returns the limits used for media streams.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		ChunkSize:    64 * 1024,
	}
}

// TimeoutWriter wraps an http.ResponseWriter so that a stalled or departed
// client releases the stream instead of pinning it. Each chunk is written
// synchronously under a connection write deadline, so no write is ever left
// running once the handler returns.
type TimeoutWriter struct {
	w      http.ResponseWriter
	rc     *http.ResponseController
	ctx    context.Context
	cancel context.CancelFunc
	config WriterConfig

	// deadlines is false when no writer in the chain can set a write
	// deadline (test recorders). Stalls are then only caught between writes.
	deadlines bool

	mu           sync.Mutex
	start        time.Time
	lastWrite    time.Time
	bytesWritten int64
	timedOut     bool
	closed       bool
	idleDone     chan struct{}
}

// NewTimeoutWriter starts the idle watchdog. Close must be called to stop it.
func NewTimeoutWriter(ctx context.Context, w http.ResponseWriter, config WriterConfig) *TimeoutWriter {
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultWriterConfig().ChunkSize
	}
	writerCtx, cancel := context.WithCancel(ctx)

	now := time.Now()
	tw := &TimeoutWriter{
		w:         w,
		rc:        http.NewResponseController(w),
		ctx:       writerCtx,
		cancel:    cancel,
		config:    config,
		deadlines: config.WriteTimeout > 0,
		start:     now,
		lastWrite: now,
		idleDone:  make(chan struct{}),
	}

	go tw.idleChecker()

	return tw
}

// Write sends p in chunks of at most ChunkSize, flushing after each.
func (tw *TimeoutWriter) Write(p []byte) (int, error) {
	total := 0
	for len(p) > 0 {
		if err := tw.checkOpen(); err != nil {
			return total, err
		}

		size := min(len(p), tw.config.ChunkSize)
		n, err := tw.writeChunk(p[:size])
		total += n
		if err != nil {
			return total, err
		}
		p = p[size:]
	}
	return total, nil
}

func (tw *TimeoutWriter) checkOpen() error {
	tw.mu.Lock()
	closed := tw.closed
	tw.mu.Unlock()
	if closed {
		return ErrStreamClosed
	}

	select {
	case <-tw.ctx.Done():
		return tw.contextError()
	default:
		return nil
	}
}

// writeChunk writes and flushes p under a fresh write deadline.
func (tw *TimeoutWriter) writeChunk(p []byte) (int, error) {
	if tw.deadlines {
		err := tw.rc.SetWriteDeadline(time.Now().Add(tw.config.WriteTimeout))
		if errors.Is(err, http.ErrNotSupported) {
			logging.Debug("Stream writer cannot set write deadlines, relying on idle timeout")
			tw.deadlines = false
		}
	}

	n, err := tw.w.Write(p)
	if err == nil {
		if ferr := tw.rc.Flush(); ferr != nil && !errors.Is(ferr, http.ErrNotSupported) {
			err = ferr
		}
	}
	if err != nil {
		return n, tw.writeError(err)
	}

	tw.recordWrite(n)
	return n, nil
}

// writeError classifies a failed write. A missed deadline is a timeout, any
// other failure means the client went away.
func (tw *TimeoutWriter) writeError(err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		tw.expire()
		return ErrWriteTimeout
	}
	if tw.ctx.Err() != nil {
		return tw.contextError()
	}
	return fmt.Errorf("%w: %w", ErrClientGone, err)
}

func (tw *TimeoutWriter) recordWrite(n int) {
	tw.mu.Lock()
	tw.lastWrite = time.Now()
	tw.bytesWritten += int64(n)
	tw.mu.Unlock()
}

func (tw *TimeoutWriter) expire() {
	tw.mu.Lock()
	tw.timedOut = true
	tw.mu.Unlock()
	tw.cancel()
}

func (tw *TimeoutWriter) idleChecker() {
	defer close(tw.idleDone)

	if tw.config.IdleTimeout <= 0 {
		return
	}

	ticker := time.NewTicker(tw.config.IdleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tw.mu.Lock()
			idle := time.Since(tw.lastWrite)
			tw.mu.Unlock()

			if idle > tw.config.IdleTimeout {
				logging.Warn("Stream idle timeout exceeded: %v", idle)
				tw.expire()
				return
			}
		case <-tw.ctx.Done():
			return
		}
	}
}

func (tw *TimeoutWriter) contextError() error {
	tw.mu.Lock()
	timedOut := tw.timedOut
	closed := tw.closed
	tw.mu.Unlock()

	switch {
	case timedOut:
		return ErrWriteTimeout
	case closed:
		return ErrStreamClosed
	default:
		return ErrClientGone
	}
}

// Close stops the watchdog and rejects further writes. It is safe to call
// more than once.
func (tw *TimeoutWriter) Close() error {
	tw.mu.Lock()
	if tw.closed {
		tw.mu.Unlock()
		return nil
	}
	tw.closed = true
	tw.mu.Unlock()

	tw.cancel()
	<-tw.idleDone

	// A missed deadline leaves the connection unusable, so it stays expired
	if tw.deadlines && !tw.timedOut {
		if err := tw.rc.SetWriteDeadline(time.Time{}); err != nil {
			logging.Debug("Failed to clear write deadline: %v", err)
		}
	}
	return nil
}

// Stats returns the bytes written so far and the elapsed time.
func (tw *TimeoutWriter) Stats() (bytesWritten int64, duration time.Duration) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.bytesWritten, time.Since(tw.start)
}

// Copy streams r to w through a TimeoutWriter and returns the bytes sent.
func Copy(ctx context.Context, w http.ResponseWriter, r io.Reader, config WriterConfig) (int64, error) {
	tw := NewTimeoutWriter(ctx, w, config)
	defer func() {
		if err := tw.Close(); err != nil {
			logging.Warn("Failed to close timeout writer: %v", err)
		}
	}()

	buf := make([]byte, tw.config.ChunkSize)
	_, err := io.CopyBuffer(tw, r, buf)

	written, duration := tw.Stats()
	metrics.StreamBytesTotal.Add(float64(written))

	switch {
	case errors.Is(err, ErrClientGone):
		metrics.StreamClientDisconnects.Inc()
	case errors.Is(err, ErrWriteTimeout):
		metrics.StreamWriteTimeouts.Inc()
	}

	logging.Debug("Stream finished: %d bytes in %v (err=%v)", written, duration, err)

	return written, err
}
