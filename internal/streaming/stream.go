package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"media-explorer/internal/filesystem"
	"media-explorer/internal/logging"
	"media-explorer/internal/mediatypes"
	"media-explorer/internal/metrics"
)

// RangeError reports an unsatisfiable Range header together with the file
// size, which a 416 response must carry.
type RangeError struct {
	Size int64
	Err  error
}

func (e *RangeError) Error() string {
	return e.Err.Error()
}

func (e *RangeError) Unwrap() error {
	return e.Err
}

// UnsatisfiedRange formats the Content-Range value for a 416 response.
func UnsatisfiedRange(size int64) string {
	return "bytes */" + strconv.FormatInt(size, 10)
}

// Response is an opened file ready to be written as a full (200) or partial
// (206) HTTP response. Send must be called, or Close, to release the file.
type Response struct {
	Status int
	Header http.Header
	Length int64
	Range  *ByteRange

	file   *os.File
	offset int64
	config WriterConfig
}

// Open stats and opens path and prepares the response for rangeHeader. An
// empty rangeHeader selects the whole file.
func Open(path, rangeHeader string) (*Response, error) {
	return OpenWithConfig(path, rangeHeader, DefaultWriterConfig())
}

// OpenWithConfig is Open with explicit writer limits.
func OpenWithConfig(path, rangeHeader string, config WriterConfig) (*Response, error) {
	retry := filesystem.DefaultRetryConfig()

	info, err := filesystem.StatWithRetry(path, retry)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", filesystem.ErrSourceNotFound, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: is a directory", filesystem.ErrSourceNotFound)
	}
	size := info.Size()

	resp := &Response{
		Status: http.StatusOK,
		Header: make(http.Header),
		Length: size,
		config: config,
	}
	resp.Header.Set("Content-Type", mediatypes.MimeType(path))
	resp.Header.Set("Accept-Ranges", "bytes")

	if rangeHeader != "" {
		br, err := ParseRange(rangeHeader, size)
		if err != nil {
			metrics.StreamResponsesTotal.WithLabelValues("unsatisfiable").Inc()
			return nil, &RangeError{Size: size, Err: err}
		}
		resp.Status = http.StatusPartialContent
		resp.Range = &br
		resp.Length = br.Length()
		resp.offset = br.Start
		resp.Header.Set("Content-Range", br.ContentRange(size))
	}
	resp.Header.Set("Content-Length", strconv.FormatInt(resp.Length, 10))

	file, err := filesystem.OpenWithRetry(path, retry)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", filesystem.ErrSourceNotFound, err)
	}
	if resp.offset > 0 {
		if _, err := file.Seek(resp.offset, io.SeekStart); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("seek to %d: %w", resp.offset, err)
		}
	}
	resp.file = file

	return resp, nil
}

// Send writes headers and body to w, stopping early if ctx ends or the
// client stalls. The file is closed on return.
func (r *Response) Send(ctx context.Context, w http.ResponseWriter) (int64, error) {
	defer r.Close()

	for key, values := range r.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(r.Status)

	kind := "full"
	if r.Status == http.StatusPartialContent {
		kind = "partial"
	}
	metrics.StreamResponsesTotal.WithLabelValues(kind).Inc()

	n, err := Copy(ctx, w, io.LimitReader(r.file, r.Length), r.config)
	if err != nil && !errors.Is(err, ErrClientGone) {
		logging.Warn("Stream of %s stopped after %d/%d bytes: %v", r.file.Name(), n, r.Length, err)
	}
	return n, err
}

// Close releases the underlying file.
func (r *Response) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
