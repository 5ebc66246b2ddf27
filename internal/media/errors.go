package media

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedMediaType is returned for directories and files outside the
	// video and image allow-lists.
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrGenerationFailed matches every *GenerationError through errors.Is.
	ErrGenerationFailed = errors.New("thumbnail generation failed")
)

// Generation failure reasons.
const (
	ReasonTimeout = "timeout"
	ReasonProbe   = "probe"
	ReasonExtract = "extract"
	ReasonDecode  = "decode"
	ReasonEncode  = "encode"
	ReasonAborted = "aborted"
)

// GenerationError describes a failed thumbnail generation. The cause is kept
// for logging; HTTP responses only ever report a fixed message.
type GenerationError struct {
	Path   string
	Reason string
	Err    error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("thumbnail generation failed (%s): %s", e.Reason, e.Path)
	}
	return fmt.Sprintf("thumbnail generation failed (%s): %s: %v", e.Reason, e.Path, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Is reports ErrGenerationFailed as a match.
func (e *GenerationError) Is(target error) bool {
	return target == ErrGenerationFailed
}

func generationError(path, reason string, err error) error {
	return &GenerationError{Path: path, Reason: reason, Err: err}
}

// contextFailure reports an expired deadline as a timeout and any other
// context error as an abort.
func contextFailure(path string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return generationError(path, ReasonTimeout, err)
	}
	return generationError(path, ReasonAborted, err)
}
