package media

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"media-explorer/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// vipsLogSettings maps the application log level to a handler that forwards
// libvips messages into our logger, plus the matching libvips verbosity.
func vipsLogSettings(level logging.LogLevel) (func(string, vips.LogLevel, string), vips.LogLevel) {
	forward := func(floor vips.LogLevel) func(string, vips.LogLevel, string) {
		return func(domain string, l vips.LogLevel, msg string) {
			if l > floor {
				return
			}
			switch l {
			case vips.LogLevelError, vips.LogLevelCritical:
				logging.Error("[%s] %s", domain, msg)
			case vips.LogLevelWarning:
				logging.Warn("[%s] %s", domain, msg)
			default:
				logging.Debug("[%s] %s", domain, msg)
			}
		}
	}

	switch level {
	case logging.LevelDebug:
		return forward(vips.LogLevelDebug), vips.LogLevelInfo
	case logging.LevelInfo:
		return forward(vips.LogLevelWarning), vips.LogLevelWarning
	case logging.LevelWarn:
		return forward(vips.LogLevelError), vips.LogLevelError
	default:
		return forward(vips.LogLevelCritical), vips.LogLevelCritical
	}
}

// InitVips initializes the libvips library
// This should be called once at startup
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	vips.LoggingSettings(vipsLogSettings(logging.GetLevel()))

	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

// ShutdownVips cleans up libvips resources
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized and available
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// VipsDownscaler implements ImageDownscaler with libvips, which can shrink
// JPEGs during decode instead of materialising the full image.
type VipsDownscaler struct {
	Quality int
}

// NewVipsDownscaler starts libvips and returns a downscaler backed by it.
func NewVipsDownscaler() (*VipsDownscaler, error) {
	if err := InitVips(); err != nil {
		return nil, err
	}
	return &VipsDownscaler{Quality: jpegQuality}, nil
}

// Downscale loads imagePath with auto-rotation and exports a JPEG no wider
// than maxWidth.
func (d *VipsDownscaler) Downscale(ctx context.Context, imagePath string, maxWidth int) ([]byte, error) {
	if !IsVipsAvailable() {
		return nil, generationError(imagePath, ReasonDecode, errors.New("libvips not available"))
	}
	if err := ctx.Err(); err != nil {
		return nil, contextFailure(imagePath, err)
	}

	ref, err := vips.LoadImageFromFile(imagePath, vips.NewImportParams())
	if err != nil {
		return nil, generationError(imagePath, ReasonDecode, fmt.Errorf("vips load: %w", err))
	}
	defer ref.Close()

	width, height := ref.Width(), ref.Height()
	if maxWidth > 0 && width > maxWidth {
		logging.Debug("Vips shrinking %s from %dx%d to width %d", filepath.Base(imagePath), width, height, maxWidth)
		if err := ref.Thumbnail(maxWidth, height, vips.InterestingNone); err != nil {
			return nil, generationError(imagePath, ReasonDecode, fmt.Errorf("vips resize: %w", err))
		}
	}

	quality := d.Quality
	if quality <= 0 {
		quality = jpegQuality
	}

	data, _, err := ref.ExportJpeg(&vips.JpegExportParams{
		Quality:        quality,
		StripMetadata:  true,
		OptimizeCoding: true,
	})
	if err != nil {
		return nil, generationError(imagePath, ReasonEncode, fmt.Errorf("vips export: %w", err))
	}

	return data, nil
}
