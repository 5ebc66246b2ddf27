package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"

	"media-explorer/internal/filesystem"
	"media-explorer/internal/logging"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	// MaxImageDimension is the maximum width or height we'll process
	// Images larger than this will be downscaled first
	MaxImageDimension = 4096

	// MaxImagePixels is the maximum total pixels (width * height) we'll process
	MaxImagePixels = 20_000_000 // ~20MP, uses ~80MB in RGBA

	jpegQuality = 80
)

// ImagingDownscaler implements ImageDownscaler in pure Go.
type ImagingDownscaler struct {
	MaxDimension int
	MaxPixels    int
	Quality      int
}

// NewImagingDownscaler returns a downscaler with the default decode limits.
func NewImagingDownscaler() *ImagingDownscaler {
	return &ImagingDownscaler{
		MaxDimension: MaxImageDimension,
		MaxPixels:    MaxImagePixels,
		Quality:      jpegQuality,
	}
}

// Downscale decodes imagePath with EXIF orientation applied and returns a JPEG
// no wider than maxWidth. Narrower images keep their size.
func (d *ImagingDownscaler) Downscale(ctx context.Context, imagePath string, maxWidth int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, contextFailure(imagePath, err)
	}

	img, err := LoadImageConstrained(imagePath, d.MaxDimension, d.MaxPixels)
	if err != nil {
		return nil, generationError(imagePath, ReasonDecode, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, contextFailure(imagePath, err)
	}

	return encodeThumbnail(imagePath, resizeToWidth(img, maxWidth), d.Quality)
}

// resizeToWidth scales img down to maxWidth, preserving aspect ratio.
func resizeToWidth(img image.Image, maxWidth int) image.Image {
	if maxWidth <= 0 || img.Bounds().Dx() <= maxWidth {
		return img
	}
	return imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
}

func encodeThumbnail(sourcePath string, img image.Image, quality int) ([]byte, error) {
	if quality <= 0 {
		quality = jpegQuality
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, generationError(sourcePath, ReasonEncode, err)
	}
	return buf.Bytes(), nil
}

// LoadImageConstrained loads an image, downscaling if it exceeds size limits
// This prevents OOM when processing very large images
func LoadImageConstrained(path string, maxDimension, maxPixels int) (image.Image, error) {
	dimensions, err := GetImageDimensions(path)
	if err != nil {
		return nil, fmt.Errorf("read image header: %w", err)
	}

	width, height := dimensions.Width, dimensions.Height
	pixels := width * height

	logging.Debug("Image %s dimensions: %dx%d (%d pixels)", path, width, height, pixels)

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}

	if width <= maxDimension && height <= maxDimension && pixels <= maxPixels {
		return img, nil
	}

	targetWidth, targetHeight := width, height

	if width > maxDimension || height > maxDimension {
		if width > height {
			targetWidth = maxDimension
			targetHeight = height * maxDimension / width
		} else {
			targetHeight = maxDimension
			targetWidth = width * maxDimension / height
		}
	}

	if targetPixels := targetWidth * targetHeight; targetPixels > maxPixels {
		scale := math.Sqrt(float64(maxPixels) / float64(targetPixels))
		targetWidth = int(float64(targetWidth) * scale)
		targetHeight = int(float64(targetHeight) * scale)
	}

	logging.Info("Constraining large image %s from %dx%d to %dx%d", path, width, height, targetWidth, targetHeight)

	// Orientation may have swapped the axes.
	if b := img.Bounds(); (b.Dx() > b.Dy()) != (width > height) {
		targetWidth, targetHeight = targetHeight, targetWidth
	}

	return imaging.Resize(img, targetWidth, targetHeight, imaging.Lanczos), nil
}

// ImageDimensions holds image width and height
type ImageDimensions struct {
	Width  int
	Height int
}

// GetImageDimensions returns image dimensions without fully decoding the image
func GetImageDimensions(path string) (*ImageDimensions, error) {
	file, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return nil, err
	}

	return &ImageDimensions{
		Width:  config.Width,
		Height: config.Height,
	}, nil
}
