package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"media-explorer/internal/logging"
	"media-explorer/internal/metrics"

	_ "image/png"
)

// frameEndMargin keeps the seek target strictly inside short videos.
const frameEndMargin = 0.1

// FFmpegExtractor implements FrameExtractor with the ffprobe and ffmpeg
// command line tools.
type FFmpegExtractor struct {
	FFmpegPath  string
	FFprobePath string
	Quality     int
}

// NewFFmpegExtractor returns an extractor that finds ffmpeg and ffprobe on PATH.
func NewFFmpegExtractor() *FFmpegExtractor {
	return &FFmpegExtractor{
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
		Quality:     jpegQuality,
	}
}

// Available reports whether both binaries can be found.
func (e *FFmpegExtractor) Available() bool {
	if _, err := exec.LookPath(e.FFmpegPath); err != nil {
		return false
	}
	_, err := exec.LookPath(e.FFprobePath)
	return err == nil
}

// ClampTimestamp picks the seek position for a video of the given duration.
// An unknown or non-positive duration yields 0. Otherwise the requested time
// is pulled back to just before the end and never goes below 0.
func ClampTimestamp(at, duration float64, known bool) float64 {
	if !known || duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return 0
	}
	t := math.Min(at, duration-frameEndMargin)
	if t < 0 || math.IsNaN(t) {
		return 0
	}
	return t
}

// ExtractFrame grabs one frame near atSeconds and returns it as a JPEG no
// wider than maxWidth.
func (e *FFmpegExtractor) ExtractFrame(ctx context.Context, videoPath string, atSeconds float64, maxWidth int) ([]byte, error) {
	duration, known := e.ProbeDuration(ctx, videoPath)
	at := ClampTimestamp(atSeconds, duration, known)

	img, err := e.grabFrame(ctx, videoPath, at)
	if err != nil {
		return nil, err
	}

	return encodeThumbnail(videoPath, resizeToWidth(img, maxWidth), e.Quality)
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeDuration returns the container duration in seconds. known is false
// when ffprobe fails or reports no duration.
func (e *FFmpegExtractor) ProbeDuration(ctx context.Context, videoPath string) (duration float64, known bool) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, e.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		videoPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	metrics.ThumbnailFFmpegDuration.WithLabelValues("ffprobe").Observe(time.Since(start).Seconds())
	if err != nil {
		logging.Debug("ffprobe failed for %s: %v, stderr: %s", videoPath, err, strings.TrimSpace(stderr.String()))
		return 0, false
	}

	duration, known = parseProbeDuration(out)
	if !known {
		logging.Debug("ffprobe reported no duration for %s", videoPath)
	}
	return duration, known
}

func parseProbeDuration(data []byte) (float64, bool) {
	var probe probeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, false
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(probe.Format.Duration), 64)
	if err != nil || d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, false
	}
	return d, true
}

func (e *FFmpegExtractor) grabFrame(ctx context.Context, videoPath string, at float64) (image.Image, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, e.FFmpegPath,
		"-hide_banner",
		"-loglevel", "error",
		"-ss", strconv.FormatFloat(at, 'f', 3, 64),
		"-i", videoPath,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	metrics.ThumbnailFFmpegDuration.WithLabelValues("ffmpeg").Observe(time.Since(start).Seconds())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, contextFailure(videoPath, ctxErr)
		}
		return nil, generationError(videoPath, ReasonExtract,
			fmt.Errorf("ffmpeg: %w, stderr: %s", err, strings.TrimSpace(stderr.String())))
	}

	if stdout.Len() == 0 {
		return nil, generationError(videoPath, ReasonExtract, errors.New("ffmpeg produced no output"))
	}

	logging.Debug("FFmpeg output size: %d bytes at %.3fs", stdout.Len(), at)

	img, _, err := image.Decode(&stdout)
	if err != nil {
		return nil, generationError(videoPath, ReasonDecode, err)
	}

	return img, nil
}
