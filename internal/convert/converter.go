package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/soundpost/soundpost-backend/pkg/config"
	"github.com/soundpost/soundpost-backend/pkg/errors"
	"github.com/soundpost/soundpost-backend/pkg/logger"
	"github.com/soundpost/soundpost-backend/pkg/metrics"
)

// mp3Args is the encoding profile for derived playback files: audio only,
// 44.1 kHz stereo at 96 kbps.
var mp3Args = []string{"-vn", "-ar", "44100", "-ac", "2", "-b:a", "96k"}

// imageArgs re-encodes a single frame as JPEG, shrinking anything larger
// than 1200x1200 while keeping the aspect ratio. Smaller images keep
// their dimensions.
var imageArgs = []string{
	"-vf", "scale='min(iw,1200)':'min(ih,1200)':force_original_aspect_ratio=decrease",
	"-frames:v", "1",
	"-q:v", "3",
}

// durationArgs asks ffprobe for the container duration as a bare number.
var durationArgs = []string{
	"-v", "error",
	"-show_entries", "format=duration",
	"-of", "default=noprint_wrappers=1:nokey=1",
}

// Converter shells out to ffmpeg and ffprobe. Binary resolution and
// command execution are injectable for tests.
type Converter struct {
	ffmpeg  string
	ffprobe string
	logg    *logger.Logger
	metrics *metrics.MediaMetrics

	lookPath func(file string) (string, error)
	runCmd   func(ctx context.Context, bin string, args ...string) (stderr string, err error)
}

// NewConverter builds a converter around the configured tool binaries.
func NewConverter(cfg config.ToolsConfig, logg *logger.Logger, mm *metrics.MediaMetrics) *Converter {
	return &Converter{
		ffmpeg:   cfg.FFmpegBin,
		ffprobe:  cfg.FFprobeBin,
		logg:     logg,
		metrics:  mm,
		lookPath: exec.LookPath,
		runCmd:   runCommand,
	}
}

// ToMP3 transcodes the input file into an mp3 at the output path. The
// encode targets a temp file and is renamed into place on success, so a
// failed run never leaves a partial mp3 under the final name.
func (c *Converter) ToMP3(ctx context.Context, inputPath, outputPath string) error {
	if _, err := c.lookPath(c.ffmpeg); err != nil {
		return errors.New(errors.CodeToolUnavailable, "ffmpeg is not installed")
	}

	tmp := outputPath + ".tmp"
	args := append([]string{"-y", "-i", inputPath}, mp3Args...)
	args = append(args, "-f", "mp3", tmp)

	started := time.Now()
	stderr, err := c.runCmd(ctx, c.ffmpeg, args...)
	c.metrics.ObserveConversion("ffmpeg", time.Since(started))
	if err != nil {
		c.metrics.IncConversionFailure("ffmpeg")
		_ = os.Remove(tmp)
		c.logg.Error(c.logg.WithField(ctx, "stderr", stderr), "ffmpeg conversion failed", err)
		return errors.Wrap(errors.CodeToolFailed, err, "ffmpeg conversion failed")
	}

	if err := os.Rename(tmp, outputPath); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(errors.CodeToolFailed, err, fmt.Sprintf("placing converted file %s", outputPath))
	}
	return nil
}

// CompressImage writes a scaled-down JPEG derivative of the input image.
// ffmpeg applies the source's EXIF orientation while decoding, so rotated
// phone photos come out upright. Same temp-and-rename contract as ToMP3.
func (c *Converter) CompressImage(ctx context.Context, inputPath, outputPath string) error {
	if _, err := c.lookPath(c.ffmpeg); err != nil {
		return errors.New(errors.CodeToolUnavailable, "ffmpeg is not installed")
	}

	tmp := outputPath + ".tmp"
	args := append([]string{"-y", "-i", inputPath}, imageArgs...)
	args = append(args, "-f", "image2", tmp)

	started := time.Now()
	stderr, err := c.runCmd(ctx, c.ffmpeg, args...)
	c.metrics.ObserveConversion("ffmpeg", time.Since(started))
	if err != nil {
		c.metrics.IncConversionFailure("ffmpeg")
		_ = os.Remove(tmp)
		c.logg.Error(c.logg.WithField(ctx, "stderr", stderr), "image compression failed", err)
		return errors.Wrap(errors.CodeToolFailed, err, "image compression failed")
	}

	if err := os.Rename(tmp, outputPath); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(errors.CodeToolFailed, err, fmt.Sprintf("placing compressed image %s", outputPath))
	}
	return nil
}

// Duration probes the file's duration in seconds. Probing is advisory:
// any failure is logged and reported as unknown rather than returned,
// so a save never fails because ffprobe is missing or the file is odd.
func (c *Converter) Duration(ctx context.Context, path string) *float64 {
	if _, err := c.lookPath(c.ffprobe); err != nil {
		c.logg.Warn(ctx, "ffprobe is not installed, skipping duration probe")
		return nil
	}

	args := append(append([]string{}, durationArgs...), path)
	started := time.Now()
	out, err := c.runCmd(ctx, c.ffprobe, args...)
	c.metrics.ObserveConversion("ffprobe", time.Since(started))
	if err != nil {
		c.metrics.IncConversionFailure("ffprobe")
		c.logg.Error(c.logg.WithField(ctx, "path", path), "ffprobe duration probe failed", err)
		return nil
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "output", strings.TrimSpace(out)), "ffprobe returned an unparseable duration")
		return nil
	}
	return &seconds
}

// runCommand executes the binary and returns whatever it wrote to
// stderr alongside the run error. ffprobe writes its answer to stdout,
// so both streams are captured and stdout wins when non-empty.
func runCommand(ctx context.Context, bin string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stderr.String(), err
	}
	if stdout.Len() > 0 {
		return stdout.String(), nil
	}
	return stderr.String(), nil
}
