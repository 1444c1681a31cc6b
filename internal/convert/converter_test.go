package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/soundpost/soundpost-backend/pkg/config"
	"github.com/soundpost/soundpost-backend/pkg/errors"
	"github.com/soundpost/soundpost-backend/pkg/logger"
)

func testConverter() *Converter {
	return NewConverter(
		config.ToolsConfig{FFmpegBin: "ffmpeg", FFprobeBin: "ffprobe"},
		logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled}),
		nil,
	)
}

func TestToMP3Success(t *testing.T) {
	t.Parallel()

	c := testConverter()
	c.lookPath = func(string) (string, error) { return "/usr/bin/ffmpeg", nil }

	var gotBin string
	var gotArgs []string
	c.runCmd = func(ctx context.Context, bin string, args ...string) (string, error) {
		gotBin = bin
		gotArgs = args
		// The encode target is the last argument.
		return "", os.WriteFile(args[len(args)-1], []byte("mp3"), 0o644)
	}

	out := filepath.Join(t.TempDir(), "track.mp3")
	if err := c.ToMP3(context.Background(), "/in/track.wav", out); err != nil {
		t.Fatalf("ToMP3: %v", err)
	}

	if gotBin != "ffmpeg" {
		t.Fatalf("expected ffmpeg, got %q", gotBin)
	}
	want := []string{"-y", "-i", "/in/track.wav", "-vn", "-ar", "44100", "-ac", "2", "-b:a", "96k", "-f", "mp3", out + ".tmp"}
	if len(gotArgs) != len(want) {
		t.Fatalf("unexpected args %v", gotArgs)
	}
	for i := range want {
		if gotArgs[i] != want[i] {
			t.Fatalf("arg %d: expected %q got %q", i, want[i], gotArgs[i])
		}
	}

	if _, err := os.Stat(out); err != nil {
		t.Fatalf("converted file missing: %v", err)
	}
	if _, err := os.Stat(out + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temp encode target should be renamed away")
	}
}

func TestToMP3MissingBinary(t *testing.T) {
	t.Parallel()

	c := testConverter()
	c.lookPath = func(string) (string, error) { return "", fmt.Errorf("not found") }
	c.runCmd = func(ctx context.Context, bin string, args ...string) (string, error) {
		t.Fatal("runCmd should not be called")
		return "", nil
	}

	err := c.ToMP3(context.Background(), "/in/a.wav", "/out/a.mp3")
	if typed := errors.As(err); typed == nil || typed.Code() != errors.CodeToolUnavailable {
		t.Fatalf("expected TOOL_UNAVAILABLE, got %v", err)
	}
}

func TestToMP3CommandFailure(t *testing.T) {
	t.Parallel()

	c := testConverter()
	c.lookPath = func(string) (string, error) { return "/usr/bin/ffmpeg", nil }
	c.runCmd = func(ctx context.Context, bin string, args ...string) (string, error) {
		return "Invalid data found when processing input", fmt.Errorf("exit status 1")
	}

	err := c.ToMP3(context.Background(), "/in/a.wav", filepath.Join(t.TempDir(), "a.mp3"))
	if typed := errors.As(err); typed == nil || typed.Code() != errors.CodeToolFailed {
		t.Fatalf("expected TOOL_FAILED, got %v", err)
	}
}

func TestCompressImageSuccess(t *testing.T) {
	t.Parallel()

	c := testConverter()
	c.lookPath = func(string) (string, error) { return "/usr/bin/ffmpeg", nil }

	var gotArgs []string
	c.runCmd = func(ctx context.Context, bin string, args ...string) (string, error) {
		gotArgs = args
		return "", os.WriteFile(args[len(args)-1], []byte("jpg"), 0o644)
	}

	out := filepath.Join(t.TempDir(), "pic_compressed.jpg")
	if err := c.CompressImage(context.Background(), "/in/pic.png", out); err != nil {
		t.Fatalf("CompressImage: %v", err)
	}

	want := []string{
		"-y", "-i", "/in/pic.png",
		"-vf", "scale='min(iw,1200)':'min(ih,1200)':force_original_aspect_ratio=decrease",
		"-frames:v", "1",
		"-q:v", "3",
		"-f", "image2", out + ".tmp",
	}
	if len(gotArgs) != len(want) {
		t.Fatalf("unexpected args %v", gotArgs)
	}
	for i := range want {
		if gotArgs[i] != want[i] {
			t.Fatalf("arg %d: expected %q got %q", i, want[i], gotArgs[i])
		}
	}

	if _, err := os.Stat(out); err != nil {
		t.Fatalf("compressed file missing: %v", err)
	}
	if _, err := os.Stat(out + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temp encode target should be renamed away")
	}
}

func TestCompressImageMissingBinary(t *testing.T) {
	t.Parallel()

	c := testConverter()
	c.lookPath = func(string) (string, error) { return "", fmt.Errorf("not found") }
	c.runCmd = func(ctx context.Context, bin string, args ...string) (string, error) {
		t.Fatal("runCmd should not be called")
		return "", nil
	}

	err := c.CompressImage(context.Background(), "/in/pic.png", "/out/pic_compressed.jpg")
	if typed := errors.As(err); typed == nil || typed.Code() != errors.CodeToolUnavailable {
		t.Fatalf("expected TOOL_UNAVAILABLE, got %v", err)
	}
}

func TestCompressImageCommandFailure(t *testing.T) {
	t.Parallel()

	c := testConverter()
	c.lookPath = func(string) (string, error) { return "/usr/bin/ffmpeg", nil }
	c.runCmd = func(ctx context.Context, bin string, args ...string) (string, error) {
		return "Invalid data found when processing input", fmt.Errorf("exit status 1")
	}

	err := c.CompressImage(context.Background(), "/in/pic.png", filepath.Join(t.TempDir(), "pic_compressed.jpg"))
	if typed := errors.As(err); typed == nil || typed.Code() != errors.CodeToolFailed {
		t.Fatalf("expected TOOL_FAILED, got %v", err)
	}
}

func TestDuration(t *testing.T) {
	t.Parallel()

	c := testConverter()
	c.lookPath = func(string) (string, error) { return "/usr/bin/ffprobe", nil }
	c.runCmd = func(ctx context.Context, bin string, args ...string) (string, error) {
		if bin != "ffprobe" {
			t.Fatalf("expected ffprobe, got %q", bin)
		}
		if args[len(args)-1] != "/in/a.mp3" {
			t.Fatalf("expected probe target last, got %v", args)
		}
		return "123.456\n", nil
	}

	d := c.Duration(context.Background(), "/in/a.mp3")
	if d == nil || *d != 123.456 {
		t.Fatalf("expected 123.456, got %v", d)
	}
}

func TestDurationFailuresReportUnknown(t *testing.T) {
	t.Parallel()

	t.Run("missing binary", func(t *testing.T) {
		t.Parallel()
		c := testConverter()
		c.lookPath = func(string) (string, error) { return "", fmt.Errorf("not found") }
		if d := c.Duration(context.Background(), "/in/a.mp3"); d != nil {
			t.Fatalf("expected nil, got %v", *d)
		}
	})

	t.Run("command error", func(t *testing.T) {
		t.Parallel()
		c := testConverter()
		c.lookPath = func(string) (string, error) { return "/usr/bin/ffprobe", nil }
		c.runCmd = func(ctx context.Context, bin string, args ...string) (string, error) {
			return "no such file", fmt.Errorf("exit status 1")
		}
		if d := c.Duration(context.Background(), "/in/a.mp3"); d != nil {
			t.Fatalf("expected nil, got %v", *d)
		}
	})

	t.Run("unparseable output", func(t *testing.T) {
		t.Parallel()
		c := testConverter()
		c.lookPath = func(string) (string, error) { return "/usr/bin/ffprobe", nil }
		c.runCmd = func(ctx context.Context, bin string, args ...string) (string, error) {
			return "N/A", nil
		}
		if d := c.Duration(context.Background(), "/in/a.mp3"); d != nil {
			t.Fatalf("expected nil, got %v", *d)
		}
	})
}
