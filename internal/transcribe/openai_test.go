package transcribe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/soundpost/soundpost-backend/pkg/config"
	"github.com/soundpost/soundpost-backend/pkg/errors"
	"github.com/soundpost/soundpost-backend/pkg/logger"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(
		config.OpenAIConfig{APIKey: "sk-test", Model: "whisper-1", BaseURL: baseURL, Timeout: 0},
		logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled}),
		nil,
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func writeAudioFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("unexpected model %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
		} else {
			file.Close()
			if header.Filename != "note.mp3" {
				t.Errorf("unexpected filename %q", header.Filename)
			}
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "hello from whisper"})
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	audio := writeAudioFile(t, "note.mp3", "fake mp3 bytes")

	text, err := c.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hello from whisper" {
		t.Fatalf("unexpected transcript %q", text)
	}
}

func TestTranscribeServiceError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	audio := writeAudioFile(t, "note.mp3", "fake mp3 bytes")

	_, err := c.Transcribe(context.Background(), audio)
	typed := errors.As(err)
	if typed == nil || typed.Code() != errors.CodeTranscription {
		t.Fatalf("expected TRANSCRIPTION_ERROR, got %v", err)
	}
	if !strings.Contains(typed.Message(), "429") {
		t.Fatalf("expected status in message, got %q", typed.Message())
	}
}

func TestTranscribeUnreachableService(t *testing.T) {
	t.Parallel()

	c := testClient(t, "http://127.0.0.1:1")
	audio := writeAudioFile(t, "note.mp3", "fake mp3 bytes")

	_, err := c.Transcribe(context.Background(), audio)
	if typed := errors.As(err); typed == nil || typed.Code() != errors.CodeTranscription {
		t.Fatalf("expected TRANSCRIPTION_ERROR, got %v", err)
	}
}

func TestTranscribeMissingSource(t *testing.T) {
	t.Parallel()

	c := testClient(t, "http://unused.invalid")
	_, err := c.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"))
	if typed := errors.As(err); typed == nil || typed.Code() != errors.CodeTranscription {
		t.Fatalf("expected TRANSCRIPTION_ERROR, got %v", err)
	}
}

func TestTranscribeCleansStagedCopy(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"text": "ok"})
	}))
	defer server.Close()

	c := testClient(t, server.URL)
	audio := writeAudioFile(t, "note.mp3", "fake mp3 bytes")

	if _, err := c.Transcribe(context.Background(), audio); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	leftovers, err := filepath.Glob(filepath.Join(os.TempDir(), "transcribe-*"))
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	for _, p := range leftovers {
		if strings.HasSuffix(p, ".mp3") {
			// Another parallel test may be mid-flight; only fail if the
			// leftover matches the content we just staged.
			data, readErr := os.ReadFile(p)
			if readErr == nil && string(data) == "fake mp3 bytes" {
				t.Fatalf("staged copy %s was not cleaned up", p)
			}
		}
	}
}
