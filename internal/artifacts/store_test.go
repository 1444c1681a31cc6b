package artifacts

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/soundpost/soundpost-backend/pkg/db/models"
	"github.com/soundpost/soundpost-backend/pkg/enums"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

func TestPathLayout(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	got := store.Path(enums.MediaKindAudio, 42, "track.mp3")
	want := filepath.Join("audio", "42", "track.mp3")
	if got != want {
		t.Fatalf("expected %q got %q", want, got)
	}
}

func TestPathSanitizesFileName(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	got := store.Path(enums.MediaKindAudio, 7, "../../etc/my song.mp3")
	want := filepath.Join("audio", "7", "my-song.mp3")
	if got != want {
		t.Fatalf("expected %q got %q", want, got)
	}
}

func TestPathEmptyNameFallsBackToID(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	got := store.Path(enums.MediaKindImage, 9, "...")
	want := filepath.Join("image", "9", "9")
	if got != want {
		t.Fatalf("expected %q got %q", want, got)
	}
}

func TestWriteAndOpen(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	rel := store.Path(enums.MediaKindAudio, 1, "a.mp3")
	n, err := store.Write(context.Background(), rel, strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 bytes written, got %d", n)
	}

	f, fi, err := store.Open(rel)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	if fi.Size() != 5 {
		t.Fatalf("expected size 5 got %d", fi.Size())
	}
}

func TestWriteLeavesNoTempFileOnCancel(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rel := store.Path(enums.MediaKindAudio, 2, "b.mp3")
	if _, err := store.Write(ctx, rel, strings.NewReader("hello")); err == nil {
		t.Fatal("expected error from canceled write")
	}
	if _, err := os.Stat(store.Abs(rel)); !os.IsNotExist(err) {
		t.Fatalf("final file should not exist: %v", err)
	}
	if _, err := os.Stat(store.Abs(rel) + tempSuffix); !os.IsNotExist(err) {
		t.Fatalf("temp file should not exist: %v", err)
	}
}

func TestRemoveDeletesAllArtifacts(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	primary := store.Path(enums.MediaKindVideo, 3, "clip.mov")
	mp3 := store.Path(enums.MediaKindVideo, 3, "clip.mp3")
	for _, rel := range []string{primary, mp3} {
		if _, err := store.Write(ctx, rel, strings.NewReader("x")); err != nil {
			t.Fatalf("Write %s: %v", rel, err)
		}
	}

	m := &models.Media{ID: 3, Kind: enums.MediaKindVideo, FilePath: primary, MP3Path: &mp3}
	if err := store.Remove(ctx, m); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	for _, rel := range []string{primary, mp3} {
		if _, err := os.Stat(store.Abs(rel)); !os.IsNotExist(err) {
			t.Fatalf("%s should be gone: %v", rel, err)
		}
	}
	if _, err := os.Stat(store.Abs(filepath.Dir(primary))); !os.IsNotExist(err) {
		t.Fatalf("record directory should be gone: %v", err)
	}
}

func TestRemoveToleratesMissingFiles(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	mp3 := "audio/4/gone.mp3"
	m := &models.Media{ID: 4, Kind: enums.MediaKindAudio, FilePath: "audio/4/gone.wav", MP3Path: &mp3}
	if err := store.Remove(context.Background(), m); err != nil {
		t.Fatalf("expected nil error for missing files, got %v", err)
	}
}

func TestSweepTempFiles(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	stale := store.Abs("audio/5/old.mp3" + tempSuffix)
	if err := os.MkdirAll(filepath.Dir(stale), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	fresh := store.Abs("audio/5/new.mp3" + tempSuffix)
	if err := os.WriteFile(fresh, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	removed, err := store.SweepTempFiles(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("SweepTempFiles: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("stale temp file should be gone")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Fatalf("fresh temp file should remain: %v", err)
	}
}
