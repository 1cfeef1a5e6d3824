package scratch

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/noveltoon/backend/internal/logger"
	"github.com/noveltoon/backend/internal/pipeline"
)

func newTestStore(t *testing.T) (*Store, string, string) {
	t.Helper()
	base := t.TempDir()
	videos := t.TempDir()
	return NewStore(base, videos, logger.NewNop()), base, videos
}

func TestOpenCreatesLayout(t *testing.T) {
	store, base, _ := newTestStore(t)

	sc, err := store.Open("job-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, dir := range []string{sc.ImagesDir(), sc.AudioDir(), sc.TempDir()} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("missing scratch subdir %s: %v", dir, err)
		}
	}
	if !strings.HasPrefix(sc.Root(), base) && !filepath.IsAbs(sc.Root()) {
		t.Fatalf("scratch root %s not rooted under base", sc.Root())
	}

	// Opening again must be a no-op, not an error.
	if _, err := store.Open("job-1"); err != nil {
		t.Fatalf("second Open: %v", err)
	}
}

func TestSaveReturnsAbsolutePathInsideTree(t *testing.T) {
	store, _, _ := newTestStore(t)
	sc, err := store.Open("job-2")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	path, err := sc.SaveImage([]byte("png-bytes"), "scene_001")
	if err != nil {
		t.Fatalf("SaveImage: %v", err)
	}
	if !filepath.IsAbs(path) {
		t.Fatalf("path %s is not absolute", path)
	}
	if !strings.HasPrefix(path, sc.ImagesDir()) {
		t.Fatalf("path %s escaped images dir", path)
	}
	if !strings.HasSuffix(path, ".png") {
		t.Fatalf("path %s missing extension", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "png-bytes" {
		t.Fatalf("readback mismatch: %q %v", data, err)
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(sc.ImagesDir())
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Fatalf("leftover temp file %s", e.Name())
		}
	}
}

func TestSaveSanitizesHint(t *testing.T) {
	store, _, _ := newTestStore(t)
	sc, _ := store.Open("job-3")

	path, err := sc.SaveAudio([]byte("mp3"), "scene 01/../evil")
	if err != nil {
		t.Fatalf("SaveAudio: %v", err)
	}
	if !strings.HasPrefix(path, sc.AudioDir()) {
		t.Fatalf("sanitized path %s escaped audio dir", path)
	}
}

func TestPromoteMovesFinalVideo(t *testing.T) {
	store, _, videos := newTestStore(t)
	sc, _ := store.Open("job-4")

	tmp, err := sc.SaveTemp([]byte("mp4-bytes"), "final.mp4")
	if err != nil {
		t.Fatalf("SaveTemp: %v", err)
	}
	final, err := sc.Promote(tmp)
	if err != nil {
		t.Fatalf("Promote: %v", err)
	}
	want := filepath.Join(videos, "job-4", "final.mp4")
	if final != want {
		t.Fatalf("final path = %s, want %s", final, want)
	}
	if _, err := os.Stat(final); err != nil {
		t.Fatalf("final video missing: %v", err)
	}
	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Fatalf("source still present after promote")
	}
}

func TestCleanupToleratesPartialTree(t *testing.T) {
	store, _, _ := newTestStore(t)
	sc, _ := store.Open("job-5")

	if err := os.RemoveAll(sc.AudioDir()); err != nil {
		t.Fatalf("prep: %v", err)
	}
	if err := sc.Cleanup(); err != nil {
		t.Fatalf("Cleanup on partial tree: %v", err)
	}
	if _, err := os.Stat(sc.Root()); !os.IsNotExist(err) {
		t.Fatalf("scratch root survived cleanup")
	}
	// Second cleanup is a no-op.
	if err := sc.Cleanup(); err != nil {
		t.Fatalf("repeat Cleanup: %v", err)
	}
}

func TestOpenFailureIsStorageError(t *testing.T) {
	base := filepath.Join(t.TempDir(), "blocked")
	if err := os.WriteFile(base, []byte("not a dir"), 0o644); err != nil {
		t.Fatalf("prep: %v", err)
	}
	store := NewStore(base, t.TempDir(), logger.NewNop())

	_, err := store.Open("job-6")
	if err == nil {
		t.Fatalf("expected error opening scratch under a file")
	}
	var pe *pipeline.Error
	if !errors.As(err, &pe) || pe.Kind != pipeline.KindStorage {
		t.Fatalf("expected StorageError, got %v", err)
	}
}
