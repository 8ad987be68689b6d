package catalog

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeClips(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("mp4"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestCatalog_Scan_ordersBySceneAndCut(t *testing.T) {
	dir := t.TempDir()
	writeClips(t, dir,
		"S0002-C0001_video.mp4",
		"S0001-C0002_video.mp4",
		"S0001-C0001_video.mp4",
		"notes.txt",
		"raw_video.mp4",
	)

	c := New(dir, 0, nil, testLogger())
	if err := c.Scan(); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	entries := c.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 clips, got %d: %v", len(entries), entries)
	}
	want := []string{"S0001-C0001_video.mp4", "S0001-C0002_video.mp4", "S0002-C0001_video.mp4"}
	for i, e := range entries {
		if e.Filename != want[i] {
			t.Errorf("entry %d: expected %s, got %s", i, want[i], e.Filename)
		}
	}
	if entries[2].Scene != 2 || entries[2].Cut != 1 {
		t.Errorf("unexpected parse for %+v", entries[2])
	}
}

func TestCatalog_Scan_missingDir(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "absent"), 0, nil, testLogger())
	if err := c.Scan(); err == nil {
		t.Error("expected scan of a missing directory to fail")
	}
	if len(c.Entries()) != 0 {
		t.Error("failed scan should leave an empty index")
	}
}

func TestCatalog_Path(t *testing.T) {
	dir := t.TempDir()
	writeClips(t, dir, "S0001-C0001_video.mp4")
	c := New(dir, 0, nil, testLogger())

	full, err := c.Path("S0001-C0001_video.mp4")
	if err != nil {
		t.Fatalf("path failed: %v", err)
	}
	if full != filepath.Join(dir, "S0001-C0001_video.mp4") {
		t.Errorf("unexpected path %s", full)
	}

	if _, err := c.Path("absent.mp4"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := c.Path("../secret.mp4"); !errors.Is(err, ErrNotFound) {
		t.Errorf("traversal should be rejected, got %v", err)
	}
	if _, err := c.Path("a/b.mp4"); !errors.Is(err, ErrNotFound) {
		t.Errorf("nested names should be rejected, got %v", err)
	}
}

func TestCatalog_Duration(t *testing.T) {
	dir := t.TempDir()
	writeClips(t, dir, "S0001-C0001_video.mp4", "S0001-C0002_video.mp4")
	overrides := map[string]time.Duration{"S0001-C0002_video.mp4": 7 * time.Second}
	c := New(dir, 10*time.Second, overrides, testLogger())

	d, err := c.Duration("S0001-C0001_video.mp4")
	if err != nil || d != 10*time.Second {
		t.Errorf("expected default duration 10s, got %v err=%v", d, err)
	}

	d, err = c.Duration("S0001-C0002_video.mp4?t=999")
	if err != nil || d != 7*time.Second {
		t.Errorf("override should apply despite the cache buster, got %v err=%v", d, err)
	}

	if _, err := c.Duration("missing.mp4"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for a missing clip, got %v", err)
	}
}
