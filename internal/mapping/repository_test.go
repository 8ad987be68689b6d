package mapping

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

type memStore struct {
	doc     *Document
	readErr error
	writes  int
}

func (m *memStore) Read() (*Document, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.doc, nil
}

func (m *memStore) Write(doc *Document) error {
	m.doc = doc
	m.writes++
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func loadedRepo(t *testing.T) (*Repository, *memStore) {
	t.Helper()
	store := &memStore{doc: &Document{
		Scenes: map[int]map[string]Cut{
			1: {
				"1": {Action: "stop", VideoPath: "/out/S0001-C0001_video.mp4"},
				"2": {Action: "walk", VideoPath: "/out/S0001-C0002_video.mp4"},
			},
		},
	}}
	repo := NewRepository(store, testLogger())
	if err := repo.Load(); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	return repo, store
}

func TestRepository_Load_derivesSensor(t *testing.T) {
	repo, _ := loadedRepo(t)

	if !repo.Loaded() {
		t.Fatal("repository should report loaded")
	}
	clip, err := repo.Lookup(1, "walk")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if clip != "S0001-C0002_video.mp4" {
		t.Errorf("expected derived walk clip, got %q", clip)
	}
}

func TestRepository_Lookup_fallsBackToDefault(t *testing.T) {
	repo, _ := loadedRepo(t)

	clip, err := repo.Lookup(1, "shout")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if clip != "S0001-C0001_video.mp4" {
		t.Errorf("expected the stop clip as default, got %q", clip)
	}
}

func TestRepository_Lookup_errors(t *testing.T) {
	repo := NewRepository(&memStore{}, testLogger())
	if _, err := repo.Lookup(1, "stop"); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("expected ErrNotLoaded, got %v", err)
	}

	loaded, _ := loadedRepo(t)
	if _, err := loaded.Lookup(42, "stop"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown scene, got %v", err)
	}
}

func TestRepository_Load_propagatesStoreError(t *testing.T) {
	repo := NewRepository(&memStore{readErr: errors.New("no such file")}, testLogger())
	if err := repo.Load(); err == nil {
		t.Error("expected load to fail")
	}
	if repo.Loaded() {
		t.Error("failed load should leave the repository empty")
	}
}

func TestRepository_Update_persistsAndApplies(t *testing.T) {
	repo, store := loadedRepo(t)

	doc, err := repo.Update(1, "run", "S0001-C0003_video.mp4")
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if store.writes != 1 {
		t.Errorf("expected one persisted write, got %d", store.writes)
	}
	if doc.Sensor[1]["run"] != "S0001-C0003_video.mp4" {
		t.Errorf("returned document missing update: %+v", doc.Sensor)
	}

	clip, err := repo.Lookup(1, "run")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if clip != "S0001-C0003_video.mp4" {
		t.Errorf("update should take effect immediately, got %q", clip)
	}
}

func TestRepository_Update_newScene(t *testing.T) {
	repo, _ := loadedRepo(t)

	if _, err := repo.Update(7, "stop", "S0007-C0001_video.mp4"); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	clip, err := repo.Lookup(7, "stop")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if clip != "S0007-C0001_video.mp4" {
		t.Errorf("expected new scene entry, got %q", clip)
	}
}

func TestRepository_Update_notLoaded(t *testing.T) {
	repo := NewRepository(&memStore{}, testLogger())
	if _, err := repo.Update(1, "stop", "a.mp4"); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("expected ErrNotLoaded, got %v", err)
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")
	store := NewFileStore(path)

	doc := &Document{
		Scenes: map[int]map[string]Cut{
			1: {"1": {Action: "stop", VideoPath: "/out/S0001-C0001_video.mp4"}},
		},
		Sensor: map[int]map[string]string{
			1: {"stop": "S0001-C0001_video.mp4", "default": "S0001-C0001_video.mp4"},
		},
	}
	if err := store.Write(doc); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	back, err := store.Read()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if back.Sensor[1]["stop"] != "S0001-C0001_video.mp4" {
		t.Errorf("unexpected document after round trip: %+v", back)
	}
}

func TestFileStore_Read_missingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "absent.json"))
	if _, err := store.Read(); err == nil {
		t.Error("expected an error for a missing file")
	}
}
