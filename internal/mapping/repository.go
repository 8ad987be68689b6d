package mapping

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	// ErrNotLoaded is returned when no mapping document has been loaded.
	ErrNotLoaded = errors.New("no mapping loaded")
	// ErrNotFound is returned when a scene has no clip for an action.
	ErrNotFound = errors.New("no background found")
)

// Repository guards shared access to the loaded mapping document.
type Repository struct {
	store Store
	log   *slog.Logger

	mu  sync.RWMutex
	doc *Document
}

func NewRepository(store Store, log *slog.Logger) *Repository {
	return &Repository{store: store, log: log}
}

// Load reads the document from the store and derives sensor tables for
// scenes that lack one.
func (r *Repository) Load() error {
	doc, err := r.store.Read()
	if err != nil {
		return fmt.Errorf("load mapping: %w", err)
	}
	doc.BuildSensor()

	r.mu.Lock()
	r.doc = doc
	r.mu.Unlock()

	r.log.Info("mapping loaded", "scenes", len(doc.Scenes))
	return nil
}

// Loaded reports whether a document is available.
func (r *Repository) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.doc != nil
}

// Snapshot returns a copy of the loaded document.
func (r *Repository) Snapshot() (*Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.doc == nil {
		return nil, ErrNotLoaded
	}
	return r.doc.clone(), nil
}

// Lookup resolves the clip for a scene and action.
func (r *Repository) Lookup(scene int, action string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.doc == nil {
		return "", ErrNotLoaded
	}
	clip, ok := r.doc.Lookup(scene, action)
	if !ok {
		return "", fmt.Errorf("scene %d action %q: %w", scene, action, ErrNotFound)
	}
	return clip, nil
}

// Update points a scene action at a new clip and persists the change.
func (r *Repository) Update(scene int, action, clip string) (*Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.doc == nil {
		return nil, ErrNotLoaded
	}
	if r.doc.Sensor == nil {
		r.doc.Sensor = make(map[int]map[string]string)
	}
	if r.doc.Sensor[scene] == nil {
		r.doc.Sensor[scene] = make(map[string]string)
	}
	r.doc.Sensor[scene][action] = clip

	if err := r.store.Write(r.doc); err != nil {
		return nil, err
	}
	r.log.Info("mapping updated", "scene", scene, "action", action, "clip", clip)
	return r.doc.clone(), nil
}
