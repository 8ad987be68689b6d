package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"vp-director/internal/playback"
)

// ErrNotFound is returned when a requested clip is not on disk.
var ErrNotFound = errors.New("clip not found")

// clipPattern matches rendered background clips, S0001-C0002_video.mp4.
var clipPattern = regexp.MustCompile(`^S(\d+)-C(\d+)_video\.mp4$`)

// Entry is one clip discovered in the backgrounds directory.
type Entry struct {
	Scene    int
	Cut      int
	Filename string
}

// Catalog indexes the rendered background clips of a backgrounds directory
// and answers the duration queries the playback engine needs to schedule
// loop crossfades.
type Catalog struct {
	dir        string
	defaultDur time.Duration
	overrides  map[string]time.Duration
	log        *slog.Logger

	mu      sync.RWMutex
	entries map[string]Entry
}

// New returns a catalog over dir. defaultDur is the assumed play length of
// clips without an override; zero disables loop scheduling for them.
func New(dir string, defaultDur time.Duration, overrides map[string]time.Duration, log *slog.Logger) *Catalog {
	if overrides == nil {
		overrides = map[string]time.Duration{}
	}
	return &Catalog{
		dir:        dir,
		defaultDur: defaultDur,
		overrides:  overrides,
		log:        log,
		entries:    map[string]Entry{},
	}
}

// Scan rebuilds the index from the backgrounds directory. Files that do
// not follow the clip naming convention are skipped.
func (c *Catalog) Scan() error {
	files, err := os.ReadDir(c.dir)
	if err != nil {
		c.mu.Lock()
		c.entries = map[string]Entry{}
		c.mu.Unlock()
		return fmt.Errorf("scan backgrounds %s: %w", c.dir, err)
	}

	entries := make(map[string]Entry)
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		m := clipPattern.FindStringSubmatch(f.Name())
		if m == nil {
			continue
		}
		scene, _ := strconv.Atoi(m[1])
		cut, _ := strconv.Atoi(m[2])
		entries[f.Name()] = Entry{Scene: scene, Cut: cut, Filename: f.Name()}
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()

	c.log.Debug("backgrounds scanned", "dir", c.dir, "clips", len(entries))
	return nil
}

// Entries returns the indexed clips ordered by scene and cut.
func (c *Catalog) Entries() []Entry {
	c.mu.RLock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Scene != out[j].Scene {
			return out[i].Scene < out[j].Scene
		}
		return out[i].Cut < out[j].Cut
	})
	return out
}

// Path resolves a clip filename to its on-disk path. Names that reach
// outside the backgrounds directory are rejected.
func (c *Catalog) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid clip name %q: %w", name, ErrNotFound)
	}
	full := filepath.Join(c.dir, name)
	if _, err := os.Stat(full); err != nil {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return full, nil
}

// Duration reports the play length of a clip so the scheduler can arm the
// loop crossfade. A missing file is an error so a load attempt fails fast.
func (c *Catalog) Duration(clip playback.Clip) (time.Duration, error) {
	name := clip.Name()
	if _, err := c.Path(name); err != nil {
		return 0, err
	}
	if d, ok := c.overrides[name]; ok {
		return d, nil
	}
	return c.defaultDur, nil
}
