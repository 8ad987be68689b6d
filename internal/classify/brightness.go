package classify

import (
	"log/slog"
	"sync"
	"time"
)

// Brightness labels produced by the light-level classifier.
const (
	BrightnessNormal = "normal"
	BrightnessDark   = "dark"
	BrightnessBright = "bright"
)

// BrightnessConfig tunes the light-level classifier. Levels are on the
// 0-255 camera luminance scale.
type BrightnessConfig struct {
	DarkThreshold   float64
	BrightThreshold float64
}

func DefaultBrightnessConfig() BrightnessConfig {
	return BrightnessConfig{DarkThreshold: 50, BrightThreshold: 200}
}

// BrightnessDetector tracks dark, normal and bright states with a two
// second floor between changes. onChange runs with (new, old).
type BrightnessDetector struct {
	cfg      BrightnessConfig
	log      *slog.Logger
	onChange func(state, previous string)

	mu         sync.Mutex
	current    string
	previous   string
	lastChange time.Time
	now        func() time.Time
}

func NewBrightnessDetector(cfg BrightnessConfig, log *slog.Logger, onChange func(state, previous string)) *BrightnessDetector {
	def := DefaultBrightnessConfig()
	if cfg.DarkThreshold <= 0 {
		cfg.DarkThreshold = def.DarkThreshold
	}
	if cfg.BrightThreshold <= 0 {
		cfg.BrightThreshold = def.BrightThreshold
	}
	d := &BrightnessDetector{
		cfg:      cfg,
		log:      log,
		onChange: onChange,
		current:  BrightnessNormal,
		previous: BrightnessNormal,
		now:      time.Now,
	}
	d.lastChange = d.now()
	return d
}

// Current returns the settled brightness state.
func (d *BrightnessDetector) Current() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Process feeds one luminance sample and returns the settled state.
func (d *BrightnessDetector) Process(level float64) string {
	state := BrightnessNormal
	switch {
	case level < d.cfg.DarkThreshold:
		state = BrightnessDark
	case level > d.cfg.BrightThreshold:
		state = BrightnessBright
	}

	d.mu.Lock()
	if state == d.current {
		cur := d.current
		d.mu.Unlock()
		return cur
	}

	now := d.now()
	if now.Sub(d.lastChange) < 2*time.Second {
		cur := d.current
		d.mu.Unlock()
		return cur
	}

	d.previous = d.current
	d.current = state
	d.lastChange = now
	previous := d.previous
	d.mu.Unlock()

	d.log.Info("brightness state changed", "from", previous, "to", state)
	if d.onChange != nil {
		d.onChange(state, previous)
	}
	return state
}
