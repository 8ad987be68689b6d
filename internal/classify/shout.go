package classify

import (
	"log/slog"
	"sync"
	"time"
)

// ShoutConfig tunes the microphone shout detector.
type ShoutConfig struct {
	VolumeThreshold float64 // dB
	MinDuration     time.Duration
	Cooldown        time.Duration
}

func DefaultShoutConfig() ShoutConfig {
	return ShoutConfig{
		VolumeThreshold: 70,
		MinDuration:     500 * time.Millisecond,
		Cooldown:        2 * time.Second,
	}
}

// ShoutDetector fires when the volume stays above the threshold long
// enough. onShout runs with the volume in dB and the sustained duration.
type ShoutDetector struct {
	cfg     ShoutConfig
	log     *slog.Logger
	onShout func(volume float64, duration time.Duration)

	mu         sync.Mutex
	aboveSince time.Time
	lastShout  time.Time
	count      int
	now        func() time.Time
}

func NewShoutDetector(cfg ShoutConfig, log *slog.Logger, onShout func(volume float64, duration time.Duration)) *ShoutDetector {
	def := DefaultShoutConfig()
	if cfg.VolumeThreshold <= 0 {
		cfg.VolumeThreshold = def.VolumeThreshold
	}
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = def.MinDuration
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	return &ShoutDetector{cfg: cfg, log: log, onShout: onShout, now: time.Now}
}

// Count returns the number of shouts detected.
func (d *ShoutDetector) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}

// Process feeds one volume sample and returns true when a shout fired.
func (d *ShoutDetector) Process(volume float64) bool {
	d.mu.Lock()

	now := d.now()
	if volume < d.cfg.VolumeThreshold {
		d.aboveSince = time.Time{}
		d.mu.Unlock()
		return false
	}

	if d.aboveSince.IsZero() {
		d.aboveSince = now
		d.mu.Unlock()
		return false
	}

	sustained := now.Sub(d.aboveSince)
	if sustained < d.cfg.MinDuration {
		d.mu.Unlock()
		return false
	}

	// The burst is consumed either way; a continued shout has to sustain
	// the threshold again.
	d.aboveSince = time.Time{}
	if now.Sub(d.lastShout) < d.cfg.Cooldown {
		d.log.Debug("shout ignored during cooldown")
		d.mu.Unlock()
		return false
	}

	d.count++
	d.lastShout = now
	count := d.count
	d.mu.Unlock()

	d.log.Info("shout detected", "volume_db", volume, "duration", sustained, "count", count)
	if d.onShout != nil {
		d.onShout(volume, sustained)
	}
	return true
}

// ShoutIntensity labels a shout volume for event metadata.
func ShoutIntensity(volume float64) string {
	if volume > 80 {
		return "loud"
	}
	return "moderate"
}
