package classify

import (
	"log/slog"
	"math"
	"sync"
	"time"
)

// TurnConfig tunes the turn-around detector.
type TurnConfig struct {
	RotationThreshold float64       // degrees that count as a turn around
	RotationTime      time.Duration // a turn must complete within this
	Cooldown          time.Duration
}

func DefaultTurnConfig() TurnConfig {
	return TurnConfig{
		RotationThreshold: 160,
		RotationTime:      2 * time.Second,
		Cooldown:          3 * time.Second,
	}
}

// TurnDetector integrates gyro rotation around the gravity axis to spot a
// turn around. onTurn runs with the signed rotation in degrees and the
// turn duration; negative rotation is a left turn.
type TurnDetector struct {
	cfg    TurnConfig
	log    *slog.Logger
	onTurn func(rotation float64, duration time.Duration)

	mu          sync.Mutex
	gravity     *Vec3
	samples     int
	turning     bool
	startTime   time.Time
	lastSample  time.Time
	total       float64
	lastTrigger time.Time
	now         func() time.Time
}

func NewTurnDetector(cfg TurnConfig, log *slog.Logger, onTurn func(rotation float64, duration time.Duration)) *TurnDetector {
	def := DefaultTurnConfig()
	if cfg.RotationThreshold <= 0 {
		cfg.RotationThreshold = def.RotationThreshold
	}
	if cfg.RotationTime <= 0 {
		cfg.RotationTime = def.RotationTime
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	return &TurnDetector{cfg: cfg, log: log, onTurn: onTurn, now: time.Now}
}

// Calibrate derives the gravity unit vector from stationary accelerometer
// samples so yaw is measured regardless of how the sensor is worn.
func (d *TurnDetector) Calibrate(samples []Vec3) {
	g, ok := Mean(samples).Normalize()
	if !ok {
		g = Vec3{Z: 1}
		d.log.Warn("gravity calibration failed, using z-up")
	}
	d.mu.Lock()
	d.gravity = &g
	d.mu.Unlock()
	d.log.Info("turn detector calibrated", "gravity_x", g.X, "gravity_y", g.Y, "gravity_z", g.Z)
}

// Turning reports whether a turn is being tracked.
func (d *TurnDetector) Turning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.turning
}

// rateLocked is the signed rotation rate around the vertical axis.
func (d *TurnDetector) rateLocked(gyro Vec3) float64 {
	if d.gravity == nil {
		return gyro.Z
	}
	return gyro.Dot(*d.gravity)
}

// AddSample feeds one gyroscope reading and returns true when a completed
// turn around fired.
func (d *TurnDetector) AddSample(gyro Vec3) bool {
	d.mu.Lock()

	d.samples++
	if d.samples < 5 {
		d.mu.Unlock()
		return false
	}

	now := d.now()
	rate := d.rateLocked(gyro)

	if !d.turning {
		// A fast yaw starts tracking; the starting sample itself is not
		// integrated.
		if math.Abs(rate) > 30 {
			if now.Sub(d.lastTrigger) < d.cfg.Cooldown {
				d.mu.Unlock()
				return false
			}
			d.turning = true
			d.startTime = now
			d.lastSample = now
			d.total = 0
		}
		d.mu.Unlock()
		return false
	}

	dt := 1.0 / 60
	if !d.lastSample.IsZero() {
		dt = now.Sub(d.lastSample).Seconds()
	}
	d.lastSample = now
	d.total += rate * dt

	if now.Sub(d.startTime) > d.cfg.RotationTime {
		d.log.Debug("turn timeout", "rotation", d.total)
		d.resetLocked()
		d.mu.Unlock()
		return false
	}

	if math.Abs(d.total) >= d.cfg.RotationThreshold {
		rotation := d.total
		duration := now.Sub(d.startTime)
		d.lastTrigger = now
		d.resetLocked()
		d.mu.Unlock()

		d.log.Info("turn around detected", "rotation", rotation, "duration", duration)
		if d.onTurn != nil {
			d.onTurn(rotation, duration)
		}
		return true
	}

	if math.Abs(rate) < 10 && math.Abs(d.total) < 90 {
		d.log.Debug("turn stopped early", "rotation", d.total)
		d.resetLocked()
	}
	d.mu.Unlock()
	return false
}

func (d *TurnDetector) resetLocked() {
	d.turning = false
	d.startTime = time.Time{}
	d.lastSample = time.Time{}
	d.total = 0
}

// TurnDirection labels a signed rotation.
func TurnDirection(rotation float64) string {
	if rotation < 0 {
		return "left"
	}
	return "right"
}
