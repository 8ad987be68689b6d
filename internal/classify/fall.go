package classify

import (
	"log/slog"
	"math"
	"sync"
	"time"
)

// FallState is the recovery-aware fall state machine position.
type FallState string

const (
	FallNormal     FallState = "normal"
	FallFalling    FallState = "falling"
	FallFallen     FallState = "fallen"
	FallRecovering FallState = "recovering"
)

// FallConfig tunes the fall detector.
type FallConfig struct {
	ImpactThreshold float64       // g, spike that counts as an impact
	AngleThreshold  float64       // degrees of combined pitch and roll change
	ImpactWindow    time.Duration // free fall to impact gap
	RecoveryTime    time.Duration // forced reset after a detection
}

func DefaultFallConfig() FallConfig {
	return FallConfig{
		ImpactThreshold: 2.0,
		AngleThreshold:  45,
		ImpactWindow:    500 * time.Millisecond,
		RecoveryTime:    3 * time.Second,
	}
}

// FallDetector recognizes the free fall, impact, orientation change
// signature of a fall and tracks recovery. onFall runs with the peak
// acceleration and the orientation change in degrees.
type FallDetector struct {
	cfg    FallConfig
	log    *slog.Logger
	onFall func(maxAccel, orientationChange float64)

	mu           sync.Mutex
	state        FallState
	samples      int
	gyroMags     []float64
	orientation  Orientation
	reference    Orientation
	calibrated   bool
	fallStart    time.Time
	fallDetected time.Time
	lastTrigger  time.Time
	maxAccel     float64
	orientChange float64
	now          func() time.Time
}

func NewFallDetector(cfg FallConfig, log *slog.Logger, onFall func(maxAccel, orientationChange float64)) *FallDetector {
	def := DefaultFallConfig()
	if cfg.ImpactThreshold <= 0 {
		cfg.ImpactThreshold = def.ImpactThreshold
	}
	if cfg.AngleThreshold <= 0 {
		cfg.AngleThreshold = def.AngleThreshold
	}
	if cfg.ImpactWindow <= 0 {
		cfg.ImpactWindow = def.ImpactWindow
	}
	if cfg.RecoveryTime <= 0 {
		cfg.RecoveryTime = def.RecoveryTime
	}
	return &FallDetector{
		cfg:    cfg,
		log:    log,
		onFall: onFall,
		state:  FallNormal,
		now:    time.Now,
	}
}

// Calibrate records the worn orientation as the upright reference.
func (d *FallDetector) Calibrate(reference Orientation) {
	d.mu.Lock()
	d.reference = reference
	d.calibrated = true
	d.mu.Unlock()
	d.log.Info("fall detector calibrated", "pitch", reference.Pitch, "roll", reference.Roll)
}

// State returns the current fall state.
func (d *FallDetector) State() FallState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Fallen reports whether the wearer is currently down.
func (d *FallDetector) Fallen() bool {
	return d.State() == FallFallen
}

// AddSample feeds one IMU reading. Detection starts once a second of
// samples has arrived and the detector is calibrated.
func (d *FallDetector) AddSample(accel, gyro Vec3, orient Orientation) FallState {
	d.mu.Lock()

	d.samples++
	d.gyroMags = append(d.gyroMags, gyro.Magnitude())
	if len(d.gyroMags) > 10 {
		d.gyroMags = d.gyroMags[1:]
	}
	d.orientation = orient

	fired := false
	if d.samples >= 10 && d.calibrated {
		fired = d.detectLocked(accel)
	}
	d.transitionsLocked()

	state := d.state
	maxAccel, change := d.maxAccel, d.orientChange
	d.mu.Unlock()

	if fired && d.onFall != nil {
		d.onFall(maxAccel, change)
	}
	return state
}

func (d *FallDetector) detectLocked(accel Vec3) bool {
	now := d.now()
	mag := accel.Magnitude()

	// Free fall reads near zero g.
	if mag < 0.5 && d.state == FallNormal && d.fallStart.IsZero() {
		d.fallStart = now
	}

	if mag > d.cfg.ImpactThreshold {
		d.maxAccel = math.Max(d.maxAccel, mag)
		if !d.fallStart.IsZero() && now.Sub(d.fallStart) < d.cfg.ImpactWindow && d.state == FallNormal {
			return d.confirmLocked(now)
		}
	}

	d.orientChange = d.orientationChangeLocked(d.orientation)
	if d.orientChange > d.cfg.AngleThreshold && d.state == FallNormal && d.maxAccel > 1.5 {
		return d.confirmLocked(now)
	}
	return false
}

func (d *FallDetector) confirmLocked(now time.Time) bool {
	if now.Sub(d.lastTrigger) < 2*time.Second {
		return false
	}
	d.state = FallFalling
	d.fallDetected = now
	d.lastTrigger = now
	d.log.Warn("fall detected", "max_accel", d.maxAccel, "orientation_change", d.orientChange)
	d.state = FallFallen
	return true
}

func (d *FallDetector) transitionsLocked() {
	now := d.now()

	switch d.state {
	case FallFallen:
		if d.recoveryMovementLocked() {
			d.state = FallRecovering
			d.log.Info("recovery movement detected")
		}
	case FallRecovering:
		if d.uprightLocked() {
			d.state = FallNormal
			d.resetLocked()
			d.log.Info("recovery complete")
		}
	}

	if !d.fallDetected.IsZero() && now.Sub(d.fallDetected) > d.cfg.RecoveryTime && d.state != FallNormal {
		d.state = FallNormal
		d.resetLocked()
		d.log.Info("fall state reset after timeout")
	}
}

func (d *FallDetector) resetLocked() {
	d.fallStart = time.Time{}
	d.fallDetected = time.Time{}
	d.maxAccel = 0
}

// recoveryMovementLocked checks the recent gyro energy for the rotation of
// someone getting up.
func (d *FallDetector) recoveryMovementLocked() bool {
	if len(d.gyroMags) < 5 {
		return false
	}
	var total float64
	for _, m := range d.gyroMags[len(d.gyroMags)-5:] {
		total += m
	}
	return total > 50
}

func (d *FallDetector) uprightLocked() bool {
	return d.orientationChangeLocked(d.orientation) < 30
}

// orientationChangeLocked combines the pitch and roll deltas from the
// calibrated reference, each wrapped into 0-180.
func (d *FallDetector) orientationChangeLocked(o Orientation) float64 {
	pitch := math.Abs(o.Pitch - d.reference.Pitch)
	roll := math.Abs(o.Roll - d.reference.Roll)
	pitch = math.Min(pitch, 360-pitch)
	roll = math.Min(roll, 360-roll)
	return math.Sqrt(pitch*pitch + roll*roll)
}
