package classify

import (
	"log/slog"
	"sync"
	"time"
)

// Movement labels produced by the accelerometer classifier.
const (
	MoveStop = "stop"
	MoveWalk = "walk"
	MoveRun  = "run"
)

// MovementConfig tunes the accelerometer classifier. Thresholds are in g
// after gravity removal.
type MovementConfig struct {
	Window   int
	Static   float64
	Walking  float64
	Running  float64
	Cooldown time.Duration
}

func DefaultMovementConfig() MovementConfig {
	return MovementConfig{
		Window:   10,
		Static:   0.1,
		Walking:  0.5,
		Running:  1.5,
		Cooldown: 2 * time.Second,
	}
}

// MovementDetector classifies stop, walk and run from a sliding window of
// gravity-corrected acceleration magnitudes. onChange runs with
// (new, old) after a settled change.
type MovementDetector struct {
	cfg      MovementConfig
	log      *slog.Logger
	onChange func(state, previous string)

	mu          sync.Mutex
	gravity     Vec3
	calibrated  bool
	window      []float64
	current     string
	previous    string
	lastTrigger time.Time
	now         func() time.Time
}

func NewMovementDetector(cfg MovementConfig, log *slog.Logger, onChange func(state, previous string)) *MovementDetector {
	def := DefaultMovementConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Static <= 0 {
		cfg.Static = def.Static
	}
	if cfg.Walking <= 0 {
		cfg.Walking = def.Walking
	}
	if cfg.Running <= 0 {
		cfg.Running = def.Running
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	return &MovementDetector{
		cfg:      cfg,
		log:      log,
		onChange: onChange,
		gravity:  Vec3{Z: 1},
		current:  MoveStop,
		previous: MoveStop,
		now:      time.Now,
	}
}

// Calibrate averages stationary samples into the gravity vector.
func (d *MovementDetector) Calibrate(samples []Vec3) {
	if len(samples) == 0 {
		d.log.Error("movement calibration failed, no samples")
		return
	}
	d.mu.Lock()
	d.gravity = Mean(samples)
	d.calibrated = true
	g := d.gravity
	d.mu.Unlock()
	d.log.Info("movement detector calibrated", "gravity_x", g.X, "gravity_y", g.Y, "gravity_z", g.Z)
}

// Current returns the settled movement state.
func (d *MovementDetector) Current() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// AddSample feeds one accelerometer reading and returns the settled state.
// State changes inside the cooldown window are discarded.
func (d *MovementDetector) AddSample(accel Vec3) string {
	d.mu.Lock()

	mag := accel.Sub(d.gravity).Magnitude()
	d.window = append(d.window, mag)
	if len(d.window) > d.cfg.Window {
		d.window = d.window[1:]
	}

	state := d.classifyLocked()
	if state == d.current {
		cur := d.current
		d.mu.Unlock()
		return cur
	}

	now := d.now()
	if now.Sub(d.lastTrigger) < d.cfg.Cooldown {
		cur := d.current
		d.mu.Unlock()
		return cur
	}

	d.previous = d.current
	d.current = state
	d.lastTrigger = now
	previous := d.previous
	d.mu.Unlock()

	d.log.Info("movement state changed", "from", previous, "to", state)
	if d.onChange != nil {
		d.onChange(state, previous)
	}
	return state
}

func (d *MovementDetector) classifyLocked() string {
	if len(d.window) < d.cfg.Window {
		return d.current
	}

	var sum float64
	for _, m := range d.window {
		sum += m
	}
	avg := sum / float64(len(d.window))

	switch {
	case avg < d.cfg.Static:
		return MoveStop
	case avg < d.cfg.Walking:
		// Low magnitudes still count as walking when the window shows a
		// step rhythm.
		if d.walkingPatternLocked() {
			return MoveWalk
		}
		return MoveStop
	case avg < d.cfg.Running:
		return MoveWalk
	default:
		if d.runningPatternLocked() {
			return MoveRun
		}
		return MoveWalk
	}
}

// walkingPatternLocked looks for the 1-4 step peaks a walking cadence
// leaves in the window.
func (d *MovementDetector) walkingPatternLocked() bool {
	peaks := 0
	for i := 1; i < len(d.window)-1; i++ {
		if d.window[i] > d.window[i-1] && d.window[i] > d.window[i+1] && d.window[i] > d.cfg.Static {
			peaks++
		}
	}
	return peaks >= 1 && peaks <= 4
}

// runningPatternLocked requires frequent peaks with at least two strong
// ones.
func (d *MovementDetector) runningPatternLocked() bool {
	peaks, high := 0, 0
	for i := 1; i < len(d.window)-1; i++ {
		if d.window[i] > d.window[i-1] && d.window[i] > d.window[i+1] {
			peaks++
			if d.window[i] > d.cfg.Walking {
				high++
			}
		}
	}
	return peaks >= 3 && high >= 2
}

// ActivityLevel is the mean magnitude of the current window.
func (d *MovementDetector) ActivityLevel() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.window) == 0 {
		return 0
	}
	var sum float64
	for _, m := range d.window {
		sum += m
	}
	return sum / float64(len(d.window))
}

// StepCount estimates steps from the peaks in the current window.
func (d *MovementDetector) StepCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.window) < 3 {
		return 0
	}
	steps := 0
	for i := 1; i < len(d.window)-1; i++ {
		if d.window[i] > d.window[i-1] && d.window[i] > d.window[i+1] && d.window[i] > d.cfg.Static*2 {
			steps++
		}
	}
	return steps
}
