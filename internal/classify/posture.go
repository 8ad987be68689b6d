package classify

import (
	"log/slog"
	"math"
	"sync"
	"time"
)

// Posture labels produced by the skeleton classifier.
const (
	PostureUnknown    = "unknown"
	PostureStanding   = "standing"
	PostureSitting    = "sitting"
	PostureLying      = "lying"
	PostureLeftArmUp  = "left_arm_up"
	PostureRightArmUp = "right_arm_up"
)

// requiredJoints must all be tracked confidently before a frame is
// classified.
var requiredJoints = []string{
	JointHead, JointNeck, JointSpineChest, JointPelvis,
	JointLeftShoulder, JointLeftHand,
	JointRightShoulder, JointRightHand,
	JointLeftHip, JointLeftKnee,
	JointRightHip, JointRightKnee,
}

// PostureConfig tunes the skeleton classifier.
type PostureConfig struct {
	ArmRaise      float64 // hand-above-shoulder margin
	Sitting       float64 // pelvis-to-knee gap as a fraction of body height
	Lying         float64 // vertical spread as a fraction of body height
	MinConfidence float64
	Debounce      time.Duration
}

func DefaultPostureConfig() PostureConfig {
	return PostureConfig{
		ArmRaise:      0.2,
		Sitting:       0.15,
		Lying:         0.3,
		MinConfidence: 0.5,
	}
}

// PostureDetector classifies skeleton frames and debounces the resulting
// posture stream. onChange runs with (new, old) after a settled change.
type PostureDetector struct {
	cfg      PostureConfig
	log      *slog.Logger
	onChange func(posture, previous string)

	mu           sync.Mutex
	current      string
	pending      string
	pendingSince time.Time
	now          func() time.Time
}

func NewPostureDetector(cfg PostureConfig, log *slog.Logger, onChange func(posture, previous string)) *PostureDetector {
	def := DefaultPostureConfig()
	if cfg.ArmRaise <= 0 {
		cfg.ArmRaise = def.ArmRaise
	}
	if cfg.Sitting <= 0 {
		cfg.Sitting = def.Sitting
	}
	if cfg.Lying <= 0 {
		cfg.Lying = def.Lying
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = def.MinConfidence
	}
	return &PostureDetector{
		cfg:      cfg,
		log:      log,
		onChange: onChange,
		current:  PostureUnknown,
		now:      time.Now,
	}
}

// Current returns the settled posture.
func (d *PostureDetector) Current() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Classify labels a single frame. Priority runs arm raise, lying, sitting,
// standing, so a raised hand wins even while seated.
func (d *PostureDetector) Classify(f Frame) string {
	pos := make(map[string]Vec3, len(requiredJoints))
	for _, name := range requiredJoints {
		j, ok := f[name]
		if !ok || j.Confidence < d.cfg.MinConfidence {
			return PostureUnknown
		}
		pos[name] = j.Position
	}

	if p, ok := d.armRaise(pos); ok {
		return p
	}
	height := bodyHeight(f, pos[JointHead])
	if d.isLying(pos, height) {
		return PostureLying
	}
	if d.isSitting(pos, height) {
		return PostureSitting
	}
	return PostureStanding
}

// Update classifies a frame and applies the debounce window. Unknown
// frames keep the previous posture.
func (d *PostureDetector) Update(f Frame) string {
	posture := d.Classify(f)

	d.mu.Lock()
	if posture == PostureUnknown || posture == d.current {
		if posture == d.current {
			d.pending = ""
		}
		cur := d.current
		d.mu.Unlock()
		return cur
	}

	now := d.now()
	change := false
	switch {
	case d.cfg.Debounce <= 0:
		change = true
	case posture == d.pending:
		if now.Sub(d.pendingSince) >= d.cfg.Debounce {
			change = true
			d.pending = ""
		}
	default:
		d.pending = posture
		d.pendingSince = now
	}

	if !change {
		cur := d.current
		d.mu.Unlock()
		return cur
	}

	previous := d.current
	d.current = posture
	d.mu.Unlock()

	d.log.Info("posture changed", "from", previous, "to", posture)
	if d.onChange != nil {
		d.onChange(posture, previous)
	}
	return posture
}

// armRaise reports a raised hand. Camera Y points down, so a raised hand
// has the smaller Y. The left hand wins when both are up.
func (d *PostureDetector) armRaise(pos map[string]Vec3) (string, bool) {
	spread := math.Abs(pos[JointLeftShoulder].Y - pos[JointRightShoulder].Y)
	threshold := d.cfg.ArmRaise
	if spread > 0 {
		threshold = spread * d.cfg.ArmRaise
	}
	if pos[JointLeftShoulder].Y-pos[JointLeftHand].Y > threshold {
		return PostureLeftArmUp, true
	}
	if pos[JointRightShoulder].Y-pos[JointRightHand].Y > threshold {
		return PostureRightArmUp, true
	}
	return "", false
}

// isLying checks whether the head-to-pelvis chain is flat or stretched out
// horizontally.
func (d *PostureDetector) isLying(pos map[string]Vec3, height float64) bool {
	core := []Vec3{pos[JointHead], pos[JointNeck], pos[JointSpineChest], pos[JointPelvis]}

	minV, maxV := core[0], core[0]
	for _, p := range core[1:] {
		minV.X = math.Min(minV.X, p.X)
		minV.Y = math.Min(minV.Y, p.Y)
		minV.Z = math.Min(minV.Z, p.Z)
		maxV.X = math.Max(maxV.X, p.X)
		maxV.Y = math.Max(maxV.Y, p.Y)
		maxV.Z = math.Max(maxV.Z, p.Z)
	}
	yRange := maxV.Y - minV.Y
	horizontal := math.Max(maxV.X-minV.X, maxV.Z-minV.Z)

	yRatio := 1.0
	if height > 0 {
		yRatio = yRange / height
	}
	if yRatio < d.cfg.Lying {
		return true
	}
	return yRange > 0 && horizontal > yRange*2
}

// isSitting checks whether the pelvis sits near knee level relative to the
// body height.
func (d *PostureDetector) isSitting(pos map[string]Vec3, height float64) bool {
	avgKneeY := (pos[JointLeftKnee].Y + pos[JointRightKnee].Y) / 2
	gap := avgKneeY - pos[JointPelvis].Y

	ratio := 0.0
	if height > 0 {
		ratio = math.Abs(gap) / height
	}
	return ratio < d.cfg.Sitting
}

// bodyHeight estimates standing height from head to the lower ankle, with
// 1.0 as the fallback scale when the ankles are not tracked.
func bodyHeight(f Frame, head Vec3) float64 {
	la, lok := f[JointLeftAnkle]
	ra, rok := f[JointRightAnkle]
	if !lok || !rok {
		return 1.0
	}
	ankleY := math.Max(la.Position.Y, ra.Position.Y)
	return math.Abs(ankleY - head.Y)
}
