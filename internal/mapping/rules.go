package mapping

import "time"

// Pair is an ordered action transition.
type Pair [2]string

// Rules constrain which action transitions may run directly. A forbidden
// transition is routed through an intermediate action instead, so a figure
// at rest walks before it runs.
type Rules struct {
	Direct      []Pair  `json:"direct" yaml:"direct"`
	Forbidden   []Pair  `json:"forbidden" yaml:"forbidden"`
	FadeSeconds float64 `json:"transition_duration" yaml:"transition_duration"`
}

// DefaultRules returns the stock rule set shipped with the pipeline.
func DefaultRules() Rules {
	return Rules{
		Direct: []Pair{
			{"stop", "walk"},
			{"walk", "run"},
			{"run", "walk"},
			{"walk", "stop"},
			{"stop", "fall"},
			{"walk", "fall"},
			{"run", "fall"},
		},
		Forbidden:   []Pair{{"stop", "run"}},
		FadeSeconds: 1.0,
	}
}

// Allowed reports whether from may cut straight to to.
func (r Rules) Allowed(from, to string) bool {
	for _, p := range r.Forbidden {
		if p[0] == from && p[1] == to {
			return false
		}
	}
	return true
}

// Via returns an intermediate action bridging from to to, if the direct
// rules contain one.
func (r Rules) Via(from, to string) (string, bool) {
	for _, a := range r.Direct {
		if a[0] != from {
			continue
		}
		mid := a[1]
		for _, b := range r.Direct {
			if b[0] == mid && b[1] == to {
				return mid, true
			}
		}
	}
	return "", false
}

// Fade converts the configured crossfade length to a duration. Zero means
// the caller's default applies.
func (r Rules) Fade() time.Duration {
	if r.FadeSeconds <= 0 {
		return 0
	}
	return time.Duration(r.FadeSeconds * float64(time.Second))
}
