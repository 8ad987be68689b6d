package playback

import (
	"log/slog"
	"sync"
	"time"
)

// LayerID selects one of the two stacked playback layers.
type LayerID int

const (
	// LayerA is the layer that is active when the stage starts.
	LayerA LayerID = 0
	// LayerB is the other layer.
	LayerB LayerID = 1
)

// Other returns the opposite layer.
func (id LayerID) Other() LayerID {
	return 1 - id
}

func (id LayerID) String() string {
	if id == LayerA {
		return "A"
	}
	return "B"
}

// Layer is one playback surface of the two-layer stage. Load begins
// fetching a clip; the outcome is reported asynchronously through the
// Feedback the layer was built with, never as a return value. Reset seeks
// back to the start of the loaded clip, Play starts playback, and Pause
// halts it.
type Layer interface {
	Load(clip Clip)
	Reset()
	Play()
	Pause()
}

// Feedback receives asynchronous playback signals from layers. The
// scheduler implements it; custom layers report through it.
type Feedback interface {
	LoadSucceeded(layer LayerID, clip Clip)
	LoadFailed(layer LayerID, clip Clip, err error)
	PlaybackEnded(layer LayerID)
}

// DurationSource resolves a clip to its playback duration, returning an
// error for clips that cannot be played.
type DurationSource interface {
	Duration(clip Clip) (time.Duration, error)
}

// Renderer mirrors layer commands out to attached players. Calls arrive on
// the scheduler goroutine and must not block.
type Renderer interface {
	LayerLoad(id LayerID, clip Clip)
	LayerReset(id LayerID)
	LayerPlay(id LayerID)
	LayerPause(id LayerID)
}

// TimedLayer drives a playback surface from catalog durations instead of
// decoded media. Load resolves the clip against a DurationSource, Play arms
// a one-shot timer for the clip's duration and reports the natural end
// through the Feedback, so the whole transition cycle runs against real
// wall-clock time without touching video frames. An optional Renderer
// mirrors every command to attached players.
type TimedLayer struct {
	id       LayerID
	source   DurationSource
	feedback Feedback
	renderer Renderer
	log      *slog.Logger

	mu      sync.Mutex
	clip    Clip
	dur     time.Duration
	playing bool
	ended   stopper

	after func(time.Duration, func()) stopper
}

// NewTimedLayer returns a layer that reports into feedback. renderer may be
// nil when nothing mirrors the stage.
func NewTimedLayer(id LayerID, source DurationSource, feedback Feedback, renderer Renderer, log *slog.Logger) *TimedLayer {
	return &TimedLayer{
		id:       id,
		source:   source,
		feedback: feedback,
		renderer: renderer,
		log:      log,
		after: func(d time.Duration, fn func()) stopper {
			return time.AfterFunc(d, fn)
		},
	}
}

// Load resolves the clip's duration and reports the outcome. A clip the
// source does not know fails the load.
func (l *TimedLayer) Load(clip Clip) {
	d, err := l.source.Duration(clip)
	if err != nil {
		l.log.Warn("layer load failed", slog.String("layer", l.id.String()), slog.String("clip", clip.Name()), slog.String("error", err.Error()))
		l.feedback.LoadFailed(l.id, clip, err)
		return
	}

	l.mu.Lock()
	l.clip = clip
	l.dur = d
	l.playing = false
	l.stopEndedLocked()
	l.mu.Unlock()

	if l.renderer != nil {
		l.renderer.LayerLoad(l.id, clip)
	}
	l.feedback.LoadSucceeded(l.id, clip)
}

// Reset seeks the loaded clip back to its start.
func (l *TimedLayer) Reset() {
	l.mu.Lock()
	l.stopEndedLocked()
	l.mu.Unlock()

	if l.renderer != nil {
		l.renderer.LayerReset(l.id)
	}
}

// Play starts playback and arms the ended timer for the loaded clip's
// duration.
func (l *TimedLayer) Play() {
	l.mu.Lock()
	l.playing = true
	l.stopEndedLocked()
	if l.dur > 0 {
		l.ended = l.after(l.dur, func() {
			l.feedback.PlaybackEnded(l.id)
		})
	}
	l.mu.Unlock()

	if l.renderer != nil {
		l.renderer.LayerPlay(l.id)
	}
}

// Pause halts playback and disarms the ended timer.
func (l *TimedLayer) Pause() {
	l.mu.Lock()
	l.playing = false
	l.stopEndedLocked()
	l.mu.Unlock()

	if l.renderer != nil {
		l.renderer.LayerPause(l.id)
	}
}

// Playing reports whether the layer is currently playing.
func (l *TimedLayer) Playing() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.playing
}

// Caller must hold l.mu.
func (l *TimedLayer) stopEndedLocked() {
	if l.ended != nil {
		l.ended.Stop()
		l.ended = nil
	}
}
