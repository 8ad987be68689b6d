package playback

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Default transition timings. Settle is the short pause between a clip
// starting to play on the standby layer and the visual swap, so the first
// frame is already rendered when the crossfade begins.
const (
	DefaultMinPlay = 3 * time.Second
	DefaultFade    = time.Second
	DefaultSettle  = 100 * time.Millisecond
)

const queueSize = 64

// Config carries the scheduler timings. MinPlay is the floor on how long a
// clip stays on screen before the next transition may begin; zero disables
// the floor, so use DefaultConfig when the standard timings are wanted.
type Config struct {
	MinPlay time.Duration
	Fade    time.Duration
	Settle  time.Duration
}

// DefaultConfig returns the standard transition timings.
func DefaultConfig() Config {
	return Config{MinPlay: DefaultMinPlay, Fade: DefaultFade, Settle: DefaultSettle}
}

// Request names a clip the stage should transition to, together with the
// timings that apply to this request. At records when the request entered
// the scheduler; the zero value is stamped on submission.
type Request struct {
	Clip    Clip
	MinPlay time.Duration
	Fade    time.Duration
	At      time.Time
}

// State is a point-in-time copy of the scheduler's externally visible
// state.
type State struct {
	Current        Clip
	Active         LayerID
	InFlight       bool
	Pending        Clip
	LastTransition time.Time
}

// Hooks receives scheduler lifecycle notifications. All fields are
// optional. Hooks run on the scheduler goroutine and must not block.
type Hooks struct {
	TransitionStarted   func(clip Clip, layer LayerID)
	TransitionDeferred  func(clip Clip, wait time.Duration)
	TransitionSwapped   func(from, to LayerID, clip Clip, fade time.Duration)
	TransitionCompleted func(clip Clip, layer LayerID)
	TransitionFailed    func(clip Clip, err error)
	PendingReplaced     func(prev, next Clip)
	Looped              func(clip Clip)
}

type msgKind int

const (
	msgRequest msgKind = iota
	msgLoadSucceeded
	msgLoadFailed
	msgSwapDue
	msgSettleDue
	msgDeferredFire
	msgPlaybackEnded
)

func (k msgKind) String() string {
	switch k {
	case msgRequest:
		return "request"
	case msgLoadSucceeded:
		return "load_succeeded"
	case msgLoadFailed:
		return "load_failed"
	case msgSwapDue:
		return "swap_due"
	case msgSettleDue:
		return "settle_due"
	case msgDeferredFire:
		return "deferred_fire"
	case msgPlaybackEnded:
		return "playback_ended"
	}
	return "unknown"
}

type message struct {
	kind  msgKind
	req   Request
	layer LayerID
	clip  Clip
	err   error
	gen   uint64
}

// stopper is the cancelable handle returned by the scheduler's timer
// source. *time.Timer satisfies it.
type stopper interface {
	Stop() bool
}

// Scheduler owns the two playback layers and serializes every transition
// between them. All mutable state lives on the Run goroutine; public entry
// points and timer fires only post messages, so each message is handled to
// completion before the next one is looked at. At most one transition is in
// flight, and at most one request is held back as pending; a newer pending
// request overwrites an older one.
type Scheduler struct {
	cfg    Config
	log    *slog.Logger
	hooks  Hooks
	layers [2]Layer

	msgs chan message

	// Owned by the Run goroutine.
	current    Clip
	target     Clip
	fade       time.Duration
	active     LayerID
	inFlight   bool
	pending    *Request
	last       time.Time
	deferGen   uint64
	deferTimer stopper

	mu   sync.RWMutex
	view State

	now      func() time.Time
	schedule func(time.Duration, func()) stopper
}

// NewScheduler returns a stopped scheduler. Call AttachLayers before Run.
func NewScheduler(cfg Config, log *slog.Logger, hooks Hooks) *Scheduler {
	if cfg.Fade <= 0 {
		cfg.Fade = DefaultFade
	}
	if cfg.Settle <= 0 {
		cfg.Settle = DefaultSettle
	}
	if cfg.MinPlay < 0 {
		cfg.MinPlay = 0
	}
	return &Scheduler{
		cfg:   cfg,
		log:   log,
		hooks: hooks,
		msgs:  make(chan message, queueSize),
		now:   time.Now,
		schedule: func(d time.Duration, fn func()) stopper {
			return time.AfterFunc(d, fn)
		},
	}
}

// AttachLayers wires the two playback layers. Must be called before Run and
// before the first request.
func (s *Scheduler) AttachLayers(a, b Layer) {
	s.layers[LayerA] = a
	s.layers[LayerB] = b
}

// Run consumes scheduler messages until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-s.msgs:
			s.handle(m)
		}
	}
}

// Request submits a transition request with explicit timings.
func (s *Scheduler) Request(req Request) {
	if req.At.IsZero() {
		req.At = s.now()
	}
	s.post(message{kind: msgRequest, req: req})
}

// RequestClip submits a transition request with the configured timings.
func (s *Scheduler) RequestClip(clip Clip) {
	s.Request(Request{Clip: clip, MinPlay: s.cfg.MinPlay, Fade: s.cfg.Fade})
}

// LoadSucceeded reports that a layer finished loading a clip.
func (s *Scheduler) LoadSucceeded(layer LayerID, clip Clip) {
	s.post(message{kind: msgLoadSucceeded, layer: layer, clip: clip})
}

// LoadFailed reports that a layer could not load a clip.
func (s *Scheduler) LoadFailed(layer LayerID, clip Clip, err error) {
	s.post(message{kind: msgLoadFailed, layer: layer, clip: clip, err: err})
}

// PlaybackEnded reports that the clip on a layer played to its end.
func (s *Scheduler) PlaybackEnded(layer LayerID) {
	s.post(message{kind: msgPlaybackEnded, layer: layer})
}

// Snapshot returns the scheduler's current visible state.
func (s *Scheduler) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

func (s *Scheduler) post(m message) {
	select {
	case s.msgs <- m:
	default:
		s.log.Warn("scheduler queue full, dropping message", slog.String("kind", m.kind.String()))
	}
}

// drain handles queued messages until the queue is empty. Tests use it to
// pump the loop without running Run.
func (s *Scheduler) drain() {
	for {
		select {
		case m := <-s.msgs:
			s.handle(m)
		default:
			return
		}
	}
}

func (s *Scheduler) handle(m message) {
	switch m.kind {
	case msgRequest:
		s.handleRequest(m.req)
	case msgDeferredFire:
		if m.gen != s.deferGen {
			s.log.Debug("superseded deferred fire dropped", slog.String("clip", m.req.Clip.Name()))
			break
		}
		s.deferTimer = nil
		s.handleRequest(m.req)
	case msgLoadSucceeded:
		s.handleLoadSucceeded(m.layer, m.clip)
	case msgLoadFailed:
		s.handleLoadFailed(m.layer, m.clip, m.err)
	case msgSwapDue:
		s.handleSwapDue()
	case msgSettleDue:
		s.handleSettleDue()
	case msgPlaybackEnded:
		s.handlePlaybackEnded(m.layer)
	}
	s.publish()
}

// handleRequest runs the request decision chain: ignore a request for the
// clip already showing, park it while a transition is in flight, defer it
// while the current clip has not met its minimum play time, otherwise
// transition now.
func (s *Scheduler) handleRequest(req Request) {
	if req.Clip.Same(s.current) {
		// Nothing to do, and any older parked decision is obsolete:
		// the stage already shows what this request asks for.
		s.pending = nil
		s.cancelDeferred()
		s.log.Debug("request matches current clip, ignoring", slog.String("clip", req.Clip.Name()))
		return
	}

	if s.inFlight {
		s.setPending(req)
		return
	}

	if req.MinPlay > 0 {
		elapsed := s.now().Sub(s.last)
		if elapsed < req.MinPlay {
			wait := req.MinPlay - elapsed
			s.setPending(req)
			s.armDeferred(req, wait)
			s.log.Info("transition deferred",
				slog.String("clip", req.Clip.Name()),
				slog.Duration("wait", wait))
			if s.hooks.TransitionDeferred != nil {
				s.hooks.TransitionDeferred(req.Clip, wait)
			}
			return
		}
	}

	s.begin(req)
}

// begin starts the transition unconditionally. The pending slot and any
// armed deferred fire are consumed so an older decision cannot replay after
// this one.
func (s *Scheduler) begin(req Request) {
	s.pending = nil
	s.cancelDeferred()

	s.inFlight = true
	s.last = s.now()
	s.target = req.Clip
	s.fade = req.Fade
	if s.fade < 0 {
		s.fade = 0
	}

	standby := s.active.Other()
	s.log.Info("transition started",
		slog.String("clip", req.Clip.Name()),
		slog.String("layer", standby.String()))
	if s.hooks.TransitionStarted != nil {
		s.hooks.TransitionStarted(req.Clip, standby)
	}
	s.layers[standby].Load(req.Clip)
}

func (s *Scheduler) handleLoadSucceeded(layer LayerID, clip Clip) {
	if !s.inFlight || layer == s.active || !clip.Same(s.target) {
		s.log.Debug("stale load result dropped",
			slog.String("layer", layer.String()),
			slog.String("clip", clip.Name()))
		return
	}

	s.current = s.target
	s.layers[layer].Reset()
	s.layers[layer].Play()
	s.schedule(s.cfg.Settle, func() {
		s.post(message{kind: msgSwapDue})
	})
}

func (s *Scheduler) handleLoadFailed(layer LayerID, clip Clip, err error) {
	if !s.inFlight || !clip.Same(s.target) {
		s.log.Debug("stale load failure dropped", slog.String("clip", clip.Name()))
		return
	}

	// Abandon: the previously visible layer keeps playing. The start
	// stamp from begin stays, so the failed attempt still counts against
	// the next request's minimum-play window.
	s.inFlight = false
	s.target = ""
	s.log.Error("transition load failed",
		slog.String("layer", layer.String()),
		slog.String("clip", clip.Name()),
		slog.String("error", err.Error()))
	if s.hooks.TransitionFailed != nil {
		s.hooks.TransitionFailed(clip, err)
	}

	s.chainPending()
}

// handleSwapDue flips the active layer. The visual crossfade runs from here
// for the transition's fade duration.
func (s *Scheduler) handleSwapDue() {
	if !s.inFlight {
		return
	}

	from := s.active
	s.active = from.Other()
	s.log.Debug("layers swapped",
		slog.String("from", from.String()),
		slog.String("to", s.active.String()),
		slog.Duration("fade", s.fade))
	if s.hooks.TransitionSwapped != nil {
		s.hooks.TransitionSwapped(from, s.active, s.current, s.fade)
	}
	s.schedule(s.fade, func() {
		s.post(message{kind: msgSettleDue})
	})
}

// handleSettleDue completes the transition once the crossfade has run its
// course: the hidden layer is paused and the completion time is stamped,
// which is the reference point for the next minimum-play window.
func (s *Scheduler) handleSettleDue() {
	if !s.inFlight {
		return
	}

	old := s.active.Other()
	s.layers[old].Pause()
	s.inFlight = false
	s.target = ""
	s.last = s.now()
	s.log.Info("transition completed",
		slog.String("clip", s.current.Name()),
		slog.String("layer", s.active.String()))
	if s.hooks.TransitionCompleted != nil {
		s.hooks.TransitionCompleted(s.current, s.active)
	}

	s.chainPending()
}

// handlePlaybackEnded reacts to the active clip playing out: apply the
// pending request if one is parked, otherwise crossfade to the same clip
// starting over so the loop seam never shows a jump cut. Signals from the
// standby layer or during a transition are stale and dropped.
func (s *Scheduler) handlePlaybackEnded(layer LayerID) {
	if layer != s.active {
		s.log.Debug("ended signal from standby layer ignored", slog.String("layer", layer.String()))
		return
	}
	if s.inFlight {
		return
	}

	if s.pending != nil {
		req := *s.pending
		s.log.Info("clip ended, applying pending request",
			slog.String("clip", req.Clip.Name()))
		s.begin(req)
		return
	}

	if s.current.IsZero() {
		return
	}

	s.log.Info("clip ended, looping", slog.String("clip", s.current.Name()))
	if s.hooks.Looped != nil {
		s.hooks.Looped(s.current)
	}
	s.begin(Request{Clip: s.current, MinPlay: s.cfg.MinPlay, Fade: s.cfg.Fade, At: s.now()})
}

// chainPending starts the parked request, if any, immediately after a
// transition finishes or fails.
func (s *Scheduler) chainPending() {
	if s.pending == nil {
		return
	}
	req := *s.pending
	s.log.Info("applying pending request",
		slog.String("clip", req.Clip.Name()),
		slog.Duration("waited", s.now().Sub(req.At)))
	s.begin(req)
}

func (s *Scheduler) setPending(req Request) {
	if s.pending != nil && !s.pending.Clip.Same(req.Clip) {
		s.log.Info("pending request replaced",
			slog.String("prev", s.pending.Clip.Name()),
			slog.String("next", req.Clip.Name()))
		if s.hooks.PendingReplaced != nil {
			s.hooks.PendingReplaced(s.pending.Clip, req.Clip)
		}
	}
	r := req
	s.pending = &r
}

// armDeferred schedules a re-submission of req after wait. Any previously
// armed fire is superseded; the generation check drops fires that were
// already in the queue when they were superseded.
func (s *Scheduler) armDeferred(req Request, wait time.Duration) {
	s.cancelDeferred()
	gen := s.deferGen
	s.deferTimer = s.schedule(wait, func() {
		s.post(message{kind: msgDeferredFire, req: req, gen: gen})
	})
}

func (s *Scheduler) cancelDeferred() {
	s.deferGen++
	if s.deferTimer != nil {
		s.deferTimer.Stop()
		s.deferTimer = nil
	}
}

func (s *Scheduler) publish() {
	var pending Clip
	if s.pending != nil {
		pending = s.pending.Clip
	}
	s.mu.Lock()
	s.view = State{
		Current:        s.current,
		Active:         s.active,
		InFlight:       s.inFlight,
		Pending:        pending,
		LastTransition: s.last,
	}
	s.mu.Unlock()
}
