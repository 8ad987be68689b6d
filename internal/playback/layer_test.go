package playback

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

type fakeSource struct {
	durs map[Clip]time.Duration
	err  error
}

func (f *fakeSource) Duration(clip Clip) (time.Duration, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.durs[clip], nil
}

type feedbackRecorder struct {
	loaded []Clip
	failed []Clip
	ended  []LayerID
}

func (r *feedbackRecorder) LoadSucceeded(id LayerID, clip Clip) { r.loaded = append(r.loaded, clip) }
func (r *feedbackRecorder) LoadFailed(id LayerID, clip Clip, err error) {
	r.failed = append(r.failed, clip)
}
func (r *feedbackRecorder) PlaybackEnded(id LayerID) { r.ended = append(r.ended, id) }

type renderRecorder struct {
	calls []string
}

func (r *renderRecorder) LayerLoad(id LayerID, clip Clip) {
	r.calls = append(r.calls, fmt.Sprintf("%s:load:%s", id, clip.Name()))
}
func (r *renderRecorder) LayerReset(id LayerID) { r.calls = append(r.calls, id.String()+":reset") }
func (r *renderRecorder) LayerPlay(id LayerID)  { r.calls = append(r.calls, id.String()+":play") }
func (r *renderRecorder) LayerPause(id LayerID) { r.calls = append(r.calls, id.String()+":pause") }

func newTestLayer(t *testing.T, src *fakeSource) (*TimedLayer, *feedbackRecorder, *renderRecorder, *fakeClock) {
	t.Helper()
	clk := &fakeClock{nowT: time.Unix(1_700_000_000, 0)}
	fb := &feedbackRecorder{}
	rr := &renderRecorder{}
	l := NewTimedLayer(LayerB, src, fb, rr, testLogger())
	l.after = clk.schedule
	return l, fb, rr, clk
}

func TestLayerID_Other(t *testing.T) {
	if LayerA.Other() != LayerB || LayerB.Other() != LayerA {
		t.Error("Other should flip between the two layers")
	}
	if LayerA.String() != "A" || LayerB.String() != "B" {
		t.Errorf("unexpected layer names %q %q", LayerA.String(), LayerB.String())
	}
}

func TestTimedLayer_Load_reportsSuccess(t *testing.T) {
	src := &fakeSource{durs: map[Clip]time.Duration{"a.mp4": 10 * time.Second}}
	l, fb, rr, clk := newTestLayer(t, src)

	l.Load("a.mp4")

	if len(fb.loaded) != 1 || fb.loaded[0] != "a.mp4" {
		t.Fatalf("expected load success report, got %v", fb.loaded)
	}
	if len(rr.calls) != 1 || rr.calls[0] != "B:load:a.mp4" {
		t.Errorf("expected renderer load call, got %v", rr.calls)
	}
	if clk.armed() != nil {
		t.Error("loading alone should not arm the ended timer")
	}
}

func TestTimedLayer_Load_reportsFailure(t *testing.T) {
	src := &fakeSource{err: errors.New("clip not found")}
	l, fb, rr, _ := newTestLayer(t, src)

	l.Load("missing.mp4")

	if len(fb.failed) != 1 || fb.failed[0] != "missing.mp4" {
		t.Fatalf("expected load failure report, got %v", fb.failed)
	}
	if len(fb.loaded) != 0 {
		t.Errorf("failed load must not report success, got %v", fb.loaded)
	}
	if len(rr.calls) != 0 {
		t.Errorf("failed load must not reach the renderer, got %v", rr.calls)
	}
}

func TestTimedLayer_Play_armsEndedTimer(t *testing.T) {
	src := &fakeSource{durs: map[Clip]time.Duration{"a.mp4": 10 * time.Second}}
	l, fb, rr, clk := newTestLayer(t, src)

	l.Load("a.mp4")
	l.Play()

	ft := clk.armed()
	if ft == nil {
		t.Fatal("expected an armed ended timer")
	}
	if want := clk.nowT.Add(10 * time.Second); !ft.due.Equal(want) {
		t.Errorf("ended timer due at %v, want %v", ft.due, want)
	}
	if !l.Playing() {
		t.Error("layer should report playing")
	}

	ft.fired = true
	ft.fn()
	if len(fb.ended) != 1 || fb.ended[0] != LayerB {
		t.Errorf("expected ended report for layer B, got %v", fb.ended)
	}
	if rr.calls[len(rr.calls)-1] != "B:play" {
		t.Errorf("expected renderer play call, got %v", rr.calls)
	}
}

func TestTimedLayer_Play_unknownDuration_noTimer(t *testing.T) {
	src := &fakeSource{durs: map[Clip]time.Duration{}}
	l, fb, _, clk := newTestLayer(t, src)

	l.Load("a.mp4")
	l.Play()

	if clk.armed() != nil {
		t.Error("unknown duration should not arm the ended timer")
	}
	if len(fb.ended) != 0 {
		t.Errorf("no ended report expected, got %v", fb.ended)
	}
}

func TestTimedLayer_Pause_stopsEndedTimer(t *testing.T) {
	src := &fakeSource{durs: map[Clip]time.Duration{"a.mp4": 10 * time.Second}}
	l, fb, rr, clk := newTestLayer(t, src)

	l.Load("a.mp4")
	l.Play()
	l.Pause()

	if clk.armed() != nil {
		t.Error("pause should stop the ended timer")
	}
	if l.Playing() {
		t.Error("paused layer should not report playing")
	}
	if len(fb.ended) != 0 {
		t.Errorf("no ended report expected after pause, got %v", fb.ended)
	}
	if rr.calls[len(rr.calls)-1] != "B:pause" {
		t.Errorf("expected renderer pause call, got %v", rr.calls)
	}
}

func TestTimedLayer_Reload_replacesEndedTimer(t *testing.T) {
	src := &fakeSource{durs: map[Clip]time.Duration{
		"a.mp4": 10 * time.Second,
		"b.mp4": 4 * time.Second,
	}}
	l, _, _, clk := newTestLayer(t, src)

	l.Load("a.mp4")
	l.Play()
	l.Load("b.mp4")

	if clk.armed() != nil {
		t.Fatal("loading a new clip should stop the old ended timer")
	}

	l.Play()
	ft := clk.armed()
	if ft == nil {
		t.Fatal("expected a fresh ended timer")
	}
	if want := clk.nowT.Add(4 * time.Second); !ft.due.Equal(want) {
		t.Errorf("ended timer due at %v, want %v", ft.due, want)
	}
}

func TestTimedLayer_nilRenderer(t *testing.T) {
	src := &fakeSource{durs: map[Clip]time.Duration{"a.mp4": time.Second}}
	clk := &fakeClock{nowT: time.Unix(1_700_000_000, 0)}
	l := NewTimedLayer(LayerA, src, &feedbackRecorder{}, nil, testLogger())
	l.after = clk.schedule

	l.Load("a.mp4")
	l.Reset()
	l.Play()
	l.Pause()
}

// TestScheduler_withTimedLayers drives the full stack: a request loads on a
// timed layer, the clip plays out, and the scheduler crossfades back to the
// same clip when the ended timer fires.
func TestScheduler_withTimedLayers(t *testing.T) {
	cfg := cutCfg()
	clk := &fakeClock{nowT: time.Unix(1_700_000_000, 0)}
	src := &fakeSource{durs: map[Clip]time.Duration{"a.mp4": 10 * time.Second}}
	rr := &renderRecorder{}

	s := NewScheduler(cfg, testLogger(), Hooks{})
	s.now = clk.Now
	s.schedule = clk.schedule
	la := NewTimedLayer(LayerA, src, s, rr, testLogger())
	la.after = clk.schedule
	lb := NewTimedLayer(LayerB, src, s, rr, testLogger())
	lb.after = clk.schedule
	s.AttachLayers(la, lb)

	s.RequestClip("a.mp4")
	s.drain()

	// The load resolves synchronously, so the success report is already
	// queued; drain applies it and starts playback on the standby layer.
	s.drain()
	if !lb.Playing() {
		t.Fatal("standby layer should be playing after the load")
	}

	clk.advance(s, cfg.Settle)
	clk.advance(s, cfg.Fade)
	st := s.Snapshot()
	if st.Current != "a.mp4" || st.Active != LayerB || st.InFlight {
		t.Fatalf("expected a.mp4 settled on layer B, got %+v", st)
	}

	// Play out the remaining clip time; the ended timer triggers a loop
	// crossfade onto layer A.
	clk.advance(s, 10*time.Second)
	clk.advance(s, cfg.Settle+cfg.Fade)

	st = s.Snapshot()
	if st.Current != "a.mp4" || st.Active != LayerA || st.InFlight {
		t.Fatalf("expected loop back onto layer A, got %+v", st)
	}
	if !la.Playing() || lb.Playing() {
		t.Errorf("expected layer A playing and layer B paused, playingA=%v playingB=%v", la.Playing(), lb.Playing())
	}
}
