package classify

import (
	"testing"
	"time"
)

type shoutRecorder struct {
	volumes   []float64
	durations []time.Duration
}

func (r *shoutRecorder) onShout(volume float64, duration time.Duration) {
	r.volumes = append(r.volumes, volume)
	r.durations = append(r.durations, duration)
}

func newTestShout(t *testing.T) (*ShoutDetector, *stepClock, *shoutRecorder) {
	t.Helper()
	clk := newStepClock()
	rec := &shoutRecorder{}
	d := NewShoutDetector(ShoutConfig{}, testLogger(), rec.onShout)
	d.now = clk.Now
	return d, clk, rec
}

func TestShoutDetector_firesAfterSustainedVolume(t *testing.T) {
	d, clk, rec := newTestShout(t)

	if d.Process(75) {
		t.Fatal("a single loud sample must not fire")
	}
	clk.Advance(300 * time.Millisecond)
	if d.Process(75) {
		t.Fatal("300ms is not sustained yet")
	}
	clk.Advance(300 * time.Millisecond)
	if !d.Process(82) {
		t.Fatal("expected a shout after 600ms above the threshold")
	}

	if d.Count() != 1 {
		t.Errorf("expected count 1, got %d", d.Count())
	}
	if len(rec.volumes) != 1 || rec.volumes[0] != 82 {
		t.Errorf("unexpected volumes %v", rec.volumes)
	}
	if rec.durations[0] != 600*time.Millisecond {
		t.Errorf("expected 600ms duration, got %v", rec.durations[0])
	}
}

func TestShoutDetector_dipResetsTheBurst(t *testing.T) {
	d, clk, _ := newTestShout(t)

	d.Process(75)
	clk.Advance(300 * time.Millisecond)
	d.Process(40)
	clk.Advance(100 * time.Millisecond)
	d.Process(75)
	clk.Advance(300 * time.Millisecond)
	if d.Process(75) {
		t.Fatal("the burst restarted after the dip, 300ms is not enough")
	}
	clk.Advance(300 * time.Millisecond)
	if !d.Process(75) {
		t.Fatal("expected a shout once the new burst sustained")
	}
	if d.Count() != 1 {
		t.Errorf("expected count 1, got %d", d.Count())
	}
}

func TestShoutDetector_cooldownConsumesBursts(t *testing.T) {
	d, clk, rec := newTestShout(t)

	d.Process(90)
	clk.Advance(600 * time.Millisecond)
	if !d.Process(90) {
		t.Fatal("expected the first shout")
	}

	// Shouting straight through the cooldown: each sustained burst is
	// consumed without firing.
	clk.Advance(100 * time.Millisecond)
	d.Process(90)
	clk.Advance(600 * time.Millisecond)
	if d.Process(90) {
		t.Fatal("shout inside the cooldown must not fire")
	}
	if d.Count() != 1 {
		t.Errorf("expected count 1, got %d", d.Count())
	}

	clk.Advance(100 * time.Millisecond)
	d.Process(90)
	clk.Advance(600 * time.Millisecond)
	if d.Process(90) {
		t.Fatal("still inside the cooldown")
	}

	clk.Advance(100 * time.Millisecond)
	d.Process(90)
	clk.Advance(600 * time.Millisecond)
	if !d.Process(90) {
		t.Fatal("expected a second shout once the cooldown passed")
	}
	if d.Count() != 2 {
		t.Errorf("expected count 2, got %d", d.Count())
	}
	if len(rec.durations) != 2 || rec.durations[1] != 600*time.Millisecond {
		t.Errorf("unexpected durations %v", rec.durations)
	}
}

func TestShoutIntensity(t *testing.T) {
	if got := ShoutIntensity(85); got != "loud" {
		t.Errorf("expected loud, got %s", got)
	}
	if got := ShoutIntensity(80); got != "moderate" {
		t.Errorf("expected moderate at the boundary, got %s", got)
	}
	if got := ShoutIntensity(72); got != "moderate" {
		t.Errorf("expected moderate, got %s", got)
	}
}
