// Package director owns the virtual production runtime: the current scene
// and action, background resolution through the mapping, transition rule
// routing, and the event fan-out toward attached players.
package director

import (
	"encoding/json"
	"log/slog"
	"path"
	"sync"
	"time"

	"vp-director/internal/mapping"
	"vp-director/internal/platform/metrics"
	"vp-director/internal/playback"
)

const backgroundsPrefix = "/vp/backgrounds/"

// heartbeatTTL is the sensor liveness window. Wearables send a heartbeat
// every 30 seconds; three missed beats counts a sensor as gone.
const heartbeatTTL = 90 * time.Second

// Stage is the playback surface the director drives.
type Stage interface {
	Request(playback.Request)
	Snapshot() playback.State
}

// Broadcaster fans events out to connected players.
type Broadcaster interface {
	Broadcast(event string, data []byte)
	ClientCount() int
}

// Director holds the scene and action state and turns behavior events into
// stage transitions and player broadcasts.
type Director struct {
	repo    *mapping.Repository
	rules   mapping.Rules
	stage   Stage
	hub     Broadcaster
	timing  playback.Config
	metrics *metrics.Metrics
	log     *slog.Logger

	mu     sync.Mutex
	scene  int
	action string

	hbMu       sync.Mutex
	heartbeats map[string]time.Time

	now func() time.Time
}

// New returns a director starting at scene 1 with action "stop". metrics
// may be nil to disable metric recording (e.g. in tests).
func New(repo *mapping.Repository, rules mapping.Rules, stage Stage, hub Broadcaster, timing playback.Config, m *metrics.Metrics, log *slog.Logger) *Director {
	return &Director{
		repo:       repo,
		rules:      rules,
		stage:      stage,
		hub:        hub,
		timing:     timing,
		metrics:    m,
		log:        log,
		scene:      1,
		action:     "stop",
		heartbeats: make(map[string]time.Time),
		now:        time.Now,
	}
}

// Scene returns the current scene id.
func (d *Director) Scene() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scene
}

// Action returns the current action.
func (d *Director) Action() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.action
}

// HandleEvent processes one behavior event: update the current action,
// resolve the background clip, request the stage transition, and broadcast
// the change to players. Events that arrive before a mapping is loaded are
// dropped. source labels the ingest transport for metrics. The returned
// event has the sensor id, behavior, and timestamp defaults applied.
func (d *Director) HandleEvent(ev SensorEvent, source string) SensorEvent {
	if ev.SensorID == "" {
		ev.SensorID = "unknown"
	}
	if ev.Behavior == "" {
		ev.Behavior = "stop"
	}
	if ev.Timestamp == "" {
		ev.Timestamp = d.now().Format(time.RFC3339Nano)
	}

	if d.metrics != nil {
		d.metrics.IncBehaviorEvent(ev.Behavior, source)
	}

	if !d.repo.Loaded() {
		if d.metrics != nil {
			d.metrics.IncEventsDropped()
		}
		d.log.Warn("behavior event dropped, no mapping loaded",
			slog.String("sensor", ev.SensorID),
			slog.String("behavior", ev.Behavior))
		return ev
	}

	d.mu.Lock()
	scene := d.scene
	prev := d.action
	d.action = ev.Behavior
	d.mu.Unlock()

	var background *string
	info, err := d.resolve(scene, ev.Behavior)
	if err != nil {
		d.log.Warn("no background for action",
			slog.Int("scene", scene),
			slog.String("action", ev.Behavior),
			slog.String("error", err.Error()))
	} else {
		d.routeTransition(scene, prev, ev.Behavior, info)
		background = &info.Filename
	}

	d.broadcast("action_change", actionChangeEvent{
		Type:          "action_change",
		SceneID:       scene,
		Action:        ev.Behavior,
		NewBackground: background,
		SensorEvent:   ev,
	})

	d.log.Info("behavior event",
		slog.String("sensor", ev.SensorID),
		slog.String("behavior", ev.Behavior),
		slog.String("source", source))
	return ev
}

// ChangeScene switches to a scene and resets the action to "stop". The
// returned info is nil when the scene has no background for "stop".
func (d *Director) ChangeScene(id int) *BackgroundInfo {
	d.mu.Lock()
	d.scene = id
	d.action = "stop"
	d.mu.Unlock()

	var background *string
	info, err := d.resolve(id, "stop")
	if err != nil {
		d.log.Warn("no background for scene",
			slog.Int("scene", id),
			slog.String("error", err.Error()))
	} else {
		d.requestClip(info.Filename)
		background = &info.Filename
	}

	d.broadcast("scene_change", sceneChangeEvent{
		Type:          "scene_change",
		SceneID:       id,
		Action:        "stop",
		NewBackground: background,
	})

	d.log.Info("scene changed", slog.Int("scene", id))
	return info
}

// SimulateAction feeds a synthetic behavior event through the normal event
// path, attributed to the "simulator" sensor.
func (d *Director) SimulateAction(action string, metadata map[string]any) SensorEvent {
	ev := SensorEvent{
		Timestamp: d.now().Format(time.RFC3339Nano),
		SensorID:  "simulator",
		Behavior:  action,
		Metadata:  metadata,
	}
	return d.HandleEvent(ev, "simulator")
}

// Heartbeat records that a sensor is alive.
func (d *Director) Heartbeat(sensorID string) {
	if sensorID == "" {
		sensorID = "unknown"
	}
	d.hbMu.Lock()
	d.heartbeats[sensorID] = d.now()
	d.hbMu.Unlock()
	d.log.Debug("heartbeat", slog.String("sensor", sensorID))
}

// SensorCount returns the number of sensors inside the liveness window.
// Expired entries are pruned as a side effect.
func (d *Director) SensorCount() int {
	cutoff := d.now().Add(-heartbeatTTL)

	d.hbMu.Lock()
	defer d.hbMu.Unlock()
	n := 0
	for id, seen := range d.heartbeats {
		if seen.Before(cutoff) {
			delete(d.heartbeats, id)
			continue
		}
		n++
	}
	return n
}

// CurrentBackground resolves the clip for the current scene and action.
func (d *Director) CurrentBackground() (*BackgroundInfo, error) {
	d.mu.Lock()
	scene, action := d.scene, d.action
	d.mu.Unlock()
	return d.resolve(scene, action)
}

// Status reports the server state for /api/status.
func (d *Director) Status() Status {
	d.mu.Lock()
	scene, action := d.scene, d.action
	d.mu.Unlock()

	st := d.stage.Snapshot()
	return Status{
		Status:        "online",
		Scene:         scene,
		Action:        action,
		MappingLoaded: d.repo.Loaded(),
		Players:       d.hub.ClientCount(),
		Sensors:       d.SensorCount(),
		Stage: StageStatus{
			Current:        st.Current.Name(),
			ActiveLayer:    st.Active.String(),
			InFlight:       st.InFlight,
			Pending:        st.Pending.Name(),
			LastTransition: st.LastTransition,
		},
	}
}

func (d *Director) resolve(scene int, action string) (*BackgroundInfo, error) {
	clip, err := d.repo.Lookup(scene, action)
	if err != nil {
		return nil, err
	}
	name := path.Base(clip)
	return &BackgroundInfo{
		SceneID:  scene,
		Action:   action,
		Filename: name,
		URL:      backgroundsPrefix + name,
	}, nil
}

// routeTransition requests the stage transition for a new action. When the
// rule set forbids the direct pair, the intermediate action's clip is
// requested first; the target then queues behind it as the pending request.
// Under deferral or contention the newer target overwrites the
// intermediate, which is the stage's last-write-wins contract.
func (d *Director) routeTransition(scene int, from, to string, info *BackgroundInfo) {
	if from != to && !d.rules.Allowed(from, to) {
		if via, ok := d.rules.Via(from, to); ok {
			if step, err := d.resolve(scene, via); err == nil {
				d.log.Info("transition routed through intermediate",
					slog.String("from", from),
					slog.String("via", via),
					slog.String("to", to))
				d.requestClip(step.Filename)
			}
		}
	}
	d.requestClip(info.Filename)
}

// requestClip submits a stage request with the rule set's crossfade length
// and the configured minimum play time.
func (d *Director) requestClip(filename string) {
	fade := d.rules.Fade()
	if fade <= 0 {
		fade = d.timing.Fade
	}
	d.stage.Request(playback.Request{
		Clip:    playback.Clip(filename),
		MinPlay: d.timing.MinPlay,
		Fade:    fade,
	})
}

func (d *Director) broadcast(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		d.log.Error("event marshal failed",
			slog.String("event", event),
			slog.String("error", err.Error()))
		return
	}
	d.hub.Broadcast(event, data)
}
