package director

import (
	"encoding/json"
	"log/slog"
	"time"

	"vp-director/internal/platform/metrics"
	"vp-director/internal/playback"
)

// Event payloads broadcast to players. Every payload carries a type field
// matching the SSE event name so clients listening on a single stream can
// dispatch without inspecting the frame header.

// new_background is the bare clip filename, null when the lookup missed.
// Players build the fetch URL from the backgrounds route themselves.

type actionChangeEvent struct {
	Type          string      `json:"type"`
	SceneID       int         `json:"scene_id"`
	Action        string      `json:"action"`
	NewBackground *string     `json:"new_background"`
	SensorEvent   SensorEvent `json:"sensor_event"`
}

type sceneChangeEvent struct {
	Type          string  `json:"type"`
	SceneID       int     `json:"scene_id"`
	Action        string  `json:"action"`
	NewBackground *string `json:"new_background"`
}

type transitionEvent struct {
	Type  string `json:"type"`
	Clip  string `json:"clip"`
	Layer string `json:"layer,omitempty"`
	Error string `json:"error,omitempty"`
}

type layerSwapEvent struct {
	Type   string `json:"type"`
	From   string `json:"from_layer"`
	To     string `json:"to_layer"`
	Clip   string `json:"clip"`
	FadeMS int64  `json:"fade_ms"`
}

// StageHooks builds the scheduler hook set that mirrors stage lifecycle
// events onto the player broadcast and the metrics registry. m may be nil.
func StageHooks(hub Broadcaster, m *metrics.Metrics, log *slog.Logger) playback.Hooks {
	emit := func(event string, payload any) {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Error("event marshal failed",
				slog.String("event", event),
				slog.String("error", err.Error()))
			return
		}
		hub.Broadcast(event, data)
	}

	return playback.Hooks{
		TransitionStarted: func(clip playback.Clip, layer playback.LayerID) {
			if m != nil {
				m.IncTransitionsStarted()
			}
			emit("transition_started", transitionEvent{
				Type:  "transition_started",
				Clip:  clip.Name(),
				Layer: layer.String(),
			})
		},
		TransitionDeferred: func(clip playback.Clip, wait time.Duration) {
			if m != nil {
				m.IncTransitionsDeferred()
			}
			log.Debug("transition deferred",
				slog.String("clip", clip.Name()),
				slog.Duration("wait", wait))
		},
		TransitionSwapped: func(from, to playback.LayerID, clip playback.Clip, fade time.Duration) {
			emit("layer_swap", layerSwapEvent{
				Type:   "layer_swap",
				From:   from.String(),
				To:     to.String(),
				Clip:   clip.Name(),
				FadeMS: fade.Milliseconds(),
			})
		},
		TransitionCompleted: func(clip playback.Clip, layer playback.LayerID) {
			if m != nil {
				m.IncTransitionsCompleted()
			}
			emit("transition_completed", transitionEvent{
				Type:  "transition_completed",
				Clip:  clip.Name(),
				Layer: layer.String(),
			})
		},
		TransitionFailed: func(clip playback.Clip, err error) {
			if m != nil {
				m.IncTransitionsFailed()
			}
			emit("transition_failed", transitionEvent{
				Type:  "transition_failed",
				Clip:  clip.Name(),
				Error: err.Error(),
			})
		},
		PendingReplaced: func(prev, next playback.Clip) {
			if m != nil {
				m.IncPendingReplaced()
			}
			log.Debug("pending transition replaced",
				slog.String("previous", prev.Name()),
				slog.String("next", next.Name()))
		},
		Looped: func(clip playback.Clip) {
			if m != nil {
				m.IncLoops()
			}
			emit("background_looped", transitionEvent{
				Type: "background_looped",
				Clip: clip.Name(),
			})
		},
	}
}
