package director

import (
	"encoding/json"
	"log/slog"

	"vp-director/internal/playback"
)

type layerCommandEvent struct {
	Type    string `json:"type"`
	Layer   string `json:"layer"`
	Command string `json:"command"`
	Clip    string `json:"clip,omitempty"`
}

// EventRenderer mirrors layer commands onto the player broadcast. The web
// player holds the real video elements; the server-side layers are timing
// models, so rendering means telling every connected player what to do
// with which element.
type EventRenderer struct {
	hub Broadcaster
	log *slog.Logger
}

func NewEventRenderer(hub Broadcaster, log *slog.Logger) *EventRenderer {
	return &EventRenderer{hub: hub, log: log}
}

func (r *EventRenderer) LayerLoad(id playback.LayerID, clip playback.Clip) {
	r.emit(id, "load", clip.Name())
}

func (r *EventRenderer) LayerReset(id playback.LayerID) {
	r.emit(id, "reset", "")
}

func (r *EventRenderer) LayerPlay(id playback.LayerID) {
	r.emit(id, "play", "")
}

func (r *EventRenderer) LayerPause(id playback.LayerID) {
	r.emit(id, "pause", "")
}

func (r *EventRenderer) emit(id playback.LayerID, command, clip string) {
	data, err := json.Marshal(layerCommandEvent{
		Type:    "layer_command",
		Layer:   id.String(),
		Command: command,
		Clip:    clip,
	})
	if err != nil {
		r.log.Error("layer command marshal failed",
			slog.String("command", command),
			slog.String("error", err.Error()))
		return
	}
	r.hub.Broadcast("layer_command", data)
}
