package director

import "time"

// SensorEvent is one behavior event reported by a sensor client, over HTTP
// or MQTT. Timestamp is carried as an opaque string (sensors send RFC 3339)
// and echoed back to players unparsed. Metadata carries detector-specific
// context (previous state, rotation degrees, volume, severity).
type SensorEvent struct {
	Timestamp string         `json:"timestamp"`
	SensorID  string         `json:"sensor_id"`
	Behavior  string         `json:"behavior"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// BackgroundInfo describes the clip a scene and action resolve to, with the
// URL a player fetches it from.
type BackgroundInfo struct {
	SceneID  int    `json:"scene_id"`
	Action   string `json:"action"`
	Filename string `json:"video_filename"`
	URL      string `json:"video_url"`
}

// StageStatus is the stage portion of the status report.
type StageStatus struct {
	Current        string    `json:"current_background"`
	ActiveLayer    string    `json:"active_layer"`
	InFlight       bool      `json:"transition_in_flight"`
	Pending        string    `json:"pending_background,omitempty"`
	LastTransition time.Time `json:"last_transition"`
}

// Status is the server status report.
type Status struct {
	Status        string      `json:"status"`
	Scene         int         `json:"current_scene"`
	Action        string      `json:"current_action"`
	MappingLoaded bool        `json:"mapping_loaded"`
	Players       int         `json:"connected_players"`
	Sensors       int         `json:"connected_sensors"`
	Stage         StageStatus `json:"stage"`
}

// ChangeSceneRequest is the body of POST /vp/change-scene.
type ChangeSceneRequest struct {
	SceneID int `json:"scene_id"`
}

// SimulateActionRequest is the body of POST /vp/simulate-action.
type SimulateActionRequest struct {
	Action   string         `json:"action"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// UpdateMappingRequest is the body of PUT /vp/mapping.
type UpdateMappingRequest struct {
	SceneID       int    `json:"scene_id"`
	Action        string `json:"action"`
	VideoFilename string `json:"video_filename"`
}

// HeartbeatRequest is the body of POST /api/heartbeat.
type HeartbeatRequest struct {
	SensorID string `json:"sensor_id"`
}

// PreviewEntry is one clip in the preview listing.
type PreviewEntry struct {
	SceneID  int    `json:"scene_id"`
	Action   string `json:"action"`
	Filename string `json:"video_filename"`
	URL      string `json:"video_url"`
}

// AvailableActions lists every behavior the sensor pipeline can report.
var AvailableActions = []string{
	"stop", "walk", "run", "fall", "turn", "shout",
	"dark", "bright",
	"standing", "sitting", "lying", "left_arm_up", "right_arm_up",
}
