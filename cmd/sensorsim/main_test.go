package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"vp-director/internal/director"
)

func TestSplitBehaviors(t *testing.T) {
	tests := []struct {
		name string
		list string
		want []string
	}{
		{
			name: "plain list",
			list: "stop,walk,run",
			want: []string{"stop", "walk", "run"},
		},
		{
			name: "spaces and empty items dropped",
			list: " walk , , run, ",
			want: []string{"walk", "run"},
		},
		{
			name: "empty string yields nothing",
			list: "",
			want: nil,
		},
		{
			name: "single behavior",
			list: "fall",
			want: []string{"fall"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitBehaviors(tt.list)
			if len(got) != len(tt.want) {
				t.Fatalf("splitBehaviors(%q) returned %d items, want %d", tt.list, len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("item[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBuildMetadata_movement(t *testing.T) {
	md := buildMetadata("walk", "stop", 12)

	if md["previous_state"] != "stop" {
		t.Errorf("previous_state = %v, want stop", md["previous_state"])
	}
	if md["step_count"] != 12 {
		t.Errorf("step_count = %v, want 12", md["step_count"])
	}
	level, ok := md["activity_level"].(float64)
	if !ok {
		t.Fatalf("activity_level missing or wrong type: %v", md["activity_level"])
	}
	if level < 0.7 || level > 1.2 {
		t.Errorf("walk activity_level = %v, want within [0.7, 1.2]", level)
	}

	if level := buildMetadata("stop", "walk", 12)["activity_level"].(float64); level >= 0.1 {
		t.Errorf("stop activity_level = %v, want below 0.1", level)
	}
	if level := buildMetadata("run", "walk", 12)["activity_level"].(float64); level < 1.5 {
		t.Errorf("run activity_level = %v, want at least 1.5", level)
	}
}

func TestBuildMetadata_fallSeverityMatchesAcceleration(t *testing.T) {
	for i := 0; i < 50; i++ {
		md := buildMetadata("fall", "walk", 0)
		accel := md["max_acceleration"].(float64)
		severity := md["severity"].(string)
		want := "moderate"
		if accel > 3.0 {
			want = "high"
		}
		if severity != want {
			t.Fatalf("severity = %q for max_acceleration %v, want %q", severity, accel, want)
		}
	}
}

func TestBuildMetadata_turnDirectionMatchesSign(t *testing.T) {
	for i := 0; i < 50; i++ {
		md := buildMetadata("turn", "stop", 0)
		rotation := md["rotation_degrees"].(float64)
		direction := md["direction"].(string)
		if rotation < 0 && direction != "left" {
			t.Fatalf("rotation %v labeled %q, want left", rotation, direction)
		}
		if rotation >= 0 && direction != "right" {
			t.Fatalf("rotation %v labeled %q, want right", rotation, direction)
		}
	}
}

func TestBuildMetadata_shoutIntensityMatchesVolume(t *testing.T) {
	for i := 0; i < 50; i++ {
		md := buildMetadata("shout", "stop", 0)
		volume := md["volume_db"].(float64)
		intensity := md["intensity"].(string)
		want := "moderate"
		if volume > 80 {
			want = "loud"
		}
		if intensity != want {
			t.Fatalf("intensity = %q for volume %v, want %q", intensity, volume, want)
		}
	}
}

func TestBuildMetadata_brightnessAndPosture(t *testing.T) {
	if md := buildMetadata("dark", "bright", 0); md["brightness_level"] != 20.0 {
		t.Errorf("dark brightness_level = %v, want 20", md["brightness_level"])
	}
	if md := buildMetadata("bright", "dark", 0); md["brightness_level"] != 240.0 {
		t.Errorf("bright brightness_level = %v, want 240", md["brightness_level"])
	}

	md := buildMetadata("sitting", "standing", 0)
	if md["previous_posture"] != "standing" {
		t.Errorf("previous_posture = %v, want standing", md["previous_posture"])
	}
	if md["sensor_type"] != "azure_kinect" {
		t.Errorf("sensor_type = %v, want azure_kinect", md["sensor_type"])
	}

	if md := buildMetadata("mystery", "stop", 0); len(md) != 0 {
		t.Errorf("unknown behavior metadata = %v, want empty", md)
	}
}

func TestHTTPEmitter_deliversAndCounts(t *testing.T) {
	var gotPaths []string
	var gotEvent director.SensorEvent
	var gotBeat director.HeartbeatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPaths = append(gotPaths, r.URL.Path)
		switch r.URL.Path {
		case "/api/behavior":
			if err := json.NewDecoder(r.Body).Decode(&gotEvent); err != nil {
				t.Errorf("behavior body: %v", err)
			}
		case "/api/heartbeat":
			if err := json.NewDecoder(r.Body).Decode(&gotBeat); err != nil {
				t.Errorf("heartbeat body: %v", err)
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	em := newHTTPEmitter(srv.URL + "/")

	ev := director.SensorEvent{
		Timestamp: "2026-08-25T10:00:00Z",
		SensorID:  "sim_wearable_001",
		Behavior:  "walk",
		Metadata:  map[string]any{"previous_state": "stop"},
	}
	if err := em.Behavior(ev); err != nil {
		t.Fatalf("Behavior: %v", err)
	}
	if err := em.Heartbeat("sim_wearable_001"); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	if len(gotPaths) != 2 || gotPaths[0] != "/api/behavior" || gotPaths[1] != "/api/heartbeat" {
		t.Errorf("paths = %v, want [/api/behavior /api/heartbeat]", gotPaths)
	}
	if gotEvent.Behavior != "walk" || gotEvent.SensorID != "sim_wearable_001" {
		t.Errorf("decoded event = %+v", gotEvent)
	}
	if gotBeat.SensorID != "sim_wearable_001" {
		t.Errorf("decoded heartbeat = %+v", gotBeat)
	}

	st := em.Stats()
	if !st.Connected || st.Sent != 2 || st.Failed != 0 {
		t.Errorf("stats = %+v, want connected with 2 sent", st)
	}
}

func TestHTTPEmitter_serverErrorCountsAsFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	em := newHTTPEmitter(srv.URL)
	if err := em.Behavior(director.SensorEvent{Behavior: "walk"}); err == nil {
		t.Fatal("expected an error for a 500 response")
	}

	st := em.Stats()
	if st.Sent != 0 || st.Failed != 1 {
		t.Errorf("stats = %+v, want 1 failed", st)
	}
}
