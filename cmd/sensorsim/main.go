// The sensorsim command emulates a wearable sensor, cycling through a list
// of behaviors and delivering the events to a vp-director server over HTTP
// or MQTT.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"vp-director/internal/classify"
	"vp-director/internal/director"
	"vp-director/internal/platform/logger"
	"vp-director/internal/sensor"
)

const (
	version = "1.0.0"

	behaviorTopic  = "vp/sensors/behavior"
	heartbeatTopic = "vp/sensors/heartbeat"
)

func main() {
	var (
		server      = flag.String("server", "http://localhost:8001", "vp-director base URL for HTTP delivery")
		broker      = flag.String("broker", "", "MQTT broker host:port; when set, events go over MQTT instead of HTTP")
		sensorID    = flag.String("sensor-id", "sim_wearable_001", "Sensor id stamped on every event")
		behaviors   = flag.String("behaviors", "stop,walk,run,walk,fall", "Comma-separated behavior cycle")
		interval    = flag.Duration("interval", 5*time.Second, "Delay between behavior events")
		count       = flag.Int("count", 0, "Number of events to send before exiting; 0 runs until interrupted")
		heartbeat   = flag.Duration("heartbeat", 30*time.Second, "Heartbeat period; 0 disables heartbeats")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "SensorSim - wearable behavior simulator v%s\n\n", version)
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --server http://localhost:8001 --interval 3s\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --broker localhost:1883 --behaviors walk,run,shout\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --count 10 --behaviors fall --interval 1s\n", os.Args[0])
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("SensorSim v%s\n", version)
		os.Exit(0)
	}

	cycle := splitBehaviors(*behaviors)
	if len(cycle) == 0 {
		fmt.Fprintf(os.Stderr, "Error: at least one behavior is required\n")
		os.Exit(1)
	}

	if *interval <= 0 {
		fmt.Fprintf(os.Stderr, "Error: interval must be positive\n")
		os.Exit(1)
	}

	logLevel := "info"
	if *verbose {
		logLevel = "debug"
	}

	log := logger.New(logLevel, "text")

	log.Info("SensorSim starting", "version", version, "sensor_id", *sensorID)

	known := make(map[string]bool, len(director.AvailableActions))
	for _, a := range director.AvailableActions {
		known[a] = true
	}
	for _, b := range cycle {
		if !known[b] {
			log.Warn("behavior not in the standard action list, server will map it to the scene default", "behavior", b)
		}
	}

	if err := run(*server, *broker, *sensorID, cycle, *interval, *heartbeat, *count, log); err != nil {
		log.Error("application error", "error", err)
		os.Exit(1)
	}

	log.Info("SensorSim stopped")
}

func run(server, broker, sensorID string, cycle []string, interval, heartbeat time.Duration, count int, log *slog.Logger) error {
	var em emitter
	if broker != "" {
		pub := sensor.NewPublisher(sensor.Config{
			Broker:         broker,
			ClientID:       sensorID,
			BehaviorTopic:  behaviorTopic,
			HeartbeatTopic: heartbeatTopic,
		}, log)
		if err := pub.Connect(); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
		em = mqttEmitter{pub}
		log.Info("delivering over MQTT", "broker", broker, "topic", behaviorTopic)
	} else {
		em = newHTTPEmitter(server)
		log.Info("delivering over HTTP", "server", server)
	}
	defer em.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var hbCh <-chan time.Time
	if heartbeat > 0 {
		hb := time.NewTicker(heartbeat)
		defer hb.Stop()
		hbCh = hb.C

		// Announce up front so the server counts this sensor before the
		// first behavior lands.
		if err := em.Heartbeat(sensorID); err != nil {
			log.Warn("heartbeat failed", "error", err)
		}
	}

	previous := "stop"
	steps := 0
	next := 0
	sent := 0
	for {
		select {
		case sig := <-sigCh:
			log.Info("received signal", "signal", sig.String())
			report(em, log)
			return nil

		case <-hbCh:
			if err := em.Heartbeat(sensorID); err != nil {
				log.Warn("heartbeat failed", "error", err)
			} else {
				log.Debug("heartbeat sent")
			}

		case <-ticker.C:
			behavior := cycle[next%len(cycle)]
			next++
			switch behavior {
			case "walk":
				steps += 8 + rand.IntN(5)
			case "run":
				steps += 14 + rand.IntN(8)
			}

			ev := director.SensorEvent{
				Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
				SensorID:  sensorID,
				Behavior:  behavior,
				Metadata:  buildMetadata(behavior, previous, steps),
			}
			if err := em.Behavior(ev); err != nil {
				log.Warn("event delivery failed", "behavior", behavior, "error", err)
			} else {
				log.Info("event sent", "behavior", behavior, "previous", previous)
			}
			previous = behavior

			sent++
			if count > 0 && sent >= count {
				report(em, log)
				return nil
			}
		}
	}
}

func report(em emitter, log *slog.Logger) {
	st := em.Stats()
	log.Info("delivery stats",
		"sent", st.Sent,
		"failed", st.Failed,
		"reconnects", st.Reconnects,
	)
}

func splitBehaviors(list string) []string {
	var out []string
	for _, b := range strings.Split(list, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			out = append(out, b)
		}
	}
	return out
}

// buildMetadata fabricates the metadata the matching wearable detector
// reports for each behavior, so downstream consumers see realistic events.
func buildMetadata(behavior, previous string, steps int) map[string]any {
	switch behavior {
	case "stop", "walk", "run":
		return map[string]any{
			"previous_state": previous,
			"activity_level": activityFor(behavior),
			"step_count":     steps,
		}
	case "fall":
		maxAccel := 2.5 + rand.Float64()*1.5
		severity := "moderate"
		if maxAccel > 3.0 {
			severity = "high"
		}
		return map[string]any{
			"max_acceleration":   maxAccel,
			"orientation_change": 60 + rand.Float64()*30,
			"severity":           severity,
		}
	case "turn":
		rotation := 170 + rand.Float64()*20
		if rand.IntN(2) == 0 {
			rotation = -rotation
		}
		return map[string]any{
			"rotation_degrees": rotation,
			"duration_seconds": 1.2 + rand.Float64()*0.6,
			"direction":        classify.TurnDirection(rotation),
		}
	case "shout":
		volume := 72 + rand.Float64()*20
		return map[string]any{
			"volume_db":        volume,
			"duration_seconds": 0.6 + rand.Float64()*0.5,
			"intensity":        classify.ShoutIntensity(volume),
		}
	case "dark", "bright":
		level := 20.0
		if behavior == "bright" {
			level = 240.0
		}
		return map[string]any{
			"previous_state":   previous,
			"brightness_level": level,
		}
	case "standing", "sitting", "lying", "left_arm_up", "right_arm_up":
		return map[string]any{
			"previous_posture": previous,
			"sensor_type":      "azure_kinect",
		}
	}
	return map[string]any{}
}

func activityFor(behavior string) float64 {
	switch behavior {
	case "walk":
		return 0.7 + rand.Float64()*0.5
	case "run":
		return 1.8 + rand.Float64()*0.8
	}
	return rand.Float64() * 0.08
}

// emitter delivers simulated sensor traffic to the server.
type emitter interface {
	Behavior(ev director.SensorEvent) error
	Heartbeat(sensorID string) error
	Stats() sensor.Stats
	Close()
}

type mqttEmitter struct {
	*sensor.Publisher
}

func (e mqttEmitter) Behavior(ev director.SensorEvent) error {
	return e.PublishBehavior(ev)
}

func (e mqttEmitter) Heartbeat(sensorID string) error {
	return e.PublishHeartbeat(sensorID)
}

func (e mqttEmitter) Close() {
	e.Disconnect()
}

type httpEmitter struct {
	base   string
	client *http.Client

	mu     sync.Mutex
	sent   uint64
	failed uint64
	up     bool
}

func newHTTPEmitter(base string) *httpEmitter {
	return &httpEmitter{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (e *httpEmitter) Behavior(ev director.SensorEvent) error {
	return e.post("/api/behavior", ev)
}

func (e *httpEmitter) Heartbeat(sensorID string) error {
	return e.post("/api/heartbeat", director.HeartbeatRequest{SensorID: sensorID})
}

func (e *httpEmitter) post(path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		e.record(false)
		return err
	}
	resp, err := e.client.Post(e.base+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		e.record(false)
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		e.record(false)
		return fmt.Errorf("server returned %s", resp.Status)
	}
	e.record(true)
	return nil
}

func (e *httpEmitter) record(ok bool) {
	e.mu.Lock()
	if ok {
		e.sent++
		e.up = true
	} else {
		e.failed++
	}
	e.mu.Unlock()
}

func (e *httpEmitter) Stats() sensor.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return sensor.Stats{Connected: e.up, Sent: e.sent, Failed: e.failed}
}

func (e *httpEmitter) Close() {}
