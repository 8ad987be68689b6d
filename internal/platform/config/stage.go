package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"vp-director/internal/mapping"
	"vp-director/internal/playback"
)

// StageConfig is the stage.yaml document: playback timing, the clip
// library, the mapping file, transition rules, and the broker link.
type StageConfig struct {
	Playback    PlaybackTiming `yaml:"playback"`
	Backgrounds Backgrounds    `yaml:"backgrounds"`
	MappingPath string         `yaml:"mapping_path"`
	Rules       mapping.Rules  `yaml:"transition_rules"`
	MQTT        MQTTConfig     `yaml:"mqtt"`
}

// PlaybackTiming sets the stage scheduler knobs in human units.
type PlaybackTiming struct {
	MinPlayS float64 `yaml:"min_play_s"`
	FadeS    float64 `yaml:"fade_s"`
	SettleMS int     `yaml:"settle_ms"`
}

// Config converts the timing knobs to scheduler durations.
func (t PlaybackTiming) Config() playback.Config {
	return playback.Config{
		MinPlay: time.Duration(t.MinPlayS * float64(time.Second)),
		Fade:    time.Duration(t.FadeS * float64(time.Second)),
		Settle:  time.Duration(t.SettleMS) * time.Millisecond,
	}
}

// Backgrounds locates the clip directory and supplies clip run lengths,
// since the server never probes media files itself.
type Backgrounds struct {
	Dir            string             `yaml:"dir"`
	DefaultClipS   float64            `yaml:"default_clip_s"`
	ClipDurationsS map[string]float64 `yaml:"clip_durations_s"`
}

// DefaultDuration returns the fallback clip run length.
func (b Backgrounds) DefaultDuration() time.Duration {
	return time.Duration(b.DefaultClipS * float64(time.Second))
}

// Durations returns the per-clip run length overrides.
func (b Backgrounds) Durations() map[string]time.Duration {
	if len(b.ClipDurationsS) == 0 {
		return nil
	}
	out := make(map[string]time.Duration, len(b.ClipDurationsS))
	for name, s := range b.ClipDurationsS {
		out[name] = time.Duration(s * float64(time.Second))
	}
	return out
}

// MQTTConfig addresses the sensor broker. An empty broker disables the
// MQTT ingest entirely.
type MQTTConfig struct {
	Broker         string `yaml:"broker"`
	ClientID       string `yaml:"client_id"`
	BehaviorTopic  string `yaml:"behavior_topic"`
	HeartbeatTopic string `yaml:"heartbeat_topic"`
}

// DefaultStage returns the configuration used when no stage.yaml exists.
func DefaultStage() *StageConfig {
	cfg := &StageConfig{}
	if err := validateStage(cfg); err != nil {
		panic(err)
	}
	return cfg
}

// LoadStage reads and parses a stage.yaml file, applying defaults for
// omitted fields.
func LoadStage(path string) (*StageConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stage config: %w", err)
	}

	var cfg StageConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse stage config %s: %w", path, err)
	}
	if err := validateStage(&cfg); err != nil {
		return nil, fmt.Errorf("invalid stage config %s: %w", path, err)
	}
	return &cfg, nil
}

func validateStage(cfg *StageConfig) error {
	if cfg.Playback.MinPlayS < 0 {
		return fmt.Errorf("playback.min_play_s must be >= 0")
	}
	if cfg.Playback.FadeS < 0 {
		return fmt.Errorf("playback.fade_s must be >= 0")
	}
	if cfg.Playback.SettleMS < 0 {
		return fmt.Errorf("playback.settle_ms must be >= 0")
	}
	if cfg.Backgrounds.DefaultClipS < 0 {
		return fmt.Errorf("backgrounds.default_clip_s must be >= 0")
	}

	if cfg.Playback.MinPlayS == 0 {
		cfg.Playback.MinPlayS = 3
	}
	if cfg.Playback.FadeS == 0 {
		cfg.Playback.FadeS = 1
	}
	if cfg.Playback.SettleMS == 0 {
		cfg.Playback.SettleMS = 100
	}

	if cfg.Backgrounds.Dir == "" {
		cfg.Backgrounds.Dir = "backgrounds"
	}
	if cfg.Backgrounds.DefaultClipS == 0 {
		cfg.Backgrounds.DefaultClipS = 8
	}

	if cfg.MappingPath == "" {
		cfg.MappingPath = "mappings/action_mapping.json"
	}

	// An entirely absent rules block gets the stock rule set; a present one
	// is taken as written, including an empty forbidden list.
	if len(cfg.Rules.Direct) == 0 && len(cfg.Rules.Forbidden) == 0 && cfg.Rules.FadeSeconds == 0 {
		cfg.Rules = mapping.DefaultRules()
	}

	// Client id and topics are always defaulted so a broker supplied later
	// through the environment works unchanged. An empty broker means the
	// MQTT ingest stays off.
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "vp-director"
	}
	if cfg.MQTT.BehaviorTopic == "" {
		cfg.MQTT.BehaviorTopic = "vp/sensors/behavior"
	}
	if cfg.MQTT.HeartbeatTopic == "" {
		cfg.MQTT.HeartbeatTopic = "vp/sensors/heartbeat"
	}
	return nil
}
