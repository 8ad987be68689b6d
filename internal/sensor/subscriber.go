// Package sensor carries behavior events between wearable sensors and the
// director over MQTT.
package sensor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"vp-director/internal/director"
	"vp-director/internal/platform/metrics"
)

const (
	behaviorQoS  byte = 1
	heartbeatQoS byte = 0

	connectTimeout   = 5 * time.Second
	subscribeTimeout = 5 * time.Second
	publishTimeout   = 2 * time.Second
)

// Config addresses the broker and the two sensor topics.
type Config struct {
	Broker         string
	ClientID       string
	BehaviorTopic  string
	HeartbeatTopic string
}

// Sink consumes decoded sensor traffic. *director.Director satisfies it.
type Sink interface {
	HandleEvent(ev director.SensorEvent, source string) director.SensorEvent
	Heartbeat(sensorID string)
}

// Subscriber bridges the broker's sensor topics to the sink. Behavior
// events ride QoS 1, heartbeats QoS 0.
type Subscriber struct {
	cfg     Config
	sink    Sink
	metrics *metrics.Metrics
	log     *slog.Logger
	client  mqtt.Client

	mu        sync.RWMutex
	connected bool
	received  uint64
}

// NewSubscriber returns a Subscriber. metrics may be nil.
func NewSubscriber(cfg Config, sink Sink, m *metrics.Metrics, log *slog.Logger) *Subscriber {
	return &Subscriber{cfg: cfg, sink: sink, metrics: m, log: log}
}

// Connect dials the broker and subscribes to the sensor topics. The client
// auto-reconnects and re-subscribes after a broker outage.
func (s *Subscriber) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", s.cfg.Broker))
	opts.SetClientID(s.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		s.mu.Lock()
		s.connected = true
		s.mu.Unlock()
		s.log.Info("mqtt connected",
			slog.String("broker", s.cfg.Broker),
			slog.String("client_id", s.cfg.ClientID))
		s.subscribe(c)
	}

	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		s.mu.Lock()
		s.connected = false
		s.mu.Unlock()
		s.log.Warn("mqtt connection lost, waiting for reconnect",
			slog.String("broker", s.cfg.Broker),
			slog.String("error", err.Error()))
	}

	s.client = mqtt.NewClient(opts)

	token := s.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// subscribe runs on every (re)connect so subscriptions survive a broker
// restart with a clean session.
func (s *Subscriber) subscribe(c mqtt.Client) {
	subs := []struct {
		topic   string
		qos     byte
		handler mqtt.MessageHandler
	}{
		{s.cfg.BehaviorTopic, behaviorQoS, s.onBehavior},
		{s.cfg.HeartbeatTopic, heartbeatQoS, s.onHeartbeat},
	}
	for _, sub := range subs {
		token := c.Subscribe(sub.topic, sub.qos, sub.handler)
		if !token.WaitTimeout(subscribeTimeout) {
			s.log.Error("mqtt subscribe timeout", slog.String("topic", sub.topic))
			continue
		}
		if err := token.Error(); err != nil {
			s.log.Error("mqtt subscribe failed",
				slog.String("topic", sub.topic),
				slog.String("error", err.Error()))
			continue
		}
		s.log.Info("mqtt subscribed",
			slog.String("topic", sub.topic),
			slog.Int("qos", int(sub.qos)))
	}
}

func (s *Subscriber) onBehavior(_ mqtt.Client, msg mqtt.Message) {
	s.count()

	var ev director.SensorEvent
	if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
		s.log.Error("invalid behavior payload",
			slog.String("topic", msg.Topic()),
			slog.String("error", err.Error()))
		return
	}
	s.sink.HandleEvent(ev, "mqtt")
}

func (s *Subscriber) onHeartbeat(_ mqtt.Client, msg mqtt.Message) {
	s.count()

	var hb director.HeartbeatRequest
	if err := json.Unmarshal(msg.Payload(), &hb); err != nil {
		s.log.Error("invalid heartbeat payload",
			slog.String("topic", msg.Topic()),
			slog.String("error", err.Error()))
		return
	}
	s.sink.Heartbeat(hb.SensorID)
}

func (s *Subscriber) count() {
	if s.metrics != nil {
		s.metrics.IncMQTTMessages()
	}
	s.mu.Lock()
	s.received++
	s.mu.Unlock()
}

// Connected reports the broker link state.
func (s *Subscriber) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Received returns the number of messages seen across both topics.
func (s *Subscriber) Received() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.received
}

// Disconnect closes the broker link with a short grace period.
func (s *Subscriber) Disconnect() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
		s.log.Info("mqtt disconnected")
	}
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
}
