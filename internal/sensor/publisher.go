package sensor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"vp-director/internal/director"
)

// Publisher is the sensor side of the broker link, used by the simulator
// and available to hardware clients. It keeps simple delivery stats.
type Publisher struct {
	cfg Config
	log *slog.Logger

	client mqtt.Client

	mu         sync.Mutex
	connected  bool
	everUp     bool
	sent       uint64
	failed     uint64
	reconnects uint64
}

// Stats is a snapshot of publisher delivery counters.
type Stats struct {
	Connected  bool
	Sent       uint64
	Failed     uint64
	Reconnects uint64
}

func NewPublisher(cfg Config, log *slog.Logger) *Publisher {
	return &Publisher{cfg: cfg, log: log}
}

// Connect dials the broker with auto-reconnect enabled.
func (p *Publisher) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", p.cfg.Broker))
	opts.SetClientID(p.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		p.mu.Lock()
		p.connected = true
		if p.everUp {
			p.reconnects++
		}
		p.everUp = true
		p.mu.Unlock()
		p.log.Info("mqtt connected", slog.String("broker", p.cfg.Broker))
	}

	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		p.mu.Lock()
		p.connected = false
		p.mu.Unlock()
		p.log.Warn("mqtt connection lost, waiting for reconnect",
			slog.String("error", err.Error()))
	}

	p.client = mqtt.NewClient(opts)

	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// PublishBehavior sends one behavior event at QoS 1.
func (p *Publisher) PublishBehavior(ev director.SensorEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.fail()
		return fmt.Errorf("encode behavior event: %w", err)
	}
	return p.publish(p.cfg.BehaviorTopic, behaviorQoS, payload)
}

// PublishHeartbeat sends one heartbeat at QoS 0.
func (p *Publisher) PublishHeartbeat(sensorID string) error {
	payload, err := json.Marshal(director.HeartbeatRequest{SensorID: sensorID})
	if err != nil {
		p.fail()
		return fmt.Errorf("encode heartbeat: %w", err)
	}
	return p.publish(p.cfg.HeartbeatTopic, heartbeatQoS, payload)
}

func (p *Publisher) publish(topic string, qos byte, payload []byte) error {
	token := p.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.fail()
		return fmt.Errorf("publish timeout on %s", topic)
	}
	if err := token.Error(); err != nil {
		p.fail()
		return fmt.Errorf("publish on %s: %w", topic, err)
	}

	p.mu.Lock()
	p.sent++
	p.mu.Unlock()
	return nil
}

func (p *Publisher) fail() {
	p.mu.Lock()
	p.failed++
	p.mu.Unlock()
}

// Stats returns a snapshot of delivery counters.
func (p *Publisher) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Connected:  p.connected,
		Sent:       p.sent,
		Failed:     p.failed,
		Reconnects: p.reconnects,
	}
}

// Disconnect closes the broker link with a short grace period.
func (p *Publisher) Disconnect() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
}
