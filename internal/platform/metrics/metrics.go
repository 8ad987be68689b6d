package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the virtual production
// server: the sensor event pipeline, the stage transition lifecycle, and the
// attached transports.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal       prometheus.Counter
	errorsTotal         prometheus.Counter
	behaviorEventsTotal *prometheus.CounterVec
	eventsDroppedTotal  prometheus.Counter

	transitionsStartedTotal   prometheus.Counter
	transitionsCompletedTotal prometheus.Counter
	transitionsFailedTotal    prometheus.Counter
	transitionsDeferredTotal  prometheus.Counter
	pendingReplacedTotal      prometheus.Counter
	loopsTotal                prometheus.Counter

	mqttMessagesTotal prometheus.Counter
	sseClients        prometheus.Gauge
	connectedSensors  prometheus.Gauge
}

// New creates and registers Prometheus metrics for the server.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vp_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vp_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	behaviorEventsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vp_behavior_events_total",
		Help: "Behavior events processed, by behavior and ingest source",
	}, []string{"behavior", "source"})
	eventsDroppedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vp_events_dropped_total",
		Help: "Behavior events dropped because no mapping was loaded",
	})

	transitionsStartedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vp_transitions_started_total",
		Help: "Background transitions started",
	})
	transitionsCompletedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vp_transitions_completed_total",
		Help: "Background transitions completed",
	})
	transitionsFailedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vp_transitions_failed_total",
		Help: "Background transitions abandoned after a load failure",
	})
	transitionsDeferredTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vp_transitions_deferred_total",
		Help: "Transitions deferred by the minimum play window",
	})
	pendingReplacedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vp_pending_replaced_total",
		Help: "Pending transition requests overwritten by a newer request",
	})
	loopsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vp_loops_total",
		Help: "Loop crossfades after a clip played to its natural end",
	})

	mqttMessagesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vp_mqtt_messages_total",
		Help: "MQTT messages received on the sensor topics",
	})
	sseClients := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vp_sse_clients",
		Help: "Connected player event-stream clients",
	})
	connectedSensors := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vp_connected_sensors",
		Help: "Sensors with a recent heartbeat",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		behaviorEventsTotal,
		eventsDroppedTotal,
		transitionsStartedTotal,
		transitionsCompletedTotal,
		transitionsFailedTotal,
		transitionsDeferredTotal,
		pendingReplacedTotal,
		loopsTotal,
		mqttMessagesTotal,
		sseClients,
		connectedSensors,
	)

	return &Metrics{
		registry:                  registry,
		requestsTotal:             requestsTotal,
		errorsTotal:               errorsTotal,
		behaviorEventsTotal:       behaviorEventsTotal,
		eventsDroppedTotal:        eventsDroppedTotal,
		transitionsStartedTotal:   transitionsStartedTotal,
		transitionsCompletedTotal: transitionsCompletedTotal,
		transitionsFailedTotal:    transitionsFailedTotal,
		transitionsDeferredTotal:  transitionsDeferredTotal,
		pendingReplacedTotal:      pendingReplacedTotal,
		loopsTotal:                loopsTotal,
		mqttMessagesTotal:         mqttMessagesTotal,
		sseClients:                sseClients,
		connectedSensors:          connectedSensors,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncBehaviorEvent counts one processed behavior event.
func (m *Metrics) IncBehaviorEvent(behavior, source string) {
	m.behaviorEventsTotal.WithLabelValues(behavior, source).Inc()
}

// IncEventsDropped counts a behavior event dropped for lack of a mapping.
func (m *Metrics) IncEventsDropped() {
	m.eventsDroppedTotal.Inc()
}

// IncTransitionsStarted increments the started transition counter.
func (m *Metrics) IncTransitionsStarted() {
	m.transitionsStartedTotal.Inc()
}

// IncTransitionsCompleted increments the completed transition counter.
func (m *Metrics) IncTransitionsCompleted() {
	m.transitionsCompletedTotal.Inc()
}

// IncTransitionsFailed increments the failed transition counter.
func (m *Metrics) IncTransitionsFailed() {
	m.transitionsFailedTotal.Inc()
}

// IncTransitionsDeferred increments the deferred transition counter.
func (m *Metrics) IncTransitionsDeferred() {
	m.transitionsDeferredTotal.Inc()
}

// IncPendingReplaced counts a pending request overwritten by a newer one.
func (m *Metrics) IncPendingReplaced() {
	m.pendingReplacedTotal.Inc()
}

// IncLoops increments the loop crossfade counter.
func (m *Metrics) IncLoops() {
	m.loopsTotal.Inc()
}

// IncMQTTMessages counts one received MQTT message.
func (m *Metrics) IncMQTTMessages() {
	m.mqttMessagesTotal.Inc()
}

// SetSSEClients sets the connected event-stream client gauge.
func (m *Metrics) SetSSEClients(n int) {
	m.sseClients.Set(float64(n))
}

// SetConnectedSensors sets the live sensor gauge.
func (m *Metrics) SetConnectedSensors(n int) {
	m.connectedSensors.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g.
// connected clients).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
