// Package monitoring exposes Prometheus metrics for the gateway.
package monitoring

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the gateway's Prometheus collectors.
type Metrics struct {
	AgentConnections      prometheus.Gauge
	ControllerConnections prometheus.Gauge
	TabsActive            prometheus.Gauge

	TelemetryMessages *prometheus.CounterVec
	CommandsTotal     *prometheus.CounterVec
	CommandDuration   prometheus.Histogram
	PolicyDenials     prometheus.Counter
	CommandTimeouts   prometheus.Counter
	DroppedAcks       prometheus.Counter
	MalformedFrames   prometheus.Counter
}

// New registers the gateway metrics on reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AgentConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_agent_connections",
			Help: "Open agent websocket connections",
		}),
		ControllerConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_controller_connections",
			Help: "Open controller websocket connections",
		}),
		TabsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gateway_tabs_active",
			Help: "Tabs currently tracked in world state",
		}),
		TelemetryMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_telemetry_messages_total",
			Help: "Telemetry frames received from agents, by type",
		}, []string{"type"}),
		CommandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_commands_total",
			Help: "Commands submitted through the pipeline, by type and outcome",
		}, []string{"type", "outcome"}),
		CommandDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gateway_command_duration_seconds",
			Help:    "Time from command transmit to acknowledgment",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		PolicyDenials: factory.NewCounter(prometheus.CounterOpts{
			Name: "gateway_policy_denials_total",
			Help: "Commands rejected by the admission policy",
		}),
		CommandTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "gateway_command_timeouts_total",
			Help: "Commands that timed out waiting for an ack",
		}),
		DroppedAcks: factory.NewCounter(prometheus.CounterOpts{
			Name: "gateway_dropped_acks_total",
			Help: "Acks arriving with no pending command entry",
		}),
		MalformedFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "gateway_malformed_frames_total",
			Help: "Inbound frames dropped as unparseable",
		}),
	}
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewDefault registers the metrics on the default Prometheus registry on
// its first call and returns that same set on every later call.
func NewDefault() *Metrics {
	defaultOnce.Do(func() { defaultMetrics = New(prometheus.DefaultRegisterer) })
	return defaultMetrics
}
