package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the signaling core.
type Metrics struct {
	// Transport
	ConnectionsActive prometheus.Gauge
	JoinsTotal        prometheus.Counter
	JoinsRejected     *prometheus.CounterVec

	// Relay
	MessagesRelayed *prometheus.CounterVec
	RelayDropped    *prometheus.CounterVec

	// Registries
	SessionsActive prometheus.Gauge
	StreamsActive  prometheus.Gauge
	StreamsSwept   prometheus.Counter

	// Persistence sink
	SinkErrors prometheus.Counter
}

// New registers all collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		ConnectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "signal_connections_active",
			Help: "Live websocket connections",
		}),
		JoinsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "signal_joins_total",
			Help: "Accepted session joins",
		}),
		JoinsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "signal_joins_rejected_total",
			Help: "Rejected session joins by reason",
		}, []string{"reason"}),
		MessagesRelayed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "signal_messages_relayed_total",
			Help: "Signaling messages forwarded to receiver connections",
		}, []string{"kind"}),
		RelayDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "signal_relay_dropped_total",
			Help: "Signaling messages dropped because the receiver had no live connection",
		}, []string{"kind"}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "signal_sessions_active",
			Help: "Active sessions in the directory",
		}),
		StreamsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "signal_streams_active",
			Help: "Active stream records",
		}),
		StreamsSwept: promauto.NewCounter(prometheus.CounterOpts{
			Name: "signal_streams_swept_total",
			Help: "Inactive stream records removed by the retention sweep",
		}),
		SinkErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "signal_sink_errors_total",
			Help: "Best-effort persistence sink write failures",
		}),
	}
}
