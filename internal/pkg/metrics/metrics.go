/*
Package metrics exposes the coordinator's Prometheus instruments.

The collectors are created per Metrics value so tests can use an isolated registry.
*/
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "campuschat"

// Metrics groups the gauges and counters updated by the chat coordinator.
type Metrics struct {
	Channels      prometheus.Gauge
	WaitingTicket prometheus.Gauge
	OpenPairs     prometheus.Gauge

	Delivered      *prometheus.CounterVec
	Suppressed     prometheus.Counter
	Evictions      prometheus.Counter
	ProtocolErrors prometheus.Counter
	PairsCreated   prometheus.Counter
}

// New creates the instruments and registers them with reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Channels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channels",
			Help:      "Number of registered live channels.",
		}),
		WaitingTicket: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "waiting_tickets",
			Help:      "Number of tickets in the random match queue.",
		}),
		OpenPairs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_pairs",
			Help:      "Number of open pair sessions.",
		}),
		Delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_delivered_total",
			Help:      "Messages enqueued to recipient channels, by session kind.",
		}, []string{"kind"}),
		Suppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_suppressed_total",
			Help:      "Deliveries skipped because the recipient blocked the sender.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slow_consumer_evictions_total",
			Help:      "Channels closed because their send buffer was full.",
		}),
		ProtocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Malformed inbound frames.",
		}),
		PairsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairs_created_total",
			Help:      "Pair sessions created by the match queue.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Channels, m.WaitingTicket, m.OpenPairs,
			m.Delivered, m.Suppressed, m.Evictions, m.ProtocolErrors, m.PairsCreated,
		)
	}

	return m
}
