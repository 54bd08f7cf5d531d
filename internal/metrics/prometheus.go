package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "hl_signal_relay"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type Prometheus struct {
	Metrics *Metrics

	registry *prometheus.Registry
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	webhooksReceived := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "webhooks_received_total",
		Help:      "Total number of webhook requests received.",
	})
	webhooksRejected := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "webhooks_rejected_total",
		Help:      "Total number of webhook requests rejected by auth or validation.",
	})
	ordersPlaced := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_placed_total",
		Help:      "Total number of orders submitted to the exchange.",
	})
	ordersFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_failed_total",
		Help:      "Total number of order submission failures.",
	})
	ordersSimulated := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_simulated_total",
		Help:      "Total number of orders handled in simulation mode.",
	})
	positionsClosed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "positions_closed_total",
		Help:      "Total number of positions closed by reduce-only orders.",
	})

	registry.MustRegister(webhooksReceived, webhooksRejected, ordersPlaced, ordersFailed, ordersSimulated, positionsClosed)

	return &Prometheus{
		Metrics: &Metrics{
			WebhooksReceived: promCounter{webhooksReceived},
			WebhooksRejected: promCounter{webhooksRejected},
			OrdersPlaced:     promCounter{ordersPlaced},
			OrdersFailed:     promCounter{ordersFailed},
			OrdersSimulated:  promCounter{ordersSimulated},
			PositionsClosed:  promCounter{positionsClosed},
		},
		registry: registry,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
