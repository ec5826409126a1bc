// Package metrics exposes the gateway's operational counters in
// Prometheus format. The business-level JSON metrics endpoint is
// separate and served by the handlers package.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the gateway's Prometheus counters on a private
// registry so tests can run multiple instances.
type Collector struct {
	registry *prometheus.Registry

	ordersSubmitted prometheus.Counter
	ordersExecuted  prometheus.Counter
	ordersRejected  prometheus.Counter
	ordersFailed    prometheus.Counter
	eventsAppended  prometheus.Counter
	breakerOpens    prometheus.Counter
}

// NewCollector creates and registers all counters.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		ordersSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ordergate_orders_submitted_total",
			Help: "Orders accepted past the idempotency gate.",
		}),
		ordersExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ordergate_orders_executed_total",
			Help: "Orders that reached EXECUTED.",
		}),
		ordersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ordergate_orders_rejected_total",
			Help: "Orders rejected by pre-trade risk checks.",
		}),
		ordersFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ordergate_orders_failed_total",
			Help: "Orders that reached FAILED.",
		}),
		eventsAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ordergate_events_appended_total",
			Help: "Events appended to the audit log.",
		}),
		breakerOpens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ordergate_circuit_breaker_opens_total",
			Help: "Times the execution circuit breaker tripped open.",
		}),
	}
	c.registry.MustRegister(
		c.ordersSubmitted,
		c.ordersExecuted,
		c.ordersRejected,
		c.ordersFailed,
		c.eventsAppended,
		c.breakerOpens,
	)
	return c
}

// Handler serves the registry in Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) OrderSubmitted() { c.ordersSubmitted.Inc() }
func (c *Collector) OrderExecuted()  { c.ordersExecuted.Inc() }
func (c *Collector) OrderRejected()  { c.ordersRejected.Inc() }
func (c *Collector) OrderFailed()    { c.ordersFailed.Inc() }
func (c *Collector) BreakerOpened()  { c.breakerOpens.Inc() }
func (c *Collector) EventAppended()  { c.eventsAppended.Inc() }
