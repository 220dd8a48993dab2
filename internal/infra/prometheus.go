package infra

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "exchange"

// Collector exports a Metrics instance in the Prometheus text format.
// Values are read from the atomic counters on every scrape, so the hot path
// never touches a Prometheus type.
type Collector struct {
	m *Metrics

	ordersPlaced    *prometheus.Desc
	ordersCancelled *prometheus.Desc
	ordersRejected  *prometheus.Desc
	trades          *prometheus.Desc
	matchMisses     *prometheus.Desc
	transient       *prometheus.Desc
	errorsTotal     *prometheus.Desc
	notifyFailures  *prometheus.Desc
	matchLatency    *prometheus.Desc
	connections     *prometheus.Desc
}

// NewCollector creates a collector reading from m.
func NewCollector(m *Metrics) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", name), help, nil, nil)
	}
	return &Collector{
		m:               m,
		ordersPlaced:    desc("orders_placed_total", "Orders accepted into the book."),
		ordersCancelled: desc("orders_cancelled_total", "Orders cancelled by their owner."),
		ordersRejected:  desc("orders_rejected_total", "Placements and cancels refused for a business reason."),
		trades:          desc("trades_executed_total", "Trades committed by the matcher."),
		matchMisses:     desc("match_misses_total", "Match attempts that found no eligible counter-order."),
		transient:       desc("transient_errors_total", "Units of work aborted by the storage layer."),
		errorsTotal:     desc("errors_total", "Unexpected errors."),
		notifyFailures:  desc("notify_failures_total", "Settlements a listener failed to receive."),
		matchLatency:    desc("match_latency_avg_seconds", "Average match latency."),
		connections:     desc("push_connections", "Open websocket connections."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.ordersPlaced, c.ordersCancelled, c.ordersRejected, c.trades, c.matchMisses,
		c.transient, c.errorsTotal, c.notifyFailures, c.matchLatency, c.connections,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.m.Snapshot()

	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	counter(c.ordersPlaced, s.OrdersPlaced)
	counter(c.ordersCancelled, s.OrdersCancelled)
	counter(c.ordersRejected, s.OrdersRejected)
	counter(c.trades, s.TradesExecuted)
	counter(c.matchMisses, s.MatchMisses)
	counter(c.transient, s.TransientErrors)
	counter(c.errorsTotal, s.ErrorsTotal)
	counter(c.notifyFailures, s.NotifyFailures)

	ch <- prometheus.MustNewConstMetric(c.matchLatency, prometheus.GaugeValue, float64(s.AvgMatchLatencyNs)/1e9)
	ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue, float64(s.ActiveConnections))
}

// NewRegistry returns a registry holding a collector for m plus the Go
// runtime and process collectors.
func NewRegistry(m *Metrics) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewCollector(m),
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return reg
}
