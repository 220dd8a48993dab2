package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	ordersPlaced    atomic.Uint64
	ordersCancelled atomic.Uint64
	ordersRejected  atomic.Uint64
	tradesExecuted  atomic.Uint64
	matchMisses     atomic.Uint64
	transientErrors atomic.Uint64
	errorsTotal     atomic.Uint64
	notifyFailures  atomic.Uint64

	// Match latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeConnections atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordOrderPlaced records an order accepted into the book.
func (m *Metrics) RecordOrderPlaced() {
	m.ordersPlaced.Add(1)
}

// RecordOrderCancelled records a successful cancellation.
func (m *Metrics) RecordOrderCancelled() {
	m.ordersCancelled.Add(1)
}

// RecordOrderRejected records a placement or cancel refused for a business reason.
func (m *Metrics) RecordOrderRejected() {
	m.ordersRejected.Add(1)
}

// RecordMatch records one match attempt and its latency.
func (m *Metrics) RecordMatch(traded bool, latency time.Duration) {
	if traded {
		m.tradesExecuted.Add(1)
	} else {
		m.matchMisses.Add(1)
	}
	m.latencySumNs.Add(latency.Nanoseconds())
	m.latencyCount.Add(1)
}

// RecordTransient records a unit of work aborted by the storage layer.
func (m *Metrics) RecordTransient() {
	m.transientErrors.Add(1)
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError() {
	m.errorsTotal.Add(1)
}

// RecordNotifyFailure records a settlement that a listener failed to receive.
func (m *Metrics) RecordNotifyFailure() {
	m.notifyFailures.Add(1)
}

// IncrementConnections increments active push connections by 1.
func (m *Metrics) IncrementConnections() {
	m.activeConnections.Add(1)
}

// DecrementConnections decrements active push connections by 1.
func (m *Metrics) DecrementConnections() {
	m.activeConnections.Add(-1)
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	OrdersPlaced      uint64    `json:"orders_placed"`
	OrdersCancelled   uint64    `json:"orders_cancelled"`
	OrdersRejected    uint64    `json:"orders_rejected"`
	TradesExecuted    uint64    `json:"trades_executed"`
	MatchMisses       uint64    `json:"match_misses"`
	TransientErrors   uint64    `json:"transient_errors"`
	ErrorsTotal       uint64    `json:"errors_total"`
	NotifyFailures    uint64    `json:"notify_failures"`
	AvgMatchLatencyNs int64     `json:"avg_match_latency_ns"`
	ActiveConnections int32     `json:"active_connections"`
	Timestamp         time.Time `json:"timestamp"`
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		OrdersPlaced:      m.ordersPlaced.Load(),
		OrdersCancelled:   m.ordersCancelled.Load(),
		OrdersRejected:    m.ordersRejected.Load(),
		TradesExecuted:    m.tradesExecuted.Load(),
		MatchMisses:       m.matchMisses.Load(),
		TransientErrors:   m.transientErrors.Load(),
		ErrorsTotal:       m.errorsTotal.Load(),
		NotifyFailures:    m.notifyFailures.Load(),
		AvgMatchLatencyNs: avgLatency,
		ActiveConnections: m.activeConnections.Load(),
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.ordersPlaced.Store(0)
	m.ordersCancelled.Store(0)
	m.ordersRejected.Store(0)
	m.tradesExecuted.Store(0)
	m.matchMisses.Store(0)
	m.transientErrors.Store(0)
	m.errorsTotal.Store(0)
	m.notifyFailures.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeConnections.Store(0)
}
