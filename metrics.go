package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "ethsigner"

// Metrics are the Prometheus collectors of the signer process.
type Metrics struct {
	ConnectedClients prometheus.Gauge
	ConnectionsTotal prometheus.Counter

	// RPCRequests is labelled by method and status ("success" or "error").
	RPCRequests *prometheus.CounterVec

	SignDuration       prometheus.Histogram
	SignedTransactions prometheus.Counter
}

// NewMetricsWithRegistry registers the collectors on reg, or on the default
// registerer when reg is nil. Registering twice on one registry panics.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	m := &Metrics{}
	m.ConnectedClients = f.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "connected_clients",
		Help:      "Number of open WebSocket connections.",
	})
	m.ConnectionsTotal = f.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "connections_total",
		Help:      "WebSocket connections accepted since start.",
	})
	m.RPCRequests = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "rpc_requests_total",
		Help:      "Signer RPC requests by method and status.",
	}, []string{"method", "status"})
	m.SignDuration = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "sign_duration_seconds",
		Help:      "Time spent signing one transaction.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 12),
	})
	m.SignedTransactions = f.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "signed_transactions_total",
		Help:      "Transactions signed since start.",
	})
	return m
}

// ClientConnected is the node's connect hook.
func (m *Metrics) ClientConnected(string) {
	m.ConnectionsTotal.Inc()
	m.ConnectedClients.Inc()
}

// ClientDisconnected is the node's disconnect hook.
func (m *Metrics) ClientDisconnected(string) {
	m.ConnectedClients.Dec()
}
