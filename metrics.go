package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the application
type Metrics struct {
	// WebSocket connection metrics
	ConnectedClients prometheus.Gauge
	ConnectionsTotal prometheus.Counter
	MessageSent      prometheus.Counter

	// RPC method metrics
	SignRequests *prometheus.CounterVec
	SignFailures *prometheus.CounterVec
	SignDuration *prometheus.HistogramVec
}

// NewMetrics registers metrics on the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(nil)
}

// NewMetricsWithRegistry registers metrics on registry.
func NewMetricsWithRegistry(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		ConnectedClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ex_eip712_connected_clients",
			Help: "The current number of connected clients",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "ex_eip712_connections_total",
			Help: "The total number of WebSocket connections made since server start",
		}),
		MessageSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "ex_eip712_ws_messages_sent_total",
			Help: "The total number of WebSocket messages sent",
		}),
		SignRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ex_eip712_sign_requests_total",
				Help: "The total number of RPC requests by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		SignFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ex_eip712_sign_failures_total",
				Help: "The total number of failed signing attempts by error kind",
			},
			[]string{"method", "kind"},
		),
		SignDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ex_eip712_sign_duration_seconds",
				Help:    "RPC request handling time",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
}
