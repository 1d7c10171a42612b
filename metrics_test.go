package main

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsWithRegistry(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	metrics := NewMetricsWithRegistry(registry)

	metrics.ConnectionsTotal.Inc()
	metrics.ConnectedClients.Inc()
	metrics.MessageSent.Inc()
	metrics.SignRequests.WithLabelValues("sign", "success").Inc()
	metrics.SignFailures.WithLabelValues("sign", "type_mismatch").Inc()
	metrics.SignDuration.WithLabelValues("sign").Observe(0.01)

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, family := range families {
		names = append(names, family.GetName())
	}
	assert.ElementsMatch(t, []string{
		"ex_eip712_connected_clients",
		"ex_eip712_connections_total",
		"ex_eip712_ws_messages_sent_total",
		"ex_eip712_sign_requests_total",
		"ex_eip712_sign_failures_total",
		"ex_eip712_sign_duration_seconds",
	}, names)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SignFailures.WithLabelValues("sign", "type_mismatch")))

	// Registering twice on the same registry is a programming error.
	assert.Panics(t, func() { NewMetricsWithRegistry(registry) })
}
