// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "threadwarden_gateway_connection_state",
		Help: "Gateway connection state (1 for the active state, 0 otherwise)",
	}, []string{"state"})

	reconnectAttempts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "threadwarden_gateway_reconnect_attempts",
		Help: "Consecutive reconnect attempts since the last successful connection",
	})

	disconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "threadwarden_gateway_disconnects_total",
		Help: "Gateway disconnect signals by reason",
	}, []string{"reason"})
)

var connectionStates = []string{"connected", "reconnecting", "terminated"}

// SetConnectionState records the active supervisor state.
func SetConnectionState(state string) {
	for _, s := range connectionStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		connectionState.WithLabelValues(s).Set(value)
	}
}

// SetReconnectAttempts publishes the current consecutive attempt count.
func SetReconnectAttempts(n int) {
	reconnectAttempts.Set(float64(n))
}

// RecordDisconnect counts a disconnect signal.
func RecordDisconnect(reason string) {
	disconnectsTotal.WithLabelValues(reason).Inc()
}
