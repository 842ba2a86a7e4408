// SPDX-License-Identifier: MIT
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "threadwarden_commands_total",
	Help: "Chat commands handled by command and outcome",
}, []string{"command", "outcome"}) // outcome=ok|error|denied

// RecordCommand counts a handled chat command.
func RecordCommand(command, outcome string) {
	commandsTotal.WithLabelValues(command, outcome).Inc()
}
