package lock

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graylock_commands_total",
			Help: "Lock commands by type and outcome",
		},
		[]string{"command", "outcome"},
	)
	pollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graylock_monitor_polls_total",
			Help: "Monitor polls by mode",
		},
		[]string{"mode"},
	)
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graylock_monitor_cycles_total",
			Help: "Finished monitor cycles by outcome",
		},
		[]string{"outcome"},
	)
	monitorsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "graylock_monitors_running",
			Help: "Monitors currently polling",
		},
	)
)

// MetricsCollectors returns collectors for the lock core.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		commandsTotal,
		pollsTotal,
		cyclesTotal,
		monitorsRunning,
	}
}

// cycleOutcome labels the end of a monitor cycle.
func cycleOutcome(err error) string {
	switch {
	case err == nil:
		return "settled"
	case errors.Is(err, ErrTooManyTries):
		return "exhausted"
	case errors.Is(err, ErrOperationFailed):
		return "failed"
	default:
		return "error"
	}
}
