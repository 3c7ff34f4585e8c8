package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stateGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "epion_circuit_breaker_state",
			Help: "Current state of circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	rejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "epion_circuit_breaker_rejections_total",
			Help: "Calls rejected without reaching the backend",
		},
		[]string{"name"},
	)
)
