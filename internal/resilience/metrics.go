package resilience

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/noah-isme/pcquote-api/internal/obs"
)

var (
	metricsOnce sync.Once

	// BreakerState is 0 closed, 1 open, 2 half-open per breaker.
	BreakerState *prometheus.GaugeVec
	// BreakerTransitions counts state changes per breaker.
	BreakerTransitions *prometheus.CounterVec
)

// MustRegisterMetrics registers the breaker collectors. Breakers created
// before the call are not reflected in the state gauge until they change
// state.
func MustRegisterMetrics(namespace string, reg prometheus.Registerer) {
	metricsOnce.Do(func() {
		BreakerState = obs.Register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
		}, []string{"breaker"}))
		BreakerTransitions = obs.Register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state changes.",
		}, []string{"breaker", "from", "to"}))
	})
}

func setStateGauge(name string, s State) {
	if BreakerState != nil {
		BreakerState.WithLabelValues(name).Set(float64(s))
	}
}

func countTransition(name string, from, to State) {
	if BreakerTransitions != nil {
		BreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
	}
}
