package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the bridge's collectors. A nil *Metrics is valid and records
// nothing, so components can be built without a registry in tests.
type Metrics struct {
	StoreOpDuration     *prometheus.HistogramVec
	SessionTransitions  *prometheus.CounterVec
	VerificationResults *prometheus.CounterVec
	JWKSRefreshes       *prometheus.CounterVec
	CallbacksRejected   prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StoreOpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ave_bridge_session_store_op_duration_seconds",
			Help:    "Latency of session store operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"op", "outcome"}),
		SessionTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ave_bridge_session_transitions_total",
			Help: "Session status transitions written by the flow controller",
		}, []string{"status"}),
		VerificationResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ave_bridge_id_token_verifications_total",
			Help: "ID token verification outcomes by result",
		}, []string{"result"}),
		JWKSRefreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ave_bridge_jwks_refreshes_total",
			Help: "JWKS fetch attempts by outcome",
		}, []string{"outcome"}),
		CallbacksRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "ave_bridge_callbacks_rate_limited_total",
			Help: "Callback requests rejected by the rate limiter",
		}),
	}
}

func (m *Metrics) ObserveStoreOp(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.StoreOpDuration.WithLabelValues(op, outcome(err)).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncTransition(status string) {
	if m == nil {
		return
	}
	m.SessionTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncVerification(result string) {
	if m == nil {
		return
	}
	m.VerificationResults.WithLabelValues(result).Inc()
}

func (m *Metrics) IncJWKSRefresh(err error) {
	if m == nil {
		return
	}
	m.JWKSRefreshes.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) IncCallbackRejected() {
	if m == nil {
		return
	}
	m.CallbacksRejected.Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
