package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RedemptionMetrics records issuance and verification activity.
type RedemptionMetrics struct {
	issued       prometheus.Counter
	collisions   prometheus.Counter
	outcomes     *prometheus.CounterVec
	storeLatency *prometheus.HistogramVec
}

// NewRedemptionMetrics registers the redemption metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewRedemptionMetrics(reg prometheus.Registerer) *RedemptionMetrics {
	if reg == nil {
		return &RedemptionMetrics{}
	}
	issued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "redemptions_issued_total",
		Help: "Redemption records created and stored.",
	})
	collisions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "redemption_generation_collisions_total",
		Help: "Generated codes or tokens rejected by the store as duplicates.",
	})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "redemption_verifications_total",
		Help: "Verification attempts by intent and outcome.",
	}, []string{"intent", "outcome"})
	storeLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "redemption_store_duration_seconds",
		Help:    "Latency of redemption store operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	reg.MustRegister(issued, collisions, outcomes, storeLatency)
	return &RedemptionMetrics{
		issued:       issued,
		collisions:   collisions,
		outcomes:     outcomes,
		storeLatency: storeLatency,
	}
}

// IncIssued counts one stored redemption.
func (m *RedemptionMetrics) IncIssued() {
	if m == nil || m.issued == nil {
		return
	}
	m.issued.Inc()
}

// IncCollision counts one generation collision.
func (m *RedemptionMetrics) IncCollision() {
	if m == nil || m.collisions == nil {
		return
	}
	m.collisions.Inc()
}

// IncOutcome counts one verification result.
func (m *RedemptionMetrics) IncOutcome(intent, outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(intent), normalizeLabel(outcome)).Inc()
}

// ObserveStore records the duration of a store operation.
func (m *RedemptionMetrics) ObserveStore(op string, duration time.Duration) {
	if m == nil || m.storeLatency == nil {
		return
	}
	m.storeLatency.WithLabelValues(normalizeLabel(op)).Observe(duration.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
