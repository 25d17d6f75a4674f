package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		redemptionsTotal,
		redemptionLatencyMs,
		codesGeneratedTotal,
		codesDeactivatedTotal,
	)
}

var (
	redemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signup_code_redemptions_total",
			Help: "Redemption attempts by outcome.",
		},
		[]string{"outcome"}, // 'success', 'invalid_format', 'not_redeemable', 'unavailable'
	)

	redemptionLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "signup_code_redemption_latency_ms",
			Help:    "Redemption call latency distribution in milliseconds.",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 200, 400, 800},
		},
	)

	codesGeneratedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "signup_codes_generated_total",
			Help: "Total signup codes created by the lifecycle manager.",
		},
	)

	codesDeactivatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signup_codes_deactivated_total",
			Help: "Codes turned inactive, split by trigger.",
		},
		[]string{"reason"}, // 'exhausted', 'expired', 'admin'
	)
)

func IncRedemption(outcome string) {
	redemptionsTotal.WithLabelValues(outcome).Inc()
}

func ObserveRedemptionLatency(ms float64) {
	redemptionLatencyMs.Observe(ms)
}

func IncCodesGenerated() {
	codesGeneratedTotal.Inc()
}

func IncCodesDeactivated(reason string, count int) {
	codesDeactivatedTotal.WithLabelValues(reason).Add(float64(count))
}
