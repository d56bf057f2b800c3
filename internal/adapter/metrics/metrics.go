// Package metrics exposes domain counters to Prometheus.
package metrics

import (
	"net/http"

	"seller-payout-service/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "seller_payout"

// Prometheus implements ports.MetricsRecorder on its own registry.
type Prometheus struct {
	registry        *prometheus.Registry
	kycTransitions  *prometheus.CounterVec
	staleCallbacks  *prometheus.CounterVec
	challenges      *prometheus.CounterVec
	withdrawals     *prometheus.CounterVec
	withdrawnAmount *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// NewPrometheus registers every collector on a fresh registry.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		kycTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "kyc_transitions_total",
			Help: "KYC state transitions by resulting state.",
		}, []string{"state"}),
		staleCallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "stale_callbacks_total",
			Help: "Callbacks ignored because they no longer applied.",
		}, []string{"source"}),
		challenges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "challenges_total",
			Help: "Challenge issue and consume outcomes.",
		}, []string{"purpose", "result"}),
		withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "withdrawal_transitions_total",
			Help: "Withdrawal transitions by resulting status.",
		}, []string{"status"}),
		withdrawnAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "withdrawn_minor_units_total",
			Help: "Amount debited for withdrawals, in minor units.",
		}, []string{"currency"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.kycTransitions, p.staleCallbacks, p.challenges,
		p.withdrawals, p.withdrawnAmount, p.httpRequests, p.httpDuration,
	)
	return p
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func (p *Prometheus) KYCTransition(state domain.KYCState) {
	p.kycTransitions.WithLabelValues(string(state)).Inc()
}

func (p *Prometheus) StaleCallback(source string) {
	p.staleCallbacks.WithLabelValues(source).Inc()
}

func (p *Prometheus) ChallengeResult(purpose domain.ChallengePurpose, result string) {
	p.challenges.WithLabelValues(string(purpose), result).Inc()
}

func (p *Prometheus) WithdrawalTransition(status domain.WithdrawalStatus) {
	p.withdrawals.WithLabelValues(string(status)).Inc()
}

func (p *Prometheus) WithdrawnAmount(currency string, minor int64) {
	p.withdrawnAmount.WithLabelValues(currency).Add(float64(minor))
}

// ObserveHTTP records one served request. route is the matched pattern, not the raw path.
func (p *Prometheus) ObserveHTTP(method, route string, status int, seconds float64) {
	p.httpRequests.WithLabelValues(method, route, httpStatusClass(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(seconds)
}

func httpStatusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) KYCTransition(domain.KYCState) {}
func (Nop) StaleCallback(string) {}
func (Nop) ChallengeResult(domain.ChallengePurpose, string) {}
func (Nop) WithdrawalTransition(domain.WithdrawalStatus) {}
func (Nop) WithdrawnAmount(string, int64) {}
