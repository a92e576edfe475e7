package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics - все счетчики приложения на собственном registry.
// Методы безопасны для nil-получателя, чтобы сервисы в тестах работали без метрик.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
	transitions         *prometheus.CounterVec
	transitionsRejected *prometheus.CounterVec
	corruptStates       *prometheus.CounterVec
	expiredTotal        *prometheus.CounterVec
	payments            *prometheus.CounterVec
	paymentAmount       *prometheus.HistogramVec
	otpIssued           prometheus.Counter
	otpVerified         *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "subscription_transitions_total",
			Help: "Applied subscription transitions",
		}, []string{"action"}),
		transitionsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "subscription_transitions_rejected_total",
			Help: "Rejected subscription transitions by action and current status",
		}, []string{"action", "from"}),
		corruptStates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "subscription_corrupt_state_total",
			Help: "Subscriptions found violating invariants",
		}, []string{"action"}),
		expiredTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "subscription_expired_total",
			Help: "Subscriptions moved to expired",
		}, []string{"source"}),
		payments: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment orders by status",
		}, []string{"status"}),
		paymentAmount: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payments_amount_inr",
			Help:    "Paid amount distribution",
			Buckets: prometheus.ExponentialBuckets(50, 2, 8),
		}, []string{"plan"}),
		otpIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "otp_issued_total",
			Help: "OTP codes issued",
		}),
		otpVerified: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "otp_verifications_total",
			Help: "OTP verification attempts by result",
		}, []string{"result"}),
	}
}

// Handler - /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveHTTP(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

func (m *Metrics) IncTransition(action string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action).Inc()
}

func (m *Metrics) IncTransitionRejected(action, from string) {
	if m == nil {
		return
	}
	m.transitionsRejected.WithLabelValues(action, from).Inc()
}

func (m *Metrics) IncCorruptState(action string) {
	if m == nil {
		return
	}
	m.corruptStates.WithLabelValues(action).Inc()
}

// AddExpired: source = lazy | sweep
func (m *Metrics) AddExpired(source string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.expiredTotal.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) IncPayment(status string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(status).Inc()
}

func (m *Metrics) ObservePaymentAmount(plan string, amount float64) {
	if m == nil {
		return
	}
	m.paymentAmount.WithLabelValues(plan).Observe(amount)
}

func (m *Metrics) IncOTPIssued() {
	if m == nil {
		return
	}
	m.otpIssued.Inc()
}

func (m *Metrics) IncOTPVerification(result string) {
	if m == nil {
		return
	}
	m.otpVerified.WithLabelValues(result).Inc()
}
