// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the interface the service layers use to record events.
type Recorder interface {
	RecordLogin(method, result string)
	RecordOtpIssued()
	RecordOtpVerify(result string)
	RecordEnrollment()
	RecordLessonCompleted()
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	logins           *prometheus.CounterVec
	otpIssued        prometheus.Counter
	otpVerify        *prometheus.CounterVec
	enrollments      prometheus.Counter
	lessonsCompleted prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stellr_logins_total",
			Help: "Login attempts by method and result.",
		}, []string{"method", "result"}),
		otpIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stellr_otp_issued_total",
			Help: "OTP challenges issued.",
		}),
		otpVerify: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stellr_otp_verify_total",
			Help: "OTP verification attempts by result.",
		}, []string{"result"}),
		enrollments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stellr_enrollments_total",
			Help: "Successful course enrollments.",
		}),
		lessonsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stellr_lessons_completed_total",
			Help: "Lessons marked complete.",
		}),
	}

	reg.MustRegister(
		c.logins,
		c.otpIssued,
		c.otpVerify,
		c.enrollments,
		c.lessonsCompleted,
	)

	return c
}

// RecordLogin records a login attempt outcome
func (c *Collector) RecordLogin(method, result string) {
	c.logins.WithLabelValues(method, result).Inc()
}

// RecordOtpIssued records an issued OTP challenge
func (c *Collector) RecordOtpIssued() {
	c.otpIssued.Inc()
}

// RecordOtpVerify records an OTP verification outcome
func (c *Collector) RecordOtpVerify(result string) {
	c.otpVerify.WithLabelValues(result).Inc()
}

// RecordEnrollment records a successful enrollment
func (c *Collector) RecordEnrollment() {
	c.enrollments.Inc()
}

// RecordLessonCompleted records a lesson completion
func (c *Collector) RecordLessonCompleted() {
	c.lessonsCompleted.Inc()
}

// Handler returns the HTTP handler for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop is a Recorder that discards everything; used in tests.
type Nop struct{}

func (Nop) RecordLogin(method, result string) {}
func (Nop) RecordOtpIssued()                  {}
func (Nop) RecordOtpVerify(result string)     {}
func (Nop) RecordEnrollment()                 {}
func (Nop) RecordLessonCompleted()            {}
