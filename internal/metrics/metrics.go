package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studiopass_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studiopass_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studiopass_bookings_total",
			Help: "Total number of bookings",
		},
		[]string{"appointment_type", "paid_with"},
	)

	BookingCancellationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studiopass_booking_cancellations_total",
			Help: "Total number of booking cancellations",
		},
	)

	BookingConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studiopass_booking_conflicts_total",
			Help: "Total number of bookings rejected because the slot was full",
		},
	)

	DeductionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studiopass_deductions_total",
			Help: "Total number of pass session deductions",
		},
		[]string{"pass_type"},
	)

	RefundsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studiopass_refunds_total",
			Help: "Total number of pass session refunds",
		},
	)

	TrialGrantsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studiopass_trial_grants_total",
			Help: "Total number of trial grant attempts",
		},
		[]string{"outcome"},
	)

	ReconciledBookingsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studiopass_reconciled_bookings_total",
			Help: "Total number of orphaned bookings rolled back by the sweep",
		},
	)

	EmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studiopass_emails_sent_total",
			Help: "Total number of emails sent",
		},
		[]string{"type", "status"},
	)

	EmailQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "studiopass_email_queue_length",
			Help: "Current length of email queue",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordBooking(appointmentType, paidWith string) {
	BookingsTotal.WithLabelValues(appointmentType, paidWith).Inc()
}

func RecordBookingCancellation() {
	BookingCancellationsTotal.Inc()
}

func RecordBookingConflict() {
	BookingConflictsTotal.Inc()
}

func RecordDeduction(passType string) {
	DeductionsTotal.WithLabelValues(passType).Inc()
}

func RecordRefund() {
	RefundsTotal.Inc()
}

func RecordTrialGrant(outcome string) {
	TrialGrantsTotal.WithLabelValues(outcome).Inc()
}

func RecordReconciledBooking() {
	ReconciledBookingsTotal.Inc()
}

func RecordEmail(emailType, status string) {
	EmailsSentTotal.WithLabelValues(emailType, status).Inc()
}
