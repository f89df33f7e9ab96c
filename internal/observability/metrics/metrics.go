package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// BookingMetrics exposes counters/histograms for the booking workflows.
type BookingMetrics struct {
	bookingsTotal      *prometheus.CounterVec
	cancellationsTotal *prometheus.CounterVec
	slotsGenerated     prometheus.Counter
	notificationsTotal *prometheus.CounterVec
	txDuration         *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stable_booking",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		cancellationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stable_booking",
			Name:      "cancellations_total",
			Help:      "Successful cancellations, split by package refund",
		}, []string{"refunded"}),
		slotsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stable_booking",
			Name:      "slots_generated_total",
			Help:      "Slots created from lesson block templates",
		}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stable_booking",
			Name:      "notifications_total",
			Help:      "Outbound notifications by kind and status",
		}, []string{"kind", "status"}),
		txDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "stable_booking",
			Name:      "tx_duration_seconds",
			Help:      "Duration of booking transactions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.cancellationsTotal, m.slotsGenerated, m.notificationsTotal, m.txDuration)
	return m
}

// ObserveBooking counts one booking attempt; outcome is "booked" or the error kind.
func (m *BookingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveCancellation(refunded bool) {
	if m == nil {
		return
	}
	m.cancellationsTotal.WithLabelValues(strconv.FormatBool(refunded)).Inc()
}

func (m *BookingMetrics) AddSlotsGenerated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.slotsGenerated.Add(float64(n))
}

func (m *BookingMetrics) ObserveNotification(kind, status string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(kind, status).Inc()
}

func (m *BookingMetrics) ObserveTx(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.txDuration.WithLabelValues(operation).Observe(seconds)
}
