// Package metrics exposes Prometheus instrumentation for the HTTP layer,
// the booking guard and the database pool.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hms/hms/internal/platform/apperr"
	"github.com/hms/hms/internal/platform/db"
)

const namespace = "hms"

// Booking outcomes.
const (
	OutcomeBooked    = "booked"
	OutcomeFull      = "slot_full"
	OutcomeInvalid   = "invalid_slot"
	OutcomeDuplicate = "duplicate"
	OutcomeError     = "error"
)

type Metrics struct {
	reg             *prometheus.Registry
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	bookings        *prometheus.CounterVec
	slotsDerived    prometheus.Histogram
	availabilityOps *prometheus.CounterVec
}

// New builds a registry holding the service metrics plus the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		slotsDerived: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slots_derived",
			Help:      "Number of slots returned per derivation",
			Buckets:   []float64{0, 4, 8, 16, 32, 64, 128, 256},
		}),
		availabilityOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_changes_total",
			Help:      "Availability rule writes by operation",
		}, []string{"op"}),
	}

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration, m.bookings, m.slotsDerived, m.availabilityOps,
	)
	return m
}

// RegisterPool exports pool connection counts read from stats at scrape time.
func (m *Metrics) RegisterPool(stats func() *db.PoolStats) {
	gauge := func(name, help string, read func(*db.PoolStats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      name,
			Help:      help,
		}, func() float64 { return read(stats()) })
	}
	m.reg.MustRegister(
		gauge("connections_total", "Open database connections", func(s *db.PoolStats) float64 { return float64(s.TotalConns) }),
		gauge("connections_acquired", "Database connections in use", func(s *db.PoolStats) float64 { return float64(s.AcquiredConns) }),
		gauge("connections_max", "Configured maximum connections", func(s *db.PoolStats) float64 { return float64(s.MaxConns) }),
	)
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Middleware records request counts and latency labelled by route template,
// so /api/v1/appointments/:id is one series.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := c.Response().Status
			if err != nil && !c.Response().Committed {
				status = errorStatus(err)
			}

			m.httpRequests.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func errorStatus(err error) int {
	var he *echo.HTTPError
	if !apperr.Known(err) && errors.As(err, &he) {
		return he.Code
	}
	return apperr.HTTPStatus(err)
}

// BookingOutcome classifies the result of a booking attempt.
func (m *Metrics) BookingOutcome(err error) {
	m.bookings.WithLabelValues(Outcome(err)).Inc()
}

func Outcome(err error) string {
	var (
		full *apperr.SlotFullError
		inv  *apperr.InvalidSlotError
		dup  *apperr.DuplicateBookingError
	)
	switch {
	case err == nil:
		return OutcomeBooked
	case errors.As(err, &full):
		return OutcomeFull
	case errors.As(err, &inv):
		return OutcomeInvalid
	case errors.As(err, &dup):
		return OutcomeDuplicate
	default:
		return OutcomeError
	}
}

func (m *Metrics) SlotsDerived(n int) {
	m.slotsDerived.Observe(float64(n))
}

func (m *Metrics) AvailabilityChanged(op string) {
	m.availabilityOps.WithLabelValues(op).Inc()
}
