package middleware

import (
	"errors"
	"strconv"
	"time"

	applogger "VoltX/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics records API traffic. Routes are labelled by their template
// (e.g. /api/snapshot) so query strings never reach a label.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voltx_http_requests_total",
			Help: "API requests by route, method and status class.",
		}, []string{"route", "method", "class"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voltx_http_request_duration_seconds",
			Help:    "API request latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"route", "method"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voltx_http_in_flight_requests",
			Help: "API requests being served.",
		}),
	}
	if reg != nil {
		m.requests = register(reg, m.requests).(*prometheus.CounterVec)
		m.duration = register(reg, m.duration).(*prometheus.HistogramVec)
		m.inFlight = register(reg, m.inFlight).(prometheus.Gauge)
	}
	return m
}

// register returns the already registered collector when one exists.
func register(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}

// Middleware records every request and warns about ones slower than slow.
func (m *HTTPMetrics) Middleware(l *applogger.Logger, slow time.Duration) echo.MiddlewareFunc {
	if l == nil {
		l = applogger.Nop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.inFlight.Inc()
			defer m.inFlight.Dec()
			start := time.Now()
			err := next(c)
			elapsed := time.Since(start)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else if err != nil && !c.Response().Committed {
				status = 500
			}
			m.requests.WithLabelValues(route, method, statusClass(status)).Inc()
			m.duration.WithLabelValues(route, method).Observe(elapsed.Seconds())

			if slow > 0 && elapsed >= slow {
				l.Warn("http request slow",
					applogger.String("route", route),
					applogger.String("status", strconv.Itoa(status)),
					applogger.Duration("duration_ms", elapsed))
			}
			return err
		}
	}
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
