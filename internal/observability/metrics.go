package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the API and dispatch flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal         *prometheus.CounterVec
	httpRequestDuration       *prometheus.HistogramVec
	dispatchesTotal           *prometheus.CounterVec
	gatewaySendDuration       prometheus.Histogram
	claimedPaymentsTotal      *prometheus.CounterVec
	eventPublishFailuresTotal prometheus.Counter
}

// Dispatch outcome labels.
const (
	DispatchOutcomeSent          = "sent"
	DispatchOutcomeDeliveryError = "delivery_error"
	DispatchOutcomeNoEligible    = "no_eligible"
	DispatchOutcomePersistence   = "persistence_error"
	DispatchOutcomeUnrecorded    = "unrecorded_after_delivery"
)

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "payout_notifier",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "payout_notifier",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		dispatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "payout_notifier",
				Name:      "dispatches_total",
				Help:      "Total number of dispatch attempts by outcome.",
			},
			[]string{"outcome"},
		),
		gatewaySendDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "payout_notifier",
				Name:      "gateway_send_duration_seconds",
				Help:      "Mailer gateway call duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		claimedPaymentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "payout_notifier",
				Name:      "claimed_payments_total",
				Help:      "Total number of payment records claimed by deliveries, by channel.",
			},
			[]string{"channel"},
		),
		eventPublishFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "payout_notifier",
				Name:      "event_publish_failures_total",
				Help:      "Total number of delivery events that could not be published.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.dispatchesTotal,
		m.gatewaySendDuration,
		m.claimedPaymentsTotal,
		m.eventPublishFailuresTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncDispatch(outcome string) {
	if m == nil {
		return
	}
	label := strings.TrimSpace(strings.ToLower(outcome))
	if label == "" {
		label = "unknown"
	}
	m.dispatchesTotal.WithLabelValues(label).Inc()
}

func (m *Metrics) ObserveGatewaySendDuration(duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.gatewaySendDuration.Observe(seconds)
}

func (m *Metrics) AddClaimedPayments(channel string, count int) {
	if m == nil || count <= 0 {
		return
	}
	label := strings.TrimSpace(strings.ToLower(channel))
	if label == "" {
		label = "unknown"
	}
	m.claimedPaymentsTotal.WithLabelValues(label).Add(float64(count))
}

func (m *Metrics) IncEventPublishFailure() {
	if m == nil {
		return
	}
	m.eventPublishFailuresTotal.Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}
