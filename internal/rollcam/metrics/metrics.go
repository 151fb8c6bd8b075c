// Package metrics defines the Prometheus collectors Rollcam exports on
// /metrics. Every method is safe to call on a nil *Metrics so packages can be
// used (and tested) without a registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the counters and histograms.
type Metrics struct {
	intents         *prometheus.CounterVec
	listingFailures *prometheus.CounterVec
	listingDuration *prometheus.HistogramVec
	staleChecks     *prometheus.CounterVec
	replies         *prometheus.CounterVec
	webhooks        *prometheus.CounterVec
	notifications   *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcam_intents_total",
			Help: "Classified chat messages by intent.",
		}, []string{"intent"}),
		listingFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcam_listing_failures_total",
			Help: "Directory listings that failed and were treated as empty.",
		}, []string{"scheme"}),
		listingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rollcam_listing_duration_seconds",
			Help:    "Time spent fetching one directory listing.",
			Buckets: prometheus.DefBuckets,
		}, []string{"scheme"}),
		staleChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcam_freshness_checks_total",
			Help: "Latest-image freshness checks by machine and outcome.",
		}, []string{"machine", "result"}),
		replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcam_replies_total",
			Help: "Replies delivered by transport and kind.",
		}, []string{"transport", "kind"}),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcam_webhook_requests_total",
			Help: "Inbound webhook callbacks by HTTP status.",
		}, []string{"code"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcam_notifications_total",
			Help: "Push notifications by machine and result.",
		}, []string{"machine", "result"}),
	}
	reg.MustRegister(
		m.intents, m.listingFailures, m.listingDuration,
		m.staleChecks, m.replies, m.webhooks, m.notifications,
	)
	return m
}

func (m *Metrics) Intent(name string) {
	if m == nil {
		return
	}
	m.intents.WithLabelValues(name).Inc()
}

func (m *Metrics) ListingFailed(scheme string) {
	if m == nil {
		return
	}
	m.listingFailures.WithLabelValues(scheme).Inc()
}

func (m *Metrics) ObserveListing(scheme string, d time.Duration) {
	if m == nil {
		return
	}
	m.listingDuration.WithLabelValues(scheme).Observe(d.Seconds())
}

// Freshness records one freshness check; fresh=false counts as stale.
func (m *Metrics) Freshness(machine string, fresh bool) {
	if m == nil {
		return
	}
	result := "fresh"
	if !fresh {
		result = "stale"
	}
	m.staleChecks.WithLabelValues(machine, result).Inc()
}

func (m *Metrics) Reply(transport, kind string) {
	if m == nil {
		return
	}
	m.replies.WithLabelValues(transport, kind).Inc()
}

func (m *Metrics) Webhook(code int) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(statusClass(code)).Inc()
}

func (m *Metrics) Notification(machine string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.notifications.WithLabelValues(machine, result).Inc()
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
