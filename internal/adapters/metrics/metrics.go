// Package metrics exposes the Prometheus counters of every service mode.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	OrdersSubmitted      *prometheus.CounterVec
	OrdersAccepted       *prometheus.CounterVec
	OutboxPublished      *prometheus.CounterVec
	WebhookDeliveries    *prometheus.CounterVec
	RealtimeNotification *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		OrdersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kakao_orders_submitted_total",
			Help: "Orders stored, by submission mode (interactive or automatic).",
		}, []string{"mode"}),
		OrdersAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kakao_orders_accepted_total",
			Help: "Accept actions, by result (changed or noop).",
		}, []string{"result"}),
		OutboxPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kakao_outbox_published_total",
			Help: "Outbox events handed to the broker and the realtime feed.",
		}, []string{"event"}),
		WebhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kakao_webhook_deliveries_total",
			Help: "Webhook delivery outcomes.",
		}, []string{"event", "result"}),
		RealtimeNotification: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kakao_realtime_notifications_total",
			Help: "Dashboard pushes, by kind (toast or refresh).",
		}, []string{"kind"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kakao_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.OrdersSubmitted,
		m.OrdersAccepted,
		m.OutboxPublished,
		m.WebhookDeliveries,
		m.RealtimeNotification,
		m.HTTPDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(route, method, status string, elapsed time.Duration) {
	m.HTTPDuration.WithLabelValues(route, method, status).Observe(elapsed.Seconds())
}
