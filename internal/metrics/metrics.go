// Package metrics exposes the Prometheus counters and histograms the rest
// of the service increments directly on the request and redirect paths.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests by method, route, and status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "url_shortener_requests_total",
			Help: "Total number of HTTP requests by method, route, and status",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration tracks HTTP request duration by route.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "url_shortener_request_duration_seconds",
			Help:    "HTTP request duration in seconds by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	// CacheHits counts cache hits by tier (l1, l2).
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "url_shortener_cache_hits_total",
			Help: "Total number of cache hits by tier",
		},
		[]string{"tier"},
	)

	// CacheMisses counts cache misses; negative hits are counted in CacheHits.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "url_shortener_cache_misses_total",
			Help: "Total number of cache misses by tier",
		},
		[]string{"tier"},
	)

	// RedirectsTotal counts successful redirects.
	RedirectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "url_shortener_redirects_total",
			Help: "Total number of successful redirects",
		},
	)

	// LinksCreated counts created short links.
	LinksCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "url_shortener_links_created_total",
			Help: "Total number of short links created",
		},
	)

	// LinksDeleted counts soft-deleted short links.
	LinksDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "url_shortener_links_deleted_total",
			Help: "Total number of short links deleted",
		},
	)

	// ClickEventsEnqueued counts click events handed to the analytics queue.
	ClickEventsEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "url_shortener_click_events_enqueued_total",
			Help: "Total number of click events enqueued for analytics streaming",
		},
	)

	// ClickEventsDropped counts click events dropped because the analytics
	// queue buffer was full.
	ClickEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "url_shortener_click_events_dropped_total",
			Help: "Total number of click events dropped due to a full analytics queue",
		},
	)

	// WebhookDeliveries counts webhook delivery attempts by outcome
	// (delivered, retried, exhausted, breaker_open).
	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "url_shortener_webhook_deliveries_total",
			Help: "Total number of webhook delivery attempts by outcome",
		},
		[]string{"outcome"},
	)

	// SweptMappings counts mappings permanently hard-deleted by the sweeper.
	SweptMappings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "url_shortener_swept_mappings_total",
			Help: "Total number of soft-deleted mappings permanently removed by the sweeper",
		},
	)
)
