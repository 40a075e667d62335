// Package metrics exposes Prometheus collectors for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FeedItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vestnik_feed_items_total",
		Help: "Items fetched per source.",
	}, []string{"source"})

	FeedErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vestnik_feed_errors_total",
		Help: "Failed source fetches per source.",
	}, []string{"source"})

	ItemsFiltered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vestnik_items_filtered_total",
		Help: "Items dropped by the content filters, by reason.",
	}, []string{"reason"})

	ItemsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vestnik_items_published_total",
		Help: "Individual stories persisted as published.",
	})

	PostsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vestnik_posts_sent_total",
		Help: "Channel posts delivered, by kind (post, digest, breaking, currency).",
	}, []string{"kind"})

	TelegramErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vestnik_telegram_errors_total",
		Help: "Failed channel deliveries.",
	})

	PendingTopics = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vestnik_pending_topics",
		Help: "Topics currently held in the aggregation window.",
	})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vestnik_cycle_duration_seconds",
		Help:    "Wall time of one collection cycle.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	BreakingSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vestnik_breaking_suppressed_total",
		Help: "Breaking candidates deferred by the hourly rate limit.",
	})
)
