package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skysearch_searches_total",
		Help: "Submitted searches by terminal outcome.",
	}, []string{"outcome"})

	ActiveSearches = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skysearch_active_searches",
		Help: "Searches currently in flight.",
	})

	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skysearch_provider_requests_total",
		Help: "Upstream provider attempts by outcome.",
	}, []string{"provider", "outcome"})

	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skysearch_provider_latency_seconds",
		Help:    "Upstream provider call latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skysearch_cache_lookups_total",
		Help: "Result cache lookups by hit/miss.",
	}, []string{"result"})
)
