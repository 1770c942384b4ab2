package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "farum",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status code.",
	}, []string{"route", "method", "code"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "farum",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	// Generations counts upstream calls by kind (chat, image, video, speech)
	// and outcome (ok, credit, error).
	Generations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "farum",
		Name:      "generations_total",
		Help:      "Upstream generation calls by kind and outcome.",
	}, []string{"kind", "outcome"})

	ChatRebuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "farum",
		Name:      "chat_handle_rebuilds_total",
		Help:      "Upstream chat handle rebuilds by result.",
	}, []string{"result"})

	StorageFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "farum",
		Name:      "storage_fallbacks_total",
		Help:      "Storage failures recovered locally, by operation.",
	}, []string{"op"})
)
