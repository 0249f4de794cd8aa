package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_records_total",
			Help: "Provider documents received by sync, per series.",
		},
		[]string{"series"},
	)

	displayCacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "display_cache_requests_total",
			Help: "Display cache lookups by result (hit, miss, error).",
		},
		[]string{"result"},
	)
)
