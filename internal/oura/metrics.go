package oura

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var fetchDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "oura_fetch_duration_seconds",
		Help:    "Duration of provider reads by series and outcome.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"series", "status"},
)
