package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surfcast_provider_calls_total",
			Help: "Total Open-Meteo provider calls",
		},
		[]string{"provider", "status"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "surfcast_provider_latency_seconds",
			Help:    "Provider call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	LayerUpsertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surfcast_layer_upserts_total",
			Help: "Total layer replace-all writes committed",
		},
		[]string{"layer"},
	)

	RefreshStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "surfcast_refresh_steps_total",
			Help: "Refresh pipeline step outcomes",
		},
		[]string{"layer", "outcome"},
	)

	SpotRefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "surfcast_spot_refresh_duration_seconds",
			Help:    "Wall-clock duration of a full per-spot refresh",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"spot"},
	)
)
