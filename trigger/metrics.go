package trigger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operations = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "osc_trigger_operations_total",
		Help: "Trigger facility operations by operation and result",
	}, []string{"op", "result"})

	firings = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "osc_trigger_firings_total",
		Help: "Trigger firings by outcome",
	}, []string{"outcome"})

	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{ //nolint:gochecknoglobals
		Name:    "osc_trigger_tick_duration_seconds",
		Help:    "Duration of ticks run by the cron facility",
		Buckets: prometheus.DefBuckets,
	})
)
