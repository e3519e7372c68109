package validate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	validationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "osc_validation_calls_total",
		Help: "The total number of calls to Validate",
	}, []string{"can_validate_type", "has_error"})

	validationTime = promauto.NewHistogramVec(prometheus.HistogramOpts{ //nolint:gochecknoglobals
		Name: "osc_validation_time_millis",
		Help: "The time it takes to validate, in milliseconds",
		Buckets: []float64{
			1, 5, 10, 25, 50, 100, 250, 500, 1000,
		},
	}, []string{"type", "has_error"})
)
