package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var (
	tracer = otel.Tracer("pagestream/pkg/pagination")

	pagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pagestream",
		Subsystem: "pagination",
		Name:      "pages_fetched_total",
		Help:      "total number of pages fetched from remote query operations",
	}, []string{"sequence"})

	itemsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pagestream",
		Subsystem: "pagination",
		Name:      "items_emitted_total",
		Help:      "total number of items handed to consumers",
	}, []string{"sequence"})

	fetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pagestream",
		Subsystem: "pagination",
		Name:      "fetch_errors_total",
		Help:      "total number of failed page fetches",
	}, []string{"sequence"})

	fetchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pagestream",
		Subsystem: "pagination",
		Name:      "fetch_duration_seconds",
		Buckets:   []float64{.001, .002, .005, .01, .02, .05, .1, .2, .5, 1, 2},
		Help:      "latency of a single page fetch",
	}, []string{"sequence"})
)
