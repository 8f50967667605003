// Package observability holds the Prometheus collectors of the engine.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tuple outcomes reported by the batch creator.
const (
	OutcomeCreated   = "created"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

var (
	batchTuples = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_engine",
		Subsystem: "batch",
		Name:      "tuples_total",
		Help:      "Activity tuples submitted through the batch creator, by outcome.",
	}, []string{"outcome"})
	exports = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_engine",
		Subsystem: "report",
		Name:      "exports_total",
		Help:      "Report files produced, by layout.",
	}, []string{"layout"})
)

func init() {
	prometheus.MustRegister(batchTuples, exports)
}

// RecordTupleOutcome counts one resolved tuple.
func RecordTupleOutcome(outcome string) {
	batchTuples.WithLabelValues(outcome).Inc()
}

// RecordExport counts one produced report.
func RecordExport(layout string) {
	exports.WithLabelValues(layout).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
