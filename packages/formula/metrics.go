package formula

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// compileTotal counts formula compilations by result
	compileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sketch_formula_compile_total",
		Help: "Total formula compilations by result",
	}, []string{"result"})

	// compileDuration tracks lex+parse latency
	compileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sketch_formula_compile_duration_seconds",
		Help:    "Formula compile duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10), // 1us to ~260ms
	})

	// evaluationTotal counts AST evaluations
	evaluationTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sketch_formula_evaluations_total",
		Help: "Total formula AST evaluations",
	})

	// cacheHitTotal counts reads served from a cached value
	cacheHitTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sketch_formula_cache_hits_total",
		Help: "Total formula reads served from cache",
	})

	// invalidationTotal counts cells invalidated
	invalidationTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sketch_formula_invalidations_total",
		Help: "Total formula cell invalidations",
	})

	// gatedWriteTotal counts writes dropped by the lock level
	gatedWriteTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sketch_formula_gated_writes_total",
		Help: "Total writes ignored because of the lock level",
	})

	// errorTotal counts evaluation and compile errors by code
	errorTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sketch_formula_errors_total",
		Help: "Total formula errors by code",
	}, []string{"code"})
)

func countError(err error) {
	label := "other"
	if code := CodeOf(err); code != 0 {
		label = ErrorMapper[code]
	}
	errorTotal.WithLabelValues(label).Inc()
}
