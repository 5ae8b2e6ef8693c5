// Package metrics records pipeline counters in a private Prometheus registry
// that is written to a node_exporter textfile at the end of a run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "extractor"

// Recorder is safe for concurrent use.
type Recorder struct {
	registry *prometheus.Registry

	requests        *prometheus.HistogramVec
	passages        prometheus.Counter
	symbols         prometheus.Counter
	genes           *prometheus.CounterVec
	parseErrors     prometheus.Counter
	persistErrors   *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	stageCacheLoads *prometheus.CounterVec
}

// New creates a recorder with all metrics registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Duration of HTTP round trips to upstream services.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"service", "outcome"}),
		passages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passages_total",
			Help:      "Passages selected for annotation.",
		}),
		symbols: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gene_symbols_total",
			Help:      "Distinct gene surface forms after reconciliation.",
		}),
		genes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "genes_total",
			Help:      "Gene validation outcomes.",
		}, []string{"outcome"}),
		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Annotation payloads that could not be parsed.",
		}),
		persistErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_errors_total",
			Help:      "Failed store writes by operation.",
		}, []string{"op"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"stage"}),
		stageCacheLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_cache_hits_total",
			Help:      "Stages loaded from the stage cache instead of recomputed.",
		}, []string{"stage"}),
	}
	r.registry.MustRegister(r.requests, r.passages, r.symbols, r.genes, r.parseErrors, r.persistErrors, r.stageDuration, r.stageCacheLoads)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ObserveRequest records one upstream round trip.
func (r *Recorder) ObserveRequest(service, outcome string, elapsed time.Duration) {
	r.requests.WithLabelValues(service, outcome).Observe(elapsed.Seconds())
}

func (r *Recorder) AddPassages(n int) { r.passages.Add(float64(n)) }

func (r *Recorder) AddSymbols(n int) { r.symbols.Add(float64(n)) }

// AddGenes counts validation outcomes: resolved, unresolved or failed.
func (r *Recorder) AddGenes(outcome string, n int) {
	r.genes.WithLabelValues(outcome).Add(float64(n))
}

func (r *Recorder) AddParseErrors(n int) { r.parseErrors.Add(float64(n)) }

func (r *Recorder) IncPersistenceError(op string) { r.persistErrors.WithLabelValues(op).Inc() }

// ObserveStage records how long a stage took and whether it came from cache.
func (r *Recorder) ObserveStage(stage string, elapsed time.Duration, cached bool) {
	r.stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	if cached {
		r.stageCacheLoads.WithLabelValues(stage).Inc()
	}
}

// WriteTextfile writes every metric in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
