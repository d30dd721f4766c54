// internal/metrics/aggregator.go

// Package metrics records answer outcomes and backend latency in Prometheus
// collectors and serves them from a private registry.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/mwiater/manara/internal/logging"
	"github.com/mwiater/manara/internal/rag"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Aggregator owns the collectors and the registry they are exposed from.
type Aggregator struct {
	registry      *prom.Registry
	answers       *prom.CounterVec
	stageDuration *prom.HistogramVec
	backendErrors *prom.CounterVec
}

var (
	instance *Aggregator
	once     sync.Once
)

// GetInstance returns the process-wide Aggregator.
func GetInstance() *Aggregator {
	once.Do(func() {
		instance = NewAggregator()
	})
	return instance
}

// NewAggregator creates an Aggregator with its own registry, including the
// Go runtime and process collectors.
func NewAggregator() *Aggregator {
	a := &Aggregator{
		registry: prom.NewRegistry(),
		answers: prom.NewCounterVec(prom.CounterOpts{
			Name: "manara_answers_total",
			Help: "Replies returned, by kind (greeting, notfound, answered, error).",
		}, []string{"kind"}),
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "manara_stage_duration_seconds",
			Help:    "Latency of backend calls by pipeline stage.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		backendErrors: prom.NewCounterVec(prom.CounterOpts{
			Name: "manara_backend_errors_total",
			Help: "Failed backend calls by pipeline stage.",
		}, []string{"stage"}),
	}
	a.registry.MustRegister(
		a.answers,
		a.stageDuration,
		a.backendErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return a
}

// Registry exposes the underlying registry, mainly for tests.
func (a *Aggregator) Registry() *prom.Registry { return a.registry }

// Handler serves the registry in the Prometheus exposition format.
func (a *Aggregator) Handler() http.Handler {
	return promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
}

// RecordReply counts one reply by kind. It matches rag.Options.OnReply.
func (a *Aggregator) RecordReply(r rag.Reply) {
	a.answers.WithLabelValues(string(r.Kind)).Inc()
	if r.Err != nil {
		logging.LogEvent("[METRICS] %s reply carried error: %v", r.Kind, r.Err)
	}
}

// observe records one backend call for stage.
func (a *Aggregator) observe(stage rag.Stage, start time.Time, err error) {
	a.stageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
	if err != nil {
		a.backendErrors.WithLabelValues(string(stage)).Inc()
	}
}
