// Package prometheus exports pipeline metrics to Prometheus.
package prometheus

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/imdeck/internal/core/ports/driven"
)

// Ensure Recorder implements the interface.
var _ driven.MetricsRecorder = (*Recorder)(nil)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "imdeck"

// Recorder counts finished jobs, fallbacks and completion calls, and
// observes stage latency.
type Recorder struct {
	gatherer        promclient.Gatherer
	jobsFinished    *promclient.CounterVec
	stageDuration   *promclient.HistogramVec
	draftFallbacks  promclient.Counter
	completionCalls *promclient.CounterVec
}

// New registers the pipeline metrics on reg. A nil reg uses a fresh
// registry, which Handler then serves.
func New(namespace string, reg *promclient.Registry) (*Recorder, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = promclient.NewRegistry()
	}

	r := &Recorder{
		gatherer: reg,
		jobsFinished: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Jobs that reached a terminal status.",
		}, []string{"status"}),
		stageDuration: promclient.NewHistogramVec(promclient.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Latency of pipeline stages.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		draftFallbacks: promclient.NewCounter(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "draft_fallbacks_total",
			Help:      "Slides that received fallback copy.",
		}),
		completionCalls: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "completion_calls_total",
			Help:      "Completion requests by outcome.",
		}, []string{"outcome"}),
	}

	for _, c := range []promclient.Collector{r.jobsFinished, r.stageDuration, r.draftFallbacks, r.completionCalls} {
		if err := reg.Register(c); err != nil {
			var are promclient.AlreadyRegisteredError
			if errors.As(err, &are) {
				return nil, fmt.Errorf("metrics already registered in namespace %s: %w", namespace, err)
			}
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return r, nil
}

// JobFinished counts a job reaching a terminal status.
func (r *Recorder) JobFinished(status string) {
	r.jobsFinished.WithLabelValues(status).Inc()
}

// StageDuration observes a stage latency.
func (r *Recorder) StageDuration(stage string, d time.Duration) {
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// DraftFallbacks adds n fallback slides.
func (r *Recorder) DraftFallbacks(n int) {
	if n > 0 {
		r.draftFallbacks.Add(float64(n))
	}
}

// CompletionCall counts a completion request by outcome.
func (r *Recorder) CompletionCall(outcome string) {
	r.completionCalls.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
