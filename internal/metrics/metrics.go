// Package metrics exposes assessment counters on a dedicated Prometheus
// registry. Only statuses, kinds and scores are recorded, never biomarker values.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/biomarker-assessment-engine/internal/domain"
)

const namespace = "biomarker"

// Recorder implements service.OutcomeObserver.
type Recorder struct {
	registry       *prometheus.Registry
	assessments    *prometheus.CounterVec
	safetyFindings *prometheus.CounterVec
	extracted      prometheus.Histogram
	domainScores   *prometheus.HistogramVec
	processingTime prometheus.Histogram
	httpRequests   *prometheus.CounterVec
}

// Options toggles the runtime collectors.
type Options struct {
	GoMetrics      bool
	ProcessMetrics bool
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder(opts Options) *Recorder {
	registry := prometheus.NewRegistry()
	if opts.GoMetrics {
		registry.MustRegister(collectors.NewGoCollector())
	}
	if opts.ProcessMetrics {
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}))
	}

	r := &Recorder{
		registry: registry,
		assessments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_total",
			Help:      "Assessments by terminal status.",
		}, []string{"status"}),
		safetyFindings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "safety_findings_total",
			Help:      "Safety findings by kind.",
		}, []string{"kind"}),
		extracted: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extracted_biomarkers",
			Help:      "Biomarkers present in each assessed profile.",
			Buckets:   []float64{0, 2, 4, 6, 8, 12, 16, 20, 27},
		}),
		domainScores: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "domain_scores",
			Help:      "Domain scores on the 0-100 scale.",
			Buckets:   []float64{40, 55, 70, 85, 100},
		}, []string{"domain"}),
		processingTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assessment_duration_seconds",
			Help:      "Pipeline processing time.",
			Buckets:   prometheus.DefBuckets,
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
	}

	registry.MustRegister(r.assessments, r.safetyFindings, r.extracted,
		r.domainScores, r.processingTime, r.httpRequests)
	return r
}

// ObserveOutcome records one finished pipeline run.
func (r *Recorder) ObserveOutcome(_ context.Context, outcome *domain.AssessmentOutcome) {
	if outcome == nil {
		return
	}
	r.assessments.WithLabelValues(string(outcome.Status)).Inc()
	r.extracted.Observe(float64(outcome.Profile.Len()))
	r.processingTime.Observe(outcome.ProcessingTime.Seconds())

	if n := len(outcome.Safety.EmergencyFindings); n > 0 {
		r.safetyFindings.WithLabelValues("emergency").Add(float64(n))
	}
	if n := len(outcome.Safety.OutOfScopeFindings); n > 0 {
		r.safetyFindings.WithLabelValues("out_of_scope").Add(float64(n))
	}

	if outcome.Assessment != nil {
		for _, s := range outcome.Assessment.Scores {
			r.domainScores.WithLabelValues(string(s.Domain)).Observe(s.Score)
		}
	}
}

// ObserveRequest counts one HTTP request.
func (r *Recorder) ObserveRequest(route, code string) {
	r.httpRequests.WithLabelValues(route, code).Inc()
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
