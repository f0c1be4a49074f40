package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once        sync.Once
	toolRuns    *prom.CounterVec
	primaryRuns prom.Histogram
	jobDuration prom.Histogram
	jobOutcome  *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.toolRuns = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "texbuilder",
			Name:      "tool_runs_total",
			Help:      "External tool invocations by tool and result",
		}, []string{"tool", "result"})
		pr.primaryRuns = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "texbuilder",
			Name:      "primary_runs_per_job",
			Help:      "Primary formatter runs needed per job before stabilization",
			Buckets:   []float64{1, 2, 3, 4, 5, 7, 10},
		})
		pr.jobDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: "texbuilder",
			Name:      "job_duration_seconds",
			Help:      "Total job duration including postprocessing",
			Buckets:   prom.DefBuckets,
		})
		pr.jobOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "texbuilder",
			Name:      "job_outcomes_total",
			Help:      "Job outcomes by final status",
		}, []string{"outcome"})
		reg.MustRegister(pr.toolRuns, pr.primaryRuns, pr.jobDuration, pr.jobOutcome)
	})
	return pr
}

func (p *PrometheusRecorder) IncToolRun(tool string, result ResultLabel) {
	if p == nil || p.toolRuns == nil {
		return
	}
	p.toolRuns.WithLabelValues(tool, string(result)).Inc()
}

func (p *PrometheusRecorder) ObservePrimaryRuns(n int) {
	if p == nil || p.primaryRuns == nil {
		return
	}
	p.primaryRuns.Observe(float64(n))
}

func (p *PrometheusRecorder) ObserveJobDuration(d time.Duration) {
	if p == nil || p.jobDuration == nil {
		return
	}
	p.jobDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncJobOutcome(outcome string) {
	if p == nil || p.jobOutcome == nil {
		return
	}
	p.jobOutcome.WithLabelValues(outcome).Inc()
}
