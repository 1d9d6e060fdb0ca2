// Package prompush pushes metrics to a Prometheus Pushgateway.
//
// The tools are short-lived batch jobs, so there is nothing to scrape; the
// collected registry is pushed once on Flush. The Pushgateway grouping key is
// job=<job> plus run_id=<run id> when one is given, so consecutive runs do
// not overwrite each other's series.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/keatumal/yandex-metrika-logs/internal/metrics"
)

// stepBuckets span quick API calls up to report polling that can take an
// hour.
var stepBuckets = []float64{0.05, 0.25, 1, 5, 30, 120, 600, 1800, 3600}

// Backend is a Pushgateway metrics.Backend.
type Backend struct {
	gatewayURL string
	jobName    string
	runID      string
	reg        *prometheus.Registry

	steps     *prometheus.CounterVec
	durations *prometheus.HistogramVec
	records   *prometheus.CounterVec
	batches   prometheus.Counter
}

// NewBackend registers the collectors on a private registry. jobName
// defaults to "ymlogs"; runID may be empty.
func NewBackend(jobName, runID, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "ymlogs"
	}

	b := &Backend{
		gatewayURL: gatewayURL,
		jobName:    jobName,
		runID:      runID,
		reg:        prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Report lifecycle step executions by step and status.",
		}, []string{"step", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metrics.StepDurationSeconds,
			Help:    "Report lifecycle step duration in seconds by step and status.",
			Buckets: stepBuckets,
		}, []string{"step", "status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Records handled by kind (downloaded, written, inserted).",
		}, []string{"kind"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: metrics.BatchesTotal,
			Help: "Insert batches committed to the destination table.",
		}),
	}
	for _, c := range []prometheus.Collector{b.steps, b.durations, b.records, b.batches} {
		if err := b.reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register collector: %w", err)
		}
	}
	return b, nil
}

// IncCounter routes known counter names to their collectors; unknown names
// are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.steps != nil {
			b.steps.WithLabelValues(labels["step"], labels["status"]).Add(delta)
		}
	case metrics.RecordsTotal:
		if b.records != nil {
			b.records.WithLabelValues(labels["kind"]).Add(delta)
		}
	case metrics.BatchesTotal:
		if b.batches != nil {
			b.batches.Add(delta)
		}
	}
}

// ObserveHistogram records step durations; other names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDurationSeconds || b.durations == nil {
		return
	}
	b.durations.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the registry to the Pushgateway.
func (b *Backend) Flush() error {
	p := push.New(b.gatewayURL, b.jobName).Gatherer(b.reg)
	if b.runID != "" {
		p = p.Grouping("run_id", b.runID)
	}
	if err := p.Push(); err != nil {
		return fmt.Errorf("prompush: push to %s: %w", b.gatewayURL, err)
	}
	return nil
}
