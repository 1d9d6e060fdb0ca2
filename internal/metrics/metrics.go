// Package metrics records operational metrics for the download and load
// tools behind a small backend-agnostic interface.
//
// A process-wide backend defaults to a no-op, so instrumentation is always
// safe to call. Concrete systems live in subpackages (prompush for a
// Prometheus Pushgateway, datadog for DogStatsD) and are installed once by
// the CLI with SetBackend.
//
// Metric names:
//
//	ymlogs_step_total             counter   job, step, status
//	ymlogs_step_duration_seconds  histogram job, step, status
//	ymlogs_records_total          counter   job, kind
//	ymlogs_batches_total          counter   job
package metrics

import (
	"sync"
	"time"
)

// Metric names shared by the facade and the backends.
const (
	StepTotal           = "ymlogs_step_total"
	StepDurationSeconds = "ymlogs_step_duration_seconds"
	RecordsTotal        = "ymlogs_records_total"
	BatchesTotal        = "ymlogs_batches_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a duration-style observation.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes buffered metrics.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// SetBackend installs b. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

// Flush delegates to the current backend.
func Flush() error { return current().Flush() }

// RecordStep counts one execution of a lifecycle step and observes its
// duration, labelled success or failure by err.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// Since is RecordStep with the duration measured from start; it is meant
// for defer at the top of a step.
func Since(job, step string, start time.Time, err *error) {
	var e error
	if err != nil {
		e = *err
	}
	RecordStep(job, step, e, time.Since(start))
}

// RecordRows adds delta to the record counter of kind, e.g. "downloaded",
// "written", "inserted".
func RecordRows(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(delta), Labels{"job": job, "kind": kind})
}

// RecordBatches adds delta to the inserted-batch counter.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(BatchesTotal, float64(delta), Labels{"job": job})
}
