// Package metrics records sweep progress as Prometheus metrics.
//
// A sweep is a one-shot process, so metrics are exported either by writing
// a node-exporter textfile when the run ends or by pushing to a Pushgateway.
// All Recorder methods are safe to call on a nil *Recorder.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Namespace prefixes every metric name.
const Namespace = "prpsweep"

// Step results.
const (
	ResultPass = "pass"
	ResultFail = "fail"
)

// Transfer directions.
const (
	DirectionWrite = "write"
	DirectionRead  = "read"
)

// Recorder owns a registry and the sweep collectors registered in it.
type Recorder struct {
	registry *prometheus.Registry

	steps       *prometheus.CounterVec
	bytes       *prometheus.CounterVec
	truncations prometheus.Counter
	latency     *prometheus.HistogramVec
	offset      prometheus.Gauge
}

// NewRecorder returns a recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "sweep",
				Name:      "steps_total",
				Help:      "Counter of executed sweep steps by result.",
			}, []string{"result"}),

		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "sweep",
				Name:      "bytes_total",
				Help:      "Counter of payload bytes transferred by direction.",
			}, []string{"direction"}),

		truncations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "sweep",
				Name:      "ceiling_truncations_total",
				Help:      "Counter of offsets whose block counts were cut by the transfer ceiling.",
			}),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "transport",
				Name:      "command_seconds",
				Help:      "Bucketed histogram of command submit-to-completion time.",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			}, []string{"opcode"}),

		offset: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "sweep",
				Name:      "page_offset_bytes",
				Help:      "First-page offset of the step in progress.",
			}),
	}

	r.registry.MustRegister(r.steps, r.bytes, r.truncations, r.latency, r.offset)
	return r
}

// Registry returns the registry holding the sweep collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Step counts one executed step with the given result.
func (r *Recorder) Step(result string) {
	if r == nil {
		return
	}
	r.steps.WithLabelValues(result).Inc()
}

// Bytes adds n payload bytes moved in direction.
func (r *Recorder) Bytes(direction string, n uint64) {
	if r == nil {
		return
	}
	r.bytes.WithLabelValues(direction).Add(float64(n))
}

// Truncation counts one transfer ceiling truncation.
func (r *Recorder) Truncation() {
	if r == nil {
		return
	}
	r.truncations.Inc()
}

// Command observes the latency of one command.
func (r *Recorder) Command(opcode string, d time.Duration) {
	if r == nil {
		return
	}
	r.latency.WithLabelValues(opcode).Observe(d.Seconds())
}

// Offset records the offset of the step in progress.
func (r *Recorder) Offset(off uint64) {
	if r == nil {
		return
	}
	r.offset.Set(float64(off))
}

// WriteTextfile writes every collected metric to path in the text
// exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}

// Push sends every collected metric to the Pushgateway at url under job,
// grouped by instance.
func (r *Recorder) Push(url, job, instance string) error {
	if r == nil {
		return nil
	}
	p := push.New(url, job).Gatherer(r.registry)
	if instance != "" {
		p = p.Grouping("instance", instance)
	}
	if err := p.Push(); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
