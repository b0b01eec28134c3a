// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Collector aggregates the pipeline's Prometheus metrics.
type Collector struct {
	routingDecisions *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	pipelineErrors   *prometheus.CounterVec
	chunksStreamed   *prometheus.CounterVec
	invocations      prometheus.Counter

	logger *zap.Logger
}

// NewCollector creates a collector and registers its metrics on registerer.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in
// tests.
func NewCollector(namespace string, registerer prometheus.Registerer, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	factory := func(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
		vec := prometheus.NewCounterVec(opts, labels)
		registerer.MustRegister(vec)
		return vec
	}

	c.routingDecisions = factory(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "routing_decisions_total",
		Help:      "Total routing classifier decisions by outcome",
	}, []string{"required"})

	c.pipelineErrors = factory(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_errors_total",
		Help:      "Total pipeline failures by stage",
	}, []string{"stage"})

	c.chunksStreamed = factory(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "generation_chunks_total",
		Help:      "Total generation chunks relayed by kind",
	}, []string{"kind"})

	c.stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Pipeline stage duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})
	registerer.MustRegister(c.stageDuration)

	c.invocations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invocations_total",
		Help:      "Total pipeline invocations",
	})
	registerer.MustRegister(c.invocations)

	return c
}

// RecordInvocation counts one pipeline invocation.
func (c *Collector) RecordInvocation() {
	c.invocations.Inc()
}

// RecordRoutingDecision counts one classifier outcome.
func (c *Collector) RecordRoutingDecision(required bool) {
	label := "no"
	if required {
		label = "yes"
	}
	c.routingDecisions.WithLabelValues(label).Inc()
}

// RecordStageDuration records how long a pipeline stage took.
func (c *Collector) RecordStageDuration(stage string, d time.Duration) {
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordError counts one pipeline failure at the given stage.
func (c *Collector) RecordError(stage string) {
	c.pipelineErrors.WithLabelValues(stage).Inc()
}

// RecordChunk counts one relayed generation chunk.
// kind is "message" or "raw".
func (c *Collector) RecordChunk(kind string) {
	c.chunksStreamed.WithLabelValues(kind).Inc()
}
