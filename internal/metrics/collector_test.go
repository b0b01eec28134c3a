package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	return NewCollector("enerzal", registry, zap.NewNop()), registry
}

func TestCollector_Counters(t *testing.T) {
	c, _ := newTestCollector(t)

	c.RecordInvocation()
	c.RecordInvocation()
	assert.Equal(t, 2.0, testutil.ToFloat64(c.invocations))

	c.RecordRoutingDecision(true)
	c.RecordRoutingDecision(true)
	c.RecordRoutingDecision(false)
	assert.Equal(t, 2.0, testutil.ToFloat64(c.routingDecisions.WithLabelValues("yes")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.routingDecisions.WithLabelValues("no")))

	c.RecordError("classify")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pipelineErrors.WithLabelValues("classify")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.pipelineErrors.WithLabelValues("generate")))

	c.RecordChunk("message")
	c.RecordChunk("raw")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.chunksStreamed.WithLabelValues("message")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.chunksStreamed.WithLabelValues("raw")))
}

func TestCollector_StageDuration(t *testing.T) {
	c, registry := newTestCollector(t)

	c.RecordStageDuration("classify", 50*time.Millisecond)
	c.RecordStageDuration("classify", 150*time.Millisecond)

	families, err := registry.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != "enerzal_stage_duration_seconds" {
			continue
		}
		require.Len(t, family.GetMetric(), 1)
		assert.Equal(t, uint64(2), family.GetMetric()[0].GetHistogram().GetSampleCount())
		return
	}
	t.Fatal("stage duration histogram not registered")
}

func TestCollector_RegistersOnGivenRegistry(t *testing.T) {
	c, registry := newTestCollector(t)

	// Counter vecs without observations gather empty; exercise one series each.
	c.RecordInvocation()
	c.RecordRoutingDecision(true)
	c.RecordError("generate")
	c.RecordChunk("message")
	c.RecordStageDuration("generate", time.Millisecond)

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, family := range families {
		names[family.GetName()] = true
	}
	for _, want := range []string{
		"enerzal_invocations_total",
		"enerzal_routing_decisions_total",
		"enerzal_pipeline_errors_total",
		"enerzal_generation_chunks_total",
		"enerzal_stage_duration_seconds",
	} {
		assert.True(t, names[want], "expected metric %s", want)
	}
}
