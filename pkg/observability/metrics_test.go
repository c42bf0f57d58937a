package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superego-agent/gateflow/pkg/domain"
)

func TestMetricsCountNodeVisits(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	hooks := m.Hooks()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		hooks.OnNodeEnter(ctx, &domain.NodeEvent{Node: domain.NodeGate})
	}
	hooks.OnNodeEnter(ctx, &domain.NodeEvent{Node: domain.NodeAct})

	assert.Equal(t, float64(3), testutil.ToFloat64(m.nodeVisits.WithLabelValues("gate")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.nodeVisits.WithLabelValues("act")))
}

func TestMetricsCountToolOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	hooks := m.Hooks()

	ctx := context.Background()
	hooks.OnToolCall(ctx, &domain.ToolEvent{ToolName: "calculator", CallID: "call_1"})
	hooks.OnToolReturn(ctx, &domain.ToolEvent{ToolName: "calculator", CallID: "call_1"})
	hooks.OnToolReturn(ctx, &domain.ToolEvent{ToolName: "calculator", CallID: "call_2", IsError: true})

	assert.Equal(t, float64(1), testutil.ToFloat64(m.toolCalls.WithLabelValues("calculator", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.toolCalls.WithLabelValues("calculator", "error")))

	// The in-flight map must not leak entries once calls return.
	m.mu.Lock()
	assert.Empty(t, m.started)
	m.mu.Unlock()
}

func TestMetricsCountDecisions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	hooks := m.Hooks()

	ctx := context.Background()
	hooks.OnDecision(ctx, &domain.DecisionEvent{Decision: domain.DecisionAllow})
	hooks.OnDecision(ctx, &domain.DecisionEvent{Decision: domain.DecisionDeny})
	hooks.OnDecision(ctx, &domain.DecisionEvent{Decision: domain.DecisionDeny})

	assert.Equal(t, float64(1), testutil.ToFloat64(m.decisions.WithLabelValues("allow")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.decisions.WithLabelValues("deny")))
}

func TestMergeHooksFansOut(t *testing.T) {
	var first, second int
	merged := MergeHooks(
		domain.LifecycleHooks{OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) { first++ }},
		domain.LifecycleHooks{OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) { second++ }},
		domain.LifecycleHooks{}, // nil callbacks must be skipped
	)

	require.NotNil(t, merged.OnNodeEnter)
	merged.OnNodeEnter(context.Background(), &domain.NodeEvent{Node: domain.NodeGate})

	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
}
