package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/superego-agent/gateflow/pkg/domain"
)

// Metrics records engine activity as Prometheus collectors.
type Metrics struct {
	nodeVisits   *prometheus.CounterVec
	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
	decisions    *prometheus.CounterVec

	mu      sync.Mutex
	started map[string]time.Time
}

// NewMetrics creates the collectors and registers them on the given registerer.
// Pass prometheus.DefaultRegisterer to expose them via promhttp.Handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		nodeVisits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateflow_node_visits_total",
				Help: "Total number of node visits",
			},
			[]string{"node"},
		),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateflow_tool_calls_total",
				Help: "Total number of tool invocations",
			},
			[]string{"tool_name", "outcome"},
		),
		toolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "gateflow_tool_duration_seconds",
				Help: "Duration of tool executions",
			},
			[]string{"tool_name"},
		),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateflow_decisions_total",
				Help: "Total number of screening verdicts by outcome",
			},
			[]string{"decision"},
		),
		started: make(map[string]time.Time),
	}
	reg.MustRegister(m.nodeVisits, m.toolCalls, m.toolDuration, m.decisions)
	return m
}

// Hooks returns lifecycle hooks that feed the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			m.nodeVisits.WithLabelValues(string(e.Node)).Inc()
		},
		OnToolCall: func(ctx context.Context, e *domain.ToolEvent) {
			m.mu.Lock()
			m.started[e.CallID] = time.Now()
			m.mu.Unlock()
		},
		OnToolReturn: func(ctx context.Context, e *domain.ToolEvent) {
			outcome := "ok"
			if e.IsError {
				outcome = "error"
			}
			m.toolCalls.WithLabelValues(e.ToolName, outcome).Inc()

			m.mu.Lock()
			start, ok := m.started[e.CallID]
			delete(m.started, e.CallID)
			m.mu.Unlock()
			if ok {
				m.toolDuration.WithLabelValues(e.ToolName).Observe(time.Since(start).Seconds())
			}
		},
		OnDecision: func(ctx context.Context, e *domain.DecisionEvent) {
			m.decisions.WithLabelValues(e.Decision.String()).Inc()
		},
	}
}

// MergeHooks fans events out to every hook set in order.
func MergeHooks(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			for _, h := range hooks {
				if h.OnNodeEnter != nil {
					h.OnNodeEnter(ctx, e)
				}
			}
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			for _, h := range hooks {
				if h.OnNodeLeave != nil {
					h.OnNodeLeave(ctx, e)
				}
			}
		},
		OnToolCall: func(ctx context.Context, e *domain.ToolEvent) {
			for _, h := range hooks {
				if h.OnToolCall != nil {
					h.OnToolCall(ctx, e)
				}
			}
		},
		OnToolReturn: func(ctx context.Context, e *domain.ToolEvent) {
			for _, h := range hooks {
				if h.OnToolReturn != nil {
					h.OnToolReturn(ctx, e)
				}
			}
		},
		OnDecision: func(ctx context.Context, e *domain.DecisionEvent) {
			for _, h := range hooks {
				if h.OnDecision != nil {
					h.OnDecision(ctx, e)
				}
			}
		},
	}
}

// LoggingHooks emits one structured log line per lifecycle event.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(ctx context.Context, e *domain.NodeEvent) {
			logger.Info("node_enter", "session_id", e.SessionID, "node", string(e.Node), "variant", string(e.Variant))
		},
		OnNodeLeave: func(ctx context.Context, e *domain.NodeEvent) {
			logger.Info("node_leave", "session_id", e.SessionID, "node", string(e.Node))
		},
		OnToolCall: func(ctx context.Context, e *domain.ToolEvent) {
			logger.Info("tool_call", "session_id", e.SessionID, "tool_name", e.ToolName, "call_id", e.CallID)
		},
		OnToolReturn: func(ctx context.Context, e *domain.ToolEvent) {
			logger.Info("tool_return", "session_id", e.SessionID, "tool_name", e.ToolName, "is_error", e.IsError)
		},
		OnDecision: func(ctx context.Context, e *domain.DecisionEvent) {
			logger.Info("decision", "session_id", e.SessionID, "decision", e.Decision.String())
		},
	}
}
