package middleware

import (
	"context"
	"regexp"

	"github.com/superego-agent/gateflow/pkg/domain"
	"github.com/superego-agent/gateflow/pkg/ports"
)

type redactionMiddleware struct {
	next     ports.CheckpointStore
	patterns []*regexp.Regexp
}

// NewRedactionMiddleware creates a middleware that masks content matching
// the patterns before a checkpoint is written. Typical patterns cover email
// addresses, card numbers, or internal identifiers. The in-memory session
// used by the engine is never modified.
func NewRedactionMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.CheckpointStore) ports.CheckpointStore {
		return &redactionMiddleware{next: next, patterns: patterns}
	}
}

func (m *redactionMiddleware) Save(ctx context.Context, sessionID string, session *domain.Session) error {
	// Deep clone to avoid side effects on the session used by the engine.
	cloned := session.Snapshot()

	for i := range cloned.Messages {
		msg := &cloned.Messages[i]
		msg.Content = m.mask(msg.Content)
		for j := range msg.ToolCalls {
			// Snapshot copies arg maps one level deep; nested maps still
			// alias the original, so rebuild them before masking.
			msg.ToolCalls[j].Args = deepCopyArgs(msg.ToolCalls[j].Args)
			maskArgs(msg.ToolCalls[j].Args, m.mask)
		}
	}

	return m.next.Save(ctx, sessionID, cloned)
}

func (m *redactionMiddleware) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *redactionMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *redactionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// Helpers

func (m *redactionMiddleware) mask(s string) string {
	for _, p := range m.patterns {
		s = p.ReplaceAllString(s, "***")
	}
	return s
}

func deepCopyArgs(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		if subMap, ok := v.(map[string]any); ok {
			out[k] = deepCopyArgs(subMap)
		} else {
			out[k] = v
		}
	}
	return out
}

func maskArgs(args map[string]any, mask func(string) string) {
	for k, v := range args {
		switch val := v.(type) {
		case string:
			args[k] = mask(val)
		case map[string]any:
			maskArgs(val, mask)
		}
	}
}
