// Package openai implements the model invocation boundary against any
// OpenAI-compatible chat completions endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/superego-agent/gateflow/pkg/domain"
	"github.com/superego-agent/gateflow/pkg/ports"
)

// Config selects the endpoint and model for a Client.
type Config struct {
	APIKey       string
	BaseURL      string
	Path         string
	Model        string
	Temperature  *float64
	ExtraHeaders map[string]string
}

// Client calls a chat completions endpoint and maps the reply onto the
// transcript message model. It implements ports.ModelClient.
type Client struct {
	cfg    Config
	role   domain.Role
	client *http.Client
}

const defaultRequestTimeout = 2 * time.Minute

var _ ports.ModelClient = (*Client)(nil)

// NewClient creates a client that labels its replies with the given role.
// The policy stage and the response stage each get their own client so the
// transcript records which stage authored each message.
func NewClient(cfg Config, role domain.Role) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if strings.TrimSpace(cfg.Path) == "" {
		cfg.Path = "/v1/chat/completions"
	}
	return &Client{
		cfg:    cfg,
		role:   role,
		client: &http.Client{Timeout: 0},
	}
}

// Invoke implements ports.ModelClient.
func (c *Client) Invoke(ctx context.Context, req ports.ModelRequest) (domain.Message, error) {
	requestCtx, cancel := withDefaultRequestDeadline(ctx)
	defer cancel()

	body, err := json.Marshal(c.toWireRequest(req))
	if err != nil {
		return domain.Message{}, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(requestCtx, http.MethodPost, c.cfg.BaseURL+c.cfg.Path, bytes.NewReader(body))
	if err != nil {
		return domain.Message{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range c.cfg.ExtraHeaders {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return domain.Message{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return domain.Message{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Message{}, &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return domain.Message{}, fmt.Errorf("decode response: %w", err)
	}
	return c.fromWireResponse(wire)
}

// APIError is a non-2xx reply from the endpoint.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat completions failed: status %d: %s", e.StatusCode, e.Body)
}

// -- Wire format --

type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireToolSpec `json:"function"`
}

type wireToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type wireResponse struct {
	Choices []struct {
		Message struct {
			Content   string         `json:"content"`
			ToolCalls []wireToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (c *Client) toWireRequest(req ports.ModelRequest) wireRequest {
	out := wireRequest{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
	}
	if req.System != "" {
		out.Messages = append(out.Messages, wireMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, toWireMessage(m))
	}
	for _, t := range req.Tools {
		out.Tools = append(out.Tools, wireTool{
			Type: "function",
			Function: wireToolSpec{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

func toWireMessage(m domain.Message) wireMessage {
	out := wireMessage{Content: m.Content}
	switch m.Role {
	case domain.RoleUser:
		out.Role = "user"
	case domain.RoleTool:
		out.Role = "tool"
		out.ToolCallID = m.ToolCallID
	default:
		// Policy and response messages both read back as assistant turns.
		out.Role = "assistant"
	}
	for _, tc := range m.ToolCalls {
		args, err := json.Marshal(tc.Args)
		if err != nil {
			args = []byte("{}")
		}
		out.ToolCalls = append(out.ToolCalls, wireToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: wireFunction{
				Name:      tc.Name,
				Arguments: string(args),
			},
		})
	}
	return out
}

func (c *Client) fromWireResponse(wire wireResponse) (domain.Message, error) {
	if len(wire.Choices) == 0 {
		return domain.Message{}, fmt.Errorf("chat completions response missing choices")
	}
	choice := wire.Choices[0]

	msg := domain.Message{
		Role:    c.role,
		Content: choice.Message.Content,
	}
	for _, tc := range choice.Message.ToolCalls {
		args := map[string]any{}
		if s := strings.TrimSpace(tc.Function.Arguments); s != "" {
			if err := json.Unmarshal([]byte(s), &args); err != nil {
				return domain.Message{}, fmt.Errorf("tool call %s: malformed arguments: %w", tc.Function.Name, err)
			}
		}
		msg.ToolCalls = append(msg.ToolCalls, domain.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}
	return msg, nil
}

func withDefaultRequestDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), defaultRequestTimeout)
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultRequestTimeout)
}
