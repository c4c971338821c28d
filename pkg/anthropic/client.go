// Package anthropic wraps the official SDK behind a small client interface
// so the agent can be tested against a fake, and adds client-side rate
// limiting and transient-error tagging for the retry layer.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/elegant-foods/costing-cli/internal/resilience"
)

// maxToolIterations bounds the tool-use loop so a misbehaving model cannot
// spin forever.
const maxToolIterations = 5

// Client defines the Anthropic API operations used by the estimation agent.
type Client interface {
	CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
	// RunToolLoop sends the request and services tool_use turns with handle
	// until the model produces a final answer.
	RunToolLoop(ctx context.Context, req MessageRequest, handle ToolHandler) (*MessageResponse, error)
}

// ToolHandler executes one tool invocation and returns its result payload.
type ToolHandler func(ctx context.Context, name string, input json.RawMessage) (string, error)

// MessageRequest is our own request type for CreateMessage.
type MessageRequest struct {
	Model       string
	MaxTokens   int64
	System      []SystemBlock
	Messages    []Message
	Tools       []Tool
	Temperature *float64
}

// SystemBlock represents a system prompt block, optionally with cache control.
type SystemBlock struct {
	Text         string
	CacheControl *CacheControl
}

// CacheControl configures caching for a content block.
type CacheControl struct {
	TTL string // "5m" or "1h"
}

// Message represents a single conversational message.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// Tool declares one callable tool in the model's toolbox.
type Tool struct {
	Name        string
	Description string
	// Properties is the JSON Schema "properties" object of the input.
	Properties map[string]any
	Required   []string
}

// MessageResponse is our own response type from CreateMessage.
type MessageResponse struct {
	ID         string
	Model      string
	Content    []ContentBlock
	StopReason string
	Usage      TokenUsage
}

// ContentBlock represents a block of content in a response.
type ContentBlock struct {
	Type      string // "text" or "tool_use"
	Text      string
	ToolUseID string
	ToolName  string
	ToolInput json.RawMessage
}

// Text concatenates all text blocks of the response.
func (r *MessageResponse) Text() string {
	var out string
	for _, b := range r.Content {
		if b.Type == "text" {
			out += b.Text
		}
	}
	return out
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

// Add accumulates usage from another call.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheCreationInputTokens += other.CacheCreationInputTokens
	u.CacheReadInputTokens += other.CacheReadInputTokens
}

// modelPricing holds per-million-token pricing for known models.
var modelPricing = map[string][2]float64{
	// model → {input $/MTok, output $/MTok}
	"claude-haiku-4-5-20251001":  {0.80, 4.00},
	"claude-sonnet-4-5-20250929": {3.00, 15.00},
	"claude-opus-4-6":            {15.00, 75.00},
}

// EstimateCost computes an estimated cost in USD from a TokenUsage and model ID.
// Returns 0 for unknown models.
func (u TokenUsage) EstimateCost(model string) float64 {
	pricing, ok := modelPricing[model]
	if !ok {
		return 0
	}
	inCost := (float64(u.InputTokens) / 1e6) * pricing[0]
	outCost := (float64(u.OutputTokens) / 1e6) * pricing[1]
	cacheWriteCost := (float64(u.CacheCreationInputTokens) / 1e6) * pricing[0] * 1.25
	cacheReadCost := (float64(u.CacheReadInputTokens) / 1e6) * pricing[0] * 0.1
	return inCost + outCost + cacheWriteCost + cacheReadCost
}

// LogCost logs token usage and estimated cost with structured zap fields.
func (u TokenUsage) LogCost(model, operation string) {
	zap.L().Info("cost attribution",
		zap.String("model", model),
		zap.String("operation", operation),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Int64("cache_write_tokens", u.CacheCreationInputTokens),
		zap.Int64("cache_read_tokens", u.CacheReadInputTokens),
		zap.Float64("estimated_cost_usd", u.EstimateCost(model)),
	)
}

// ClientOption configures the SDK-backed client.
type ClientOption func(*sdkClient)

// WithRateLimit overrides the default request rate limit (2 req/s).
func WithRateLimit(rps float64) ClientOption {
	return func(c *sdkClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// sdkClient implements Client using the official anthropic-sdk-go.
type sdkClient struct {
	client  sdk.Client
	limiter *rate.Limiter
}

// NewClient creates a new Anthropic client backed by the SDK. API calls are
// throttled client-side so sequential batch runs stay inside rate limits.
func NewClient(apiKey string, opts ...ClientOption) Client {
	c := &sdkClient{
		client:  sdk.NewClient(option.WithAPIKey(apiKey)),
		limiter: rate.NewLimiter(2, 2),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *sdkClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	msg, err := c.send(ctx, toSDKParams(req))
	if err != nil {
		return nil, err
	}
	return fromSDKMessage(msg), nil
}

func (c *sdkClient) RunToolLoop(ctx context.Context, req MessageRequest, handle ToolHandler) (*MessageResponse, error) {
	params := toSDKParams(req)
	usage := TokenUsage{}

	for i := 0; i < maxToolIterations; i++ {
		msg, err := c.send(ctx, params)
		if err != nil {
			return nil, err
		}

		resp := fromSDKMessage(msg)
		usage.Add(resp.Usage)

		if string(msg.StopReason) != "tool_use" {
			resp.Usage = usage
			return resp, nil
		}

		// Echo the assistant turn, then answer every tool_use block.
		params.Messages = append(params.Messages, msg.ToParam())
		var results []sdk.ContentBlockParamUnion
		for _, b := range resp.Content {
			if b.Type != "tool_use" {
				continue
			}
			payload, err := handle(ctx, b.ToolName, b.ToolInput)
			isErr := err != nil
			if isErr {
				payload = err.Error()
			}
			results = append(results, sdk.ContentBlockParamUnion{
				OfToolResult: &sdk.ToolResultBlockParam{
					ToolUseID: b.ToolUseID,
					IsError:   sdk.Bool(isErr),
					Content: []sdk.ToolResultBlockParamContentUnion{
						{OfText: &sdk.TextBlockParam{Text: payload}},
					},
				},
			})
		}
		params.Messages = append(params.Messages, sdk.NewUserMessage(results...))
	}

	return nil, eris.Errorf("anthropic: tool loop exceeded %d iterations", maxToolIterations)
}

// send performs one rate-limited API call, tagging retryable failures.
func (c *sdkClient) send(ctx context.Context, params sdk.MessageNewParams) (*sdk.Message, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "anthropic: rate limit wait")
		}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
			return nil, resilience.NewTransientError(eris.Wrap(err, "anthropic: create message"), apiErr.StatusCode)
		}
		return nil, eris.Wrap(err, "anthropic: create message")
	}
	return msg, nil
}

// --- SDK type conversion helpers ---

func toSDKParams(req MessageRequest) sdk.MessageNewParams {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  toSDKMessages(req.Messages),
	}

	if len(req.System) > 0 {
		params.System = toSDKSystemBlocks(req.System)
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}
	for _, t := range req.Tools {
		params.Tools = append(params.Tools, sdk.ToolUnionParam{
			OfTool: &sdk.ToolParam{
				Name:        t.Name,
				Description: sdk.String(t.Description),
				InputSchema: sdk.ToolInputSchemaParam{
					Properties: t.Properties,
					Required:   t.Required,
				},
			},
		})
	}
	return params
}

func toSDKMessages(msgs []Message) []sdk.MessageParam {
	out := make([]sdk.MessageParam, len(msgs))
	for i, m := range msgs {
		block := sdk.NewTextBlock(m.Content)
		switch m.Role {
		case "assistant":
			out[i] = sdk.NewAssistantMessage(block)
		default:
			out[i] = sdk.NewUserMessage(block)
		}
	}
	return out
}

func toSDKSystemBlocks(blocks []SystemBlock) []sdk.TextBlockParam {
	out := make([]sdk.TextBlockParam, len(blocks))
	for i, b := range blocks {
		out[i] = sdk.TextBlockParam{
			Text: b.Text,
		}
		if b.CacheControl != nil {
			cc := sdk.NewCacheControlEphemeralParam()
			if b.CacheControl.TTL != "" {
				cc.SetExtraFields(map[string]any{"ttl": b.CacheControl.TTL})
			}
			out[i].CacheControl = cc
		}
	}
	return out
}

func fromSDKMessage(msg *sdk.Message) *MessageResponse {
	blocks := make([]ContentBlock, 0, len(msg.Content))
	for _, b := range msg.Content {
		blocks = append(blocks, ContentBlock{
			Type:      b.Type,
			Text:      b.Text,
			ToolUseID: b.ID,
			ToolName:  b.Name,
			ToolInput: b.Input,
		})
	}

	return &MessageResponse{
		ID:         msg.ID,
		Model:      string(msg.Model),
		Content:    blocks,
		StopReason: string(msg.StopReason),
		Usage: TokenUsage{
			InputTokens:              msg.Usage.InputTokens,
			OutputTokens:             msg.Usage.OutputTokens,
			CacheCreationInputTokens: msg.Usage.CacheCreationInputTokens,
			CacheReadInputTokens:     msg.Usage.CacheReadInputTokens,
		},
	}
}
