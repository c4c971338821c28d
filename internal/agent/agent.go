// Package agent is the language-model collaborator boundary: it decomposes
// menu items into ingredients, estimates market prices for ingredients the
// catalog cannot source, and parses free-text menus into structured items.
// All model output is schema-validated before acceptance; a malformed reply
// is a recoverable DecompositionFailure, never trusted free-form text.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/elegant-foods/costing-cli/internal/catalog"
	"github.com/elegant-foods/costing-cli/internal/match"
	"github.com/elegant-foods/costing-cli/internal/model"
	"github.com/elegant-foods/costing-cli/internal/resilience"
	"github.com/elegant-foods/costing-cli/pkg/anthropic"
)

// ErrDecomposition is the sentinel for recoverable per-item collaborator
// failures: timeouts, malformed output, schema violations.
var ErrDecomposition = errors.New("decomposition failed")

// DecomposedIngredient is one ingredient as proposed by the collaborator,
// before pricing. Pricing authority stays with the resolver.
type DecomposedIngredient struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
}

// Decomposer is the external-capability contract consumed by the
// orchestrator.
type Decomposer interface {
	// Decompose breaks a menu item into per-serving ingredient quantities.
	Decompose(ctx context.Context, item model.MenuItem, learnings string) ([]DecomposedIngredient, error)
	// EstimateMarketPrice returns a positive market price for the requested
	// quantity, or 0 when the ingredient is judged non-sourceable.
	EstimateMarketPrice(ctx context.Context, name, quantity, category string) (float64, error)
	// ParseMenu turns free menu text into structured items.
	ParseMenu(ctx context.Context, freeText string) ([]model.MenuItem, error)
}

// Agent implements Decomposer against the Anthropic API, giving the model a
// search_catalog tool so ingredient granularity lines up with what the
// supplier actually sells.
type Agent struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	index       *catalog.Index
	searchK     int
	searchFloor float64
	retry       resilience.RetryConfig
}

// Option configures an Agent.
type Option func(*Agent)

// WithRetry overrides the retry policy for collaborator calls.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(a *Agent) { a.retry = cfg }
}

// WithSearchTopK overrides how many catalog candidates the search tool
// returns to the model.
func WithSearchTopK(k int) Option {
	return func(a *Agent) {
		if k > 0 {
			a.searchK = k
		}
	}
}

// WithSearchFloor overrides the plausibility floor below which catalog hits
// are withheld from the model.
func WithSearchFloor(floor float64) Option {
	return func(a *Agent) {
		if floor > 0 {
			a.searchFloor = floor
		}
	}
}

// New builds an Agent over the given client, model and catalog index.
func New(client anthropic.Client, llmModel string, maxTokens int64, ix *catalog.Index, opts ...Option) *Agent {
	a := &Agent{
		client:      client,
		model:       llmModel,
		maxTokens:   maxTokens,
		index:       ix,
		searchK:     3,
		searchFloor: 60,
		retry:       resilience.DefaultRetryConfig("agent"),
	}
	if a.maxTokens <= 0 {
		a.maxTokens = 4096
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

const decomposeSystemPrompt = `You are an expert catering estimator for Elegant Foods.

Break the given dish down into its component ingredients with realistic
per-serving quantities. Use the search_catalog tool to check how the supplier
names and sells candidate ingredients, and prefer ingredient names that line
up with catalog naming. Do not invent prices; pricing happens downstream.

Quantities must be simple amounts like "2 oz", "0.5 lb", "1 each".

Respond with a JSON object matching this schema exactly:
%s`

const estimateSystemPrompt = `You are a food market pricing analyst.

Estimate the current wholesale price for the requested quantity of an
ingredient that is missing from our supplier catalog. If the text is not a
real sourceable food ingredient, set "sourceable" to false and
"price_per_quantity" to null.

Respond with a JSON object matching this schema exactly:
%s`

const parseMenuSystemPrompt = `You parse catering menu text into structured items.

Extract every dish with its description and a category such as "appetizers",
"main_plates", "sides", or "desserts".

Respond with a JSON object matching this schema exactly:
%s`

// searchCatalogTool is the tool definition shown to the model.
var searchCatalogTool = anthropic.Tool{
	Name:        "search_catalog",
	Description: "Search the supplier catalog for an ingredient by name. Returns the closest SKUs with pack size and case price.",
	Properties: map[string]any{
		"query": map[string]any{
			"type":        "string",
			"description": "Ingredient name, e.g. 'heavy cream'",
		},
	},
	Required: []string{"query"},
}

func (a *Agent) Decompose(ctx context.Context, item model.MenuItem, learnings string) ([]DecomposedIngredient, error) {
	schemaJSON, _ := json.MarshalIndent(decompositionSchema(), "", "  ")
	itemJSON, _ := json.Marshal(item)

	req := anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System: []anthropic.SystemBlock{
			{
				Text:         fmt.Sprintf(decomposeSystemPrompt, schemaJSON),
				CacheControl: &anthropic.CacheControl{TTL: "5m"},
			},
			{Text: "Learnings from previous batches:\n" + learnings},
		},
		Messages: []anthropic.Message{
			{Role: "user", Content: "Decompose this menu item: " + string(itemJSON)},
		},
		Tools: []anthropic.Tool{searchCatalogTool},
	}

	resp, err := resilience.Retry(ctx, a.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return a.client.RunToolLoop(ctx, req, a.handleTool)
	})
	if err != nil {
		return nil, wrapDecomposition(err, "call model")
	}
	resp.Usage.LogCost(a.model, "decompose")

	raw := []byte(cleanJSON(resp.Text()))
	if err := validateAgainst(decompositionSchema(), raw); err != nil {
		return nil, wrapDecomposition(err, "validate output")
	}

	var out struct {
		Ingredients []DecomposedIngredient `json:"ingredients"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, wrapDecomposition(err, "decode output")
	}
	return out.Ingredients, nil
}

func (a *Agent) EstimateMarketPrice(ctx context.Context, name, quantity, category string) (float64, error) {
	schemaJSON, _ := json.MarshalIndent(estimateSchema(), "", "  ")

	req := anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: 1024,
		System: []anthropic.SystemBlock{
			{Text: fmt.Sprintf(estimateSystemPrompt, schemaJSON)},
		},
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf("Ingredient: %s\nQuantity: %s\nMenu category: %s", name, quantity, category)},
		},
	}

	resp, err := resilience.Retry(ctx, a.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return a.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return 0, wrapDecomposition(err, "call model")
	}
	resp.Usage.LogCost(a.model, "market_estimate")

	raw := []byte(cleanJSON(resp.Text()))
	if err := validateAgainst(estimateSchema(), raw); err != nil {
		return 0, wrapDecomposition(err, "validate output")
	}

	var out struct {
		Sourceable       bool     `json:"sourceable"`
		PricePerQuantity *float64 `json:"price_per_quantity"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, wrapDecomposition(err, "decode output")
	}
	if !out.Sourceable || out.PricePerQuantity == nil || *out.PricePerQuantity <= 0 {
		return 0, nil
	}
	return *out.PricePerQuantity, nil
}

func (a *Agent) ParseMenu(ctx context.Context, freeText string) ([]model.MenuItem, error) {
	schemaJSON, _ := json.MarshalIndent(menuSchema(), "", "  ")

	req := anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System: []anthropic.SystemBlock{
			{Text: fmt.Sprintf(parseMenuSystemPrompt, schemaJSON)},
		},
		Messages: []anthropic.Message{
			{Role: "user", Content: freeText},
		},
	}

	resp, err := resilience.Retry(ctx, a.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return a.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return nil, wrapDecomposition(err, "call model")
	}
	resp.Usage.LogCost(a.model, "parse_menu")

	raw := []byte(cleanJSON(resp.Text()))
	if err := validateAgainst(menuSchema(), raw); err != nil {
		return nil, wrapDecomposition(err, "validate output")
	}

	var out struct {
		Items []model.MenuItem `json:"items"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, wrapDecomposition(err, "decode output")
	}
	return out.Items, nil
}

// handleTool services search_catalog invocations from the tool loop.
func (a *Agent) handleTool(_ context.Context, name string, input json.RawMessage) (string, error) {
	if name != "search_catalog" {
		return "", fmt.Errorf("unknown tool %q", name)
	}
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(input, &args); err != nil || strings.TrimSpace(args.Query) == "" {
		return "", fmt.Errorf("search_catalog: missing query")
	}

	type hit struct {
		ItemNumber string  `json:"item_number"`
		Name       string  `json:"name"`
		Pack       string  `json:"pack"`
		CasePrice  float64 `json:"case_price"`
		Score      float64 `json:"match_score"`
	}
	// Hits below the plausibility floor are noise, not candidates; the model
	// sees an empty result for nonsense queries.
	hits := make([]hit, 0, a.searchK)
	for _, c := range match.Match(args.Query, a.index, a.searchK) {
		if c.Score < a.searchFloor {
			continue
		}
		hits = append(hits, hit{
			ItemNumber: c.Entry.ItemNumber,
			Name:       c.Entry.RawName,
			Pack:       c.Entry.PackDescription,
			CasePrice:  c.Entry.UnitPrice,
			Score:      c.Score,
		})
	}

	zap.L().Debug("catalog tool search",
		zap.String("query", args.Query),
		zap.Int("hits", len(hits)),
	)

	payload, err := json.Marshal(hits)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// cleanJSON attempts to extract a JSON object from text that may contain
// markdown code fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func wrapDecomposition(err error, what string) error {
	return fmt.Errorf("%w: %s: %v", ErrDecomposition, what, err)
}
