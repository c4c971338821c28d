// Package pricing applies the three-tier fallback policy that turns a fuzzy
// catalog match, or failing that a market estimate, into a priced ingredient.
package pricing

import (
	"context"

	"go.uber.org/zap"

	"github.com/elegant-foods/costing-cli/internal/catalog"
	"github.com/elegant-foods/costing-cli/internal/match"
	"github.com/elegant-foods/costing-cli/internal/model"
)

// EstimateFunc asks an external collaborator for a market price per requested
// quantity of an ingredient. A non-positive price means the collaborator
// considers the ingredient non-sourceable.
type EstimateFunc func(ctx context.Context, name, quantity, category string) (float64, error)

// Resolver resolves ingredient prices against a catalog index. It performs
// no persistence; it only returns values.
type Resolver struct {
	highThreshold  float64
	floorThreshold float64
	topK           int
	policy         *Policy
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithThresholds overrides the catalog confidence threshold and the
// plausibility floor.
func WithThresholds(high, floor float64) Option {
	return func(r *Resolver) {
		r.highThreshold = high
		r.floorThreshold = floor
	}
}

// WithTopK overrides how many candidates are considered per query.
func WithTopK(k int) Option {
	return func(r *Resolver) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithPolicy applies a loaded pricing policy. Zero-valued policy fields keep
// the resolver's current settings.
func WithPolicy(p *Policy) Option {
	return func(r *Resolver) {
		if p == nil {
			return
		}
		r.policy = p
		if p.HighThreshold > 0 {
			r.highThreshold = p.HighThreshold
		}
		if p.FloorThreshold > 0 {
			r.floorThreshold = p.FloorThreshold
		}
		if p.TopK > 0 {
			r.topK = p.TopK
		}
	}
}

// NewResolver builds a Resolver with default policy constants: catalog tier
// at score >= 85, plausibility floor at 60, top 3 candidates.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		highThreshold:  85,
		floorThreshold: 60,
		topK:           3,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve prices one ingredient. Tiers are evaluated in order and the first
// satisfied tier wins:
//
//  1. catalog: top match score clears the high threshold and the pack size
//     parses, so the unit cost derives from the catalog case price;
//  2. estimated: the match was not confident enough (or its pack size did
//     not parse), and the market-estimate collaborator returned a positive
//     price;
//  3. unavailable: the collaborator failed or judged the ingredient
//     non-sourceable.
func (r *Resolver) Resolve(ctx context.Context, name, quantity, category string, ix *catalog.Index, estimate EstimateFunc) model.Ingredient {
	ing := model.Ingredient{Name: name, Quantity: quantity}
	log := zap.L().With(zap.String("ingredient", name))

	candidates := match.Match(name, ix, r.topK)
	if len(candidates) > 0 && candidates[0].Score >= r.highThreshold {
		top := candidates[0]
		cost, err := r.unitCost(top.Entry.UnitPrice, top.Entry.PackDescription, quantity)
		if err == nil {
			ing.Source = model.SourceCatalog
			ing.UnitCost = &cost
			ing.CatalogItemNumber = top.Entry.ItemNumber
			return ing
		}
		// Pack parse failure demotes a confident match to the estimated tier.
		log.Debug("catalog match demoted",
			zap.String("item_number", top.Entry.ItemNumber),
			zap.String("pack", top.Entry.PackDescription),
			zap.Error(err),
		)
	}

	if estimate != nil {
		price, err := estimate(ctx, name, quantity, category)
		if err == nil && price > 0 {
			ing.Source = model.SourceEstimated
			ing.UnitCost = &price
			return ing
		}
		if err != nil {
			log.Debug("market estimate failed", zap.Error(err))
		}
	}

	ing.Source = model.SourceUnavailable
	ing.UnitCost = nil
	return ing
}

// BestScore reports the top match score for a query, for observation
// building. Returns 0 on an empty index.
func (r *Resolver) BestScore(name string, ix *catalog.Index) float64 {
	candidates := match.Match(name, ix, 1)
	if len(candidates) == 0 {
		return 0
	}
	return candidates[0].Score
}
