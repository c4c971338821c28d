package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elegant-foods/costing-cli/internal/catalog"
	"github.com/elegant-foods/costing-cli/internal/model"
)

func testIndex() *catalog.Index {
	return catalog.Build([]model.CatalogEntry{
		{ItemNumber: "1001", RawName: "BUTTER SALTED", UnitPrice: 57.60, PackDescription: "36/1 LB"},
		{ItemNumber: "1002", RawName: "OIL OLIVE EX VRGN", UnitPrice: 89.00, PackDescription: "6/1 GAL"},
		{ItemNumber: "1003", RawName: "HEAVY CREAM", UnitPrice: 48.25, PackDescription: "PER CASE"},
	})
}

func noEstimate(t *testing.T) EstimateFunc {
	return func(context.Context, string, string, string) (float64, error) {
		t.Fatal("estimate should not be called")
		return 0, nil
	}
}

func fixedEstimate(price float64) EstimateFunc {
	return func(context.Context, string, string, string) (float64, error) {
		return price, nil
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	ix := testIndex()
	r := NewResolver()

	t.Run("confident match resolves from catalog", func(t *testing.T) {
		ing := r.Resolve(ctx, "butter", "2 oz", "sides", ix, noEstimate(t))

		assert.Equal(t, model.SourceCatalog, ing.Source)
		assert.Equal(t, "1001", ing.CatalogItemNumber)
		require.NotNil(t, ing.UnitCost)
		assert.InDelta(t, 0.20, *ing.UnitCost, 1e-9)
	})

	t.Run("no confident match falls back to market estimate", func(t *testing.T) {
		ing := r.Resolve(ctx, "wagyu beef tenderloin", "8 oz", "main_plates", ix, fixedEstimate(14.50))

		assert.Equal(t, model.SourceEstimated, ing.Source)
		assert.Empty(t, ing.CatalogItemNumber)
		require.NotNil(t, ing.UnitCost)
		assert.Equal(t, 14.50, *ing.UnitCost)
	})

	t.Run("unparseable pack demotes a confident match", func(t *testing.T) {
		ing := r.Resolve(ctx, "heavy cream", "4 floz", "desserts", ix, fixedEstimate(1.25))

		assert.Equal(t, model.SourceEstimated, ing.Source)
		assert.Empty(t, ing.CatalogItemNumber)
		require.NotNil(t, ing.UnitCost)
		assert.Equal(t, 1.25, *ing.UnitCost)
	})

	t.Run("non-sourceable ingredient is unavailable", func(t *testing.T) {
		ing := r.Resolve(ctx, "kryptonite shavings", "1 oz", "desserts", ix, fixedEstimate(0))

		assert.Equal(t, model.SourceUnavailable, ing.Source)
		assert.Nil(t, ing.UnitCost)
	})

	t.Run("estimate error degrades to unavailable", func(t *testing.T) {
		failing := func(context.Context, string, string, string) (float64, error) {
			return 0, errors.New("collaborator down")
		}
		ing := r.Resolve(ctx, "saffron threads", "1 g", "main_plates", ix, failing)

		assert.Equal(t, model.SourceUnavailable, ing.Source)
		assert.Nil(t, ing.UnitCost)
	})

	t.Run("nil estimate func is unavailable", func(t *testing.T) {
		ing := r.Resolve(ctx, "saffron threads", "1 g", "main_plates", ix, nil)

		assert.Equal(t, model.SourceUnavailable, ing.Source)
		assert.Nil(t, ing.UnitCost)
	})

	t.Run("name and quantity are preserved", func(t *testing.T) {
		ing := r.Resolve(ctx, "butter", "2 oz", "sides", ix, nil)
		assert.Equal(t, "butter", ing.Name)
		assert.Equal(t, "2 oz", ing.Quantity)
	})
}

func TestResolveThresholdOverride(t *testing.T) {
	ix := testIndex()

	// With the bar raised past 100 even an exact match cannot clear it.
	r := NewResolver(WithThresholds(101, 60))
	ing := r.Resolve(context.Background(), "butter", "2 oz", "sides", ix, fixedEstimate(0.30))

	assert.Equal(t, model.SourceEstimated, ing.Source)
}

func TestBestScore(t *testing.T) {
	r := NewResolver()

	assert.Equal(t, 100.0, r.BestScore("butter salted", testIndex()))
	assert.Equal(t, 0.0, r.BestScore("butter", catalog.Build(nil)))
}
