package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elegant-foods/costing-cli/internal/agent"
	"github.com/elegant-foods/costing-cli/internal/catalog"
	"github.com/elegant-foods/costing-cli/internal/compact"
	"github.com/elegant-foods/costing-cli/internal/jobstore"
	"github.com/elegant-foods/costing-cli/internal/model"
	"github.com/elegant-foods/costing-cli/internal/pricing"
)

// fakeDecomposer scripts per-item decompositions and market estimates.
type fakeDecomposer struct {
	recipes   map[string][]agent.DecomposedIngredient
	estimates map[string]float64
	failItems map[string]bool
	calls     []string
}

func (f *fakeDecomposer) Decompose(_ context.Context, item model.MenuItem, _ string) ([]agent.DecomposedIngredient, error) {
	f.calls = append(f.calls, item.Name)
	if f.failItems[item.Name] {
		return nil, agent.ErrDecomposition
	}
	return f.recipes[item.Name], nil
}

func (f *fakeDecomposer) EstimateMarketPrice(_ context.Context, name, _, _ string) (float64, error) {
	return f.estimates[name], nil
}

func (f *fakeDecomposer) ParseMenu(context.Context, string) ([]model.MenuItem, error) {
	return nil, nil
}

// failingStore wraps a Store and fails Save after allowSaves successful calls.
type failingStore struct {
	jobstore.Store
	allowSaves int
	saves      int
}

func (s *failingStore) Save(ctx context.Context, job *model.Job) error {
	s.saves++
	if s.saves > s.allowSaves {
		return jobstore.ErrWrite
	}
	return s.Store.Save(ctx, job)
}

func testIndex() *catalog.Index {
	return catalog.Build([]model.CatalogEntry{
		{ItemNumber: "1001", RawName: "BUTTER SALTED", UnitPrice: 57.60, PackDescription: "36/1 LB"},
		{ItemNumber: "1002", RawName: "EGGS LARGE", UnitPrice: 42.00, PackDescription: "15 DZ"},
	})
}

func testMenu() []model.MenuItem {
	return []model.MenuItem{
		{Name: "Deviled Eggs", Category: "appetizers"},
		{Name: "Wagyu Sliders", Category: "main_plates"},
	}
}

func testDecomposer() *fakeDecomposer {
	return &fakeDecomposer{
		recipes: map[string][]agent.DecomposedIngredient{
			"Deviled Eggs": {
				{Name: "eggs", Quantity: "2 each"},
				{Name: "butter", Quantity: "1 oz"},
			},
			"Wagyu Sliders": {
				{Name: "wagyu beef", Quantity: "4 oz"},
				{Name: "kryptonite", Quantity: "1 oz"},
			},
		},
		estimates: map[string]float64{
			"wagyu beef": 9.75,
			// kryptonite: 0, non-sourceable
		},
	}
}

func newTestOrchestrator(t *testing.T, st jobstore.Store, dec agent.Decomposer) *Orchestrator {
	t.Helper()
	return New(st, testIndex(), pricing.NewResolver(), compact.New(2000), dec)
}

func TestStart(t *testing.T) {
	ctx := context.Background()

	t.Run("processes all items and completes", func(t *testing.T) {
		st, err := jobstore.NewFile(t.TempDir())
		require.NoError(t, err)
		dec := testDecomposer()
		o := newTestOrchestrator(t, st, dec)

		job, err := o.Start(ctx, testMenu(), false)
		require.NoError(t, err)

		assert.Equal(t, model.JobStatusCompleted, job.Status)
		assert.Equal(t, 2, job.ProcessedCount)
		require.Len(t, job.Results, 2)
		assert.Empty(t, job.PendingQueue)
		require.NoError(t, job.Validate())

		// Catalog tier for eggs and butter.
		eggs := job.Results[0]
		assert.Equal(t, "Deviled Eggs", eggs.ItemName)
		require.Len(t, eggs.Ingredients, 2)
		assert.Equal(t, model.SourceCatalog, eggs.Ingredients[0].Source)
		assert.Equal(t, model.SourceCatalog, eggs.Ingredients[1].Source)
		assert.Greater(t, eggs.CostPerUnit, 0.0)

		// Estimated and unavailable tiers for the sliders.
		sliders := job.Results[1]
		assert.Equal(t, model.SourceEstimated, sliders.Ingredients[0].Source)
		assert.Equal(t, model.SourceUnavailable, sliders.Ingredients[1].Source)
		assert.Equal(t, 1, sliders.UnavailableCount)

		// Gap observations landed in the digest; catalog hits did not.
		assert.Contains(t, job.Learnings, "catalog lacks WAGYU BEEF")
		assert.Contains(t, job.Learnings, "KRYPTONITE is not sourceable")
		assert.NotContains(t, job.Learnings, "EGGS")

		// The final state is durably committed.
		stored, err := st.Load(ctx, jobstore.ActiveJobID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCompleted, stored.Status)
		assert.Equal(t, 2, stored.ProcessedCount)
	})

	t.Run("decomposition failure commits the item without ingredients", func(t *testing.T) {
		st, err := jobstore.NewFile(t.TempDir())
		require.NoError(t, err)
		dec := testDecomposer()
		dec.failItems = map[string]bool{"Deviled Eggs": true}
		o := newTestOrchestrator(t, st, dec)

		job, err := o.Start(ctx, testMenu(), false)
		require.NoError(t, err)

		assert.Equal(t, model.JobStatusCompleted, job.Status)
		assert.Empty(t, job.Results[0].Ingredients)
		assert.Equal(t, 0.0, job.Results[0].CostPerUnit)
		// The failure did not stop the second item.
		assert.NotEmpty(t, job.Results[1].Ingredients)
	})

	t.Run("persistence failure fails the job", func(t *testing.T) {
		base, err := jobstore.NewFile(t.TempDir())
		require.NoError(t, err)
		st := &failingStore{Store: base, allowSaves: 2}
		o := newTestOrchestrator(t, st, testDecomposer())

		job, err := o.Start(ctx, testMenu(), false)
		require.Error(t, err)
		assert.ErrorIs(t, err, jobstore.ErrWrite)
		assert.Equal(t, model.JobStatusFailed, job.Status)
	})

	t.Run("without reset an incomplete job takes precedence", func(t *testing.T) {
		st, err := jobstore.NewFile(t.TempDir())
		require.NoError(t, err)

		prior := model.NewJob(jobstore.ActiveJobID, testMenu())
		prior.Status = model.JobStatusInProgress
		prior.ProcessedCount = 1
		prior.Results = []model.LineItem{{ItemName: "Deviled Eggs", Ingredients: []model.Ingredient{}}}
		prior.PendingQueue = prior.PendingQueue[1:]
		require.NoError(t, st.Save(ctx, prior))

		dec := testDecomposer()
		o := newTestOrchestrator(t, st, dec)

		job, err := o.Start(ctx, []model.MenuItem{{Name: "ignored new menu"}}, false)
		require.NoError(t, err)

		// Only the stored pending item ran; the passed menu was ignored.
		assert.Equal(t, []string{"Wagyu Sliders"}, dec.calls)
		assert.Equal(t, model.JobStatusCompleted, job.Status)
		assert.Equal(t, 2, job.TotalItems)
	})

	t.Run("reset discards the prior job", func(t *testing.T) {
		st, err := jobstore.NewFile(t.TempDir())
		require.NoError(t, err)

		prior := model.NewJob(jobstore.ActiveJobID, testMenu())
		prior.Status = model.JobStatusInProgress
		require.NoError(t, st.Save(ctx, prior))

		dec := testDecomposer()
		o := newTestOrchestrator(t, st, dec)

		job, err := o.Start(ctx, testMenu()[:1], true)
		require.NoError(t, err)

		assert.Equal(t, []string{"Deviled Eggs"}, dec.calls)
		assert.Equal(t, 1, job.TotalItems)
		assert.Equal(t, model.JobStatusCompleted, job.Status)
	})
}

func TestResumeIfIncomplete(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing stored resumes nothing", func(t *testing.T) {
		st, err := jobstore.NewFile(t.TempDir())
		require.NoError(t, err)
		o := newTestOrchestrator(t, st, testDecomposer())

		job, err := o.ResumeIfIncomplete(ctx)
		require.NoError(t, err)
		assert.Nil(t, job)
	})

	t.Run("completed job is returned untouched", func(t *testing.T) {
		st, err := jobstore.NewFile(t.TempDir())
		require.NoError(t, err)

		done := model.NewJob(jobstore.ActiveJobID, nil)
		done.Status = model.JobStatusCompleted
		require.NoError(t, st.Save(ctx, done))

		dec := testDecomposer()
		o := newTestOrchestrator(t, st, dec)

		job, err := o.ResumeIfIncomplete(ctx)
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, model.JobStatusCompleted, job.Status)
		assert.Empty(t, dec.calls)
	})

	t.Run("in-progress job resumes without reprocessing committed items", func(t *testing.T) {
		st, err := jobstore.NewFile(t.TempDir())
		require.NoError(t, err)

		prior := model.NewJob(jobstore.ActiveJobID, testMenu())
		prior.Status = model.JobStatusInProgress
		prior.ProcessedCount = 1
		prior.Results = []model.LineItem{{ItemName: "Deviled Eggs", Ingredients: []model.Ingredient{}}}
		prior.PendingQueue = prior.PendingQueue[1:]
		prior.Learnings = "catalog lacks SAFFRON (market estimate used)"
		require.NoError(t, st.Save(ctx, prior))

		dec := testDecomposer()
		o := newTestOrchestrator(t, st, dec)

		job, err := o.ResumeIfIncomplete(ctx)
		require.NoError(t, err)

		assert.Equal(t, []string{"Wagyu Sliders"}, dec.calls)
		assert.Equal(t, model.JobStatusCompleted, job.Status)
		assert.Equal(t, 2, job.ProcessedCount)
		// Prior learnings carried into the resumed run.
		assert.Contains(t, job.Learnings, "SAFFRON")
		assert.Contains(t, job.Learnings, "WAGYU BEEF")
	})

	t.Run("resume is idempotent", func(t *testing.T) {
		st, err := jobstore.NewFile(t.TempDir())
		require.NoError(t, err)
		dec := testDecomposer()
		o := newTestOrchestrator(t, st, dec)

		_, err = o.Start(ctx, testMenu(), false)
		require.NoError(t, err)
		callsAfterRun := len(dec.calls)

		job, err := o.ResumeIfIncomplete(ctx)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCompleted, job.Status)
		assert.Equal(t, callsAfterRun, len(dec.calls))
	})

	t.Run("corrupt record surfaces instead of starting fresh", func(t *testing.T) {
		dir := t.TempDir()
		st, err := jobstore.NewFile(dir)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, jobstore.ActiveJobID+".json"), []byte("{broken"), 0o644))

		o := newTestOrchestrator(t, st, testDecomposer())
		_, err = o.ResumeIfIncomplete(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, jobstore.ErrCorrupt)
	})
}

func TestStatusAndQuote(t *testing.T) {
	ctx := context.Background()

	t.Run("status reflects the committed snapshot", func(t *testing.T) {
		st, err := jobstore.NewFile(t.TempDir())
		require.NoError(t, err)
		o := newTestOrchestrator(t, st, testDecomposer())

		progress, err := o.Status(ctx, 5)
		require.NoError(t, err)
		assert.Nil(t, progress)

		_, err = o.Start(ctx, testMenu(), false)
		require.NoError(t, err)

		progress, err = o.Status(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, progress)
		assert.Equal(t, 2, progress.ProcessedCount)
		assert.Equal(t, model.JobStatusCompleted, progress.Status)
		require.Len(t, progress.LatestItems, 1)
		assert.Equal(t, "Wagyu Sliders", progress.LatestItems[0].ItemName)
	})

	t.Run("quote requires a completed job", func(t *testing.T) {
		st, err := jobstore.NewFile(t.TempDir())
		require.NoError(t, err)
		o := newTestOrchestrator(t, st, testDecomposer())

		_, err = o.Quote(ctx, "Summer Gala")
		require.Error(t, err)

		_, err = o.Start(ctx, testMenu(), false)
		require.NoError(t, err)

		quote, err := o.Quote(ctx, "Summer Gala")
		require.NoError(t, err)
		assert.NotEmpty(t, quote.QuoteID)
		assert.Equal(t, "Summer Gala", quote.Event)
		assert.Len(t, quote.LineItems, 2)
	})
}

func TestGapObservation(t *testing.T) {
	price := 1.0

	assert.Empty(t, gapObservation(model.Ingredient{Name: "butter", Source: model.SourceCatalog, UnitCost: &price}))
	assert.Equal(t, "catalog lacks WAGYU BEEF (market estimate used)",
		gapObservation(model.Ingredient{Name: "wagyu beef", Source: model.SourceEstimated, UnitCost: &price}))
	assert.Equal(t, "KRYPTONITE is not sourceable",
		gapObservation(model.Ingredient{Name: "Kryptonite", Source: model.SourceUnavailable}))
}

func TestInterruptedRunStaysResumable(t *testing.T) {
	st, err := jobstore.NewFile(t.TempDir())
	require.NoError(t, err)
	o := newTestOrchestrator(t, st, testDecomposer())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job, err := o.Start(ctx, testMenu(), false)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusInProgress, job.Status)
	assert.Equal(t, 0, job.ProcessedCount)

	// The committed record still resumes cleanly.
	resumed, err := o.ResumeIfIncomplete(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, resumed.Status)
	require.NoError(t, resumed.Validate())
}
