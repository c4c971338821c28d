// Package pipeline drives the resumable estimation batch loop: decompose
// one menu item, resolve ingredient pricing, fold observations into the
// learnings digest, commit the job durably, repeat. A batch is one menu
// item; the per-batch commit is the unit of crash-recovery granularity.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/elegant-foods/costing-cli/internal/agent"
	"github.com/elegant-foods/costing-cli/internal/catalog"
	"github.com/elegant-foods/costing-cli/internal/compact"
	"github.com/elegant-foods/costing-cli/internal/jobstore"
	"github.com/elegant-foods/costing-cli/internal/model"
	"github.com/elegant-foods/costing-cli/internal/pricing"
)

// ErrRunActive is returned when a second run is requested without reset
// while one is already writing to the store. Two logical runs must never
// interleave writes.
var ErrRunActive = errors.New("estimation run already active")

// Orchestrator owns the single in-memory mutable Job reference during a run
// and is the sole writer back to the store.
type Orchestrator struct {
	store       jobstore.Store
	index       *catalog.Index
	resolver    *pricing.Resolver
	compactor   *compact.Compactor
	decomposer  agent.Decomposer
	itemTimeout time.Duration

	runMu sync.Mutex // serializes run loops

	mu        sync.Mutex // guards runCancel/runDone
	runCancel context.CancelFunc
	runDone   chan struct{}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithItemTimeout bounds how long one item's external calls may take. On
// timeout the item degrades per the local-recovery rule; it is never fatal.
func WithItemTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.itemTimeout = d
		}
	}
}

// New builds an Orchestrator.
func New(store jobstore.Store, ix *catalog.Index, resolver *pricing.Resolver, compactor *compact.Compactor, decomposer agent.Decomposer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:       store,
		index:       ix,
		resolver:    resolver,
		compactor:   compactor,
		decomposer:  decomposer,
		itemTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start begins (or resumes) an estimation job over the given menu items.
//
// With reset=true any in-flight run is abandoned and the prior job record
// is discarded before the new job starts. With reset=false an existing
// incomplete job takes precedence: its pending queue is authoritative and
// the passed items are ignored in favor of resuming it; if another run is
// actively writing, ErrRunActive is returned instead.
func (o *Orchestrator) Start(ctx context.Context, items []model.MenuItem, reset bool) (*model.Job, error) {
	if reset {
		o.abortActive()
		o.runMu.Lock()
	} else if !o.runMu.TryLock() {
		return nil, ErrRunActive
	}
	defer o.runMu.Unlock()

	runCtx, done := o.beginRun(ctx)
	defer close(done)

	if reset {
		if err := o.store.Delete(ctx, jobstore.ActiveJobID); err != nil {
			return nil, eris.Wrap(err, "pipeline: discard prior job")
		}
	} else {
		existing, err := o.store.Load(ctx, jobstore.ActiveJobID)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: load prior job")
		}
		if existing != nil && existing.Status == model.JobStatusInProgress {
			zap.L().Info("incomplete job found, resuming instead of starting new",
				zap.Int("processed", existing.ProcessedCount),
				zap.Int("total", existing.TotalItems),
			)
			return o.run(runCtx, existing)
		}
	}

	job := model.NewJob(jobstore.ActiveJobID, items)
	job.Status = model.JobStatusInProgress
	if err := o.commit(ctx, job); err != nil {
		return nil, err
	}

	zap.L().Info("job started", zap.Int("total_items", job.TotalItems))
	return o.run(runCtx, job)
}

// ResumeIfIncomplete re-enters the batch loop for a stored in-progress job.
// Returns (nil, nil) when there is nothing to resume. A corrupt record is
// surfaced to the caller with resume disabled, never papered over with a
// fresh job.
func (o *Orchestrator) ResumeIfIncomplete(ctx context.Context) (*model.Job, error) {
	if !o.runMu.TryLock() {
		return nil, ErrRunActive
	}
	defer o.runMu.Unlock()

	job, err := o.store.Load(ctx, jobstore.ActiveJobID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load job for resume")
	}
	if job == nil || job.Status != model.JobStatusInProgress {
		return job, nil
	}

	zap.L().Info("resuming job",
		zap.Int("processed", job.ProcessedCount),
		zap.Int("total", job.TotalItems),
	)

	runCtx, done := o.beginRun(ctx)
	defer close(done)
	return o.run(runCtx, job)
}

// Status returns the last durably committed progress snapshot. Safe to call
// while a run is writing: the store's atomic rename guarantees a consistent
// record.
func (o *Orchestrator) Status(ctx context.Context, latest int) (*model.JobProgress, error) {
	job, err := o.store.Load(ctx, jobstore.ActiveJobID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load job for status")
	}
	if job == nil {
		return nil, nil
	}
	p := job.Progress(latest)
	return &p, nil
}

// Quote assembles a catering quote from a completed job.
func (o *Orchestrator) Quote(ctx context.Context, event string) (*model.CateringQuote, error) {
	job, err := o.store.Load(ctx, jobstore.ActiveJobID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load job for quote")
	}
	if job == nil || job.Status != model.JobStatusCompleted {
		return nil, eris.New("pipeline: no completed job to quote")
	}
	return &model.CateringQuote{
		QuoteID:     uuid.New().String(),
		Event:       event,
		GeneratedAt: time.Now().UTC(),
		LineItems:   append([]model.LineItem(nil), job.Results...),
	}, nil
}

// run executes the sequential batch loop. Processing order is a correctness
// requirement: the learnings digest must reflect strictly ordered prior
// observations, so items are never processed in parallel.
func (o *Orchestrator) run(ctx context.Context, job *model.Job) (*model.Job, error) {
	for len(job.PendingQueue) > 0 {
		if ctx.Err() != nil {
			// Abandoned or shutting down; the last commit stands and the job
			// stays resumable.
			zap.L().Info("run interrupted",
				zap.Int("processed", job.ProcessedCount),
				zap.Int("total", job.TotalItems),
			)
			return job, nil
		}

		item := job.PendingQueue[0]
		line := o.processItem(ctx, item, job.Learnings)

		var observations []string
		for _, ing := range line.Ingredients {
			if obs := gapObservation(ing); obs != "" {
				observations = append(observations, obs)
			}
		}

		job.Learnings = o.compactor.Update(job.Learnings, observations)
		job.Results = append(job.Results, line)
		job.ProcessedCount++
		job.PendingQueue = job.PendingQueue[1:]

		if err := o.commit(ctx, job); err != nil {
			// The job cannot continue without durable checkpoints.
			job.Status = model.JobStatusFailed
			if saveErr := o.commit(ctx, job); saveErr != nil {
				zap.L().Error("failed to persist failed status", zap.Error(saveErr))
			}
			return job, err
		}

		zap.L().Info("batch committed",
			zap.String("item", item.Name),
			zap.Float64("cost_per_unit", line.CostPerUnit),
			zap.Int("processed", job.ProcessedCount),
			zap.Int("total", job.TotalItems),
		)
	}

	job.Status = model.JobStatusCompleted
	if err := o.commit(ctx, job); err != nil {
		return job, err
	}

	zap.L().Info("job completed", zap.Int("total_items", job.TotalItems))
	return job, nil
}

// processItem runs one item's decomposition and pricing under the item
// timeout. A decomposition failure yields a line item with an empty
// ingredient list; the loop continues.
func (o *Orchestrator) processItem(ctx context.Context, item model.MenuItem, learnings string) model.LineItem {
	itemCtx, cancel := context.WithTimeout(ctx, o.itemTimeout)
	defer cancel()

	line := model.LineItem{
		ItemName:    item.Name,
		Category:    item.Category,
		Ingredients: []model.Ingredient{},
	}

	parts, err := o.decomposer.Decompose(itemCtx, item, learnings)
	if err != nil {
		zap.L().Warn("decomposition failed, committing item without ingredients",
			zap.String("item", item.Name),
			zap.Error(err),
		)
		return line
	}

	for _, p := range parts {
		ing := o.resolver.Resolve(itemCtx, p.Name, p.Quantity, item.Category, o.index, o.decomposer.EstimateMarketPrice)
		line.Ingredients = append(line.Ingredients, ing)
	}
	line.ComputeCost()
	return line
}

// commit persists the job, wrapping failures as fatal write errors.
func (o *Orchestrator) commit(ctx context.Context, job *model.Job) error {
	job.UpdatedAt = time.Now().UTC()
	if err := o.store.Save(ctx, job); err != nil {
		return eris.Wrap(err, "pipeline: commit job")
	}
	return nil
}

// beginRun registers the active run's cancel handle so a reset can abandon
// it, and returns the run context plus the done channel the caller must
// close on exit.
func (o *Orchestrator) beginRun(ctx context.Context) (context.Context, chan struct{}) {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	o.mu.Lock()
	o.runCancel = cancel
	o.runDone = done
	o.mu.Unlock()
	return runCtx, done
}

// abortActive cancels the in-flight run, if any, and waits for it to stop
// writing before a reset proceeds.
func (o *Orchestrator) abortActive() {
	o.mu.Lock()
	cancel, done := o.runCancel, o.runDone
	o.runCancel, o.runDone = nil, nil
	o.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		zap.L().Warn("timed out waiting for active run to stop")
	}
}

// gapObservation phrases a non-catalog resolution as a generalizable
// catalog-gap learning. Catalog hits produce no observation; per-item
// results never enter the digest.
func gapObservation(ing model.Ingredient) string {
	switch ing.Source {
	case model.SourceEstimated:
		return fmt.Sprintf("catalog lacks %s (market estimate used)", catalog.Normalize(ing.Name))
	case model.SourceUnavailable:
		return fmt.Sprintf("%s is not sourceable", catalog.Normalize(ing.Name))
	default:
		return ""
	}
}
