// Package jobstore persists the estimation job record durably, surviving
// process restarts. Writes are atomic with respect to crashes: readers see
// either the previous record or the fully written new one, never a torn
// intermediate.
package jobstore

import (
	"context"
	"errors"

	"github.com/elegant-foods/costing-cli/internal/model"
)

// ActiveJobID is the fixed identifier of the single active job. The store
// interface stays keyed by ID so a multi-tenant backend can slot in without
// rearchitecting the orchestrator.
const ActiveJobID = "active"

// ErrCorrupt marks a record that exists but cannot be read back. Callers
// must surface it with resume disabled rather than silently fabricating a
// fresh job.
var ErrCorrupt = errors.New("job state corrupt")

// ErrWrite marks a failed persistence write. Fatal for a running job: the
// batch loop cannot continue without durable checkpoints.
var ErrWrite = errors.New("job state write failed")

// Store defines durable job persistence. Save is called once per batch
// commit; Load may be called concurrently by status readers and must always
// observe one consistent snapshot.
type Store interface {
	// Load returns the stored job, or nil when no record exists.
	Load(ctx context.Context, jobID string) (*model.Job, error)
	// Save atomically replaces the stored record for job.ID.
	Save(ctx context.Context, job *model.Job) error
	// Delete discards the stored record, if any.
	Delete(ctx context.Context, jobID string) error
	Close() error
}
