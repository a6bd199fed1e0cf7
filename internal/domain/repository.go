package domain

import (
	"context"
	"time"
)

// TransitionFields carries the optional columns written alongside a status
// change. Nil pointers leave the stored value untouched.
type TransitionFields struct {
	Model        *string
	Cost         *float64
	ErrorMessage *string
}

// JobRepository defines persistence for job entities and the pipeline's
// transactional submission paths.
type JobRepository interface {
	// SubmitOriginal atomically debits one credit, records the ledger event,
	// and inserts the queued job.
	SubmitOriginal(ctx context.Context, job *Job) error
	// SubmitEdit atomically validates the parent (ownership, succeeded
	// status, edit quota), inherits unset params, debits one credit, and
	// inserts the queued edit job.
	SubmitEdit(ctx context.Context, job *Job) error
	// Get fetches a job with a mandatory ownership check.
	Get(ctx context.Context, jobID, userID string) (*Job, error)
	// TransitionTo applies a legal status transition as a single conditional
	// update. Illegal or lost transitions return ErrInvalidTransition.
	TransitionTo(ctx context.Context, jobID string, status JobStatus, fields TransitionFields) error
	// ClaimNext moves the oldest queued job to running and returns it, or
	// ErrNotFound when the queue is empty.
	ClaimNext(ctx context.Context) (*Job, error)
	// ListChain returns the original job followed by its edits in creation
	// order, with a mandatory ownership check on the original.
	ListChain(ctx context.Context, originalID, userID string) ([]Job, error)
	// FailStale force-fails running jobs older than maxAge and returns them
	// so the caller can refund.
	FailStale(ctx context.Context, maxAge time.Duration, batchSize int) ([]Job, error)
}

// AssetRepository handles persistence for asset records.
type AssetRepository interface {
	Create(ctx context.Context, asset *Asset) error
	Get(ctx context.Context, assetID, userID string) (*Asset, error)
	GetByJobKind(ctx context.Context, jobID string, kind AssetKind) (*Asset, error)
}

// CreditRepository is the ledger: balance mutations are serialized per user
// through single atomic update expressions.
type CreditRepository interface {
	Balance(ctx context.Context, userID string) (int, error)
	// Refund credits back one unit for a failed job, at most once per job.
	// A repeated call is a no-op.
	Refund(ctx context.Context, userID, jobID string) error
	// ApplyExternalTopUp is idempotent on externalEventID; a repeated
	// delivery returns ErrDuplicateOperation without a second increment.
	ApplyExternalTopUp(ctx context.Context, userID string, amount int, externalEventID string) error
}
