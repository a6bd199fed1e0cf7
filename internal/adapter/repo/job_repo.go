package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

const jobColumns = `id, user_id, status, complexity, line_thickness, custom_prompt,
source_asset_id, edit_parent_id, edit_prompt, model, cost, error_message,
started_at, ended_at, created_at, updated_at`

// JobRepositoryPG implements domain.JobRepository backed by PostgreSQL.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// SubmitOriginal debits one credit and inserts the queued job inside a single
// transaction. An insufficient balance rolls everything back.
func (r *JobRepositoryPG) SubmitOriginal(ctx context.Context, job *domain.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.Status = domain.JobStatusQueued

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := debitTx(ctx, tx, job.UserID, job.ID, domain.CreditReasonGenerationQueued); err != nil {
			return err
		}
		return insertJobTx(ctx, tx, job)
	})
}

// SubmitEdit validates the edit chain and creates the derivative job. The
// chain root row is locked for the duration of the transaction so that two
// concurrent edit submissions cannot both pass the quota check.
func (r *JobRepositoryPG) SubmitEdit(ctx context.Context, job *domain.Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.Status = domain.JobStatusQueued

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		rootID, err := resolveChainRootTx(ctx, tx, job.Params.EditParentID, job.UserID)
		if err != nil {
			return err
		}

		var rootStatus domain.JobStatus
		var rootComplexity domain.Complexity
		var rootThickness domain.LineThickness
		var rootPrompt string
		err = tx.QueryRow(ctx, `
SELECT status, complexity, line_thickness, custom_prompt
FROM jobs
WHERE id = $1 AND user_id = $2
FOR UPDATE;
`, rootID, job.UserID).Scan(&rootStatus, &rootComplexity, &rootThickness, &rootPrompt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNotFound
			}
			return err
		}
		if rootStatus != domain.JobStatusSucceeded {
			return domain.ErrSourceNotReady
		}

		var editCount int
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM jobs WHERE edit_parent_id = $1;`, rootID).Scan(&editCount); err != nil {
			return err
		}
		if editCount >= domain.MaxEditsPerOriginal {
			return domain.ErrMaxEditsReached
		}

		job.Params.EditParentID = rootID
		if job.Params.Complexity == "" {
			job.Params.Complexity = rootComplexity
		}
		if job.Params.LineThickness == "" {
			job.Params.LineThickness = rootThickness
		}
		if job.Params.CustomPrompt == "" {
			job.Params.CustomPrompt = rootPrompt
		}
		if err := job.Params.Validate(); err != nil {
			return err
		}

		if err := debitTx(ctx, tx, job.UserID, job.ID, domain.CreditReasonEditQueued); err != nil {
			return err
		}
		return insertJobTx(ctx, tx, job)
	})
}

// Get fetches a job by id with a mandatory ownership check. A job owned by
// another user is indistinguishable from a missing one.
func (r *JobRepositoryPG) Get(ctx context.Context, jobID, userID string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 AND user_id = $2;`, jobID, userID)
	return scanJob(row)
}

// TransitionTo applies one legal transition as a single conditional update.
// The expected source status is part of the predicate, so a lost race (or an
// illegal transition) affects zero rows and reports ErrInvalidTransition.
func (r *JobRepositoryPG) TransitionTo(ctx context.Context, jobID string, status domain.JobStatus, fields domain.TransitionFields) error {
	var query string
	var args []any
	switch status {
	case domain.JobStatusRunning:
		query = `
UPDATE jobs
SET status = 'running', started_at = now(), updated_at = now()
WHERE id = $1 AND status = 'queued';
`
		args = []any{jobID}
	case domain.JobStatusSucceeded, domain.JobStatusFailed:
		query = `
UPDATE jobs
SET status = $2,
    ended_at = now(),
    updated_at = now(),
    model = COALESCE($3, model),
    cost = COALESCE($4, cost),
    error_message = COALESCE($5, error_message)
WHERE id = $1 AND status = 'running';
`
		args = []any{jobID, status, fields.Model, fields.Cost, fields.ErrorMessage}
	default:
		return fmt.Errorf("%w: cannot transition to %q", domain.ErrInvalidTransition, status)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: job %s to %q", domain.ErrInvalidTransition, jobID, status)
	}
	return nil
}

// ClaimNext atomically moves the oldest queued job to running. SKIP LOCKED
// keeps concurrent workers from double-claiming the same row.
func (r *JobRepositoryPG) ClaimNext(ctx context.Context) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `
WITH next_job AS (
    SELECT id
    FROM jobs
    WHERE status = 'queued'
    ORDER BY created_at ASC
    FOR UPDATE SKIP LOCKED
    LIMIT 1
),
claimed AS (
    UPDATE jobs
    SET status = 'running', started_at = now(), updated_at = now()
    WHERE id IN (SELECT id FROM next_job)
    RETURNING `+jobColumns+`
)
SELECT * FROM claimed;
`)
	return scanJob(row)
}

// ListChain returns the original job followed by its edits in creation order.
func (r *JobRepositoryPG) ListChain(ctx context.Context, originalID, userID string) ([]domain.Job, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+jobColumns+`
FROM jobs
WHERE user_id = $2 AND (id = $1 OR edit_parent_id = $1)
ORDER BY (edit_parent_id IS NOT NULL), created_at ASC;
`, originalID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chain []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		chain = append(chain, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, domain.ErrNotFound
	}
	return chain, nil
}

// FailStale force-fails running jobs whose claim is older than maxAge and
// returns them so the caller can refund each. Recovers work orphaned by a
// worker crash mid-processing.
func (r *JobRepositoryPG) FailStale(ctx context.Context, maxAge time.Duration, batchSize int) ([]domain.Job, error) {
	cutoff := time.Now().Add(-maxAge).UTC()
	rows, err := r.pool.Query(ctx, `
UPDATE jobs
SET status = 'failed',
    error_message = 'generation timed out',
    ended_at = now(),
    updated_at = now()
WHERE id IN (
    SELECT id FROM jobs
    WHERE status = 'running' AND started_at < $1
    ORDER BY started_at
    LIMIT $2
    FOR UPDATE SKIP LOCKED
)
RETURNING id, user_id;
`, cutoff, batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stale []domain.Job
	for rows.Next() {
		var job domain.Job
		if err := rows.Scan(&job.ID, &job.UserID); err != nil {
			return nil, err
		}
		job.Status = domain.JobStatusFailed
		stale = append(stale, job)
	}
	return stale, rows.Err()
}

// resolveChainRootTx maps any job id in a chain onto the chain's original job.
func resolveChainRootTx(ctx context.Context, tx pgx.Tx, jobID, userID string) (string, error) {
	var editParentID *string
	err := tx.QueryRow(ctx, `SELECT edit_parent_id FROM jobs WHERE id = $1 AND user_id = $2;`, jobID, userID).Scan(&editParentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	if editParentID != nil && *editParentID != "" {
		return *editParentID, nil
	}
	return jobID, nil
}

func insertJobTx(ctx context.Context, tx pgx.Tx, job *domain.Job) error {
	_, err := tx.Exec(ctx, `
INSERT INTO jobs (id, user_id, status, complexity, line_thickness, custom_prompt,
                  source_asset_id, edit_parent_id, edit_prompt)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`,
		job.ID,
		job.UserID,
		job.Status,
		job.Params.Complexity,
		job.Params.LineThickness,
		job.Params.CustomPrompt,
		nullableString(job.Params.SourceAssetID),
		nullableString(job.Params.EditParentID),
		job.Params.EditPrompt,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	var sourceAssetID, editParentID *string
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.Status,
		&job.Params.Complexity,
		&job.Params.LineThickness,
		&job.Params.CustomPrompt,
		&sourceAssetID,
		&editParentID,
		&job.Params.EditPrompt,
		&job.Model,
		&job.Cost,
		&job.ErrorMessage,
		&job.StartedAt,
		&job.EndedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if sourceAssetID != nil {
		job.Params.SourceAssetID = *sourceAssetID
	}
	if editParentID != nil {
		job.Params.EditParentID = *editParentID
	}
	return &job, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
