package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// CreditRepositoryPG implements domain.CreditRepository. Every balance
// mutation is a single atomic update expression, so concurrent debits for the
// same user serialize on the balance row and can never overdraw.
type CreditRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewCreditRepository creates a new credit ledger backed by PostgreSQL.
func NewCreditRepository(pool *pgxpool.Pool) *CreditRepositoryPG {
	return &CreditRepositoryPG{pool: pool}
}

// Balance returns the user's current balance. Users without a balance row
// have zero credits.
func (r *CreditRepositoryPG) Balance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := r.pool.QueryRow(ctx, `SELECT balance FROM credit_balances WHERE user_id = $1;`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}

// Refund credits one unit back for a failed job. The partial unique index on
// (job_id) WHERE reason = 'generation_failed' makes the operation idempotent:
// a second refund for the same job inserts nothing and increments nothing.
func (r *CreditRepositoryPG) Refund(ctx context.Context, userID, jobID string) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
INSERT INTO credit_events (id, user_id, job_id, delta, reason)
VALUES ($1, $2, $3, 1, $4)
ON CONFLICT (job_id) WHERE reason = 'generation_failed' DO NOTHING;
`, uuid.NewString(), userID, jobID, domain.CreditReasonGenerationFailed)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			// Already refunded.
			return nil
		}
		return creditTx(ctx, tx, userID, 1)
	})
}

// ApplyExternalTopUp applies a payment-provider credit grant exactly once per
// external event id. A repeated delivery reports ErrDuplicateOperation and
// leaves the balance untouched.
func (r *CreditRepositoryPG) ApplyExternalTopUp(ctx context.Context, userID string, amount int, externalEventID string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: top-up amount must be positive", domain.ErrValidation)
	}
	if externalEventID == "" {
		return fmt.Errorf("%w: external event id is required", domain.ErrValidation)
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
INSERT INTO credit_events (id, user_id, delta, reason, external_event_id)
VALUES ($1, $2, $3, $4, $5);
`, uuid.NewString(), userID, amount, domain.CreditReasonExternalTopUp, externalEventID)
		if err != nil {
			return err
		}
		return creditTx(ctx, tx, userID, amount)
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return domain.ErrDuplicateOperation
		}
		return err
	}
	return nil
}

// debitTx decrements one credit and appends the matching ledger event inside
// the caller's transaction. The balance predicate is the overdraw guard.
func debitTx(ctx context.Context, tx pgx.Tx, userID, jobID, reason string) error {
	tag, err := tx.Exec(ctx, `
UPDATE credit_balances
SET balance = balance - 1, updated_at = now()
WHERE user_id = $1 AND balance >= 1;
`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientCredits
	}
	_, err = tx.Exec(ctx, `
INSERT INTO credit_events (id, user_id, job_id, delta, reason)
VALUES ($1, $2, $3, -1, $4);
`, uuid.NewString(), userID, jobID, reason)
	return err
}

// creditTx increments the balance, creating the row for first-time users.
func creditTx(ctx context.Context, tx pgx.Tx, userID string, amount int) error {
	_, err := tx.Exec(ctx, `
INSERT INTO credit_balances (user_id, balance)
VALUES ($1, $2)
ON CONFLICT (user_id) DO UPDATE
SET balance = credit_balances.balance + EXCLUDED.balance,
    updated_at = now();
`, userID, amount)
	return err
}

var _ domain.CreditRepository = (*CreditRepositoryPG)(nil)
