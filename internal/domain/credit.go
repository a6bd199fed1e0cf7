package domain

import "time"

// Credit event reasons recorded in the append-only ledger.
const (
	CreditReasonGenerationQueued = "generation_queued"
	CreditReasonGenerationFailed = "generation_failed"
	CreditReasonEditQueued       = "edit_queued"
	CreditReasonExternalTopUp    = "external_topup"
)

// CreditBalance is the per-user spendable balance. It never goes negative as
// the result of a debit.
type CreditBalance struct {
	UserID    string
	Balance   int
	UpdatedAt time.Time
}

// CreditEvent is one entry in the append-only ledger. ExternalEventID, when
// present, deduplicates repeated payment-provider deliveries.
type CreditEvent struct {
	ID              string
	UserID          string
	JobID           string
	Delta           int
	Reason          string
	ExternalEventID string
	CreatedAt       time.Time
}
