package credits

import "time"

// LedgerEntry is an immutable append-only row of credit_ledger.
// Top-ups are positive, usage is negative.
//
// Tenancy invariant: user_id required.
// Money invariant: every balance change has exactly one ledger entry.
type LedgerEntry struct {
	ID     string    `json:"id" db:"id"`
	UserID string    `json:"user_id" db:"user_id"`
	Type   EntryType `json:"type" db:"type"`
	Amount int64     `json:"amount" db:"amount"`

	// ExternalRef is optional: provider call id, payment id, etc.
	ExternalRef    string `json:"external_ref,omitempty" db:"external_ref"`
	IdempotencyKey string `json:"idempotency_key" db:"idempotency_key"`
	Metadata       string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EntryType string

const (
	EntryTypeTopUp      EntryType = "top_up"
	EntryTypeCallUsage  EntryType = "call_usage"
	EntryTypeAdjustment EntryType = "adjustment"
)

// Balance is the credit_balances projection, updated in the same transaction as the ledger.
type Balance struct {
	UserID    string    `json:"user_id"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Charge is the outcome of billing one call.
type Charge struct {
	Minutes   int64       `json:"minutes"`
	Amount    int64       `json:"amount"`
	Entry     LedgerEntry `json:"entry"`
	Balance   Balance     `json:"balance"`
	Duplicate bool        `json:"duplicate"`
}
