package credits

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"dialer-platform/pkg/utils"
)

// This repository assumes:
// - credit_ledger (append-only) with UNIQUE (user_id, idempotency_key)
// - credit_balances (projection) keyed by user_id

func ensureBalanceRow(ctx context.Context, tx *sql.Tx, userID string, now time.Time) error {
	const q = `
INSERT INTO credit_balances (user_id, balance, updated_at)
VALUES ($1, 0, $2)
ON CONFLICT (user_id) DO NOTHING
`
	_, err := tx.ExecContext(ctx, q, userID, now)
	return err
}

// lockBalance serializes concurrent postings for one user.
func lockBalance(ctx context.Context, tx *sql.Tx, userID string) (Balance, error) {
	const q = `
SELECT user_id, balance, updated_at
FROM credit_balances
WHERE user_id = $1
FOR UPDATE
`
	var b Balance
	if err := tx.QueryRowContext(ctx, q, userID).Scan(&b.UserID, &b.Balance, &b.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Balance{}, ErrNotFound
		}
		return Balance{}, err
	}
	return b, nil
}

func getBalance(ctx context.Context, db utils.DBTX, userID string) (Balance, error) {
	const q = `
SELECT user_id, balance, updated_at
FROM credit_balances
WHERE user_id = $1
`
	var b Balance
	if err := db.QueryRowContext(ctx, q, userID).Scan(&b.UserID, &b.Balance, &b.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Balance{}, ErrNotFound
		}
		return Balance{}, err
	}
	return b, nil
}

func findLedgerByIdempotency(ctx context.Context, tx *sql.Tx, userID, key string) (LedgerEntry, bool, error) {
	const q = `
SELECT id, user_id, type, amount, COALESCE(external_ref, ''), idempotency_key, COALESCE(metadata::text, ''), created_at
FROM credit_ledger
WHERE user_id = $1 AND idempotency_key = $2
LIMIT 1
`
	var e LedgerEntry
	err := tx.QueryRowContext(ctx, q, userID, key).Scan(
		&e.ID,
		&e.UserID,
		&e.Type,
		&e.Amount,
		&e.ExternalRef,
		&e.IdempotencyKey,
		&e.Metadata,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LedgerEntry{}, false, nil
		}
		return LedgerEntry{}, false, err
	}
	return e, true, nil
}

func insertLedger(ctx context.Context, tx *sql.Tx, e LedgerEntry) error {
	const q = `
INSERT INTO credit_ledger (
  id, user_id, type, amount, external_ref, idempotency_key, metadata, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
)
`
	_, err := tx.ExecContext(ctx, q,
		e.ID,
		e.UserID,
		string(e.Type),
		e.Amount,
		utils.NullString(e.ExternalRef),
		e.IdempotencyKey,
		utils.NullString(e.Metadata),
		e.CreatedAt,
	)
	return err
}

func applyBalanceDelta(ctx context.Context, tx *sql.Tx, userID string, delta int64, now time.Time) (Balance, error) {
	const q = `
UPDATE credit_balances
SET balance = balance + $2,
    updated_at = $3
WHERE user_id = $1
RETURNING user_id, balance, updated_at
`
	var b Balance
	if err := tx.QueryRowContext(ctx, q, userID, delta, now).Scan(&b.UserID, &b.Balance, &b.UpdatedAt); err != nil {
		return Balance{}, err
	}
	return b, nil
}
