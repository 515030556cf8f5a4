package leads

import (
	"context"
	"fmt"

	"dialer-platform/pkg/utils"
)

type Repository interface {
	ApplyPatch(ctx context.Context, userID, leadID string, p Patch) error
}

// PostgresRepository updates rows of the leads table. Leads are created by
// import flows elsewhere; this repository never inserts.
type PostgresRepository struct {
	db utils.DBTX
}

func NewPostgresRepository(db utils.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ApplyPatch(ctx context.Context, userID, leadID string, p Patch) error {
	// next_callback_at is only overwritten when the patch schedules one;
	// do_not_call is OR-ed so it can never be cleared here.
	const q = `
UPDATE leads
SET status            = $3,
    last_contacted_at = $4,
    next_callback_at  = COALESCE($5, next_callback_at),
    do_not_call       = do_not_call OR $6,
    updated_at        = $4
WHERE id = $1 AND user_id = $2
`
	res, err := r.db.ExecContext(ctx, q,
		leadID,
		userID,
		string(p.Status),
		p.LastContactedAt,
		utils.NullTime(p.NextCallbackAt),
		p.DoNotCall,
	)
	if err != nil {
		return fmt.Errorf("leads: apply patch: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("leads: apply patch: %w", err)
	}
	if n == 0 {
		return ErrLeadNotFound
	}
	return nil
}
