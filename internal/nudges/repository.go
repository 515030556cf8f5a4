package nudges

import (
	"context"
	"fmt"

	"dialer-platform/pkg/utils"
)

type Repository interface {
	Upsert(ctx context.Context, t Tracking) error
}

// PostgresRepository assumes UNIQUE (lead_id) on lead_nudge_tracking.
type PostgresRepository struct {
	db utils.DBTX
}

func NewPostgresRepository(db utils.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, t Tracking) error {
	const q = `
INSERT INTO lead_nudge_tracking (
  lead_id, user_id, is_engaged, sequence_paused, pause_reason, last_ai_contact_at, last_disposition, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$6)
ON CONFLICT (lead_id) DO UPDATE SET
  is_engaged         = EXCLUDED.is_engaged,
  sequence_paused    = EXCLUDED.sequence_paused,
  pause_reason       = EXCLUDED.pause_reason,
  last_ai_contact_at = EXCLUDED.last_ai_contact_at,
  last_disposition   = EXCLUDED.last_disposition,
  updated_at         = EXCLUDED.updated_at
`
	_, err := r.db.ExecContext(ctx, q,
		t.LeadID,
		t.UserID,
		t.IsEngaged,
		t.SequencePaused,
		utils.NullString(t.PauseReason),
		t.LastAIContactAt,
		t.LastDisposition,
	)
	if err != nil {
		return fmt.Errorf("nudges: upsert: %w", err)
	}
	return nil
}
