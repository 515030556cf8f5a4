package calls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dialer-platform/pkg/utils"
)

// Repository persists call records.
type Repository interface {
	Upsert(ctx context.Context, r Record) error
	FindOwner(ctx context.Context, providerCallID string) (Owner, bool, error)
}

// PostgresRepository stores call records in call_logs.
//
// Assumes UNIQUE (provider_call_id).
type PostgresRepository struct {
	db utils.DBTX
}

func NewPostgresRepository(db utils.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert inserts the record or refreshes the mutable columns of the existing row.
// user_id, lead_id and campaign_id keep their first non-null value.
func (r *PostgresRepository) Upsert(ctx context.Context, rec Record) error {
	const q = `
INSERT INTO call_logs (
  provider_call_id, user_id, lead_id, campaign_id, agent_id,
  from_number, to_number, direction, status, outcome, outcome_confidence,
  duration_seconds, transcript, call_summary, sentiment, recording_url,
  answered_at, ended_at, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$19
)
ON CONFLICT (provider_call_id) DO UPDATE SET
  lead_id            = COALESCE(call_logs.lead_id, EXCLUDED.lead_id),
  campaign_id        = COALESCE(call_logs.campaign_id, EXCLUDED.campaign_id),
  agent_id           = COALESCE(EXCLUDED.agent_id, call_logs.agent_id),
  from_number        = COALESCE(EXCLUDED.from_number, call_logs.from_number),
  to_number          = COALESCE(EXCLUDED.to_number, call_logs.to_number),
  direction          = COALESCE(EXCLUDED.direction, call_logs.direction),
  status             = EXCLUDED.status,
  outcome            = EXCLUDED.outcome,
  outcome_confidence = EXCLUDED.outcome_confidence,
  duration_seconds   = EXCLUDED.duration_seconds,
  transcript         = COALESCE(EXCLUDED.transcript, call_logs.transcript),
  call_summary       = COALESCE(EXCLUDED.call_summary, call_logs.call_summary),
  sentiment          = COALESCE(EXCLUDED.sentiment, call_logs.sentiment),
  recording_url      = COALESCE(EXCLUDED.recording_url, call_logs.recording_url),
  answered_at        = COALESCE(EXCLUDED.answered_at, call_logs.answered_at),
  ended_at           = COALESCE(EXCLUDED.ended_at, call_logs.ended_at),
  updated_at         = EXCLUDED.updated_at
`
	if rec.ProviderCallID == "" || rec.UserID == "" {
		return ErrInvalidRecord
	}
	_, err := r.db.ExecContext(ctx, q,
		rec.ProviderCallID,
		rec.UserID,
		utils.NullString(rec.LeadID),
		utils.NullString(rec.CampaignID),
		utils.NullString(rec.AgentID),
		utils.NullString(rec.From),
		utils.NullString(rec.To),
		utils.NullString(rec.Direction),
		rec.Status,
		string(rec.Outcome),
		rec.Confidence,
		rec.DurationSeconds,
		utils.NullString(rec.Transcript),
		utils.NullString(rec.Summary),
		utils.NullString(rec.Sentiment),
		utils.NullString(rec.RecordingURL),
		utils.NullTime(rec.AnsweredAt),
		utils.NullTime(rec.EndedAt),
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("calls: upsert %s: %w", rec.ProviderCallID, err)
	}
	return nil
}

func (r *PostgresRepository) FindOwner(ctx context.Context, providerCallID string) (Owner, bool, error) {
	const q = `
SELECT user_id, COALESCE(lead_id::text, '')
FROM call_logs
WHERE provider_call_id = $1
LIMIT 1
`
	var o Owner
	if err := r.db.QueryRowContext(ctx, q, providerCallID).Scan(&o.UserID, &o.LeadID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Owner{}, false, nil
		}
		return Owner{}, false, fmt.Errorf("calls: find owner: %w", err)
	}
	return o, true, nil
}

var ErrInvalidRecord = errors.New("calls: provider_call_id and user_id required")
