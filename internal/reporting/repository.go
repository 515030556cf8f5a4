package reporting

import (
	"context"
	"fmt"
	"time"

	"dialer-platform/pkg/utils"
)

// Repository abstracts data access for reporting.
//
// Every method filters on user_id.
type Repository interface {
	ListCalls(ctx context.Context, userID string, from, to time.Time, campaignID string) ([]CallRow, error)
}

type PostgresRepository struct {
	db utils.DBTX
}

func NewPostgresRepository(db utils.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ListCalls(ctx context.Context, userID string, from, to time.Time, campaignID string) ([]CallRow, error) {
	const q = `
SELECT provider_call_id, COALESCE(campaign_id::text, ''), outcome,
       duration_seconds, COALESCE(recording_url, ''), created_at
FROM call_logs
WHERE user_id = $1
  AND created_at >= $2 AND created_at < $3
  AND ($4 = '' OR campaign_id::text = $4)
ORDER BY created_at
`
	rows, err := r.db.QueryContext(ctx, q, userID, from, to, campaignID)
	if err != nil {
		return nil, fmt.Errorf("reporting: list calls: %w", err)
	}
	defer rows.Close()

	out := make([]CallRow, 0)
	for rows.Next() {
		var c CallRow
		if err := rows.Scan(&c.ProviderCallID, &c.CampaignID, &c.Outcome, &c.DurationSeconds, &c.RecordingURL, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("reporting: scan call: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reporting: list calls: %w", err)
	}
	return out, nil
}
