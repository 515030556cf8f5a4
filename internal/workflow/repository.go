package workflow

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"dialer-platform/pkg/utils"
)

type Repository interface {
	// LockActiveProgress returns the lead's active row, locked for the
	// enclosing transaction.
	LockActiveProgress(ctx context.Context, userID, leadID string) (Progress, bool, error)
	ListSteps(ctx context.Context, workflowID string) ([]Step, error)
	SaveProgress(ctx context.Context, p Progress) error
}

// PostgresRepository works on lead_workflow_progress and workflow_steps.
//
// Assumes a partial unique index on lead_workflow_progress (lead_id) WHERE status = 'active'.
type PostgresRepository struct {
	db utils.DBTX
}

func NewPostgresRepository(db utils.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) LockActiveProgress(ctx context.Context, userID, leadID string) (Progress, bool, error) {
	// LIMIT 2 surfaces a broken uniqueness invariant instead of picking a row at random.
	const q = `
SELECT id, lead_id, user_id, workflow_id, current_step_id, status, next_action_at, last_action_at, completed_at
FROM lead_workflow_progress
WHERE lead_id = $1 AND user_id = $2 AND status = 'active'
LIMIT 2
FOR UPDATE
`
	rows, err := r.db.QueryContext(ctx, q, leadID, userID)
	if err != nil {
		return Progress{}, false, fmt.Errorf("workflow: lock progress: %w", err)
	}
	defer rows.Close()

	var out []Progress
	for rows.Next() {
		var (
			p                       Progress
			currentStep             sql.NullString
			next, last, completedAt sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.LeadID, &p.UserID, &p.WorkflowID, &currentStep, &p.Status, &next, &last, &completedAt); err != nil {
			return Progress{}, false, fmt.Errorf("workflow: scan progress: %w", err)
		}
		p.CurrentStepID = currentStep.String
		p.NextActionAt = timePtr(next)
		p.LastActionAt = timePtr(last)
		p.CompletedAt = timePtr(completedAt)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return Progress{}, false, fmt.Errorf("workflow: lock progress: %w", err)
	}
	switch len(out) {
	case 0:
		return Progress{}, false, nil
	case 1:
		return out[0], true, nil
	default:
		return Progress{}, false, ErrMultipleActiveProgress
	}
}

func (r *PostgresRepository) ListSteps(ctx context.Context, workflowID string) ([]Step, error) {
	const q = `
SELECT id, workflow_id, step_number, step_type, COALESCE(step_config, '{}'::jsonb)
FROM workflow_steps
WHERE workflow_id = $1
ORDER BY step_number ASC
`
	rows, err := r.db.QueryContext(ctx, q, workflowID)
	if err != nil {
		return nil, fmt.Errorf("workflow: list steps: %w", err)
	}
	defer rows.Close()

	var out []Step
	for rows.Next() {
		var (
			s   Step
			raw []byte
		)
		if err := rows.Scan(&s.ID, &s.WorkflowID, &s.StepNumber, &s.Type, &raw); err != nil {
			return nil, fmt.Errorf("workflow: scan step: %w", err)
		}
		s.Type = StepType(strings.ToLower(strings.TrimSpace(string(s.Type))))
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &s.Config); err != nil {
				return nil, fmt.Errorf("workflow: step %s config: %w", s.ID, err)
			}
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("workflow: list steps: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) SaveProgress(ctx context.Context, p Progress) error {
	const q = `
UPDATE lead_workflow_progress
SET current_step_id = $2,
    status          = $3,
    next_action_at  = $4,
    last_action_at  = $5,
    completed_at    = $6,
    updated_at      = now()
WHERE id = $1
`
	_, err := r.db.ExecContext(ctx, q,
		p.ID,
		p.CurrentStepID,
		string(p.Status),
		utils.NullTime(p.NextActionAt),
		utils.NullTime(p.LastActionAt),
		utils.NullTime(p.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("workflow: save progress: %w", err)
	}
	return nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
