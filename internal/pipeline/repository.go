package pipeline

import (
	"context"
	"fmt"

	"dialer-platform/pkg/utils"
)

type Repository interface {
	ListBoards(ctx context.Context, userID string) ([]Board, error)
	UpsertPosition(ctx context.Context, p Position) error
}

// PostgresRepository reads pipeline_boards and writes lead_pipeline_positions.
//
// Assumes UNIQUE (lead_id, board_id) on lead_pipeline_positions.
type PostgresRepository struct {
	db utils.DBTX
}

func NewPostgresRepository(db utils.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ListBoards(ctx context.Context, userID string) ([]Board, error) {
	const q = `
SELECT id, user_id, name, position
FROM pipeline_boards
WHERE user_id = $1
ORDER BY position ASC, created_at ASC
`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("pipeline: list boards: %w", err)
	}
	defer rows.Close()

	var out []Board
	for rows.Next() {
		var b Board
		if err := rows.Scan(&b.ID, &b.UserID, &b.Name, &b.Position); err != nil {
			return nil, fmt.Errorf("pipeline: scan board: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pipeline: list boards: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) UpsertPosition(ctx context.Context, p Position) error {
	const q = `
INSERT INTO lead_pipeline_positions (lead_id, board_id, user_id, moved_at, moved_by_user, notes)
VALUES ($1,$2,$3,$4,false,$5)
ON CONFLICT (lead_id, board_id)
DO UPDATE SET moved_at = EXCLUDED.moved_at,
              notes    = EXCLUDED.notes
`
	if _, err := r.db.ExecContext(ctx, q, p.LeadID, p.BoardID, p.UserID, p.MovedAt, utils.NullString(p.Notes)); err != nil {
		return fmt.Errorf("pipeline: upsert position: %w", err)
	}
	return nil
}
