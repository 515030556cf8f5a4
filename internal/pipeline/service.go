package pipeline

import (
	"context"
	"errors"
	"time"

	"dialer-platform/internal/calls"
)

var ErrInvalidArgument = errors.New("pipeline: invalid argument")

// Move places leadID on the board matching d. Returns false when no board matches.
// Existing positions on other boards are left untouched.
func Move(ctx context.Context, repo Repository, userID, leadID string, d calls.Disposition, now time.Time) (Board, bool, error) {
	if userID == "" || leadID == "" {
		return Board{}, false, ErrInvalidArgument
	}
	boards, err := repo.ListBoards(ctx, userID)
	if err != nil {
		return Board{}, false, err
	}
	b, ok := MatchBoard(d, boards)
	if !ok {
		return Board{}, false, nil
	}
	err = repo.UpsertPosition(ctx, Position{
		LeadID:  leadID,
		BoardID: b.ID,
		UserID:  userID,
		MovedAt: now,
		Notes:   "Auto-moved after call: " + string(d),
	})
	if err != nil {
		return Board{}, false, err
	}
	return b, true, nil
}
