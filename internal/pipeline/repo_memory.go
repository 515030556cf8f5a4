package pipeline

import (
	"context"
	"sort"
	"sync"
)

type positionKey struct{ lead, board string }

type MemoryRepo struct {
	mu        sync.Mutex
	boards    []Board
	positions map[positionKey]Position
	FailWith  error
}

func NewMemoryRepo(boards ...Board) *MemoryRepo {
	return &MemoryRepo{boards: boards, positions: map[positionKey]Position{}}
}

func (r *MemoryRepo) ListBoards(ctx context.Context, userID string) ([]Board, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return nil, r.FailWith
	}
	var out []Board
	for _, b := range r.boards {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *MemoryRepo) UpsertPosition(ctx context.Context, p Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	k := positionKey{p.LeadID, p.BoardID}
	if prev, ok := r.positions[k]; ok {
		prev.MovedAt = p.MovedAt
		prev.Notes = p.Notes
		r.positions[k] = prev
		return nil
	}
	p.MovedByUser = false
	r.positions[k] = p
	return nil
}

// Positions returns every position held by leadID.
func (r *MemoryRepo) Positions(leadID string) []Position {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Position
	for k, p := range r.positions {
		if k.lead == leadID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BoardID < out[j].BoardID })
	return out
}
