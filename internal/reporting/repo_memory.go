package reporting

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryRepo is an in-memory reporting repository for tests.
// Rows are keyed by user id.
type MemoryRepo struct {
	mu    sync.Mutex
	calls map[string][]CallRow
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{calls: map[string][]CallRow{}} }

func (r *MemoryRepo) Add(userID string, rows ...CallRow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[userID] = append(r.calls[userID], rows...)
}

func (r *MemoryRepo) ListCalls(_ context.Context, userID string, from, to time.Time, campaignID string) ([]CallRow, error) {
	if userID == "" {
		return nil, errors.New("user_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CallRow, 0)
	for _, c := range r.calls[userID] {
		if c.CreatedAt.Before(from) || !c.CreatedAt.Before(to) {
			continue
		}
		if campaignID != "" && c.CampaignID != campaignID {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
