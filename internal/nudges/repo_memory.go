package nudges

import (
	"context"
	"sync"
)

type MemoryRepo struct {
	mu       sync.Mutex
	rows     map[string]Tracking
	FailWith error
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{rows: map[string]Tracking{}} }

func (r *MemoryRepo) Upsert(ctx context.Context, t Tracking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	r.rows[t.LeadID] = t
	return nil
}

func (r *MemoryRepo) Get(leadID string) (Tracking, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[leadID]
	return t, ok
}

func (r *MemoryRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}
