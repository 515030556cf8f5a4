package leads

import (
	"context"
	"sync"
)

type MemoryRepo struct {
	mu    sync.Mutex
	leads map[string]Lead
	// FailWith makes every ApplyPatch return this error when set.
	FailWith error
}

func NewMemoryRepo(seed ...Lead) *MemoryRepo {
	r := &MemoryRepo{leads: map[string]Lead{}}
	for _, l := range seed {
		r.leads[l.ID] = l
	}
	return r
}

func (r *MemoryRepo) ApplyPatch(ctx context.Context, userID, leadID string, p Patch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	l, ok := r.leads[leadID]
	if !ok || l.UserID != userID {
		return ErrLeadNotFound
	}
	r.leads[leadID] = p.Apply(l)
	return nil
}

func (r *MemoryRepo) Get(id string) (Lead, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	return l, ok
}
