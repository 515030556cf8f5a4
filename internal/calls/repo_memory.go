package calls

import (
	"context"
	"sync"
)

// MemoryRepo keeps call records in memory, keyed by provider call id.
// Intended for tests.
type MemoryRepo struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{records: map[string]Record{}} }

func (r *MemoryRepo) Upsert(ctx context.Context, rec Record) error {
	if rec.ProviderCallID == "" || rec.UserID == "" {
		return ErrInvalidRecord
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.records[rec.ProviderCallID]; ok {
		rec.CreatedAt = prev.CreatedAt
		if prev.LeadID != "" {
			rec.LeadID = prev.LeadID
		}
		if prev.CampaignID != "" {
			rec.CampaignID = prev.CampaignID
		}
		if rec.Transcript == "" {
			rec.Transcript = prev.Transcript
		}
	} else {
		rec.CreatedAt = rec.UpdatedAt
	}
	r.records[rec.ProviderCallID] = rec
	return nil
}

func (r *MemoryRepo) FindOwner(ctx context.Context, providerCallID string) (Owner, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[providerCallID]
	if !ok {
		return Owner{}, false, nil
	}
	return Owner{UserID: rec.UserID, LeadID: rec.LeadID}, true, nil
}

// Records returns a snapshot of all stored records.
func (r *MemoryRepo) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}
