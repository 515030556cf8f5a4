package workflow

import (
	"context"
	"sort"
	"sync"
)

type MemoryRepo struct {
	mu       sync.Mutex
	progress map[string]Progress
	steps    map[string][]Step
	FailWith error
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{progress: map[string]Progress{}, steps: map[string][]Step{}}
}

func (r *MemoryRepo) AddSteps(steps ...Step) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range steps {
		r.steps[s.WorkflowID] = append(r.steps[s.WorkflowID], s)
	}
}

func (r *MemoryRepo) PutProgress(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress[p.ID] = p
}

func (r *MemoryRepo) GetProgress(id string) (Progress, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.progress[id]
	return p, ok
}

func (r *MemoryRepo) LockActiveProgress(ctx context.Context, userID, leadID string) (Progress, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return Progress{}, false, r.FailWith
	}
	var found []Progress
	for _, p := range r.progress {
		if p.LeadID == leadID && p.UserID == userID && p.Status == StatusActive {
			found = append(found, p)
		}
	}
	switch len(found) {
	case 0:
		return Progress{}, false, nil
	case 1:
		return found[0], true, nil
	default:
		return Progress{}, false, ErrMultipleActiveProgress
	}
}

func (r *MemoryRepo) ListSteps(ctx context.Context, workflowID string) ([]Step, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]Step(nil), r.steps[workflowID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].StepNumber < out[j].StepNumber })
	return out, nil
}

func (r *MemoryRepo) SaveProgress(ctx context.Context, p Progress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailWith != nil {
		return r.FailWith
	}
	r.progress[p.ID] = p
	return nil
}
