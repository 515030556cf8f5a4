package workflow

import (
	"context"
	"time"
)

// Advancer moves a lead's active workflow past a completed call step.
type Advancer struct {
	loc *time.Location
}

// NewAdvancer uses loc for time_of_day snapping; nil means UTC.
func NewAdvancer(loc *time.Location) *Advancer {
	if loc == nil {
		loc = time.UTC
	}
	return &Advancer{loc: loc}
}

// Advance applies one call-completion event. The outcome of the call is not
// considered. repo must be bound to the transaction holding the row lock.
func (a *Advancer) Advance(ctx context.Context, repo Repository, userID, leadID string, now time.Time) (Result, error) {
	if userID == "" || leadID == "" {
		return Result{}, ErrInvalidArgument
	}
	p, found, err := repo.LockActiveProgress(ctx, userID, leadID)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{Action: ActionNone, Reason: "no active workflow"}, nil
	}
	if p.CurrentStepID == "" {
		return Result{Action: ActionNone, Reason: "no current step", Progress: p}, nil
	}

	steps, err := repo.ListSteps(ctx, p.WorkflowID)
	if err != nil {
		return Result{}, err
	}
	idx := -1
	for i, s := range steps {
		if s.ID == p.CurrentStepID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Result{}, ErrStepNotFound
	}
	if !steps[idx].Type.Is(StepCall) {
		return Result{Action: ActionNone, Reason: "current step is " + string(steps[idx].Type), Progress: p}, nil
	}

	if idx+1 < len(steps) {
		next := steps[idx+1]
		at := NextActionAt(next, now, a.loc)
		last := now
		p.CurrentStepID = next.ID
		p.NextActionAt = &at
		p.LastActionAt = &last
		if err := repo.SaveProgress(ctx, p); err != nil {
			return Result{}, err
		}
		return Result{Action: ActionAdvanced, Progress: p}, nil
	}

	done := now
	p.Status = StatusCompleted
	p.CompletedAt = &done
	p.LastActionAt = &done
	p.NextActionAt = nil
	if err := repo.SaveProgress(ctx, p); err != nil {
		return Result{}, err
	}
	return Result{Action: ActionCompleted, Progress: p}, nil
}
