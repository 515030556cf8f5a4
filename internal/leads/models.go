package leads

import (
	"errors"
	"time"

	"dialer-platform/internal/calls"
)

type Status string

const (
	StatusContacted     Status = "contacted"
	StatusQualified     Status = "qualified"
	StatusCallback      Status = "callback"
	StatusDNC           Status = "dnc"
	StatusInterested    Status = "interested"
	StatusNotInterested Status = "not_interested"
)

// CallbackDelay is the fixed offset used when a lead asks to be called back.
const CallbackDelay = 24 * time.Hour

var ErrLeadNotFound = errors.New("leads: lead not found")

// Lead is the subset of the leads table this service mutates.
type Lead struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Status          Status     `json:"status"`
	LastContactedAt *time.Time `json:"last_contacted_at,omitempty"`
	NextCallbackAt  *time.Time `json:"next_callback_at,omitempty"`
	DoNotCall       bool       `json:"do_not_call"`
}

// Patch is the state change derived from one call outcome.
// NextCallbackAt is nil when no callback is scheduled; DoNotCall is only ever set, never cleared.
type Patch struct {
	Status          Status
	LastContactedAt time.Time
	NextCallbackAt  *time.Time
	DoNotCall       bool
}

var statusByDisposition = map[calls.Disposition]Status{
	calls.DispositionAppointmentSet:    StatusQualified,
	calls.DispositionCallbackRequested: StatusCallback,
	calls.DispositionDNC:               StatusDNC,
	calls.DispositionInterested:        StatusInterested,
	calls.DispositionNotInterested:     StatusNotInterested,
}

func PatchFor(d calls.Disposition, now time.Time) Patch {
	st, ok := statusByDisposition[d]
	if !ok {
		st = StatusContacted
	}
	p := Patch{Status: st, LastContactedAt: now}
	switch d {
	case calls.DispositionCallbackRequested:
		at := now.Add(CallbackDelay)
		p.NextCallbackAt = &at
	case calls.DispositionDNC:
		p.DoNotCall = true
	}
	return p
}

// Apply returns l with p applied.
func (p Patch) Apply(l Lead) Lead {
	l.Status = p.Status
	at := p.LastContactedAt
	l.LastContactedAt = &at
	if p.NextCallbackAt != nil {
		cb := *p.NextCallbackAt
		l.NextCallbackAt = &cb
	}
	if p.DoNotCall {
		l.DoNotCall = true
	}
	return l
}
