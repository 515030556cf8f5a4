package nudges

import (
	"time"

	"dialer-platform/internal/calls"
)

// Tracking is the per-lead follow-up cadence state (lead_nudge_tracking).
type Tracking struct {
	LeadID          string    `json:"lead_id"`
	UserID          string    `json:"user_id"`
	IsEngaged       bool      `json:"is_engaged"`
	SequencePaused  bool      `json:"sequence_paused"`
	PauseReason     string    `json:"pause_reason,omitempty"`
	LastAIContactAt time.Time `json:"last_ai_contact_at"`
	LastDisposition string    `json:"last_disposition"`
}

var pauseReasons = map[calls.Disposition]string{
	calls.DispositionAppointmentSet: "appointment booked",
	calls.DispositionDNC:            "lead requested do not call",
	calls.DispositionNotInterested:  "lead not interested",
}

func engaged(d calls.Disposition) bool {
	switch d {
	case calls.DispositionInterested, calls.DispositionAppointmentSet, calls.DispositionCallbackRequested:
		return true
	}
	return false
}

// TrackingFor builds the row written after a call with disposition d.
func TrackingFor(userID, leadID string, d calls.Disposition, now time.Time) Tracking {
	reason, paused := pauseReasons[d]
	return Tracking{
		LeadID:          leadID,
		UserID:          userID,
		IsEngaged:       engaged(d),
		SequencePaused:  paused,
		PauseReason:     reason,
		LastAIContactAt: now,
		LastDisposition: string(d),
	}
}
