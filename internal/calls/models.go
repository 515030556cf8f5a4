package calls

import "time"

// Disposition is the normalized outcome label derived from a completed call.
type Disposition string

const (
	DispositionCompleted         Disposition = "completed"
	DispositionVoicemail         Disposition = "voicemail"
	DispositionNoAnswer          Disposition = "no_answer"
	DispositionBusy              Disposition = "busy"
	DispositionFailed            Disposition = "failed"
	DispositionUnknown           Disposition = "unknown"
	DispositionAppointmentSet    Disposition = "appointment_set"
	DispositionInterested        Disposition = "interested"
	DispositionCallbackRequested Disposition = "callback_requested"
	DispositionDNC               Disposition = "dnc"
	DispositionNotInterested     Disposition = "not_interested"
	DispositionContacted         Disposition = "contacted"
)

var knownDispositions = map[Disposition]struct{}{
	DispositionCompleted:         {},
	DispositionVoicemail:         {},
	DispositionNoAnswer:          {},
	DispositionBusy:              {},
	DispositionFailed:            {},
	DispositionUnknown:           {},
	DispositionAppointmentSet:    {},
	DispositionInterested:        {},
	DispositionCallbackRequested: {},
	DispositionDNC:               {},
	DispositionNotInterested:     {},
	DispositionContacted:         {},
}

// Valid reports whether d belongs to the fixed vocabulary.
func (d Disposition) Valid() bool {
	_, ok := knownDispositions[d]
	return ok
}

// Connected reports whether the call reached a live person.
func (d Disposition) Connected() bool {
	switch d {
	case DispositionNoAnswer, DispositionBusy, DispositionFailed, DispositionUnknown, DispositionVoicemail:
		return false
	default:
		return d.Valid()
	}
}

// Record is one row of call_logs, keyed by the provider's call id.
//
// Tenancy invariant: UserID is required on every row.
type Record struct {
	ID             string `json:"id" db:"id"`
	ProviderCallID string `json:"provider_call_id" db:"provider_call_id"`
	UserID         string `json:"user_id" db:"user_id"`
	LeadID         string `json:"lead_id,omitempty" db:"lead_id"`
	CampaignID     string `json:"campaign_id,omitempty" db:"campaign_id"`
	AgentID        string `json:"agent_id,omitempty" db:"agent_id"`

	From      string `json:"from_number" db:"from_number"`
	To        string `json:"to_number" db:"to_number"`
	Direction string `json:"direction,omitempty" db:"direction"`

	Status     string      `json:"status" db:"status"`
	Outcome    Disposition `json:"outcome" db:"outcome"`
	Confidence float64     `json:"outcome_confidence" db:"outcome_confidence"`

	DurationSeconds int `json:"duration_seconds" db:"duration_seconds"`

	Transcript   string `json:"transcript,omitempty" db:"transcript"`
	Summary      string `json:"call_summary,omitempty" db:"call_summary"`
	Sentiment    string `json:"sentiment,omitempty" db:"sentiment"`
	RecordingURL string `json:"recording_url,omitempty" db:"recording_url"`

	AnsweredAt *time.Time `json:"answered_at,omitempty" db:"answered_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Owner identifies who a previously seen call belongs to.
type Owner struct {
	UserID string
	LeadID string
}
