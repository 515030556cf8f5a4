package dispositions

import (
	"errors"
	"strings"
	"time"

	"dialer-platform/internal/calls"
	"dialer-platform/internal/workflow"
)

// Webhook event types acted upon. Everything else is acknowledged and ignored.
const (
	EventCallEnded    = "call_ended"
	EventCallAnalyzed = "call_analyzed"
)

var (
	ErrMissingCallID  = errors.New("dispositions: call id required")
	ErrUnresolvedUser = errors.New("dispositions: unable to resolve owning user")
)

// Handled reports whether event triggers processing.
func Handled(event string) bool {
	return event == EventCallEnded || event == EventCallAnalyzed
}

type Metadata struct {
	LeadID     string
	CampaignID string
	UserID     string
	CallerID   string
}

// CallEvent is a provider-agnostic call lifecycle notification.
type CallEvent struct {
	Event               string
	ProviderCallID      string
	Status              string
	DisconnectionReason string
	From                string
	To                  string
	Direction           string
	AgentID             string
	RecordingURL        string

	// Transcript wins over Turns when both are present.
	Transcript string
	Turns      []calls.TranscriptTurn

	StartedAt *time.Time
	EndedAt   *time.Time

	// DurationSeconds is authoritative when DurationKnown is set; otherwise it
	// is derived from StartedAt/EndedAt when both are present.
	DurationSeconds int
	DurationKnown   bool

	Analysis *calls.Analysis
	Metadata Metadata
}

func (e CallEvent) TranscriptText() string {
	if t := strings.TrimSpace(e.Transcript); t != "" {
		return t
	}
	return calls.FormatTranscript(e.Turns)
}

// Duration returns the call length in seconds and whether it is known.
func (e CallEvent) Duration() (int, bool) {
	if e.DurationKnown {
		return e.DurationSeconds, true
	}
	if e.StartedAt != nil && e.EndedAt != nil && !e.EndedAt.Before(*e.StartedAt) {
		return int(e.EndedAt.Sub(*e.StartedAt) / time.Second), true
	}
	return 0, false
}

// Result is what the webhook acknowledges.
type Result struct {
	Processed   bool              `json:"processed"`
	CallID      string            `json:"callId,omitempty"`
	Disposition calls.Disposition `json:"disposition,omitempty"`
	Confidence  float64           `json:"confidence"`
	LeadID      string            `json:"leadId,omitempty"`
	UserID      string            `json:"-"`
	Duplicate   bool              `json:"duplicate"`
	Workflow    workflow.Action   `json:"workflow,omitempty"`
	Failures    []string          `json:"failures,omitempty"`
}

// DispatchPayload is sent to the sibling functions after processing.
type DispatchPayload struct {
	Event       string            `json:"event"`
	CallID      string            `json:"callId"`
	UserID      string            `json:"userId"`
	LeadID      string            `json:"leadId,omitempty"`
	CampaignID  string            `json:"campaignId,omitempty"`
	Disposition calls.Disposition `json:"disposition"`
	Confidence  float64           `json:"confidence"`
	Transcript  string            `json:"transcript,omitempty"`
}
