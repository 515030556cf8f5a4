package telephony

import (
	"errors"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"dialer-platform/internal/calls"
	"dialer-platform/internal/dispositions"
)

// VoiceAIWebhook is the voice-AI provider's call lifecycle callback.
// Only the fields this service reads are declared.
type VoiceAIWebhook struct {
	Event string      `json:"event"`
	Call  VoiceAICall `json:"call"`
}

type VoiceAICall struct {
	CallID              string                 `json:"call_id"`
	CallStatus          string                 `json:"call_status"`
	StartTimestamp      *float64               `json:"start_timestamp,omitempty"`
	EndTimestamp        *float64               `json:"end_timestamp,omitempty"`
	DurationMS          *int64                 `json:"duration_ms,omitempty"`
	Transcript          string                 `json:"transcript,omitempty"`
	TranscriptObject    []calls.TranscriptTurn `json:"transcript_object,omitempty"`
	CallAnalysis        *calls.Analysis        `json:"call_analysis,omitempty"`
	RecordingURL        string                 `json:"recording_url,omitempty"`
	Metadata            VoiceAIMetadata        `json:"metadata"`
	FromNumber          string                 `json:"from_number,omitempty"`
	ToNumber            string                 `json:"to_number,omitempty"`
	Direction           string                 `json:"direction,omitempty"`
	DisconnectionReason string                 `json:"disconnection_reason,omitempty"`
	AgentID             string                 `json:"agent_id,omitempty"`
}

type VoiceAIMetadata struct {
	LeadID     string `json:"lead_id,omitempty"`
	CampaignID string `json:"campaign_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	CallerID   string `json:"caller_id,omitempty"`
}

var ErrEmptyBody = errors.New("telephony: empty webhook body")

func ParseVoiceAIWebhook(body []byte) (VoiceAIWebhook, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return VoiceAIWebhook{}, ErrEmptyBody
	}
	var w VoiceAIWebhook
	if err := json.Unmarshal(body, &w); err != nil {
		return VoiceAIWebhook{}, err
	}
	w.Event = strings.TrimSpace(w.Event)
	return w, nil
}

// ToCallEvent converts the provider payload to the internal event.
// Timestamps are epoch milliseconds.
func (w VoiceAIWebhook) ToCallEvent() dispositions.CallEvent {
	c := w.Call
	ev := dispositions.CallEvent{
		Event:               w.Event,
		ProviderCallID:      strings.TrimSpace(c.CallID),
		Status:              c.CallStatus,
		DisconnectionReason: c.DisconnectionReason,
		From:                strings.TrimSpace(c.FromNumber),
		To:                  strings.TrimSpace(c.ToNumber),
		Direction:           c.Direction,
		AgentID:             c.AgentID,
		RecordingURL:        c.RecordingURL,
		Transcript:          c.Transcript,
		Turns:               c.TranscriptObject,
		StartedAt:           epochMillis(c.StartTimestamp),
		EndedAt:             epochMillis(c.EndTimestamp),
		Analysis:            c.CallAnalysis,
		Metadata: dispositions.Metadata{
			LeadID:     strings.TrimSpace(c.Metadata.LeadID),
			CampaignID: strings.TrimSpace(c.Metadata.CampaignID),
			UserID:     strings.TrimSpace(c.Metadata.UserID),
			CallerID:   strings.TrimSpace(c.Metadata.CallerID),
		},
	}
	if c.DurationMS != nil && *c.DurationMS >= 0 {
		ev.DurationSeconds = int(*c.DurationMS / 1000)
		ev.DurationKnown = true
	}
	return ev
}

func epochMillis(v *float64) *time.Time {
	if v == nil || *v <= 0 {
		return nil
	}
	t := time.UnixMilli(int64(*v)).UTC()
	return &t
}
