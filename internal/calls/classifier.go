package calls

import (
	"strings"
)

// ShortCallThreshold is the duration below which a call is treated as unanswered.
const ShortCallThreshold = 10

// Analysis is the provider's structured post-call analysis.
type Analysis struct {
	CallSummary        string         `json:"call_summary,omitempty"`
	UserSentiment      string         `json:"user_sentiment,omitempty"`
	CallSuccessful     *bool          `json:"call_successful,omitempty"`
	CustomAnalysisData map[string]any `json:"custom_analysis_data,omitempty"`
}

// OutcomeInput carries every signal the classifier may use.
type OutcomeInput struct {
	Status              string
	DisconnectionReason string

	// DurationSeconds is only trusted when DurationKnown is set.
	DurationSeconds int
	DurationKnown   bool

	Analysis *Analysis
}

// OutcomeSource names which rule produced an Outcome.
type OutcomeSource string

const (
	SourceDuration OutcomeSource = "duration"
	SourceAnalysis OutcomeSource = "analysis"
	SourceStatus   OutcomeSource = "status"
)

type Outcome struct {
	Disposition Disposition   `json:"disposition"`
	Confidence  float64       `json:"confidence"`
	Source      OutcomeSource `json:"source"`
}

// Classify maps raw call signals to a single disposition.
//
// Priority:
//  1. short known duration => no_answer
//  2. structured analysis (explicit keys, then sentiment/success)
//  3. disconnection reason, then call status
func Classify(in OutcomeInput) Outcome {
	if in.DurationKnown && in.DurationSeconds < ShortCallThreshold {
		return Outcome{Disposition: DispositionNoAnswer, Confidence: 1, Source: SourceDuration}
	}
	if in.Analysis != nil {
		return classifyAnalysis(*in.Analysis)
	}
	return classifyStatus(in.Status, in.DisconnectionReason)
}

type analysisRule struct {
	keys        []string
	disposition Disposition
	confidence  float64
}

var analysisRules = []analysisRule{
	{keys: []string{"appointment_set", "booked"}, disposition: DispositionAppointmentSet, confidence: 0.95},
	{keys: []string{"callback_requested", "call_back"}, disposition: DispositionCallbackRequested, confidence: 0.9},
	{keys: []string{"dnc", "do_not_call"}, disposition: DispositionDNC, confidence: 0.95},
	{keys: []string{"not_interested"}, disposition: DispositionNotInterested, confidence: 0.85},
}

func classifyAnalysis(a Analysis) Outcome {
	data := a.CustomAnalysisData
	if raw, ok := data["disposition"].(string); ok {
		d := Disposition(strings.ToLower(strings.TrimSpace(raw)))
		if d.Valid() {
			return Outcome{Disposition: d, Confidence: 0.9, Source: SourceAnalysis}
		}
	}
	for _, r := range analysisRules {
		for _, k := range r.keys {
			if truthy(data[k]) {
				return Outcome{Disposition: r.disposition, Confidence: r.confidence, Source: SourceAnalysis}
			}
		}
	}

	sentiment := strings.ToLower(strings.TrimSpace(a.UserSentiment))
	successful := a.CallSuccessful != nil && *a.CallSuccessful
	switch {
	case sentiment == "negative":
		return Outcome{Disposition: DispositionNotInterested, Confidence: 0.6, Source: SourceAnalysis}
	case successful && sentiment == "positive":
		return Outcome{Disposition: DispositionInterested, Confidence: 0.7, Source: SourceAnalysis}
	default:
		return Outcome{Disposition: DispositionContacted, Confidence: 0.5, Source: SourceAnalysis}
	}
}

var reasonTable = map[string]Disposition{
	"machine_detected":  DispositionVoicemail,
	"voicemail_reached": DispositionVoicemail,
	"dial_no_answer":    DispositionNoAnswer,
	"dial_busy":         DispositionBusy,
	"dial_failed":       DispositionFailed,
}

func classifyStatus(status, reason string) Outcome {
	if d, ok := reasonTable[strings.ToLower(strings.TrimSpace(reason))]; ok {
		return Outcome{Disposition: d, Confidence: 0.8, Source: SourceStatus}
	}
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "ended":
		return Outcome{Disposition: DispositionCompleted, Confidence: 0.8, Source: SourceStatus}
	case "error":
		return Outcome{Disposition: DispositionFailed, Confidence: 0.8, Source: SourceStatus}
	}
	return Outcome{Disposition: DispositionUnknown, Source: SourceStatus}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1":
			return true
		}
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	}
	return false
}
