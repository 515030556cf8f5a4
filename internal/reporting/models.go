package reporting

import (
	"time"

	"dialer-platform/internal/calls"
)

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (r TimeRange) valid() bool {
	return !r.From.IsZero() && !r.To.IsZero() && r.To.After(r.From)
}

// CallsSummaryRequest requests aggregated call metrics for one user.
// CampaignID is optional.
type CallsSummaryRequest struct {
	UserID     string    `json:"user_id"`
	Range      TimeRange `json:"range"`
	CampaignID string    `json:"campaign_id,omitempty"`
}

type CallsSummary struct {
	UserID     string `json:"user_id"`
	CampaignID string `json:"campaign_id,omitempty"`

	TotalCalls    int                       `json:"total_calls"`
	ByDisposition map[calls.Disposition]int `json:"by_disposition"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	RecordedCalls int `json:"recorded_calls"`
}

type ConversionMetricsRequest struct {
	UserID     string    `json:"user_id"`
	Range      TimeRange `json:"range"`
	CampaignID string    `json:"campaign_id"`
}

// ConversionMetrics counts appointment_set as a conversion.
type ConversionMetrics struct {
	UserID     string `json:"user_id"`
	CampaignID string `json:"campaign_id"`

	CallsAttempted int `json:"calls_attempted"`
	CallsConnected int `json:"calls_connected"`
	Conversions    int `json:"conversions"`

	ConnectionRate float64 `json:"connection_rate"`
	ConversionRate float64 `json:"conversion_rate"`
}

// CallRow is the projection of call_logs that reporting reads.
type CallRow struct {
	ProviderCallID  string
	CampaignID      string
	Outcome         calls.Disposition
	DurationSeconds int
	RecordingURL    string
	CreatedAt       time.Time
}
