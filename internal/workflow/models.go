package workflow

import (
	"errors"
	"strings"
	"time"
)

type ProgressStatus string

const (
	StatusActive    ProgressStatus = "active"
	StatusCompleted ProgressStatus = "completed"
)

type StepType string

const (
	StepCall StepType = "call"
	StepSMS  StepType = "sms"
	StepWait StepType = "wait"
)

// Is compares step types ignoring case and surrounding space.
func (t StepType) Is(want StepType) bool {
	return strings.EqualFold(strings.TrimSpace(string(t)), string(want))
}

var (
	ErrMultipleActiveProgress = errors.New("workflow: more than one active progress row for lead")
	ErrStepNotFound           = errors.New("workflow: current step not found in workflow")
	ErrInvalidArgument        = errors.New("workflow: invalid argument")
)

// Progress is a lead's position inside a workflow (lead_workflow_progress).
// At most one row per lead may be active.
type Progress struct {
	ID            string         `json:"id"`
	LeadID        string         `json:"lead_id"`
	UserID        string         `json:"user_id"`
	WorkflowID    string         `json:"workflow_id"`
	CurrentStepID string         `json:"current_step_id"`
	Status        ProgressStatus `json:"status"`
	NextActionAt  *time.Time     `json:"next_action_at,omitempty"`
	LastActionAt  *time.Time     `json:"last_action_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
}

// Step is immutable from this service's point of view.
type Step struct {
	ID         string     `json:"id"`
	WorkflowID string     `json:"workflow_id"`
	StepNumber int        `json:"step_number"`
	Type       StepType   `json:"step_type"`
	Config     StepConfig `json:"step_config"`
}

// StepConfig is the subset of step_config used for scheduling.
type StepConfig struct {
	DelayMinutes int    `json:"delay_minutes,omitempty"`
	DelayHours   int    `json:"delay_hours,omitempty"`
	DelayDays    int    `json:"delay_days,omitempty"`
	TimeOfDay    string `json:"time_of_day,omitempty"`
}

type Action string

const (
	ActionNone      Action = "none"
	ActionAdvanced  Action = "advanced"
	ActionCompleted Action = "completed"
)

type Result struct {
	Action   Action   `json:"action"`
	Reason   string   `json:"reason,omitempty"`
	Progress Progress `json:"progress"`
}
