package dispatch

import (
	"time"

	"shift-notify/internal/models"
)

// Trigger names what started a run.
type Trigger string

const (
	TriggerPublish  Trigger = "publish"
	TriggerManual   Trigger = "manual"
	TriggerReminder Trigger = "reminder"
	TriggerWorkflow Trigger = "workflow"
	TriggerCLI      Trigger = "cli"
)

// Request describes one dispatch. When RecipientIDs is non-nil the run
// targets exactly those recipients and ShiftIDs only supplies shift lines;
// otherwise recipients are derived from ShiftIDs plus every active employee.
type Request struct {
	RunID        string
	Trigger      Trigger
	TemplateID   int64
	Channel      models.Channel // empty means the template's own type
	ShiftIDs     []int64
	RecipientIDs []int64
	WeekCode     string
}

type RunStatus string

const (
	RunCompleted   RunStatus = "completed"
	RunAborted     RunStatus = "aborted"
	RunInterrupted RunStatus = "interrupted"
)

type OutcomeStatus string

const (
	StatusNotRequested       OutcomeStatus = "not_requested"
	StatusSent               OutcomeStatus = "sent"
	StatusFailed             OutcomeStatus = "failed"
	StatusSkippedInvalid     OutcomeStatus = "skipped_invalid_state"
	StatusSkippedNoPhone     OutcomeStatus = "skipped_no_phone"
	StatusSkippedNoEmail     OutcomeStatus = "skipped_no_email"
	StatusSkippedPreference  OutcomeStatus = "skipped_preference"
	StatusSkippedUnavailable OutcomeStatus = "skipped_channel_unavailable"
)

// Outcome is the per-recipient result of a run.
type Outcome struct {
	RecipientID int64         `json:"recipientId"`
	ShiftCount  int           `json:"shiftCount"`
	SMS         OutcomeStatus `json:"sms"`
	Email       OutcomeStatus `json:"email"`
	SMSError    string        `json:"smsError,omitempty"`
	EmailError  string        `json:"emailError,omitempty"`
}

type Counters struct {
	Recipients                int `json:"recipients"`
	WithoutShifts             int `json:"withoutShifts"`
	SkippedInvalidState       int `json:"skippedInvalidState"`
	SkippedNoPhone            int `json:"skippedNoPhone"`
	SkippedNoEmail            int `json:"skippedNoEmail"`
	SkippedSMSDisabled        int `json:"skippedSmsDisabled"`
	SkippedEmailDisabled      int `json:"skippedEmailDisabled"`
	SkippedChannelUnavailable int `json:"skippedChannelUnavailable"`
	SMSSent                   int `json:"smsSent"`
	SMSFailed                 int `json:"smsFailed"`
	EmailSent                 int `json:"emailSent"`
	EmailFailed               int `json:"emailFailed"`
}

func (c Counters) fields() map[string]interface{} {
	return map[string]interface{}{
		"recipients":                c.Recipients,
		"withoutShifts":             c.WithoutShifts,
		"skippedInvalidState":       c.SkippedInvalidState,
		"skippedNoPhone":            c.SkippedNoPhone,
		"skippedNoEmail":            c.SkippedNoEmail,
		"skippedSmsDisabled":        c.SkippedSMSDisabled,
		"skippedEmailDisabled":      c.SkippedEmailDisabled,
		"skippedChannelUnavailable": c.SkippedChannelUnavailable,
		"smsSent":                   c.SMSSent,
		"smsFailed":                 c.SMSFailed,
		"emailSent":                 c.EmailSent,
		"emailFailed":               c.EmailFailed,
	}
}

// Run is the ephemeral record of one dispatch. It is not persisted.
type Run struct {
	ID         string         `json:"runId"`
	Trigger    Trigger        `json:"trigger"`
	TemplateID int64          `json:"templateId"`
	WeekCode   string         `json:"weekCode,omitempty"`
	Channel    models.Channel `json:"channel"`
	Status     RunStatus      `json:"status"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Counters   Counters       `json:"counters"`
	Outcomes   []Outcome      `json:"outcomes"`
}

func failureRate(sent, failed int) float64 {
	if sent+failed == 0 {
		return 0
	}
	return float64(failed) / float64(sent+failed)
}

func (r *Run) SMSFailureRate() float64 {
	return failureRate(r.Counters.SMSSent, r.Counters.SMSFailed)
}

func (r *Run) EmailFailureRate() float64 {
	return failureRate(r.Counters.EmailSent, r.Counters.EmailFailed)
}
