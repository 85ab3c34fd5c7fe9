package notifyweek

import "shift-notify/internal/notify/trigger"

// Input is read from the job variables. When RecipientIDs is set the run
// targets only them; Publish flips the week's published flag first.
type Input struct {
	WeekCode     string  `json:"weekCode"`
	TemplateID   int64   `json:"templateId"`
	Channel      string  `json:"channel,omitempty"`
	Publish      bool    `json:"publish,omitempty"`
	RecipientIDs []int64 `json:"recipientIds,omitempty"`
}

type Output struct {
	RunID        string `json:"notificationRunId"`
	Status       string `json:"notificationStatus"`
	Trigger      string `json:"notificationTrigger"`
	AcceptedAtMs int64  `json:"notificationAcceptedAt"`
}

func outputFrom(ack *trigger.Ack) *Output {
	return &Output{
		RunID:        ack.RunID,
		Status:       ack.Status,
		Trigger:      string(ack.Trigger),
		AcceptedAtMs: ack.AcceptedAt.UnixMilli(),
	}
}
