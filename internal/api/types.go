package api

import "shift-notify/internal/models"

type PublishRequest struct {
	TemplateID int64          `json:"templateId"`
	Channel    models.Channel `json:"channel,omitempty"`
}

type NotifyWeekRequest struct {
	WeekCode   string         `json:"weekCode"`
	TemplateID int64          `json:"templateId"`
	Channel    models.Channel `json:"channel,omitempty"`
}

type NotifyRecipientsRequest struct {
	RecipientIDs []int64        `json:"recipientIds"`
	WeekCode     string         `json:"weekCode,omitempty"`
	TemplateID   int64          `json:"templateId"`
	Channel      models.Channel `json:"channel,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type HealthResponse struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime,omitempty"`
	Checks map[string]string `json:"checks,omitempty"`
}
