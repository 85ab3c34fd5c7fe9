package trigger

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "shift-notify/internal/common/errors"
	"shift-notify/internal/models"
	"shift-notify/internal/notify/dispatch"
)

const StatusAccepted = "accepted"

// WeekRequest targets every shift of a week plus all active employees.
type WeekRequest struct {
	WeekCode   string
	TemplateID int64
	Channel    models.Channel
	Trigger    dispatch.Trigger
}

func (r WeekRequest) validate() error {
	if strings.TrimSpace(r.WeekCode) == "" {
		return apperrors.NewValidationFailedError("weekCode is required")
	}
	if r.TemplateID <= 0 {
		return apperrors.NewValidationFailedError("templateId must be positive")
	}
	return validateChannel(r.Channel)
}

func (r WeekRequest) dedupKey() string {
	return fmt.Sprintf("notify:week:%s:%d:%s", r.WeekCode, r.TemplateID, r.Channel)
}

// RecipientsRequest targets exactly RecipientIDs. WeekCode is optional and
// only supplies shift lines.
type RecipientsRequest struct {
	RecipientIDs []int64
	WeekCode     string
	TemplateID   int64
	Channel      models.Channel
	Trigger      dispatch.Trigger
}

func (r RecipientsRequest) validate() error {
	if len(r.RecipientIDs) == 0 {
		return apperrors.NewValidationFailedError("recipientIds must not be empty")
	}
	for _, id := range r.RecipientIDs {
		if id <= 0 {
			return apperrors.NewValidationFailedError(fmt.Sprintf("invalid recipient id %d", id))
		}
	}
	if r.TemplateID <= 0 {
		return apperrors.NewValidationFailedError("templateId must be positive")
	}
	return validateChannel(r.Channel)
}

func (r RecipientsRequest) dedupKey() string {
	ids := append([]int64(nil), r.RecipientIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("notify:recipients:%s:%d:%s:%s", r.WeekCode, r.TemplateID, r.Channel, strings.Join(parts, ","))
}

func validateChannel(c models.Channel) error {
	if c != "" && !c.Valid() {
		return apperrors.NewInvalidChannelError(string(c))
	}
	return nil
}

// Ack is returned as soon as a run has been accepted; delivery continues in
// the background.
type Ack struct {
	RunID      string           `json:"runId"`
	Status     string           `json:"status"`
	Trigger    dispatch.Trigger `json:"trigger"`
	AcceptedAt time.Time        `json:"acceptedAt"`
}
