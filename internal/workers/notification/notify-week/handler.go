// Package notifyweek is the Zeebe job worker that starts a notification run
// from a BPMN service task.
package notifyweek

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "shift-notify/internal/common/errors"
	"shift-notify/internal/common/logger"
	"shift-notify/internal/common/validation"
	"shift-notify/internal/models"
	"shift-notify/internal/notify/dispatch"
	"shift-notify/internal/notify/trigger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "notify-week"

// Job variables carry the whole process scope, so unknown keys are allowed.
var inputSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["templateId"],
  "properties": {
    "weekCode": {"type": "string"},
    "templateId": {"type": "integer", "minimum": 1},
    "channel": {"type": "string", "enum": ["sms", "email", "both"]},
    "publish": {"type": "boolean"},
    "recipientIds": {"type": "array", "items": {"type": "integer", "minimum": 1}}
  }
}`)

type Triggers interface {
	PublishWeek(ctx context.Context, req trigger.WeekRequest) (*trigger.Ack, error)
	NotifyWeek(ctx context.Context, req trigger.WeekRequest) (*trigger.Ack, error)
	NotifyRecipients(ctx context.Context, req trigger.RecipientsRequest) (*trigger.Ack, error)
}

type Handler struct {
	config       *Config
	triggers     Triggers
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, triggers Triggers, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		triggers:     triggers,
		errorHandler: apperrors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	h.logger.Info("Processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := ParseInput(job.Variables)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return err
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.errorHandler.HandleJobError(ctx, client, job, err)
		return err
	}

	return h.completeJob(ctx, client, job, output)
}

// ParseInput validates raw job variables and decodes them.
func ParseInput(variables string) (*Input, error) {
	result, err := inputSchema.ValidateJSON([]byte(variables))
	if err != nil {
		return nil, apperrors.NewValidationFailedError(fmt.Sprintf("parse variables: %v", err))
	}
	if !result.Valid {
		return nil, apperrors.NewValidationFailedError(result.Summary())
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewValidationFailedError(fmt.Sprintf("parse variables: %v", err))
	}
	return &input, nil
}

// Execute starts the run and returns as soon as it has been accepted.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	channel := models.Channel(input.Channel)

	var (
		ack *trigger.Ack
		err error
	)
	switch {
	case len(input.RecipientIDs) > 0:
		ack, err = h.triggers.NotifyRecipients(ctx, trigger.RecipientsRequest{
			RecipientIDs: input.RecipientIDs,
			WeekCode:     input.WeekCode,
			TemplateID:   input.TemplateID,
			Channel:      channel,
			Trigger:      dispatch.TriggerWorkflow,
		})
	case input.Publish:
		ack, err = h.triggers.PublishWeek(ctx, h.weekRequest(input, channel))
	default:
		ack, err = h.triggers.NotifyWeek(ctx, h.weekRequest(input, channel))
	}
	if err != nil {
		return nil, err
	}

	h.logger.Info("Notification run accepted", map[string]interface{}{
		"runId":      ack.RunID,
		"weekCode":   input.WeekCode,
		"templateId": input.TemplateID,
	})
	return outputFrom(ack), nil
}

func (h *Handler) weekRequest(input *Input, channel models.Channel) trigger.WeekRequest {
	return trigger.WeekRequest{
		WeekCode:   input.WeekCode,
		TemplateID: input.TemplateID,
		Channel:    channel,
		Trigger:    dispatch.TriggerWorkflow,
	}
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}
	return nil
}
