package notifyweek

import (
	"context"
	"testing"
	"time"

	apperrors "shift-notify/internal/common/errors"
	"shift-notify/internal/common/logger"
	"shift-notify/internal/models"
	"shift-notify/internal/notify/dispatch"
	"shift-notify/internal/notify/trigger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type MockTriggers struct {
	mock.Mock
}

func (m *MockTriggers) PublishWeek(ctx context.Context, req trigger.WeekRequest) (*trigger.Ack, error) {
	return m.result(m.Called(ctx, req))
}

func (m *MockTriggers) NotifyWeek(ctx context.Context, req trigger.WeekRequest) (*trigger.Ack, error) {
	return m.result(m.Called(ctx, req))
}

func (m *MockTriggers) NotifyRecipients(ctx context.Context, req trigger.RecipientsRequest) (*trigger.Ack, error) {
	return m.result(m.Called(ctx, req))
}

func (m *MockTriggers) result(args mock.Arguments) (*trigger.Ack, error) {
	if a := args.Get(0); a != nil {
		return a.(*trigger.Ack), args.Error(1)
	}
	return nil, args.Error(1)
}

func createTestHandler(t *testing.T, triggers Triggers) *Handler {
	return NewHandler(DefaultConfig(), triggers, logger.NewTestLogger(t))
}

func workflowAck() *trigger.Ack {
	return &trigger.Ack{
		RunID:      "run-42",
		Status:     trigger.StatusAccepted,
		Trigger:    dispatch.TriggerWorkflow,
		AcceptedAt: time.UnixMilli(1741593600000),
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Routing(t *testing.T) {
	tests := []struct {
		name   string
		input  *Input
		method string
	}{
		{name: "notify week", input: &Input{WeekCode: "2025-W11", TemplateID: 3}, method: "NotifyWeek"},
		{name: "publish week", input: &Input{WeekCode: "2025-W11", TemplateID: 3, Publish: true}, method: "PublishWeek"},
		{name: "explicit recipients", input: &Input{TemplateID: 3, RecipientIDs: []int64{5, 6}}, method: "NotifyRecipients"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			triggers := new(MockTriggers)
			triggers.On(tt.method, mock.Anything, mock.Anything).Return(workflowAck(), nil).Once()

			output, err := createTestHandler(t, triggers).Execute(context.Background(), tt.input)
			require.NoError(t, err)
			assert.Equal(t, "run-42", output.RunID)
			assert.Equal(t, trigger.StatusAccepted, output.Status)
			assert.Equal(t, "workflow", output.Trigger)
			assert.Equal(t, int64(1741593600000), output.AcceptedAtMs)
			triggers.AssertExpectations(t)
		})
	}
}

func TestHandler_Execute_PassesWorkflowTrigger(t *testing.T) {
	triggers := new(MockTriggers)
	triggers.On("NotifyWeek", mock.Anything, trigger.WeekRequest{
		WeekCode:   "2025-W11",
		TemplateID: 3,
		Channel:    models.ChannelEmail,
		Trigger:    dispatch.TriggerWorkflow,
	}).Return(workflowAck(), nil)

	_, err := createTestHandler(t, triggers).Execute(context.Background(),
		&Input{WeekCode: "2025-W11", TemplateID: 3, Channel: "email"})
	require.NoError(t, err)
	triggers.AssertExpectations(t)
}

func TestHandler_Execute_PropagatesTriggerErrors(t *testing.T) {
	triggers := new(MockTriggers)
	triggers.On("NotifyWeek", mock.Anything, mock.Anything).Return(nil, apperrors.NewTemplateNotFoundError(3))

	_, err := createTestHandler(t, triggers).Execute(context.Background(), &Input{WeekCode: "W1", TemplateID: 3})
	require.Error(t, err)

	bpmnErr := apperrors.ConvertToBPMNError(mustStandard(t, err))
	assert.Equal(t, 0, bpmnErr.Retries)
}

// ==========================
// Input Parsing Tests
// ==========================

func TestParseInput(t *testing.T) {
	tests := []struct {
		name      string
		variables string
		wantErr   bool
		check     func(t *testing.T, in *Input)
	}{
		{
			name:      "full variables with extra process scope",
			variables: `{"weekCode":"2025-W11","templateId":3,"channel":"sms","publish":true,"orderId":"x"}`,
			check: func(t *testing.T, in *Input) {
				assert.Equal(t, "2025-W11", in.WeekCode)
				assert.Equal(t, int64(3), in.TemplateID)
				assert.Equal(t, "sms", in.Channel)
				assert.True(t, in.Publish)
			},
		},
		{
			name:      "recipients",
			variables: `{"templateId":1,"recipientIds":[1,2]}`,
			check: func(t *testing.T, in *Input) {
				assert.Equal(t, []int64{1, 2}, in.RecipientIDs)
			},
		},
		{name: "missing template", variables: `{"weekCode":"W1"}`, wantErr: true},
		{name: "bad channel", variables: `{"templateId":1,"channel":"pager"}`, wantErr: true},
		{name: "not json", variables: `nope`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := ParseInput(tt.variables)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidationFailed))
				return
			}
			require.NoError(t, err)
			tt.check(t, in)
		})
	}
}

func mustStandard(t *testing.T, err error) *apperrors.StandardError {
	t.Helper()
	stdErr, ok := apperrors.AsStandard(err)
	require.True(t, ok)
	return stdErr
}
