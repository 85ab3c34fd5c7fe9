package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		wantCode    string
		wantRetries int
	}{
		{"template not found is terminal", NewTemplateNotFoundError(7), "TEMPLATE_NOT_FOUND", 0},
		{"query failure is retried", NewQueryExecutionFailedError("shifts_by_ids", stderrors.New("conn reset")), "QUERY_EXECUTION_FAILED", 3},
		{"duplicate dispatch is terminal", NewDuplicateDispatchError("notify:2024-W23:1:sms"), "DUPLICATE_DISPATCH", 0},
		{"unmapped code falls back to itself", NewQueueClosedError(), "QUEUE_CLOSED", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.wantCode, bpmn.Code)
			assert.Equal(t, tt.wantRetries, bpmn.Retries)
			assert.Equal(t, string(tt.err.Code), bpmn.ToErrorVariables()["originalErrorCode"])
			_, err := time.Parse(time.RFC3339, bpmn.ErrorVariables["timestamp"].(string))
			assert.NoError(t, err)
		})
	}
}

func TestAsStandard_ThroughWrapping(t *testing.T) {
	cause := stderrors.New("dial tcp: refused")
	wrapped := fmt.Errorf("enrich contacts: %w", NewContactLookupFailedError(cause))

	stdErr, ok := AsStandard(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrCodeContactLookupFailed, stdErr.Code)
	assert.True(t, HasCode(wrapped, ErrCodeContactLookupFailed))
	assert.True(t, stderrors.Is(wrapped, cause))
	assert.Equal(t, ErrCodeInternal, CodeOf(cause))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "TEMPLATE", GetErrorCategory(ErrCodeTemplateNotFound))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeRecipientResolutionFailed))
	assert.Equal(t, "DELIVERY", GetErrorCategory(ErrCodeSMSSendFailed))
	assert.Equal(t, "DELIVERY", GetErrorCategory(ErrCodeSendTimeout))
	assert.Equal(t, "TRIGGER", GetErrorCategory(ErrCodeDuplicateDispatch))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidChannel))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

func TestWithMetadata(t *testing.T) {
	err := NewTemplateNotFoundError(42)
	assert.Equal(t, int64(42), err.Metadata["templateId"])
	assert.False(t, err.Retryable)
	assert.Contains(t, err.Error(), "TEMPLATE_NOT_FOUND")
}
