// Package errors provides the structured error type used by the dispatch
// pipeline and its conversion to BPMN errors for the workflow trigger.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeTemplateNotFound    ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeTemplateInvalidType ErrorCode = "TEMPLATE_INVALID_TYPE"

	ErrCodeRecipientResolutionFailed ErrorCode = "RECIPIENT_RESOLUTION_FAILED"
	ErrCodeContactLookupFailed       ErrorCode = "CONTACT_LOOKUP_FAILED"
	ErrCodeReminderUpdateFailed      ErrorCode = "REMINDER_UPDATE_FAILED"
	ErrCodeWeekNotFound              ErrorCode = "WEEK_NOT_FOUND"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"

	ErrCodeSMSSendFailed   ErrorCode = "SMS_SEND_FAILED"
	ErrCodeEmailSendFailed ErrorCode = "EMAIL_SEND_FAILED"
	ErrCodeSendTimeout     ErrorCode = "SEND_TIMEOUT"
	ErrCodeQueueClosed     ErrorCode = "QUEUE_CLOSED"

	ErrCodeDuplicateDispatch ErrorCode = "DUPLICATE_DISPATCH"
	ErrCodeInvalidChannel    ErrorCode = "INVALID_CHANNEL"
	ErrCodeValidationFailed  ErrorCode = "VALIDATION_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata sets a metadata key and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewTemplateNotFoundError aborts a dispatch run before any send.
func NewTemplateNotFoundError(templateID int64) *StandardError {
	return newError(ErrCodeTemplateNotFound, "Template not found",
		fmt.Sprintf("templateId: %d", templateID), false, nil).
		WithMetadata("templateId", templateID)
}

func NewTemplateInvalidTypeError(templateID int64, templateType string) *StandardError {
	return newError(ErrCodeTemplateInvalidType, "Template has an unsupported type",
		fmt.Sprintf("templateId: %d, type: %q", templateID, templateType), false, nil)
}

// NewRecipientResolutionFailedError wraps a store failure while loading shifts
// or the active employee population.
func NewRecipientResolutionFailedError(err error) *StandardError {
	return newError(ErrCodeRecipientResolutionFailed, "Failed to resolve recipients",
		err.Error(), true, err)
}

func NewContactLookupFailedError(err error) *StandardError {
	return newError(ErrCodeContactLookupFailed, "Failed to load recipient contacts",
		err.Error(), true, err)
}

func NewReminderUpdateFailedError(reminderID int64, err error) *StandardError {
	return newError(ErrCodeReminderUpdateFailed, "Failed to mark reminder as sent",
		fmt.Sprintf("reminderId: %d, error: %s", reminderID, err.Error()), true, err)
}

func NewWeekNotFoundError(weekCode string) *StandardError {
	return newError(ErrCodeWeekNotFound, "Week not found",
		fmt.Sprintf("weekCode: %s", weekCode), false, nil)
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error",
		err.Error(), true, err)
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryName string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("query: %s, error: %s", queryName, err.Error()), true, err)
}

func NewSMSSendFailedError(err error) *StandardError {
	return newError(ErrCodeSMSSendFailed, "SMS send failed", err.Error(), true, err)
}

func NewEmailSendFailedError(err error) *StandardError {
	return newError(ErrCodeEmailSendFailed, "Email send failed", err.Error(), true, err)
}

// NewSendTimeoutError marks a channel call that exceeded its deadline.
func NewSendTimeoutError(channel string, timeout time.Duration) *StandardError {
	return newError(ErrCodeSendTimeout, "Channel send timed out",
		fmt.Sprintf("channel: %s, timeout: %s", channel, timeout), true, nil)
}

func NewQueueClosedError() *StandardError {
	return newError(ErrCodeQueueClosed, "Channel queue is closed", "", false, nil)
}

// NewDuplicateDispatchError is returned when an identical trigger is still
// inside its suppression window.
func NewDuplicateDispatchError(key string) *StandardError {
	return newError(ErrCodeDuplicateDispatch, "Dispatch already requested",
		fmt.Sprintf("key: %s", key), false, nil)
}

func NewInvalidChannelError(channel string) *StandardError {
	return newError(ErrCodeInvalidChannel, "Unsupported channel",
		fmt.Sprintf("channel: %q", channel), false, nil)
}

func NewValidationFailedError(details string) *StandardError {
	return newError(ErrCodeValidationFailed, "Request validation failed", details, false, nil)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes thrown by
// the notify-week job worker.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeTemplateNotFound:          "TEMPLATE_NOT_FOUND",
	ErrCodeTemplateInvalidType:       "TEMPLATE_INVALID_TYPE",
	ErrCodeRecipientResolutionFailed: "RECIPIENT_RESOLUTION_FAILED",
	ErrCodeContactLookupFailed:       "CONTACT_LOOKUP_FAILED",
	ErrCodeWeekNotFound:              "WEEK_NOT_FOUND",
	ErrCodeDatabaseConnectionFailed:  "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryExecutionFailed:      "QUERY_EXECUTION_FAILED",
	ErrCodeDuplicateDispatch:         "DUPLICATE_DISPATCH",
	ErrCodeInvalidChannel:            "INVALID_CHANNEL",
	ErrCodeValidationFailed:          "VALIDATION_FAILED",
}

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeRecipientResolutionFailed,
		ErrCodeContactLookupFailed,
		ErrCodeReminderUpdateFailed:
		return 3

	case ErrCodeSMSSendFailed,
		ErrCodeEmailSendFailed,
		ErrCodeSendTimeout:
		return 1

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandard extracts a StandardError from an error chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandard(err)
	return ok && stdErr.Code == code
}

// CodeOf returns the code of a StandardError in the chain, or INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr.Code
	}
	return ErrCodeInternal
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "TEMPLATE"):
		return "TEMPLATE"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"),
		strings.Contains(codeStr, "RECIPIENT") || strings.Contains(codeStr, "CONTACT"),
		strings.Contains(codeStr, "REMINDER") || strings.Contains(codeStr, "WEEK"):
		return "DATABASE"
	case strings.Contains(codeStr, "SEND") || strings.Contains(codeStr, "QUEUE"):
		return "DELIVERY"
	case strings.Contains(codeStr, "DUPLICATE"):
		return "TRIGGER"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
