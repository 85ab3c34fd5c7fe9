package aws

import (
	"context"
	"errors"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
)

// DescribeError reduces a provider error to the fields worth logging:
// message, provider code, HTTP status and request id when available.
func DescribeError(err error) map[string]interface{} {
	if err == nil {
		return nil
	}
	out := map[string]interface{}{"message": err.Error()}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		out["code"] = apiErr.ErrorCode()
		out["message"] = apiErr.ErrorMessage()
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		out["requestId"] = respErr.ServiceRequestID()
		out["status"] = respErr.HTTPStatusCode()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		out["code"] = "SEND_TIMEOUT"
	}
	return out
}
