package storage

import (
	"errors"
	"fmt"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"

	"github.com/vitaria/catalog/internal/media"
)

// infraError wraps an SDK error as a media.InfrastructureError, keeping the
// S3 error code and HTTP status when the SDK exposes them.
func infraError(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		err = fmt.Errorf("%s (%s): %w", apiErr.ErrorCode(), apiErr.ErrorMessage(), err)
		if status, ok := httpStatusCode(err); ok {
			err = fmt.Errorf("status %d: %w", status, err)
		}
	}
	return &media.InfrastructureError{Op: op, Err: err}
}

func httpStatusCode(err error) (int, bool) {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode(), true
	}
	return 0, false
}

// isRetryable reports whether a failed call is worth repeating later.
// Access and bucket configuration errors never are.
func isRetryable(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "NoSuchBucket":
			return false
		}
		return apiErr.ErrorFault() == smithy.FaultServer
	}
	return true
}
