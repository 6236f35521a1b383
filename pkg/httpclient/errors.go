package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/stylinx/pkg/errors"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 1 << 20

// DownstreamErrorResponse is the error half of the httputil envelope.
type DownstreamErrorResponse struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// statusSentinels maps downstream statuses onto local error kinds.
var statusSentinels = map[int]error{
	http.StatusBadRequest:          apperrors.ErrInvalidInput,
	http.StatusNotFound:            apperrors.ErrNotFound,
	http.StatusConflict:            apperrors.ErrConflict,
	http.StatusPreconditionFailed:  apperrors.ErrPrecondition,
	http.StatusUnprocessableEntity: apperrors.ErrInvalidInput,
	http.StatusServiceUnavailable:  apperrors.ErrServiceUnavail,
}

// ParseResponseError reads a non-2xx response and turns it into an error.
// Structured 4xx and 503 bodies become an *apperrors.AppError that keeps
// the downstream code; other 5xx and unstructured bodies become plain
// errors carrying the status. The body is consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("%s returned status %d (read body: %w)", serviceName, resp.StatusCode, err)
	}

	var downstream DownstreamErrorResponse
	if json.Unmarshal(body, &downstream) != nil || downstream.Error == nil {
		return fmt.Errorf("%s returned status %d: %s", serviceName, resp.StatusCode, body)
	}

	code, message := downstream.Error.Code, downstream.Error.Message
	sentinel, known := statusSentinels[resp.StatusCode]
	if !known && resp.StatusCode >= 500 {
		return fmt.Errorf("%s server error (%d/%s): %s", serviceName, resp.StatusCode, code, message)
	}
	return &apperrors.AppError{
		Code:    code,
		Message: serviceName + ": " + message,
		Status:  resp.StatusCode,
		Err:     sentinel,
	}
}

// IsClientError reports whether status is a 4xx code. Client errors mean the
// order itself was rejected, so resubmitting it unchanged will not help.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
