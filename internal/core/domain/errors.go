package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// HTTPError is an error that carries the HTTP status it should be reported
// with. Participants and endpoints return it to steer the error handler.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

// NewHTTPError creates an HTTPError with a code derived from the status.
func NewHTTPError(status int, message string) *HTTPError {
	return &HTTPError{
		Status:  status,
		Code:    CodeForStatus(status),
		Message: message,
	}
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// AsHTTPError returns the first HTTPError in err's chain.
func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

// StatusFromError maps an error to the HTTP status it should be reported with.
func StatusFromError(err error) int {
	if he, ok := AsHTTPError(err); ok && he.Status != 0 {
		return he.Status
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// CodeForStatus returns a machine readable code for a status.
func CodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusNotAcceptable:
		return "not_acceptable"
	case http.StatusUnsupportedMediaType:
		return "unsupported_media_type"
	case http.StatusTooManyRequests:
		return "too_many_requests"
	case http.StatusGatewayTimeout:
		return "timeout"
	case 499:
		return "client_closed_request"
	default:
		if status >= 500 {
			return "server_error"
		}
		return "request_error"
	}
}

// ErrorBody is the payload error responses carry. Serializers encode it
// like any other payload.
type ErrorBody struct {
	Error ErrorDetail `json:"error" yaml:"error"`
}

// ErrorDetail describes a failed exchange.
type ErrorDetail struct {
	Code      string `json:"code" yaml:"code"`
	Message   string `json:"message" yaml:"message"`
	RequestID string `json:"request_id,omitempty" yaml:"request_id,omitempty"`
}

// NewErrorBody builds an error payload for err.
func NewErrorBody(err error, requestID string) ErrorBody {
	status := StatusFromError(err)
	detail := ErrorDetail{
		Code:      CodeForStatus(status),
		Message:   http.StatusText(status),
		RequestID: requestID,
	}
	if he, ok := AsHTTPError(err); ok {
		if he.Code != "" {
			detail.Code = he.Code
		}
		if he.Message != "" {
			detail.Message = he.Message
		}
	}
	return ErrorBody{Error: detail}
}
