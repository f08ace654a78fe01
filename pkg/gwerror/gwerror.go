// Package gwerror defines the closed error taxonomy shared by every layer of
// the gateway and the single boundary that formats errors into HTTP responses.
package gwerror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tickerdesk/gateway/pkg/requestid"
)

// Code is the machine-readable error kind. The set is closed: any failure
// anywhere in the pipeline is classified into exactly one of these.
type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeRateLimited  Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeGateway      Code = "GATEWAY_ERROR"
	CodeUnavailable  Code = "SERVICE_UNAVAILABLE"
	CodeTimeout      Code = "TIMEOUT"
)

// statusByCode pins each kind to its HTTP status. An unknown code resolves to
// 500 rather than leaking a zero status onto the wire.
var statusByCode = map[Code]int{
	CodeValidation:   http.StatusBadRequest,
	CodeUnauthorized: http.StatusUnauthorized,
	CodeForbidden:    http.StatusForbidden,
	CodeNotFound:     http.StatusNotFound,
	CodeConflict:     http.StatusConflict,
	CodeRateLimited:  http.StatusTooManyRequests,
	CodeInternal:     http.StatusInternalServerError,
	CodeGateway:      http.StatusBadGateway,
	CodeUnavailable:  http.StatusServiceUnavailable,
	CodeTimeout:      http.StatusGatewayTimeout,
}

// Error is a classified failure. It is constructed once at the point the
// failure is detected and carried unchanged up to the response boundary.
// The JSON tags are the stable contract consumed by the frontend.
type Error struct {
	Message   string         `json:"error"`
	Code      Code           `json:"code"`
	Status    int            `json:"status"`
	Timestamp int64          `json:"timestamp"`
	RequestID string         `json:"requestId,omitempty"`
	TraceID   string         `json:"traceId,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds a classified error of the given kind.
func New(code Code, message string) *Error {
	status, ok := statusByCode[code]
	if !ok {
		code = CodeInternal
		status = http.StatusInternalServerError
	}
	return &Error{
		Message:   message,
		Code:      code,
		Status:    status,
		Timestamp: time.Now().UnixMilli(),
	}
}

// WithDetails builds a classified error carrying a structured details payload.
func WithDetails(code Code, message string, details map[string]any) *Error {
	e := New(code, message)
	e.Details = details
	return e
}

// StatusOf returns the fixed HTTP status for a code.
func StatusOf(code Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// FromStatus classifies a definite HTTP answer from the backend. Statuses
// that map cleanly onto the taxonomy pass through; anything else is coerced
// to the catch-all internal kind.
func FromStatus(status int, message string) *Error {
	switch status {
	case http.StatusBadRequest:
		return New(CodeValidation, message)
	case http.StatusUnauthorized:
		return New(CodeUnauthorized, message)
	case http.StatusForbidden:
		return New(CodeForbidden, message)
	case http.StatusNotFound:
		return New(CodeNotFound, message)
	case http.StatusConflict:
		return New(CodeConflict, message)
	case http.StatusTooManyRequests:
		return New(CodeRateLimited, message)
	case http.StatusBadGateway:
		return New(CodeGateway, message)
	case http.StatusServiceUnavailable:
		return New(CodeUnavailable, message)
	case http.StatusGatewayTimeout:
		return New(CodeTimeout, message)
	default:
		return New(CodeInternal, message)
	}
}

// Coerce normalizes any error into a *Error. Already-classified errors pass
// through unchanged; everything else becomes the catch-all internal kind with
// a generic message so raw internals never reach the caller.
func Coerce(err error) *Error {
	if err == nil {
		return New(CodeInternal, "unexpected nil error")
	}
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr
	}
	return New(CodeInternal, "internal server error")
}

// Respond is the single response-formatting boundary. It attaches the
// request's correlation id when the error does not already carry one, then
// writes the error's fixed status and its JSON body.
func Respond(w http.ResponseWriter, r *http.Request, err error) {
	gwErr := Coerce(err)

	if gwErr.RequestID == "" && r != nil {
		gwErr.RequestID = requestid.FromContext(r.Context())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(gwErr.Status)
	_ = json.NewEncoder(w).Encode(gwErr)
}
