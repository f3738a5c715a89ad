// Package apierror holds the ApiError type shared by the root client,
// the OIDC core, the push engine and the device-client. It
// is a standalone leaf package so those subpackages can construct and
// return ApiError values without importing the root davincikit package
// (which in turn imports them to wire default clients).
package apierror

import "fmt"

// ApiError is the recoverable-or-fatal error surfaced on an HTTP
// response that carried an identifiable server error code. When it
// accompanies an ErrorNode it is recoverable; standing alone (no
// originating ContinueNode) it is fatal for the flow.
type ApiError struct {
	StatusCode int
	Code       string
	Message    string
	Headers    map[string][]string
}

func (e *ApiError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (status: %d)", e.Code, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s (status: %d)", e.Message, e.StatusCode)
}

// New builds an ApiError, defaulting Code from StatusCode when the
// server supplied none.
func New(statusCode int, code, message string, headers map[string][]string) *ApiError {
	if code == "" {
		code = codeForStatus(statusCode)
	}
	return &ApiError{StatusCode: statusCode, Code: code, Message: message, Headers: headers}
}

func codeForStatus(status int) string {
	switch status {
	case 400:
		return "VALIDATION_ERROR"
	case 401:
		return "UNAUTHORIZED"
	case 403:
		return "FORBIDDEN"
	case 404:
		return "NOT_FOUND"
	case 409:
		return "CONFLICT"
	case 429:
		return "RATE_LIMIT"
	case 500:
		return "SERVER_ERROR"
	default:
		return ""
	}
}

// Location returns the redirect target on a 3xx ApiError, if any.
func (e *ApiError) Location() string {
	if e.Headers == nil {
		return ""
	}
	if v := e.Headers["Location"]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Sentinel errors mirroring common HTTP failure classes, re-exported by
// the root package. The device-client maps statuses to its own
// device.Error kinds and does not return these.
var (
	ErrUnauthorized = &ApiError{Message: "Unauthorized", StatusCode: 401, Code: "UNAUTHORIZED"}
	ErrForbidden    = &ApiError{Message: "Forbidden", StatusCode: 403, Code: "FORBIDDEN"}
	ErrNotFound     = &ApiError{Message: "Not found", StatusCode: 404, Code: "NOT_FOUND"}
	ErrConflict     = &ApiError{Message: "Conflict", StatusCode: 409, Code: "CONFLICT"}
	ErrRateLimit    = &ApiError{Message: "Rate limit exceeded", StatusCode: 429, Code: "RATE_LIMIT"}
	ErrServer       = &ApiError{Message: "Internal server error", StatusCode: 500, Code: "SERVER_ERROR"}
)
