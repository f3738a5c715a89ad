package oidc

import (
	"fmt"

	"github.com/pingidentity/davincikit/apierror"
)

// Error is the OIDC-specific error taxonomy: apiError wraps a non-2xx
// response from the token, userinfo, revocation or end-session endpoint,
// carrying its status code and raw body as the message;
// authorizeError/tokenError/invalidDiscovery cover the remaining failure
// shapes.
type Error struct {
	Kind    string // "apiError", "authorizeError", "tokenError", "invalidDiscovery"
	ApiErr  *apierror.ApiError
	Message string
}

func (e *Error) Error() string {
	if e.ApiErr != nil {
		return fmt.Sprintf("oidc %s: %s", e.Kind, e.ApiErr.Error())
	}
	return fmt.Sprintf("oidc %s: %s", e.Kind, e.Message)
}

func apiErrorOf(code string, body []byte, statusCode int) *Error {
	return &Error{Kind: "apiError", ApiErr: apierror.New(statusCode, code, string(body), nil)}
}

func authorizeErrorOf(message string) *Error {
	return &Error{Kind: "authorizeError", Message: message}
}

func tokenErrorOf(message string) *Error {
	return &Error{Kind: "tokenError", Message: message}
}

func invalidDiscoveryOf(message string) *Error {
	return &Error{Kind: "invalidDiscovery", Message: message}
}
