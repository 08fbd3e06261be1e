package gatesdk

import (
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/gatekeeper/pkg/httpx"
)

// OAuth2 error codes per RFC 6749, the subset the gatekeeper emits itself.
const (
	ErrorCodeInvalidRequest = "invalid_request"
	ErrorCodeServerError    = "server_error"
)

// OAuth2Error represents a standard OAuth2 error response per RFC 6749. It
// implements the error interface and is used by handlers to write
// spec-compliant error bodies.
type OAuth2Error struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is the OAuth2 error code (e.g., "invalid_request")
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description"`
}

// Error implements the error interface.
func (e *OAuth2Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes this OAuth2Error to an HTTP response writer.
func (e *OAuth2Error) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, e.StatusCode, ErrorResponse{
		Code:        e.Code,
		Description: e.Description,
	})
}

// NewOAuth2Error builds a one-off error for cases not covered by the
// predefined values below.
func NewOAuth2Error(status int, code, description string) *OAuth2Error {
	return &OAuth2Error{StatusCode: status, Code: code, Description: description}
}

var (
	// ErrMissingCode: the OIDC callback arrived without its authorization
	// code. A malformed request, not an authentication failure.
	ErrMissingCode = &OAuth2Error{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "The code query parameter is required.",
	}

	// ErrServerError covers internal failures the caller can't act on.
	ErrServerError = &OAuth2Error{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "The gatekeeper encountered an internal error.",
	}

	// ErrCacheIntegrity: the token cache returned a pair that does not belong
	// to the presented token. Surfaced loudly rather than papered over.
	ErrCacheIntegrity = &OAuth2Error{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "The token cache returned inconsistent data.",
	}
)
