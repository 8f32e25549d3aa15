package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// AuthenticationError represents authentication-related failures with a
// stable type tag used for user-facing message selection.
type AuthenticationError struct {
	// Type is the stable error category tag.
	Type string `json:"type"`
	// Message is a human-readable description of the error.
	Message string `json:"message"`
	// Code is the HTTP status code associated with the error, when any.
	Code int `json:"code"`
	// Cause is the underlying error, when any.
	Cause error `json:"-"`
}

// Error returns a string representation of the authentication error.
func (e *AuthenticationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *AuthenticationError) Unwrap() error {
	return e.Cause
}

// Is matches two authentication errors by their type tag, so sentinel
// values below work with errors.Is even after wrapping with a cause.
func (e *AuthenticationError) Is(target error) bool {
	var other *AuthenticationError
	if !errors.As(target, &other) {
		return false
	}
	return e.Type == other.Type
}

// Common authentication error values.
var (
	// ErrServiceURLNotConfigured is the fatal configuration error raised
	// before any network call when no service base URL is set.
	ErrServiceURLNotConfigured = &AuthenticationError{
		Type:    "service_url_not_configured",
		Message: "The Lightspeed service URL is not configured",
		Code:    http.StatusInternalServerError,
	}

	// ErrNoCodeReceived indicates the redirect arrived without a code
	// query parameter.
	ErrNoCodeReceived = &AuthenticationError{
		Type:    "no_code_received",
		Message: "No authorization code received from the OAuth server",
		Code:    http.StatusBadRequest,
	}

	// ErrLoginTimedOut indicates no redirect arrived within the login
	// timeout window.
	ErrLoginTimedOut = &AuthenticationError{
		Type:    "login_timeout",
		Message: "Login timed out waiting for the authentication redirect",
		Code:    http.StatusRequestTimeout,
	}

	// ErrLoginCancelled indicates the user cancelled the login attempt.
	// Cancellation is not alarming; callers should not present it as a
	// failure.
	ErrLoginCancelled = &AuthenticationError{
		Type:    "login_cancelled",
		Message: "Login was cancelled",
	}

	// ErrLoginInProgress rejects a second concurrent login attempt.
	ErrLoginInProgress = &AuthenticationError{
		Type:    "login_in_progress",
		Message: "A login is already in progress",
		Code:    http.StatusConflict,
	}

	// ErrCodeExchangeFailed indicates the code-for-token exchange was
	// rejected by the server.
	ErrCodeExchangeFailed = &AuthenticationError{
		Type:    "code_exchange_failed",
		Message: "Failed to exchange the authorization code for tokens",
		Code:    http.StatusBadRequest,
	}

	// ErrNotAuthenticated indicates no session or account exists.
	ErrNotAuthenticated = &AuthenticationError{
		Type:    "not_authenticated",
		Message: "Not logged in to Lightspeed",
		Code:    http.StatusUnauthorized,
	}

	// ErrReauthRequired indicates a refresh failed and the user must log
	// in again. It does not crash callers; it degrades the session.
	ErrReauthRequired = &AuthenticationError{
		Type:    "reauth_required",
		Message: "The Lightspeed session has expired",
		Code:    http.StatusUnauthorized,
	}
)

// NewAuthenticationError derives a new error from a sentinel, attaching a
// cause while preserving the type tag for errors.Is matching.
func NewAuthenticationError(base *AuthenticationError, cause error) *AuthenticationError {
	return &AuthenticationError{
		Type:    base.Type,
		Message: base.Message,
		Code:    base.Code,
		Cause:   cause,
	}
}

// GetUserFriendlyMessage returns a user-facing message for an error.
func GetUserFriendlyMessage(err error) string {
	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		switch authErr.Type {
		case ErrServiceURLNotConfigured.Type:
			return "Please enter the Lightspeed service URL in the settings."
		case ErrLoginTimedOut.Type:
			return "Cancelling the Lightspeed login after 60s. Try again."
		case ErrLoginCancelled.Type:
			return "Login cancelled."
		case ErrLoginInProgress.Type:
			return "A Lightspeed login is already in progress."
		case ErrNoCodeReceived.Type:
			return "No authorization code was received from the Lightspeed server. Try again."
		case ErrCodeExchangeFailed.Type:
			return "Authentication failed while exchanging the authorization code. Try again."
		case ErrNotAuthenticated.Type:
			return "You must be logged in to use Lightspeed."
		case ErrReauthRequired.Type:
			return "Your Lightspeed session has expired. Please log in again."
		default:
			return "Authentication failed. Please try again."
		}
	}
	return "An unexpected error occurred. Please try again."
}
