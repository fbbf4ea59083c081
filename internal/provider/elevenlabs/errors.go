package elevenlabs

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain-level errors for provider failures. Callers match these with
// errors.Is instead of inspecting HTTP status codes.
var (
	// ErrInvalidCredentials indicates the configured API key was rejected.
	ErrInvalidCredentials = errors.New("elevenlabs: invalid API credentials")
	// ErrQuotaExceeded indicates the account ran out of characters.
	ErrQuotaExceeded = errors.New("elevenlabs: character quota exceeded")
	// ErrInvalidRequest indicates the provider rejected the request payload.
	ErrInvalidRequest = errors.New("elevenlabs: malformed request")
	// ErrRateLimited indicates the provider throttled the request.
	ErrRateLimited = errors.New("elevenlabs: provider rate limit exceeded")
	// ErrServerError indicates the provider failed internally.
	ErrServerError = errors.New("elevenlabs: provider server error")
)

// APIError is a transport-level failure captured from a provider response.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("elevenlabs API returned status %d: %s", e.StatusCode, e.Detail)
}

// Translate maps a transport-level failure to a domain-level error, shielding
// callers from provider-specific status semantics. A failure without a
// captured status falls through to the generic branch with the raw message.
func Translate(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("elevenlabs error: %w", err)
	}

	switch apiErr.StatusCode {
	case http.StatusUnauthorized:
		return ErrInvalidCredentials
	case http.StatusPaymentRequired:
		return ErrQuotaExceeded
	case http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrInvalidRequest, apiErr.Detail)
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusInternalServerError:
		return ErrServerError
	default:
		return fmt.Errorf("elevenlabs error (%d): %s", apiErr.StatusCode, apiErr.Detail)
	}
}
