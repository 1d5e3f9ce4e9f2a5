package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrMissingKey is returned when a hosted runtime has no API key configured.
var ErrMissingKey = errors.New("api key is missing")

// APIError represents a structured provider error response.
type APIError struct {
	StatusCode int            `json:"-"`
	Code       string         `json:"code,omitempty"`
	Message    string         `json:"message,omitempty"`
	Raw        map[string]any `json:"-"`
	RequestID  string         `json:"-"`
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "api error: status=%d", e.StatusCode)
	if e.Code != "" {
		fmt.Fprintf(&b, " code=%s", e.Code)
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, " request_id=%s", e.RequestID)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, " message=%s", e.Message)
	}
	return b.String()
}

// AuthError indicates authentication/authorization failures (401/403).
type AuthError struct{ *APIError }

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.APIError.Error())
}

// RateLimitError indicates 429 responses and may include a Retry-After.
type RateLimitError struct {
	*APIError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: wait about %ds before retrying: %s", int(e.RetryAfter.Seconds()), e.APIError.Error())
	}
	return fmt.Sprintf("rate limited: %s", e.APIError.Error())
}

// ModelNotFoundError indicates the requested model is not available.
type ModelNotFoundError struct{ *APIError }

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model not found: %s", e.APIError.Error())
}

// BadRequestError indicates a 400 validation problem.
type BadRequestError struct{ *APIError }

func (e *BadRequestError) Error() string { return fmt.Sprintf("bad request: %s", e.APIError.Error()) }

// QuotaExceededError indicates billing/quota problems.
type QuotaExceededError struct{ *APIError }

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: %s", e.APIError.Error())
}

// ServerError indicates 5xx errors from the provider.
type ServerError struct{ *APIError }

func (e *ServerError) Error() string { return fmt.Sprintf("provider error: %s", e.APIError.Error()) }

// UnreachableError indicates the runtime endpoint could not be reached.
type UnreachableError struct {
	Host string
	Err  error
}

func (e *UnreachableError) Error() string {
	if e == nil {
		return "unreachable"
	}
	if e.Host != "" {
		return fmt.Sprintf("endpoint unreachable at %s: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("endpoint unreachable: %v", e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// classifyAPIError maps an APIError to one of the typed errors above.
func classifyAPIError(apiErr *APIError, header http.Header) error {
	sc := apiErr.StatusCode
	msg := strings.ToLower(apiErr.Message)
	code := strings.ToLower(apiErr.Code)
	switch {
	case sc == http.StatusUnauthorized || sc == http.StatusForbidden:
		return &AuthError{APIError: apiErr}
	case code == "quota_exceeded" || code == "resource_exhausted" && strings.Contains(msg, "quota") ||
		strings.Contains(msg, "billing"):
		return &QuotaExceededError{APIError: apiErr}
	case sc == http.StatusTooManyRequests:
		ra, _ := parseRetryAfter(header.Get("Retry-After"))
		return &RateLimitError{APIError: apiErr, RetryAfter: ra}
	case sc == http.StatusNotFound:
		if code == "model_not_found" || code == "not_found" || strings.Contains(msg, "model") {
			return &ModelNotFoundError{APIError: apiErr}
		}
		return apiErr
	case sc == http.StatusBadRequest:
		return &BadRequestError{APIError: apiErr}
	case sc >= 500 && sc <= 599:
		return &ServerError{APIError: apiErr}
	}
	return apiErr
}

// statusError classifies a non-2xx response and marks transient statuses as retryable.
func statusError(resp *http.Response) error {
	err := classifyAPIError(readAPIError(resp), resp.Header)
	if !isRetryableStatus(resp.StatusCode) {
		return err
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return retryAfter(err, rl.RetryAfter)
	}
	return retryAfter(err, 0)
}
