package errx

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
	// RedisTimeoutMessage describes a Redis call that ran out of time.
	RedisTimeoutMessage = "redis operation timed out"
	// RedisUnavailableMessage describes a Redis client that can no longer serve calls.
	RedisUnavailableMessage = "redis unavailable"
	// UpstreamErrorMessage describes a failed call to an external HTTP dependency.
	UpstreamErrorMessage = "upstream request failed"

	maxBodySnippet = 512
)

// AppError wraps an underlying error with an HTTP status and safe message.
// Header carries response headers (Retry-After in particular) when the error
// originated from an HTTP response.
type AppError struct {
	Err     error
	Status  int
	Message string
	Header  http.Header
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status associated with the error.
func (e *AppError) StatusCode() int {
	return e.Status
}

// RetryHeader returns the response headers, if any.
func (e *AppError) RetryHeader() http.Header {
	return e.Header
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// FromResponse builds an AppError from a non-2xx HTTP response. The body is
// read (bounded) into the wrapped error so operators can see what the
// upstream returned. It returns nil for 2xx responses.
func FromResponse(resp *http.Response) *AppError {
	if resp == nil || (resp.StatusCode >= 200 && resp.StatusCode < 300) {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodySnippet))
	snippet := strings.TrimSpace(string(body))
	if snippet == "" {
		snippet = http.StatusText(resp.StatusCode)
	}
	return &AppError{
		Err:     fmt.Errorf("status %d: %s", resp.StatusCode, snippet),
		Status:  resp.StatusCode,
		Message: UpstreamErrorMessage,
		Header:  resp.Header.Clone(),
	}
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}
