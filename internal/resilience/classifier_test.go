package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"testing"
	"time"

	errx "github.com/Chative-core-poc-v1/orchestrator/internal/core/error"
	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

type rawHeaderErr struct {
	status  int
	headers map[string]string
}

func (e rawHeaderErr) Error() string              { return fmt.Sprintf("status %d", e.status) }
func (e rawHeaderErr) StatusCode() int            { return e.status }
func (e rawHeaderErr) Headers() map[string]string { return e.headers }

func statusErr(status int) error {
	return errx.New(errors.New(http.StatusText(status)), status, errx.UpstreamErrorMessage)
}

func TestClassifyStatusTable(t *testing.T) {
	testcases := []struct {
		status    int
		kind      Kind
		severity  Severity
		retryable bool
	}{
		{429, KindRateLimit, SeverityMedium, true},
		{500, KindServerError, SeverityHigh, true},
		{502, KindServerError, SeverityHigh, true},
		{503, KindServerError, SeverityHigh, true},
		{504, KindServerError, SeverityHigh, true},
		{507, KindServerError, SeverityHigh, true},
		{408, KindTimeout, SeverityMedium, true},
		{401, KindAuthentication, SeverityCritical, false},
		{403, KindPermission, SeverityHigh, false},
		{400, KindValidation, SeverityMedium, false},
		{422, KindValidation, SeverityMedium, false},
		{404, KindValidation, SeverityLow, false},
		{409, KindClientError, SeverityMedium, false},
	}

	for _, tc := range testcases {
		t.Run(fmt.Sprintf("status-%d", tc.status), func(t *testing.T) {
			for _, cat := range []Category{CategoryInference, CategoryChatTransport, CategoryAuxiliaryHTTP, CategoryInternal} {
				c := Classify(fmt.Errorf("wrapped: %w", statusErr(tc.status)), cat)
				assert.Equal(t, tc.kind, c.Kind)
				assert.Equal(t, tc.severity, c.Severity)
				assert.Equal(t, tc.retryable, c.Retryable)
				assert.Equal(t, cat, c.Category)
			}
		})
	}
}

func TestClassifyRateLimitRetryAfter(t *testing.T) {
	err := statusErr(http.StatusTooManyRequests)
	var appErr *errx.AppError
	assert.True(t, errors.As(err, &appErr))
	appErr.Header = http.Header{}
	appErr.Header.Set("Retry-After", "5")

	c := Classify(err, CategoryAuxiliaryHTTP)
	assert.True(t, c.HasRetryAfter)
	assert.Equal(t, 5*time.Second, c.RetryAfter)

	raw := rawHeaderErr{status: 429, headers: map[string]string{"retry-after": "7"}}
	c = Classify(raw, CategoryChatTransport)
	assert.True(t, c.HasRetryAfter)
	assert.Equal(t, 7*time.Second, c.RetryAfter)

	c = Classify(rawHeaderErr{status: 429, headers: map[string]string{"Retry-After": "soon"}}, CategoryChatTransport)
	assert.False(t, c.HasRetryAfter)
	assert.True(t, c.Retryable)
}

func TestClassifyGenAIError(t *testing.T) {
	err := fmt.Errorf("generate: %w", genai.APIError{Code: 503, Message: "overloaded"})
	c := Classify(err, CategoryInference)
	assert.Equal(t, KindServerError, c.Kind)
	assert.True(t, c.Retryable)

	c = Classify(genai.APIError{Code: 401, Message: "bad key"}, CategoryInference)
	assert.Equal(t, KindAuthentication, c.Kind)
	assert.False(t, c.Retryable)
}

func TestClassifyNetworkSignals(t *testing.T) {
	testcases := []struct {
		name     string
		err      error
		kind     Kind
		severity Severity
	}{
		{"deadline", context.DeadlineExceeded, KindTimeout, SeverityMedium},
		{"attempt-timeout", &AttemptTimeoutError{Timeout: time.Second}, KindTimeout, SeverityMedium},
		{"refused", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, KindNetworkError, SeverityHigh},
		{"dns", &net.DNSError{Err: "no such host", Name: "example.invalid"}, KindNetworkError, SeverityHigh},
		{"refused-text", errors.New("dial tcp 127.0.0.1:1: connect: connection refused"), KindNetworkError, SeverityHigh},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			c := Classify(tc.err, CategoryInference)
			assert.True(t, c.Retryable)
			assert.Equal(t, tc.kind, c.Kind)
			assert.Equal(t, tc.severity, c.Severity)
		})
	}
}

func TestClassifyFallbackUnknown(t *testing.T) {
	c := Classify(errors.New("something odd"), CategoryInternal)
	assert.False(t, c.Retryable)
	assert.Equal(t, KindUnknown, c.Kind)
	assert.Equal(t, SeverityMedium, c.Severity)
}

func TestClassifyIsPure(t *testing.T) {
	errs := []error{
		statusErr(500),
		rawHeaderErr{status: 429, headers: map[string]string{"Retry-After": "3"}},
		context.DeadlineExceeded,
		errors.New("boom"),
	}
	for _, err := range errs {
		first := Classify(err, CategoryInference)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, Classify(err, CategoryInference))
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "12")
	d, ok := ParseRetryAfter(h)
	assert.True(t, ok)
	assert.Equal(t, 12*time.Second, d)

	d, ok = ParseRetryAfter(map[string]any{"RETRY-AFTER": 4})
	assert.True(t, ok)
	assert.Equal(t, 4*time.Second, d)

	d, ok = ParseRetryAfter(map[string][]string{"retry-after": {"2"}})
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, d)

	_, ok = ParseRetryAfter(map[string]string{"Retry-After": "Wed, 21 Oct 2015 07:28:00 GMT"})
	assert.False(t, ok)

	_, ok = ParseRetryAfter(nil)
	assert.False(t, ok)

	_, ok = ParseRetryAfter(http.Header{})
	assert.False(t, ok)
}
