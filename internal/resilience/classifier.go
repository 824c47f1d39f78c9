// Package resilience wraps calls to unreliable dependencies in retries with
// exponential backoff, per-dependency circuit breaking and a failure taxonomy
// that decides what is worth retrying.
package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// Kind is the failure taxonomy.
type Kind int

const (
	KindUnknown Kind = iota
	KindRateLimit
	KindTimeout
	KindServerError
	KindClientError
	KindNetworkError
	KindAuthentication
	KindPermission
	KindValidation
)

var kindNames = map[Kind]string{
	KindUnknown:        "unknown",
	KindRateLimit:      "rate_limit",
	KindTimeout:        "timeout",
	KindServerError:    "server_error",
	KindClientError:    "client_error",
	KindNetworkError:   "network_error",
	KindAuthentication: "authentication",
	KindPermission:     "permission",
	KindValidation:     "validation",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Severity only drives logging/alerting, never retry decisions.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// LogLevel maps a severity onto the log level used when reporting it.
func (s Severity) LogLevel() zerolog.Level {
	switch s {
	case SeverityLow:
		return zerolog.DebugLevel
	case SeverityMedium:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// Category groups dependencies that fail in similar ways.
type Category int

const (
	CategoryInternal Category = iota
	CategoryInference
	CategoryChatTransport
	CategoryAuxiliaryHTTP
)

func (c Category) String() string {
	switch c {
	case CategoryInference:
		return "inference"
	case CategoryChatTransport:
		return "chat_transport"
	case CategoryAuxiliaryHTTP:
		return "auxiliary_http"
	default:
		return "internal"
	}
}

// Classification is derived from an error and never stored.
type Classification struct {
	Retryable bool
	Kind      Kind
	Category  Category
	Severity  Severity
	// RetryAfter is the server-requested delay; only meaningful when HasRetryAfter is set.
	RetryAfter    time.Duration
	HasRetryAfter bool
}

// statusCoder is implemented by errors that carry an HTTP status (errx.AppError among them).
type statusCoder interface {
	StatusCode() int
}

// headerCarrier exposes response headers as an http.Header.
type headerCarrier interface {
	RetryHeader() http.Header
}

// rawHeaderCarrier exposes response headers as a plain map.
type rawHeaderCarrier interface {
	Headers() map[string]string
}

type statusExtractor func(err error) (status int, headers any, ok bool)

var subClassifiers = map[Category][]statusExtractor{
	CategoryInference:     {genaiStatus, genericStatus},
	CategoryChatTransport: {genericStatus},
	CategoryAuxiliaryHTTP: {genericStatus},
	CategoryInternal:      {genericStatus},
}

// Classify maps a failure into the taxonomy. It is a pure function of its inputs.
func Classify(err error, category Category) Classification {
	if err == nil {
		return Classification{Category: category, Kind: KindUnknown, Severity: SeverityLow}
	}

	extractors, ok := subClassifiers[category]
	if !ok {
		extractors = subClassifiers[CategoryInternal]
	}
	for _, extract := range extractors {
		if status, headers, ok := extract(err); ok {
			return classifyStatus(status, headers, category)
		}
	}

	if c, ok := classifyNetwork(err, category); ok {
		return c
	}

	return Classification{Retryable: false, Kind: KindUnknown, Category: category, Severity: SeverityMedium}
}

func classifyStatus(status int, headers any, category Category) Classification {
	c := Classification{Category: category}
	switch status {
	case http.StatusTooManyRequests:
		c.Retryable, c.Kind, c.Severity = true, KindRateLimit, SeverityMedium
		if d, ok := ParseRetryAfter(headers); ok {
			c.RetryAfter, c.HasRetryAfter = d, true
		}
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		c.Retryable, c.Kind, c.Severity = true, KindServerError, SeverityHigh
	case http.StatusRequestTimeout:
		c.Retryable, c.Kind, c.Severity = true, KindTimeout, SeverityMedium
	case http.StatusUnauthorized:
		c.Kind, c.Severity = KindAuthentication, SeverityCritical
	case http.StatusForbidden:
		c.Kind, c.Severity = KindPermission, SeverityHigh
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		c.Kind, c.Severity = KindValidation, SeverityMedium
	case http.StatusNotFound:
		c.Kind, c.Severity = KindValidation, SeverityLow
	default:
		if status >= 500 {
			c.Retryable, c.Kind, c.Severity = true, KindServerError, SeverityHigh
		} else {
			c.Kind, c.Severity = KindClientError, SeverityMedium
		}
	}
	return c
}

func classifyNetwork(err error, category Category) (Classification, bool) {
	if isTimeout(err) {
		return Classification{Retryable: true, Kind: KindTimeout, Category: category, Severity: SeverityMedium}, true
	}
	if isConnectionFailure(err) {
		return Classification{Retryable: true, Kind: KindNetworkError, Category: category, Severity: SeverityHigh}, true
	}
	return Classification{}, false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timed out") || strings.Contains(msg, "i/o timeout") || strings.Contains(msg, "deadline exceeded")
}

func isConnectionFailure(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host") || strings.Contains(msg, "connection reset")
}

func genericStatus(err error) (int, any, bool) {
	var sc statusCoder
	if !errors.As(err, &sc) {
		return 0, nil, false
	}
	status := sc.StatusCode()
	if status < 100 {
		return 0, nil, false
	}
	var headers any
	var hc headerCarrier
	var rc rawHeaderCarrier
	switch {
	case errors.As(err, &hc):
		headers = hc.RetryHeader()
	case errors.As(err, &rc):
		headers = rc.Headers()
	}
	return status, headers, true
}

// genaiStatus reads the status code the Gemini SDK attaches to API errors.
func genaiStatus(err error) (int, any, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code >= 100 {
		return apiErr.Code, nil, true
	}
	return 0, nil, false
}
