package resilience

import (
	"strconv"
	"strings"
	"time"
)

const retryAfterHeader = "Retry-After"

// headerGetter covers http.Header and anything else exposing single-value lookup.
type headerGetter interface {
	Get(key string) string
}

// ParseRetryAfter extracts a Retry-After value in integer seconds from either
// a header accessor or a raw key/value map (case-insensitive key lookup).
// Missing or invalid values report false so the caller falls back to the
// computed backoff.
func ParseRetryAfter(source any) (time.Duration, bool) {
	var raw string
	switch h := source.(type) {
	case nil:
		return 0, false
	case headerGetter:
		raw = h.Get(retryAfterHeader)
	case map[string]string:
		raw = lookupFold(h)
	case map[string][]string:
		for k, v := range h {
			if strings.EqualFold(k, retryAfterHeader) && len(v) > 0 {
				raw = v[0]
				break
			}
		}
	case map[string]any:
		for k, v := range h {
			if !strings.EqualFold(k, retryAfterHeader) {
				continue
			}
			switch vv := v.(type) {
			case string:
				raw = vv
			case int:
				raw = strconv.Itoa(vv)
			case float64:
				raw = strconv.FormatFloat(vv, 'f', -1, 64)
			}
			break
		}
	default:
		return 0, false
	}

	secs, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func lookupFold(m map[string]string) string {
	if v, ok := m[retryAfterHeader]; ok {
		return v
	}
	for k, v := range m {
		if strings.EqualFold(k, retryAfterHeader) {
			return v
		}
	}
	return ""
}
