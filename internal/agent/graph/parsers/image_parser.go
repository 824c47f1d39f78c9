package parsers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	errx "github.com/Chative-core-poc-v1/orchestrator/internal/core/error"
	logx "github.com/Chative-core-poc-v1/orchestrator/pkg/logger"
)

const (
	maxImageRequests = 4
	maxTitleLen      = 200
	maxQueryLen      = 2000
)

// ImageRequest is one picture the user asked for.
type ImageRequest struct {
	Title string `json:"title"`
	Query string `json:"query"`
}

// ParseImageRequests decodes the extraction model's answer: a JSON array of
// {"title","query"} objects, or an object wrapping it under "images".
// Entries without a query are dropped; at most maxImageRequests are kept.
func ParseImageRequests(content string) (reqs []ImageRequest, err error) {
	// panic safety
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "image_parser").Msgf("panic recovered: %v", r)
			err = errx.New(fmt.Errorf("image parser panic"), http.StatusInternalServerError, errx.SystemErrorMessage)
			reqs = nil
		}
	}()

	if len(content) > maxContentLen {
		return nil, fmt.Errorf("image requests: content too large")
	}
	if !utf8.ValidString(content) {
		return nil, fmt.Errorf("image requests: invalid utf8")
	}

	body := extractJSON(StripCodeFence(content))
	if body == "" {
		return nil, fmt.Errorf("image requests: no json in %q", safeSnippet(content))
	}

	var raw []ImageRequest
	if strings.HasPrefix(body, "{") {
		var wrapped struct {
			Images []ImageRequest `json:"images"`
		}
		if err := json.Unmarshal([]byte(body), &wrapped); err != nil {
			return nil, fmt.Errorf("image requests: %w", err)
		}
		raw = wrapped.Images
	} else if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("image requests: %w", err)
	}

	out := make([]ImageRequest, 0, len(raw))
	for _, r := range raw {
		q := strings.TrimSpace(r.Query)
		if q == "" {
			continue
		}
		t := strings.TrimSpace(r.Title)
		if t == "" {
			t = q
		}
		out = append(out, ImageRequest{Title: truncate(t, maxTitleLen), Query: truncate(q, maxQueryLen)})
		if len(out) == maxImageRequests {
			logx.Debug().Int("requested", len(raw)).Int("kept", maxImageRequests).Msg("image requests capped")
			break
		}
	}
	return out, nil
}

// extractJSON returns the outermost JSON array or object in s.
func extractJSON(s string) string {
	start := strings.IndexAny(s, "[{")
	if start < 0 {
		return ""
	}
	closer := byte(']')
	if s[start] == '{' {
		closer = '}'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return ""
	}
	return s[start : end+1]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
