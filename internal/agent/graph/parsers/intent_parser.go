package parsers

import (
	"strings"
	"unicode/utf8"

	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/orchestrator/internal/core/error"
)

// basic safety limits to avoid pathological inputs
const (
	maxContentLen = 128 * 1024 // 128KB
	maxErrSnippet = 200        // limit error snippet size
)

// ParseResponseType maps the intent model's answer to a response type. The
// model is asked for a single word; surrounding whitespace, quotes, code
// fences and a trailing period are tolerated. Anything else is an
// *errx.InvalidResponseTypeError.
func ParseResponseType(content string) (model.ResponseType, error) {
	raw := content
	if len(raw) > maxContentLen || !utf8.ValidString(raw) {
		return "", &errx.InvalidResponseTypeError{Value: safeSnippet(raw)}
	}

	s := StripCodeFence(raw)
	s = strings.Trim(s, " \t\r\n\"'`.")
	s = strings.ToLower(s)

	rt := model.ResponseType(s)
	if !rt.Valid() {
		return "", &errx.InvalidResponseTypeError{Value: safeSnippet(raw)}
	}
	return rt, nil
}

// StripCodeFence removes a surrounding ``` block, with or without a language tag.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		first := strings.TrimSpace(s[:nl])
		if first == "" || !strings.ContainsAny(first, "{[") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func safeSnippet(s string) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) <= maxErrSnippet {
		return s
	}
	cut := maxErrSnippet
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
