package parsers

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chative-core-poc-v1/orchestrator/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/orchestrator/internal/core/error"
)

func TestParseResponseType(t *testing.T) {
	cases := map[string]model.ResponseType{
		"default":           model.ResponseDefault,
		"  Math\n":          model.ResponseMath,
		"\"image\"":         model.ResponseImage,
		"media.":            model.ResponseMedia,
		"```\nmath\n```":    model.ResponseMath,
		"```text\nimage```": model.ResponseImage,
	}
	for in, want := range cases {
		got, err := ParseResponseType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseResponseTypeRejectsUnknown(t *testing.T) {
	for _, in := range []string{"", "music", "default math", strings.Repeat("x", maxContentLen+1)} {
		_, err := ParseResponseType(in)
		var invalid *errx.InvalidResponseTypeError
		require.ErrorAs(t, err, &invalid, in)
		assert.LessOrEqual(t, len(invalid.Value), maxErrSnippet+3)
	}
}

func TestParseImageRequests(t *testing.T) {
	content := "```json\n[{\"title\":\"A cat\",\"query\":\"a cat on a sofa\"},{\"title\":\"\",\"query\":\"a dog\"},{\"title\":\"empty\",\"query\":\"  \"}]\n```"
	reqs, err := ParseImageRequests(content)
	require.NoError(t, err)
	assert.Equal(t, []ImageRequest{
		{Title: "A cat", Query: "a cat on a sofa"},
		{Title: "a dog", Query: "a dog"},
	}, reqs)
}

func TestParseImageRequestsWrappedObject(t *testing.T) {
	reqs, err := ParseImageRequests(`Sure! {"images":[{"title":"Sunset","query":"sunset over the sea"}]}`)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "Sunset", reqs[0].Title)
}

func TestParseImageRequestsCapsCount(t *testing.T) {
	var b strings.Builder
	b.WriteString("[")
	for i := 0; i < 10; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`{"title":"t","query":"q"}`)
	}
	b.WriteString("]")
	reqs, err := ParseImageRequests(b.String())
	require.NoError(t, err)
	assert.Len(t, reqs, maxImageRequests)
}

func TestParseImageRequestsErrors(t *testing.T) {
	for _, in := range []string{"no json here", "[{\"title\": }]", "{\"images\": 3}"} {
		_, err := ParseImageRequests(in)
		assert.Error(t, err, in)
	}
}

func TestTruncationKeepsRunesWhole(t *testing.T) {
	// each "ก" is 3 bytes, so byte 200 falls inside a rune
	thai := strings.Repeat("ก", 100)

	snippet := safeSnippet(thai)
	assert.True(t, utf8.ValidString(snippet))
	assert.Equal(t, strings.Repeat("ก", 66)+"...", snippet)

	cut := truncate(thai, 10)
	assert.True(t, utf8.ValidString(cut))
	assert.Equal(t, "กกก", cut)

	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "short", safeSnippet("short"))
}
