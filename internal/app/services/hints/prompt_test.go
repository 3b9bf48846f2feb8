package hints

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firstfix/starterkit/internal/app/storage"
)

func TestBuildUserMessageSections(t *testing.T) {
	pack := testPack()
	matches := []storage.Match{
		{SubChunk: storage.SubChunk{
			Path:      "app/forms.py",
			StartLine: 3,
			EndLine:   18,
			Symbol:    "LoginForm",
			Preview:   "class LoginForm:\n    pass",
		}, Score: 0.8},
	}

	msg := buildUserMessage(pack, matches)

	require.True(t, strings.Index(msg, "ISSUE") < strings.Index(msg, "REPO_METADATA"))
	require.True(t, strings.Index(msg, "REPO_METADATA") < strings.Index(msg, "CODE_CONTEXT"))

	assert.Contains(t, msg, "Title: Login form crashes on empty email")
	assert.Contains(t, msg, "# Widgets")
	assert.Contains(t, msg, "flask==3.0")
	assert.Contains(t, msg, "tests/test_forms.py")
	assert.Contains(t, msg, "CODE_CONTEXT (top 1 chunks)")
	assert.Contains(t, msg, "Lines: 3-18")
}

func TestBuildUserMessageTruncatesExcerpts(t *testing.T) {
	pack := testPack()
	pack.Chunks[0].Text = strings.Repeat("x", readmeExcerptChars+500)
	pack.Chunks[1].Text = strings.Repeat("y", depsExcerptChars+500)

	msg := buildUserMessage(pack, nil)

	assert.Contains(t, msg, strings.Repeat("x", readmeExcerptChars))
	assert.NotContains(t, msg, strings.Repeat("x", readmeExcerptChars+1))
	assert.Contains(t, msg, strings.Repeat("y", depsExcerptChars))
	assert.NotContains(t, msg, strings.Repeat("y", depsExcerptChars+1))
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	out := truncate(strings.Repeat("日", 10), 8)
	require.LessOrEqual(t, len(out), 8)
	assert.True(t, utf8.ValidString(out), "truncation split a rune")
}

func TestSystemPromptDemandsStrictJSON(t *testing.T) {
	assert.Contains(t, systemPrompt, "strict JSON")
	for _, key := range []string{"high_level_goal", "where_to_work", "what_to_change", "how_to_verify", "gotchas"} {
		assert.Contains(t, systemPrompt, key)
	}
}
