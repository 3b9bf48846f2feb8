package hints

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/firstfix/starterkit/internal/app/domain/repopack"
	"github.com/firstfix/starterkit/internal/app/storage"
)

// systemPrompt steers the model toward actionable, non-spoiler guidance and a
// strict JSON reply.
const systemPrompt = `You are "FirstFix Mentor," a friendly senior dev helping a beginner make their first open-source contribution.

Your job: write actionable guidance that nudges them to the solution without giving the full implementation.

Rules:
- Use only the provided context (issue text, repo metadata, and code snippets).
- If something is unclear or missing, point out what to search or read next (don't guess).
- Give file paths and symbols when you suggest where to edit; include a short rationale.
- Keep to 3-6 concise bullets total, grouped under the headings below.
- No full solutions. Pseudocode or one-liners are okay if truly necessary.
- When you reference code, cite like (path: start-end) exactly. One or more citations per bullet are okay.
- Prefer narrow ranges; if unsure, use a small estimate or omit.
- Tone: friendly and practical. Avoid robotic phrasing and filler.

Output Sections (and only these):
1. High-level goal
2. Where to work
3. What to change
4. How to verify
5. Gotchas

Length: 250 words max.

Return strict JSON only with keys: high_level_goal (string), where_to_work (array of strings), what_to_change (array of strings), how_to_verify (array of strings), gotchas (array of strings). Do not include any other text.`

const (
	readmeExcerptChars = 1200
	depsExcerptChars   = 600
)

// buildUserMessage assembles the structured context the model sees: the
// issue, repo metadata excerpts, and the retrieved code chunks.
func buildUserMessage(pack repopack.Pack, chunks []storage.Match) string {
	var sb strings.Builder

	sb.WriteString("ISSUE\n")
	sb.WriteString("Title: " + pack.Issue.Title + "\n")
	sb.WriteString("Body:\n" + strings.TrimSpace(pack.Issue.BodyText) + "\n\n")

	sb.WriteString("REPO_METADATA\n")
	sb.WriteString("README (excerpt):\n" + readmeExcerpt(pack) + "\n\n")
	sb.WriteString("Dependencies:\n" + depsExcerpt(pack) + "\n\n")
	sb.WriteString("Tests (filenames / hints):\n" + testFileNames(pack) + "\n\n")

	sb.WriteString(fmt.Sprintf("CODE_CONTEXT (top %d chunks)\n", len(chunks)))
	for _, c := range chunks {
		sb.WriteString(fmt.Sprintf("- File: %s\n", c.Path))
		sb.WriteString(fmt.Sprintf("  Lines: %d-%d\n", c.StartLine, c.EndLine))
		sb.WriteString(fmt.Sprintf("  Symbol: %s\n", c.Symbol))
		sb.WriteString("  Excerpt:\n" + strings.TrimSpace(c.Preview) + "\n")
	}

	return strings.TrimSpace(sb.String())
}

func readmeExcerpt(pack repopack.Pack) string {
	for _, ch := range pack.Chunks {
		if ch.Kind == repopack.KindDoc && strings.HasPrefix(strings.ToLower(ch.Path), "readme") {
			return truncate(ch.Text, readmeExcerptChars)
		}
	}
	return ""
}

func depsExcerpt(pack repopack.Pack) string {
	for _, ch := range pack.Chunks {
		low := strings.ToLower(ch.Path)
		if strings.Contains(low, "requirements.txt") || strings.HasSuffix(low, "pyproject.toml") {
			return truncate(ch.Text, depsExcerptChars)
		}
	}
	return ""
}

func testFileNames(pack repopack.Pack) string {
	seen := make(map[string]bool)
	var names []string
	for _, ch := range pack.Chunks {
		if ch.Kind != repopack.KindTest || seen[ch.Path] {
			continue
		}
		seen[ch.Path] = true
		names = append(names, ch.Path)
	}
	return strings.Join(names, "\n")
}

func truncate(text string, max int) string {
	text = strings.TrimSpace(text)
	if len(text) <= max {
		return text
	}
	// Back up so the cut never splits a multi-byte rune.
	for max > 0 && !utf8.RuneStart(text[max]) {
		max--
	}
	return text[:max]
}
