package repopack

import (
	"regexp"
	"strings"

	"github.com/firstfix/starterkit/internal/app/domain/repopack"
)

// File families worth packing. The code pattern targets the layout of the
// Flask projects the product points beginners at.
var (
	codeFilePattern = regexp.MustCompile(`(?i)((^|/)(app\.py|wsgi\.py|manage\.py|__init__\.py|routes\.py|views\.py|errors\.py|models\.py|forms\.py)$)|((^|/)(api|blueprints|routes|controllers)(/|$))`)
	docFilePattern  = regexp.MustCompile(`(?i)(^|/)(README(\.md)?|CONTRIBUTING(\.md)?|Makefile|Dockerfile)$`)
	testFilePattern = regexp.MustCompile(`(?i)(^|/)tests?/`)
	pyFilePattern   = regexp.MustCompile(`(?i)\.py$`)
	mdFilePattern   = regexp.MustCompile(`(?i)\.md$`)

	pyDefPattern     = regexp.MustCompile(`^\s*def\s+(\w+)\s*\(`)
	pyClassPattern   = regexp.MustCompile(`^\s*class\s+(\w+)\s*[:(]`)
	mdHeadingPattern = regexp.MustCompile(`^#{1,6}\s`)
)

// wantFile reports whether a tree path is worth fetching into the pack.
func wantFile(path string) bool {
	return codeFilePattern.MatchString(path) ||
		docFilePattern.MatchString(path) ||
		testFilePattern.MatchString(path) ||
		pyFilePattern.MatchString(path)
}

// chunkFile splits file content into chunks appropriate for its type.
func chunkFile(path, content string) []repopack.Chunk {
	lower := strings.ToLower(path)
	var chunks []repopack.Chunk
	switch {
	case mdFilePattern.MatchString(path), lower == "readme", lower == "contributing":
		chunks = chunkMarkdown(content)
	case pyFilePattern.MatchString(path):
		chunks = chunkPython(content)
	case lower == "makefile", lower == "dockerfile":
		chunks = chunkWhole(content, repopack.KindConfig)
	case testFilePattern.MatchString(path):
		chunks = chunkWhole(content, repopack.KindTest)
	default:
		chunks = chunkWhole(content, repopack.KindDoc)
	}

	for i := range chunks {
		chunks[i].Path = path
	}
	return chunks
}

// chunkPython splits a python file at def/class boundaries. Files without any
// definitions become a single whole-file chunk.
func chunkPython(text string) []repopack.Chunk {
	lines := strings.Split(text, "\n")

	var starts []int
	for i, line := range lines {
		if pyDefPattern.MatchString(line) || pyClassPattern.MatchString(line) {
			starts = append(starts, i)
		}
	}
	starts = append(starts, len(lines)) // sentinel

	var chunks []repopack.Chunk
	for i := 0; i < len(starts)-1; i++ {
		s, e := starts[i], starts[i+1]
		header := strings.TrimSpace(lines[s])
		symbol := ""
		if m := pyDefPattern.FindStringSubmatch(header); m != nil {
			symbol = m[1]
		} else if m := pyClassPattern.FindStringSubmatch(header); m != nil {
			symbol = m[1]
		}
		body := strings.TrimSpace(strings.Join(lines[s:e], "\n"))
		if body == "" {
			continue
		}
		chunks = append(chunks, repopack.Chunk{
			StartLine: s + 1,
			EndLine:   e,
			Kind:      repopack.KindCode,
			Text:      body,
			Symbol:    symbol,
		})
	}

	if len(chunks) == 0 && strings.TrimSpace(text) != "" {
		chunks = append(chunks, repopack.Chunk{
			StartLine: 1,
			EndLine:   len(lines),
			Kind:      repopack.KindCode,
			Text:      text,
		})
	}
	return chunks
}

// chunkMarkdown splits a markdown file at headings.
func chunkMarkdown(text string) []repopack.Chunk {
	lines := strings.Split(text, "\n")

	starts := []int{0}
	for i, line := range lines {
		if mdHeadingPattern.MatchString(line) {
			starts = append(starts, i)
		}
	}
	starts = append(starts, len(lines))

	var chunks []repopack.Chunk
	seen := make(map[[2]int]bool)
	for i := 0; i < len(starts)-1; i++ {
		s, e := starts[i], starts[i+1]
		if s == e || seen[[2]int{s, e}] {
			continue
		}
		seen[[2]int{s, e}] = true
		body := strings.TrimSpace(strings.Join(lines[s:e], "\n"))
		if body == "" {
			continue
		}
		chunks = append(chunks, repopack.Chunk{
			StartLine: s + 1,
			EndLine:   e,
			Kind:      repopack.KindDoc,
			Text:      body,
		})
	}

	if len(chunks) == 0 && strings.TrimSpace(text) != "" {
		chunks = append(chunks, repopack.Chunk{
			StartLine: 1,
			EndLine:   len(lines),
			Kind:      repopack.KindDoc,
			Text:      text,
		})
	}
	return chunks
}

func chunkWhole(text, kind string) []repopack.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return []repopack.Chunk{{
		StartLine: 1,
		EndLine:   len(strings.Split(text, "\n")),
		Kind:      kind,
		Text:      text,
	}}
}
