// Package repopack defines the repository snapshot bundle used for retrieval.
package repopack

import "time"

// Chunk kinds.
const (
	KindCode   = "code"
	KindDoc    = "doc"
	KindConfig = "config"
	KindTest   = "test"
)

// IssueRef is the issue (or pull request) a pack was built for.
type IssueRef struct {
	ID       string `json:"id"`
	Number   int64  `json:"number"`
	Title    string `json:"title"`
	BodyText string `json:"bodyText"`
	URL      string `json:"url"`
	Type     string `json:"type"`
}

// Text returns the issue text used as a retrieval query.
func (i IssueRef) Text() string {
	return i.Title + "\n" + i.BodyText
}

// Chunk is one contiguous slice of a repository file.
type Chunk struct {
	Path      string `json:"path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Kind      string `json:"kind"`
	Text      string `json:"text"`
	Symbol    string `json:"symbol,omitempty"`
}

// Pack is a chunked snapshot of a repository at a single commit, keyed by
// "owner/name@sha".
type Pack struct {
	RepoKey string    `json:"repo_key"`
	SHA     string    `json:"sha"`
	Issue   IssueRef  `json:"issue"`
	Chunks  []Chunk   `json:"chunks"`
	BuiltAt time.Time `json:"built_at"`
}

// Key builds the canonical pack key for a repository snapshot.
func Key(owner, name, sha string) string {
	return owner + "/" + name + "@" + sha
}
