// Package issue defines the issue-card shapes returned by the search API.
package issue

// Language is one entry of a repository language breakdown. Share is the
// byte count GitHub reports for the language.
type Language struct {
	Name  string `json:"name"`
	Share int64  `json:"share"`
}

// Repo is the fingerprint of the repository an issue belongs to.
type Repo struct {
	NameWithOwner    string     `json:"nameWithOwner"`
	URL              string     `json:"url"`
	IsPrivate        bool       `json:"isPrivate"`
	IsArchived       bool       `json:"isArchived"`
	StargazerCount   int64      `json:"stargazerCount"`
	PushedAt         string     `json:"pushedAt"`
	PrimaryLanguage  string     `json:"primaryLanguage"`
	Languages        []Language `json:"languages"`
	Topics           []string   `json:"topics"`
	DefaultBranchSHA string     `json:"defaultBranchSha"`
}

// Issue is the searchable part of a card.
type Issue struct {
	ID        string   `json:"id"`
	Number    int64    `json:"number"`
	Title     string   `json:"title"`
	URL       string   `json:"url"`
	CreatedAt string   `json:"createdAt"`
	UpdatedAt string   `json:"updatedAt"`
	Labels    []string `json:"labels"`
}

// Card pairs an open issue with its repository fingerprint.
type Card struct {
	Issue Issue `json:"issue"`
	Repo  Repo  `json:"repo"`
}
