// Package search finds beginner-friendly open issues on GitHub.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/firstfix/starterkit/internal/app/domain/issue"
	"github.com/firstfix/starterkit/pkg/logger"
)

// issueSearchQuery asks for issue cards plus a repo fingerprint. The
// default-branch commit oid lets the starter-kit route pin file fetches.
const issueSearchQuery = `
query SearchIssues($query: String!, $first: Int!) {
  search(type: ISSUE, query: $query, first: $first) {
    issueCount
    nodes {
      ... on Issue {
        id
        number
        title
        url
        createdAt
        updatedAt
        labels(first: 10) { nodes { name } }
        repository {
          nameWithOwner
          url
          isPrivate
          isArchived
          stargazerCount
          pushedAt
          primaryLanguage { name }
          languages(first: 5, orderBy: {field: SIZE, direction: DESC}) {
            edges { size node { name } }
          }
          repositoryTopics(first: 6) { nodes { topic { name } } }
          defaultBranchRef {
            target { ... on Commit { oid } }
          }
        }
      }
    }
  }
}`

// labelVariants are the common beginner labels; naming varies by repo so the
// service queries each and merges the results.
var labelVariants = []string{
	"good first issue",
	"good-first-issue",
	"help wanted",
}

// GraphQLClient is the slice of the GitHub client the search service needs.
type GraphQLClient interface {
	GraphQL(ctx context.Context, query string, variables map[string]any) (gjson.Result, error)
}

// Service runs issue searches and normalizes the results to cards.
type Service struct {
	gh  GraphQLClient
	log *logger.Logger
}

// New constructs a search service.
func New(gh GraphQLClient, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("search")
	}
	return &Service{gh: gh, log: log}
}

// Search queries GitHub for open issues matching the skill tokens and returns
// de-duplicated cards. An empty skill list defaults to ["python"].
func (s *Service) Search(ctx context.Context, skills []string, first int) ([]issue.Card, error) {
	if first <= 0 {
		first = 20
	}

	tokens := make([]string, 0, len(skills))
	for _, skill := range skills {
		if t := strings.TrimSpace(skill); t != "" {
			tokens = append(tokens, t)
		}
	}
	if len(tokens) == 0 {
		tokens = []string{"python"}
	}
	baseQuery := buildQuery(tokens)

	// Pull roughly first/len(variants) per label so the merged total stays
	// near the requested size.
	perCall := first / len(labelVariants)
	if perCall < 5 {
		perCall = 5
	}

	seen := make(map[string]bool)
	var nodes []gjson.Result
	for _, label := range labelVariants {
		res, err := s.gh.GraphQL(ctx, issueSearchQuery, map[string]any{
			"query": withLabel(baseQuery, label),
			"first": perCall,
		})
		if err != nil {
			return nil, fmt.Errorf("search issues (label %q): %w", label, err)
		}
		for _, node := range res.Get("data.search.nodes").Array() {
			id := node.Get("id").String()
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			nodes = append(nodes, node)
		}
	}

	// Rare skill tokens can miss every labeled issue; retry without labels.
	if len(nodes) == 0 {
		res, err := s.gh.GraphQL(ctx, issueSearchQuery, map[string]any{
			"query": baseQuery,
			"first": first,
		})
		if err != nil {
			return nil, fmt.Errorf("search issues fallback: %w", err)
		}
		nodes = res.Get("data.search.nodes").Array()
	}

	cards := make([]issue.Card, 0, len(nodes))
	for _, node := range nodes {
		cards = append(cards, normalizeCard(node))
	}
	s.log.WithField("skills", strings.Join(tokens, ",")).
		WithField("cards", len(cards)).
		Info("issue search completed")
	return cards, nil
}

// buildQuery assembles a GitHub issue search query. language: qualifiers do
// not apply to issue search, so skill tokens stay free text and match
// title/body.
func buildQuery(tokens []string) string {
	parts := append([]string{"is:issue", "is:open", "archived:false"}, tokens...)
	return strings.Join(parts, " ")
}

func withLabel(query, label string) string {
	if strings.Contains(label, `"`) {
		return fmt.Sprintf("%s label:%s", query, label)
	}
	return fmt.Sprintf("%s label:%q", query, label)
}

func normalizeCard(node gjson.Result) issue.Card {
	repo := node.Get("repository")

	var languages []issue.Language
	for _, edge := range repo.Get("languages.edges").Array() {
		languages = append(languages, issue.Language{
			Name:  edge.Get("node.name").String(),
			Share: edge.Get("size").Int(),
		})
	}

	var labels []string
	for _, l := range node.Get("labels.nodes").Array() {
		labels = append(labels, l.Get("name").String())
	}

	var topics []string
	for _, tp := range repo.Get("repositoryTopics.nodes").Array() {
		topics = append(topics, tp.Get("topic.name").String())
	}

	return issue.Card{
		Issue: issue.Issue{
			ID:        node.Get("id").String(),
			Number:    node.Get("number").Int(),
			Title:     node.Get("title").String(),
			URL:       node.Get("url").String(),
			CreatedAt: node.Get("createdAt").String(),
			UpdatedAt: node.Get("updatedAt").String(),
			Labels:    labels,
		},
		Repo: issue.Repo{
			NameWithOwner:    repo.Get("nameWithOwner").String(),
			URL:              repo.Get("url").String(),
			IsPrivate:        repo.Get("isPrivate").Bool(),
			IsArchived:       repo.Get("isArchived").Bool(),
			StargazerCount:   repo.Get("stargazerCount").Int(),
			PushedAt:         repo.Get("pushedAt").String(),
			PrimaryLanguage:  repo.Get("primaryLanguage.name").String(),
			Languages:        languages,
			Topics:           topics,
			DefaultBranchSHA: repo.Get("defaultBranchRef.target.oid").String(),
		},
	}
}
