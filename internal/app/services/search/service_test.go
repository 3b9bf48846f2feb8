package search

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

type fakeGraphQL struct {
	calls     []string
	responses map[string]string // substring of query -> response body
	fallback  string
}

func (f *fakeGraphQL) GraphQL(_ context.Context, _ string, variables map[string]any) (gjson.Result, error) {
	q, _ := variables["query"].(string)
	f.calls = append(f.calls, q)
	for substr, body := range f.responses {
		if strings.Contains(q, substr) {
			return gjson.Parse(body), nil
		}
	}
	return gjson.Parse(f.fallback), nil
}

func node(id, title string) string {
	return fmt.Sprintf(`{
		"id": %q, "number": 12, "title": %q, "url": "https://github.com/o/r/issues/12",
		"createdAt": "2024-01-01T00:00:00Z", "updatedAt": "2024-01-02T00:00:00Z",
		"labels": {"nodes": [{"name": "good first issue"}]},
		"repository": {
			"nameWithOwner": "o/r", "url": "https://github.com/o/r",
			"isPrivate": false, "isArchived": false, "stargazerCount": 42,
			"pushedAt": "2024-01-03T00:00:00Z",
			"primaryLanguage": {"name": "Python"},
			"languages": {"edges": [{"size": 1000, "node": {"name": "Python"}}]},
			"repositoryTopics": {"nodes": [{"topic": {"name": "flask"}}]},
			"defaultBranchRef": {"target": {"oid": "abc123"}}
		}
	}`, id, title)
}

func searchBody(nodes ...string) string {
	return fmt.Sprintf(`{"data":{"search":{"issueCount":%d,"nodes":[%s]}}}`, len(nodes), strings.Join(nodes, ","))
}

func TestSearchMergesLabelVariantsAndDedupes(t *testing.T) {
	gh := &fakeGraphQL{
		responses: map[string]string{
			`label:"good first issue"`:  searchBody(node("i1", "fix typo")),
			`label:"good-first-issue"`:  searchBody(node("i1", "fix typo"), node("i2", "add test")),
			`label:"help wanted"`:       searchBody(node("i3", "docs")),
		},
	}
	svc := New(gh, nil)

	cards, err := svc.Search(context.Background(), []string{"python", " flask "}, 20)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(cards) != 3 {
		t.Fatalf("expected 3 deduped cards, got %d", len(cards))
	}
	if len(gh.calls) != 3 {
		t.Fatalf("expected 3 label calls, got %d", len(gh.calls))
	}
	for _, q := range gh.calls {
		if !strings.Contains(q, "is:issue is:open archived:false python flask") {
			t.Fatalf("unexpected base query %q", q)
		}
	}

	card := cards[0]
	if card.Issue.ID != "i1" || card.Repo.DefaultBranchSHA != "abc123" {
		t.Fatalf("unexpected card %#v", card)
	}
	if card.Repo.StargazerCount != 42 || card.Repo.PrimaryLanguage != "Python" {
		t.Fatalf("fingerprint not normalized: %#v", card.Repo)
	}
	if len(card.Repo.Languages) != 1 || card.Repo.Languages[0].Share != 1000 {
		t.Fatalf("language share lost: %#v", card.Repo.Languages)
	}
}

func TestSearchFallsBackWithoutLabels(t *testing.T) {
	gh := &fakeGraphQL{
		responses: map[string]string{"label:": searchBody()},
		fallback:  searchBody(node("i9", "rare topic")),
	}
	svc := New(gh, nil)

	cards, err := svc.Search(context.Background(), []string{"obscure-skill"}, 20)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(cards) != 1 || cards[0].Issue.ID != "i9" {
		t.Fatalf("expected fallback card, got %#v", cards)
	}
	if len(gh.calls) != 4 {
		t.Fatalf("expected 3 label calls + 1 fallback, got %d", len(gh.calls))
	}
	if strings.Contains(gh.calls[3], "label:") {
		t.Fatalf("fallback query should not carry labels: %q", gh.calls[3])
	}
}

func TestSearchDefaultsToPython(t *testing.T) {
	gh := &fakeGraphQL{fallback: searchBody(node("i1", "t"))}
	svc := New(gh, nil)

	if _, err := svc.Search(context.Background(), nil, 0); err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(gh.calls[0], "python") {
		t.Fatalf("expected python default in query %q", gh.calls[0])
	}
}
