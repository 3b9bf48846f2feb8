// Package repopack builds and caches chunked repository snapshots for issue
// retrieval.
package repopack

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/firstfix/starterkit/internal/app/domain/repopack"
	"github.com/firstfix/starterkit/internal/app/metrics"
	"github.com/firstfix/starterkit/internal/app/storage"
	"github.com/firstfix/starterkit/pkg/logger"
)

// Fetch budgets keep a cold pack build snappy.
const (
	maxFiles      = 60
	maxTotalChars = 120_000
	maxFileChars  = 30_000
)

// ErrIssueNotFound is returned when the requested issue or PR does not exist.
var ErrIssueNotFound = errors.New("issue not found")

const issueQuery = `
query IssueOrPR($owner:String!, $name:String!, $number:Int!) {
  repository(owner:$owner, name:$name) {
    nameWithOwner
    defaultBranchRef {
      name
      target { ... on Commit { oid } }
    }
    issueOrPullRequest(number:$number) {
      __typename
      ... on Issue {
        id number title bodyText url
      }
      ... on PullRequest {
        id number title bodyText url
      }
    }
  }
}`

// RepoFetcher is the slice of the GitHub client the pack builder needs.
type RepoFetcher interface {
	GraphQL(ctx context.Context, query string, variables map[string]any) (gjson.Result, error)
	Get(ctx context.Context, path string, params url.Values) (gjson.Result, error)
	RawFile(ctx context.Context, owner, repo, sha, path string) (string, error)
}

// Indexer receives built packs for vector indexing and drops collections of
// evicted packs.
type Indexer interface {
	IndexPack(ctx context.Context, pack repopack.Pack) error
	DropRepo(ctx context.Context, repoKey string) error
}

// Service builds repo packs and manages the pack cache.
type Service struct {
	gh       RepoFetcher
	store    storage.PackStore
	indexer  Indexer
	maxPacks int
	log      *logger.Logger
}

// New constructs a pack service. maxPacks bounds the cache size.
func New(gh RepoFetcher, store storage.PackStore, indexer Indexer, maxPacks int, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("repopack")
	}
	if maxPacks <= 0 {
		maxPacks = 20
	}
	return &Service{gh: gh, store: store, indexer: indexer, maxPacks: maxPacks, log: log}
}

// BuildPack returns the pack for a repository at its default-branch head,
// building and indexing it on a cache miss. The issue is always refreshed so
// a cached pack can serve any issue of the same snapshot.
func (s *Service) BuildPack(ctx context.Context, owner, name string, number int) (repopack.Pack, bool, error) {
	start := time.Now()

	sha, issueRef, err := s.resolveShaAndIssue(ctx, owner, name, number)
	if err != nil {
		metrics.RecordPackBuild("error", time.Since(start))
		return repopack.Pack{}, false, err
	}
	key := repopack.Key(owner, name, sha)

	if cached, err := s.store.GetPack(ctx, key); err == nil {
		cached.Issue = issueRef
		s.log.WithField("repo_key", key).Info("pack cache hit")
		metrics.RecordPackBuild("hit", time.Since(start))
		return cached, true, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		metrics.RecordPackBuild("error", time.Since(start))
		return repopack.Pack{}, false, err
	}

	pack, err := s.buildCold(ctx, owner, name, sha, issueRef)
	if err != nil {
		metrics.RecordPackBuild("error", time.Since(start))
		return repopack.Pack{}, false, err
	}

	if err := s.store.SavePack(ctx, pack); err != nil {
		metrics.RecordPackBuild("error", time.Since(start))
		return repopack.Pack{}, false, fmt.Errorf("save pack: %w", err)
	}
	if s.indexer != nil {
		if err := s.indexer.IndexPack(ctx, pack); err != nil {
			metrics.RecordPackBuild("error", time.Since(start))
			return repopack.Pack{}, false, fmt.Errorf("index pack: %w", err)
		}
	}
	s.evict(ctx)

	s.log.WithField("repo_key", key).
		WithField("chunks", len(pack.Chunks)).
		WithField("elapsed", time.Since(start).Round(time.Millisecond).String()).
		Info("pack built")
	metrics.RecordPackBuild("miss", time.Since(start))
	return pack, false, nil
}

func (s *Service) resolveShaAndIssue(ctx context.Context, owner, name string, number int) (string, repopack.IssueRef, error) {
	res, err := s.gh.GraphQL(ctx, issueQuery, map[string]any{
		"owner": owner, "name": name, "number": number,
	})
	if err != nil {
		return "", repopack.IssueRef{}, fmt.Errorf("resolve issue: %w", err)
	}

	repo := res.Get("data.repository")
	item := repo.Get("issueOrPullRequest")
	if !item.Exists() || item.Type == gjson.Null {
		return "", repopack.IssueRef{}, fmt.Errorf("%w: %s/%s#%d", ErrIssueNotFound, owner, name, number)
	}

	issueRef := repopack.IssueRef{
		ID:       item.Get("id").String(),
		Number:   item.Get("number").Int(),
		Title:    item.Get("title").String(),
		BodyText: item.Get("bodyText").String(),
		URL:      item.Get("url").String(),
		Type:     item.Get("__typename").String(),
	}

	sha := repo.Get("defaultBranchRef.target.oid").String()
	if sha == "" {
		// Some repos return a null defaultBranchRef over GraphQL; fall back
		// to REST to resolve the head commit.
		repoJSON, err := s.gh.Get(ctx, fmt.Sprintf("/repos/%s/%s", owner, name), nil)
		if err != nil {
			return "", repopack.IssueRef{}, fmt.Errorf("resolve default branch: %w", err)
		}
		branch := repoJSON.Get("default_branch").String()
		if branch == "" {
			branch = "main"
		}
		ref, err := s.gh.Get(ctx, fmt.Sprintf("/repos/%s/%s/git/ref/heads/%s", owner, name, branch), nil)
		if err != nil {
			return "", repopack.IssueRef{}, fmt.Errorf("resolve head ref: %w", err)
		}
		sha = ref.Get("object.sha").String()
		if sha == "" {
			return "", repopack.IssueRef{}, fmt.Errorf("could not resolve default branch sha for %s/%s", owner, name)
		}
	}
	return sha, issueRef, nil
}

func (s *Service) buildCold(ctx context.Context, owner, name, sha string, issueRef repopack.IssueRef) (repopack.Pack, error) {
	tree, err := s.gh.Get(ctx, fmt.Sprintf("/repos/%s/%s/git/trees/%s", owner, name, sha), url.Values{"recursive": {"1"}})
	if err != nil {
		return repopack.Pack{}, fmt.Errorf("list tree: %w", err)
	}
	entries := tree.Get("tree").Array()
	if len(entries) == 0 {
		return repopack.Pack{}, fmt.Errorf("no tree returned for %s/%s@%s; the repo may be empty or API-limited", owner, name, sha)
	}

	var candidates []string
	for _, entry := range entries {
		if entry.Get("type").String() != "blob" {
			continue
		}
		path := entry.Get("path").String()
		if path == "" || !wantFile(path) {
			continue
		}
		candidates = append(candidates, path)
		if len(candidates) >= maxFiles {
			break
		}
	}
	s.log.WithField("candidates", len(candidates)).Debug("candidate files selected")

	var chunks []repopack.Chunk
	totalChars := 0
	for _, path := range candidates {
		content, err := s.gh.RawFile(ctx, owner, name, sha, path)
		if err != nil {
			if ctx.Err() != nil {
				return repopack.Pack{}, ctx.Err()
			}
			continue // skip unreadable files, keep building
		}
		if len(content) > maxFileChars {
			continue
		}
		totalChars += len(content)
		if totalChars > maxTotalChars {
			s.log.Debug("character budget reached; stopping fetch")
			break
		}
		chunks = append(chunks, chunkFile(path, content)...)
	}

	return repopack.Pack{
		RepoKey: repopack.Key(owner, name, sha),
		SHA:     sha,
		Issue:   issueRef,
		Chunks:  chunks,
		BuiltAt: time.Now().UTC(),
	}, nil
}

func (s *Service) evict(ctx context.Context) {
	evicted, err := s.store.EvictPacks(ctx, s.maxPacks)
	if err != nil {
		s.log.WithError(err).Warn("pack eviction failed")
		return
	}
	for _, key := range evicted {
		if s.indexer != nil {
			if err := s.indexer.DropRepo(ctx, key); err != nil {
				s.log.WithError(err).WithField("repo_key", key).Warn("drop evicted collection failed")
			}
		}
		s.log.WithField("repo_key", key).Info("pack evicted")
	}
}

// RunHints derives quick "how to run" suggestions from doc and config chunks.
// Unique, capped at five.
func RunHints(pack repopack.Pack) []string {
	var hints []string
	for _, ch := range pack.Chunks {
		lowPath := strings.ToLower(ch.Path)
		lowText := strings.ToLower(ch.Text)
		if ch.Kind == repopack.KindDoc && strings.HasPrefix(lowPath, "readme") {
			if strings.Contains(lowText, "flask run") {
				hints = append(hints, "flask run")
			}
			if strings.Contains(ch.Text, "pip install -e .") {
				hints = append(hints, "pip install -e .")
			}
		}
		if strings.HasSuffix(ch.Path, "pyproject.toml") || strings.Contains(lowPath, "requirements.txt") {
			hints = append(hints, "Create venv and install deps (pyproject/requirements found)")
		}
	}

	seen := make(map[string]bool)
	var unique []string
	for _, h := range hints {
		if seen[h] {
			continue
		}
		seen[h] = true
		unique = append(unique, h)
		if len(unique) == 5 {
			break
		}
	}
	return unique
}
