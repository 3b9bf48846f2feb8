// Package retrieval embeds pack chunks into per-repo vector collections and
// answers similarity queries for issue text.
package retrieval

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/firstfix/starterkit/internal/app/domain/repopack"
	"github.com/firstfix/starterkit/internal/app/metrics"
	"github.com/firstfix/starterkit/internal/app/storage"
	"github.com/firstfix/starterkit/internal/gemini"
	"github.com/firstfix/starterkit/pkg/logger"
)

// Indexing caps keep a cold pack build inside the route budget.
const (
	maxSubChunksPerRepo = 120
	embedSoftDeadline   = 12 * time.Second
	previewChars        = 500
)

// Hint retrieval tuning.
const (
	hintCandidates = 24
	hintMax        = 6
	hintMinSim     = 0.35
)

var collectionNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_\-]`)

// Embedder produces an embedding vector for one text.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float64, error)
}

// EmbedderFunc adapts a function to the Embedder interface.
type EmbedderFunc func(ctx context.Context, text string) ([]float64, error)

func (f EmbedderFunc) EmbedText(ctx context.Context, text string) ([]float64, error) {
	return f(ctx, text)
}

// Service owns the vector collections derived from repo packs.
type Service struct {
	store   storage.VectorStore
	embed   Embedder
	prefix  string
	timeout time.Duration
	log     *logger.Logger
}

// New constructs a retrieval service. timeout bounds each query; zero
// disables the bound.
func New(store storage.VectorStore, embed Embedder, prefix string, timeout time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("retrieval")
	}
	if prefix == "" {
		prefix = "firstfix"
	}
	return &Service{store: store, embed: embed, prefix: prefix, timeout: timeout, log: log}
}

// IndexPack splits pack chunks into embeddable sub-chunks and upserts them
// into the pack's collection. Indexing stops at the sub-chunk cap or the soft
// embed deadline, whichever comes first.
func (s *Service) IndexPack(ctx context.Context, pack repopack.Pack) error {
	collection := s.collectionName(pack.RepoKey)
	deadline := time.Now().Add(embedSoftDeadline)

	var items []storage.SubChunk
	used := 0
	for _, chunk := range pack.Chunks {
		if used >= maxSubChunksPerRepo || time.Now().After(deadline) {
			break
		}
		for idx, sub := range gemini.SplitText(chunk.Text, gemini.MaxEmbedChars) {
			if used >= maxSubChunksPerRepo || time.Now().After(deadline) {
				break
			}
			vector, err := s.embed.EmbedText(ctx, sub)
			metrics.RecordEmbedCall(err)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.log.WithError(err).WithField("path", chunk.Path).Warn("embed sub-chunk failed")
				continue
			}
			preview := sub
			if len(preview) > previewChars {
				preview = preview[:previewChars]
			}
			items = append(items, storage.SubChunk{
				ID:        fmt.Sprintf("%s#%d-%d::%d", chunk.Path, chunk.StartLine, chunk.EndLine, idx),
				Vector:    vector,
				Preview:   preview,
				Path:      chunk.Path,
				StartLine: chunk.StartLine,
				EndLine:   chunk.EndLine,
				Kind:      chunk.Kind,
				Symbol:    chunk.Symbol,
			})
			used++
		}
	}

	if len(items) == 0 {
		s.log.WithField("repo_key", pack.RepoKey).Warn("no sub-chunks indexed")
		return nil
	}
	if err := s.store.UpsertVectors(ctx, collection, items); err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}
	s.log.WithField("repo_key", pack.RepoKey).
		WithField("sub_chunks", len(items)).
		Info("pack indexed")
	return nil
}

// TopChunks returns the top-k sub-chunks most similar to the pack's issue
// text.
func (s *Service) TopChunks(ctx context.Context, pack repopack.Pack, topK int) ([]storage.Match, error) {
	if topK <= 0 {
		topK = 25
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	collection := s.collectionName(pack.RepoKey)
	if size, err := s.store.CollectionSize(ctx, collection); err != nil {
		return nil, err
	} else if size == 0 {
		return nil, nil
	}

	vector, err := s.embed.EmbedText(ctx, pack.Issue.Text())
	metrics.RecordEmbedCall(err)
	if err != nil {
		return nil, fmt.Errorf("embed issue text: %w", err)
	}
	return s.store.QueryVectors(ctx, collection, vector, topK)
}

// HintChunks returns a small, path-diverse set of sub-chunks relevant enough
// to ground LLM hints.
func (s *Service) HintChunks(ctx context.Context, pack repopack.Pack) ([]storage.Match, error) {
	matches, err := s.TopChunks(ctx, pack, hintCandidates)
	if err != nil {
		return nil, err
	}

	byPath := make(map[string]bool)
	var selected []storage.Match
	for _, m := range matches {
		if m.Path == "" || m.Score < hintMinSim || byPath[m.Path] {
			continue
		}
		byPath[m.Path] = true
		selected = append(selected, m)
		if len(selected) == hintMax {
			break
		}
	}
	return selected, nil
}

// DropRepo removes the vector collection for an evicted pack.
func (s *Service) DropRepo(ctx context.Context, repoKey string) error {
	return s.store.DropCollection(ctx, s.collectionName(repoKey))
}

func (s *Service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// collectionName builds a storage-safe collection name for a repo key.
func (s *Service) collectionName(repoKey string) string {
	return collectionNameSanitizer.ReplaceAllString(s.prefix+"__"+repoKey, "_")
}
