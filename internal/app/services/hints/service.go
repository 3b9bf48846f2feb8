package hints

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	hintdomain "github.com/firstfix/starterkit/internal/app/domain/hints"
	"github.com/firstfix/starterkit/internal/app/domain/repopack"
	"github.com/firstfix/starterkit/internal/app/metrics"
	"github.com/firstfix/starterkit/internal/app/storage"
	"github.com/firstfix/starterkit/pkg/logger"
)

// PackProvider yields the indexed repo pack for an issue, building it if
// needed.
type PackProvider interface {
	BuildPack(ctx context.Context, owner, name string, number int) (repopack.Pack, bool, error)
}

// Retriever surfaces the code chunks most relevant to the pack's issue.
type Retriever interface {
	HintChunks(ctx context.Context, pack repopack.Pack) ([]storage.Match, error)
}

// Generator produces a model completion from a system prompt and user message.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// Service turns an issue into mentor guidance: build the pack, retrieve
// relevant chunks, ask the model, cache the parsed bundle.
type Service struct {
	packs    PackProvider
	retrieve Retriever
	gen      Generator
	cache    storage.HintStore
	ttl      time.Duration
	timeout  time.Duration
	log      *logger.Logger
}

func New(packs PackProvider, retrieve Retriever, gen Generator, cache storage.HintStore, ttl, timeout time.Duration, log *logger.Logger) *Service {
	return &Service{
		packs:    packs,
		retrieve: retrieve,
		gen:      gen,
		cache:    cache,
		ttl:      ttl,
		timeout:  timeout,
		log:      log,
	}
}

// Hints returns the cached or freshly generated bundle for an issue.
func (s *Service) Hints(ctx context.Context, owner, name string, number int) (hintdomain.Bundle, error) {
	if owner == "" || name == "" {
		return hintdomain.Bundle{}, fmt.Errorf("owner and repo are required")
	}
	if number <= 0 {
		return hintdomain.Bundle{}, fmt.Errorf("issue number must be positive")
	}

	key := cacheKey(owner, name, number)
	if bundle, ok, err := s.cache.GetHints(ctx, key); err != nil {
		s.log.WithError(err).Warn("hint cache read failed")
	} else if ok {
		return bundle, nil
	}

	pack, cached, err := s.packs.BuildPack(ctx, owner, name, number)
	if err != nil {
		return hintdomain.Bundle{}, err
	}
	s.log.WithField("repo_key", pack.RepoKey).WithField("pack_cached", cached).Info("generating hints")

	chunks, err := s.retrieve.HintChunks(ctx, pack)
	if err != nil {
		s.log.WithError(err).Warn("hint retrieval failed, continuing without code context")
		chunks = nil
	}

	bundle, err := s.generate(ctx, pack, chunks)
	if err != nil {
		return hintdomain.Bundle{}, err
	}

	if err := s.cache.PutHints(ctx, key, bundle, s.ttl); err != nil {
		s.log.WithError(err).Warn("hint cache write failed")
	}
	return bundle, nil
}

func (s *Service) generate(ctx context.Context, pack repopack.Pack, chunks []storage.Match) (hintdomain.Bundle, error) {
	bound := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		bound, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := s.gen.Generate(bound, systemPrompt, buildUserMessage(pack, chunks))
	metrics.RecordLLMCall(err, time.Since(start))
	if err != nil {
		return hintdomain.Bundle{}, fmt.Errorf("generate hints: %w", err)
	}

	bundle, err := parseBundle(reply)
	if err != nil {
		return hintdomain.Bundle{}, err
	}
	return bundle, nil
}

// parseBundle decodes the model reply, tolerating markdown code fences around
// the JSON object.
func parseBundle(reply string) (hintdomain.Bundle, error) {
	text := strings.TrimSpace(reply)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
	}

	var bundle hintdomain.Bundle
	if err := json.Unmarshal([]byte(text), &bundle); err != nil {
		return hintdomain.Bundle{}, fmt.Errorf("parse hints reply: %w", err)
	}
	if bundle.Empty() {
		return hintdomain.Bundle{}, fmt.Errorf("parse hints reply: empty bundle")
	}
	return bundle, nil
}

func cacheKey(owner, name string, number int) string {
	return fmt.Sprintf("%s/%s#%d", strings.ToLower(owner), strings.ToLower(name), number)
}
