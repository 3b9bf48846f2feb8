// Package memory implements the storage interfaces in process memory. It is
// the default persistence layer and is safe for concurrent use.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/firstfix/starterkit/internal/app/domain/hints"
	"github.com/firstfix/starterkit/internal/app/domain/repopack"
	"github.com/firstfix/starterkit/internal/app/storage"
)

// Store is an in-memory implementation of PackStore, VectorStore, and
// HintStore.
type Store struct {
	mu          sync.RWMutex
	packs       map[string]packEntry
	collections map[string]map[string]storage.SubChunk
	hints       map[string]hintEntry

	now func() time.Time
}

type packEntry struct {
	pack     repopack.Pack
	lastUsed time.Time
}

type hintEntry struct {
	bundle    hints.Bundle
	expiresAt time.Time
}

var _ storage.PackStore = (*Store)(nil)
var _ storage.VectorStore = (*Store)(nil)
var _ storage.HintStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		packs:       make(map[string]packEntry),
		collections: make(map[string]map[string]storage.SubChunk),
		hints:       make(map[string]hintEntry),
		now:         time.Now,
	}
}

// PackStore implementation ---------------------------------------------------

func (s *Store) SavePack(_ context.Context, pack repopack.Pack) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packs[pack.RepoKey] = packEntry{pack: clonePack(pack), lastUsed: s.now()}
	return nil
}

func (s *Store) GetPack(_ context.Context, repoKey string) (repopack.Pack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.packs[repoKey]
	if !ok {
		return repopack.Pack{}, storage.ErrNotFound
	}
	entry.lastUsed = s.now()
	s.packs[repoKey] = entry
	return clonePack(entry.pack), nil
}

func (s *Store) EvictPacks(_ context.Context, max int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if max < 0 || len(s.packs) <= max {
		return nil, nil
	}

	type keyed struct {
		key      string
		lastUsed time.Time
	}
	entries := make([]keyed, 0, len(s.packs))
	for key, entry := range s.packs {
		entries = append(entries, keyed{key: key, lastUsed: entry.lastUsed})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].lastUsed.Before(entries[j].lastUsed)
	})

	var evicted []string
	for _, e := range entries[:len(entries)-max] {
		delete(s.packs, e.key)
		evicted = append(evicted, e.key)
	}
	return evicted, nil
}

// VectorStore implementation -------------------------------------------------

func (s *Store) UpsertVectors(_ context.Context, collection string, items []storage.SubChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]storage.SubChunk)
		s.collections[collection] = coll
	}
	for _, item := range items {
		item.Vector = append([]float64(nil), item.Vector...)
		coll[item.ID] = item
	}
	return nil
}

func (s *Store) QueryVectors(_ context.Context, collection string, vector []float64, topK int) ([]storage.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll := s.collections[collection]
	if len(coll) == 0 || topK <= 0 {
		return nil, nil
	}

	matches := make([]storage.Match, 0, len(coll))
	for _, item := range coll {
		matches = append(matches, storage.Match{
			SubChunk: item,
			Score:    cosineSimilarity(vector, item.Vector),
		})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *Store) CollectionSize(_ context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection]), nil
}

func (s *Store) DropCollection(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, collection)
	return nil
}

// HintStore implementation ---------------------------------------------------

func (s *Store) GetHints(_ context.Context, key string) (hints.Bundle, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.hints[key]
	if !ok || s.now().After(entry.expiresAt) {
		return hints.Bundle{}, false, nil
	}
	return entry.bundle, true, nil
}

func (s *Store) PutHints(_ context.Context, key string, bundle hints.Bundle, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hints[key] = hintEntry{bundle: bundle, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *Store) PurgeExpiredHints(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	purged := 0
	for key, entry := range s.hints {
		if now.After(entry.expiresAt) {
			delete(s.hints, key)
			purged++
		}
	}
	return purged, nil
}

// Helpers ---------------------------------------------------------------------

func clonePack(p repopack.Pack) repopack.Pack {
	p.Chunks = append([]repopack.Chunk(nil), p.Chunks...)
	return p
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}
