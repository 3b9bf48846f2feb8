package storage

import (
	"context"
	"errors"
	"time"

	"github.com/firstfix/starterkit/internal/app/domain/hints"
	"github.com/firstfix/starterkit/internal/app/domain/repopack"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// PackStore persists repo packs keyed by "owner/name@sha".
type PackStore interface {
	SavePack(ctx context.Context, pack repopack.Pack) error
	GetPack(ctx context.Context, repoKey string) (repopack.Pack, error)
	// EvictPacks removes the least recently used packs until at most max
	// remain and returns the evicted repo keys.
	EvictPacks(ctx context.Context, max int) ([]string, error)
}

// SubChunk is one embedded slice of a pack chunk stored in a vector
// collection.
type SubChunk struct {
	ID        string
	Vector    []float64
	Preview   string
	Path      string
	StartLine int
	EndLine   int
	Kind      string
	Symbol    string
}

// Match is a query result ordered by descending similarity.
type Match struct {
	SubChunk
	Score float64
}

// VectorStore maintains one vector collection per repo pack.
type VectorStore interface {
	UpsertVectors(ctx context.Context, collection string, items []SubChunk) error
	QueryVectors(ctx context.Context, collection string, vector []float64, topK int) ([]Match, error)
	CollectionSize(ctx context.Context, collection string) (int, error)
	DropCollection(ctx context.Context, collection string) error
}

// HintStore caches generated mentor hints per issue with a TTL.
type HintStore interface {
	GetHints(ctx context.Context, key string) (hints.Bundle, bool, error)
	PutHints(ctx context.Context, key string, bundle hints.Bundle, ttl time.Duration) error
	// PurgeExpiredHints removes expired entries and reports how many were
	// dropped. Stores with native expiry may return 0 unconditionally.
	PurgeExpiredHints(ctx context.Context) (int, error)
}
