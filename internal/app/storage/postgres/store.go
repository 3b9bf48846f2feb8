// Package postgres persists packs and hints in PostgreSQL so a restarted
// instance can serve warm caches.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/firstfix/starterkit/internal/app/domain/hints"
	"github.com/firstfix/starterkit/internal/app/domain/repopack"
	"github.com/firstfix/starterkit/internal/app/storage"
)

// Store implements PackStore and HintStore backed by PostgreSQL. The vector
// index stays in memory; only cache-warming state is persisted.
type Store struct {
	db *sql.DB
}

var _ storage.PackStore = (*Store)(nil)
var _ storage.HintStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the backing tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS starter_packs (
			repo_key   TEXT PRIMARY KEY,
			sha        TEXT NOT NULL,
			issue      JSONB NOT NULL,
			chunks     JSONB NOT NULL,
			built_at   TIMESTAMPTZ NOT NULL,
			last_used  TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS starter_hints (
			cache_key  TEXT PRIMARY KEY,
			bundle     JSONB NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		);
	`)
	return err
}

// --- PackStore ---------------------------------------------------------------

func (s *Store) SavePack(ctx context.Context, pack repopack.Pack) error {
	issueJSON, err := json.Marshal(pack.Issue)
	if err != nil {
		return err
	}
	chunksJSON, err := json.Marshal(pack.Chunks)
	if err != nil {
		return err
	}
	builtAt := pack.BuiltAt
	if builtAt.IsZero() {
		builtAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO starter_packs (repo_key, sha, issue, chunks, built_at, last_used)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (repo_key) DO UPDATE
		SET sha = EXCLUDED.sha, issue = EXCLUDED.issue, chunks = EXCLUDED.chunks,
		    built_at = EXCLUDED.built_at, last_used = EXCLUDED.last_used
	`, pack.RepoKey, pack.SHA, issueJSON, chunksJSON, builtAt)
	return err
}

func (s *Store) GetPack(ctx context.Context, repoKey string) (repopack.Pack, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE starter_packs SET last_used = NOW()
		WHERE repo_key = $1
		RETURNING repo_key, sha, issue, chunks, built_at
	`, repoKey)

	var (
		pack      repopack.Pack
		issueRaw  []byte
		chunksRaw []byte
	)
	if err := row.Scan(&pack.RepoKey, &pack.SHA, &issueRaw, &chunksRaw, &pack.BuiltAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repopack.Pack{}, storage.ErrNotFound
		}
		return repopack.Pack{}, err
	}

	if err := json.Unmarshal(issueRaw, &pack.Issue); err != nil {
		return repopack.Pack{}, err
	}
	if err := json.Unmarshal(chunksRaw, &pack.Chunks); err != nil {
		return repopack.Pack{}, err
	}
	return pack, nil
}

func (s *Store) EvictPacks(ctx context.Context, max int) ([]string, error) {
	if max < 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		DELETE FROM starter_packs
		WHERE repo_key IN (
			SELECT repo_key FROM starter_packs
			ORDER BY last_used DESC
			OFFSET $1
		)
		RETURNING repo_key
	`, max)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var evicted []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		evicted = append(evicted, key)
	}
	return evicted, rows.Err()
}

// --- HintStore ---------------------------------------------------------------

func (s *Store) GetHints(ctx context.Context, key string) (hints.Bundle, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT bundle FROM starter_hints
		WHERE cache_key = $1 AND expires_at > NOW()
	`, key)

	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return hints.Bundle{}, false, nil
		}
		return hints.Bundle{}, false, err
	}

	var bundle hints.Bundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return hints.Bundle{}, false, err
	}
	return bundle, true, nil
}

func (s *Store) PutHints(ctx context.Context, key string, bundle hints.Bundle, ttl time.Duration) error {
	raw, err := json.Marshal(bundle)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO starter_hints (cache_key, bundle, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (cache_key) DO UPDATE
		SET bundle = EXCLUDED.bundle, expires_at = EXCLUDED.expires_at
	`, key, raw, time.Now().UTC().Add(ttl))
	return err
}

func (s *Store) PurgeExpiredHints(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM starter_hints WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	purged, _ := result.RowsAffected()
	return int(purged), nil
}
