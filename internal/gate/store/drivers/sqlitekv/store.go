// Package sqlitekv implements the token cache on an embedded sqlite
// database. Meant for single-instance and development deployments where
// running redis is overkill; expiry is enforced on read and expired rows are
// swept by the housekeeping worker.
package sqlitekv

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/gatekeeper/internal/gate/domain"
	"github.com/aussiebroadwan/gatekeeper/internal/gate/store"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB

	// now is the cache clock; swapped out by tests to exercise TTL behaviour.
	now func() time.Time
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(context.Background(), `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const upsertEntry = `
INSERT INTO token_cache (cache_key, value, expires_at) VALUES (?, ?, ?)
ON CONFLICT (cache_key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`

// Save upserts the pair under both derived keys, refresh key first so a
// concurrent Lookup degrades to soft-expired rather than not-found.
func (s *Store) Save(ctx context.Context, pair domain.TokenPair) error {
	value, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("sqlitekv: marshal pair: %w", err)
	}

	now := s.now()
	refreshDeadline := now.Add(time.Duration(pair.RefreshExpiresIn) * time.Second).UnixMilli()
	accessDeadline := now.Add(time.Duration(pair.ExpiresIn) * time.Second).UnixMilli()

	if _, err := s.db.ExecContext(ctx, upsertEntry,
		store.RefreshKeyPrefix+pair.AccessToken, string(value), refreshDeadline); err != nil {
		return fmt.Errorf("sqlitekv: upsert refresh key: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, upsertEntry,
		store.AccessKeyPrefix+pair.AccessToken, string(value), accessDeadline); err != nil {
		return fmt.Errorf("sqlitekv: upsert access key: %w", err)
	}
	return nil
}

// Lookup reads the access key and falls through to the refresh key. Expired
// rows are treated as absent even before the sweeper removes them.
func (s *Store) Lookup(ctx context.Context, accessToken string) (*domain.TokenPair, bool, error) {
	nowMillis := s.now().UnixMilli()

	pair, err := s.get(ctx, store.AccessKeyPrefix+accessToken, nowMillis)
	if err == nil {
		return pair, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	pair, err = s.get(ctx, store.RefreshKeyPrefix+accessToken, nowMillis)
	if err == nil {
		return pair, true, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	return nil, true, store.ErrNotFound
}

func (s *Store) get(ctx context.Context, key string, nowMillis int64) (*domain.TokenPair, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM token_cache WHERE cache_key = ? AND expires_at > ?`,
		key, nowMillis,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitekv: select: %w", err)
	}

	var pair domain.TokenPair
	if err := json.Unmarshal([]byte(value), &pair); err != nil {
		return nil, fmt.Errorf("sqlitekv: unmarshal pair: %w", err)
	}
	return &pair, nil
}

// PurgeExpired deletes rows whose deadline has passed. Called periodically by
// the housekeeping worker; Lookup correctness never depends on it.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM token_cache WHERE expires_at <= ?`, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("sqlitekv: purge expired: %w", err)
	}
	return res.RowsAffected()
}
