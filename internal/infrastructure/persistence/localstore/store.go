// Package localstore provides the durable key/value store backing cached
// wizard options, pending selections, completion flags and activity
// timestamps. Entries survive restarts; the store is the local analog of a
// browser's persistent storage.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aimarket/aimarket-go/internal/infrastructure/observability/logging"
	"github.com/aimarket/aimarket-go/internal/infrastructure/persistence/database"
)

// CacheEntry wraps every stored payload with the cache version it was written
// under. A version mismatch on read is treated as a miss and the stale entry
// is deleted, so bumping the configured version invalidates the whole
// namespace without a migration.
type CacheEntry struct {
	Version string          `json:"version"`
	Payload json.RawMessage `json:"payload"`
}

// Store is the SQL-backed implementation of the local cache store.
type Store struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewStore creates a new instance of the store.
func NewStore(db *database.DB, logger *logging.ChanneledLogger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

// Get retrieves the raw value for a key. Returns ok=false on a miss. A
// corrupt value is deleted and reported as a miss; the store self-heals
// rather than failing reads forever.
func (s *Store) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	const query = `SELECT value FROM local_state WHERE key = ?`

	start := time.Now()

	var raw string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			s.logger.LogCacheOperation("get", key, false, time.Since(start))
			return nil, false, nil
		}
		s.logger.Database().Error("Local store read failed", "error", err.Error(), "key", key)
		return nil, false, err
	}

	if !json.Valid([]byte(raw)) {
		s.logger.Cache().Warn("Corrupt local store entry purged", "key", key)
		_ = s.Delete(ctx, key)
		return nil, false, nil
	}

	s.logger.LogCacheOperation("get", key, true, time.Since(start))
	database.CheckAndLogSlowQuery(s.logger, query, time.Since(start))
	return json.RawMessage(raw), true, nil
}

// Set stores the raw value for a key, replacing any existing entry.
func (s *Store) Set(ctx context.Context, key string, value json.RawMessage) error {
	const query = `
		INSERT INTO local_state (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`

	start := time.Now()

	if _, err := s.db.ExecContext(ctx, query, key, string(value)); err != nil {
		s.logger.Database().Error("Local store write failed", "error", err.Error(), "key", key)
		return err
	}

	s.logger.LogCacheOperation("set", key, true, time.Since(start))
	database.CheckAndLogSlowQuery(s.logger, query, time.Since(start))
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	const query = `DELETE FROM local_state WHERE key = ?`

	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		s.logger.Database().Error("Local store delete failed", "error", err.Error(), "key", key)
		return err
	}
	return nil
}

// PurgePrefix removes every key under the given prefix.
func (s *Store) PurgePrefix(ctx context.Context, prefix string) error {
	const query = `DELETE FROM local_state WHERE key LIKE ? ESCAPE '\'`

	start := time.Now()
	pattern := escapeLike(prefix) + "%"

	res, err := s.db.ExecContext(ctx, query, pattern)
	if err != nil {
		s.logger.Database().Error("Local store purge failed", "error", err.Error(), "prefix", prefix)
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.logger.Cache().Info("Local store prefix purged", "prefix", prefix, "entries", n, "duration", time.Since(start))
	}
	return nil
}

// GetEntry retrieves a versioned cache entry and unmarshals its payload into
// dest. Entries written under a different version are purged and reported as
// a miss.
func (s *Store) GetEntry(ctx context.Context, key, version string, dest any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}

	var entry CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		s.logger.Cache().Warn("Unreadable cache entry purged", "key", key, "error", err.Error())
		_ = s.Delete(ctx, key)
		return false, nil
	}

	if entry.Version != version {
		s.logger.Cache().Info("Stale cache entry purged", "key", key, "stored", entry.Version, "expected", version)
		_ = s.Delete(ctx, key)
		return false, nil
	}

	if err := json.Unmarshal(entry.Payload, dest); err != nil {
		s.logger.Cache().Warn("Cache payload decode failed, entry purged", "key", key, "error", err.Error())
		_ = s.Delete(ctx, key)
		return false, nil
	}
	return true, nil
}

// SetEntry marshals the payload and stores it as a versioned cache entry.
func (s *Store) SetEntry(ctx context.Context, key, version string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode cache payload for %s: %w", key, err)
	}

	entry, err := json.Marshal(CacheEntry{Version: version, Payload: raw})
	if err != nil {
		return fmt.Errorf("failed to encode cache entry for %s: %w", key, err)
	}

	return s.Set(ctx, key, entry)
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
