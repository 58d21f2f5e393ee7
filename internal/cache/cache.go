// Package cache provides a durable TTL cache backed by LevelDB. Entries
// survive process restarts and are shared by every component that caches
// derived data (official updates, social feeds, geocoding, AI analysis).
//
// Expiry is lazy: an entry past its deadline is treated as absent at read
// time rather than evicted by a background thread. Caching is best-effort
// throughout — read failures degrade to misses and write failures are logged
// and swallowed, never surfaced to callers.
package cache

import (
	"encoding/json"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/couchcryptid/disaster-response-api/internal/observability"
)

// keyPrefix namespaces cache rows so the record store can share the same DB.
const keyPrefix = "cache:"

// envelope wraps a cached payload with its expiry deadline.
type envelope struct {
	Value     json.RawMessage `json:"value"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Store is a TTL cache over a shared LevelDB handle.
type Store struct {
	db      *leveldb.DB
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewStore creates a cache on the given DB. Pass a fake clock in tests to
// exercise expiry without sleeping.
func NewStore(db *leveldb.DB, clk clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Store {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Store{db: db, clock: clk, logger: logger, metrics: metrics}
}

// Get unmarshals the cached value for key into out and reports whether a
// live entry was found. Storage errors and expired, corrupt, or
// shape-incompatible entries all read as misses.
func (s *Store) Get(key string, out any) bool {
	raw, err := s.db.Get([]byte(keyPrefix+key), nil)
	if err != nil {
		if !errors.Is(err, leveldb.ErrNotFound) {
			s.logger.Warn("cache read failed, treating as miss", "key", key, "error", err)
		}
		s.metrics.CacheLookups.WithLabelValues("miss").Inc()
		return false
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// Entries written by an older pipeline shape decode as a miss.
		s.metrics.CacheLookups.WithLabelValues("miss").Inc()
		return false
	}
	if s.clock.Now().After(env.ExpiresAt) {
		s.metrics.CacheLookups.WithLabelValues("miss").Inc()
		return false
	}
	if err := json.Unmarshal(env.Value, out); err != nil {
		s.metrics.CacheLookups.WithLabelValues("miss").Inc()
		return false
	}

	s.metrics.CacheLookups.WithLabelValues("hit").Inc()
	return true
}

// Set stores value under key with the given TTL, overwriting any previous
// entry. Failures are logged and swallowed.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("cache value marshal failed", "key", key, "error", err)
		s.metrics.CacheWriteErrors.Inc()
		return
	}

	env, err := json.Marshal(envelope{Value: data, ExpiresAt: s.clock.Now().Add(ttl)})
	if err != nil {
		s.metrics.CacheWriteErrors.Inc()
		return
	}

	if err := s.db.Put([]byte(keyPrefix+key), env, nil); err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", err)
		s.metrics.CacheWriteErrors.Inc()
	}
}

// Invalidate removes every entry whose key matches the glob pattern, where
// '*' matches any sequence of characters. Matching zero entries is a no-op.
// Returns the number of entries removed.
func (s *Store) Invalidate(pattern string) int {
	re := compileGlob(pattern)

	it := s.db.NewIterator(util.BytesPrefix([]byte(keyPrefix)), nil)
	defer it.Release()

	batch := new(leveldb.Batch)
	removed := 0
	for it.Next() {
		key := strings.TrimPrefix(string(it.Key()), keyPrefix)
		if re.MatchString(key) {
			batch.Delete(append([]byte(nil), it.Key()...))
			removed++
		}
	}
	if err := it.Error(); err != nil {
		s.logger.Warn("cache invalidation scan failed", "pattern", pattern, "error", err)
		return 0
	}
	if removed == 0 {
		return 0
	}
	if err := s.db.Write(batch, nil); err != nil {
		s.logger.Warn("cache invalidation write failed", "pattern", pattern, "error", err)
		return 0
	}

	s.logger.Debug("cache entries invalidated", "pattern", pattern, "count", removed)
	return removed
}

// compileGlob translates a '*'-glob into an anchored regexp.
func compileGlob(pattern string) *regexp.Regexp {
	return regexp.MustCompile("^" + strings.ReplaceAll(regexp.QuoteMeta(pattern), `\*`, ".*") + "$")
}
