package postgres

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/V4T54L/visitor-ingest/internal/adapter/metrics"
)

// AdminKeySchema creates the admin API key table. Keys are stored as
// hex-encoded SHA-256 digests.
const AdminKeySchema = `
CREATE TABLE IF NOT EXISTS admin_api_keys (
	key_hash   TEXT PRIMARY KEY,
	label      TEXT NOT NULL DEFAULT '',
	is_active  BOOLEAN NOT NULL DEFAULT true,
	expires_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const validKeyQuery = `SELECT EXISTS(
	SELECT 1 FROM admin_api_keys
	WHERE key_hash = $1 AND is_active AND (expires_at IS NULL OR expires_at > NOW())
)`

type cacheEntry struct {
	isValid   bool
	expiresAt time.Time
}

// APIKeyRepository implements domain.APIKeyRepository for the admin server
// with PostgreSQL as the source of truth and a TTL cache keyed by digest.
type APIKeyRepository struct {
	db       *sql.DB
	logger   *slog.Logger
	cache    map[string]cacheEntry
	mu       sync.RWMutex
	cacheTTL time.Duration
	metrics  *metrics.IngestMetrics
	now      func() time.Time
}

// NewAPIKeyRepository creates a new PostgreSQL admin key repository. m may be nil.
func NewAPIKeyRepository(db *sql.DB, logger *slog.Logger, cacheTTL time.Duration, m *metrics.IngestMetrics) *APIKeyRepository {
	return &APIKeyRepository{
		db:       db,
		logger:   logger.With("component", "apikey_repository"),
		cache:    make(map[string]cacheEntry),
		cacheTTL: cacheTTL,
		metrics:  m,
		now:      time.Now,
	}
}

// EnsureSchema creates the admin key table if it does not exist.
func (r *APIKeyRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, AdminKeySchema); err != nil {
		return fmt.Errorf("failed to create admin_api_keys table: %w", err)
	}
	return nil
}

// HashKey returns the digest stored for key.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// IsValid reports whether key is an active, unexpired admin key. Results
// are cached for the configured TTL; lookup errors are not cached.
func (r *APIKeyRepository) IsValid(ctx context.Context, key string) (bool, error) {
	digest := HashKey(key)

	if valid, ok := r.cached(digest); ok {
		if r.metrics != nil {
			r.metrics.APIKeyCacheHits.Inc()
		}
		return valid, nil
	}
	if r.metrics != nil {
		r.metrics.APIKeyCacheMisses.Inc()
	}

	var valid bool
	if err := r.db.QueryRowContext(ctx, validKeyQuery, digest).Scan(&valid); err != nil {
		r.logger.Error("failed to validate admin key", "error", err)
		return false, fmt.Errorf("failed to query admin key: %w", err)
	}

	r.mu.Lock()
	r.cache[digest] = cacheEntry{isValid: valid, expiresAt: r.now().Add(r.cacheTTL)}
	r.mu.Unlock()

	return valid, nil
}

func (r *APIKeyRepository) cached(digest string) (bool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, found := r.cache[digest]
	if !found || !r.now().Before(entry.expiresAt) {
		return false, false
	}
	return entry.isValid, true
}
