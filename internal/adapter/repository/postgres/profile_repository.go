package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lib/pq"

	"github.com/V4T54L/visitor-ingest/internal/domain"
)

const profilesTempTable = "visitor_profiles_import"

// ProfileSchema creates the visitor profile sink table.
const ProfileSchema = `
CREATE TABLE IF NOT EXISTS visitor_profiles (
	session_id TEXT PRIMARY KEY,
	name       TEXT,
	phone      TEXT,
	email      TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);`

// mergeProfilesQuery folds the staged rows into visitor_profiles. NULL never
// overwrites a stored contact field; the row spans the earliest and latest
// submission seen.
const mergeProfilesQuery = `
	INSERT INTO visitor_profiles (session_id, name, phone, email, created_at, updated_at)
	SELECT session_id, name, phone, email, created_at, updated_at FROM ` + profilesTempTable + `
	ON CONFLICT (session_id) DO UPDATE SET
		name = COALESCE(EXCLUDED.name, visitor_profiles.name),
		phone = COALESCE(EXCLUDED.phone, visitor_profiles.phone),
		email = COALESCE(EXCLUDED.email, visitor_profiles.email),
		created_at = LEAST(visitor_profiles.created_at, EXCLUDED.created_at),
		updated_at = GREATEST(visitor_profiles.updated_at, EXCLUDED.updated_at);
`

// ProfileRepository implements domain.ProfileRepository for PostgreSQL.
type ProfileRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewProfileRepository creates a new PostgreSQL profile repository.
func NewProfileRepository(db *sql.DB, logger *slog.Logger) *ProfileRepository {
	return &ProfileRepository{db: db, logger: logger.With("component", "profile_repository")}
}

// EnsureSchema creates the profile table if it does not exist.
func (r *ProfileRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, ProfileSchema); err != nil {
		return fmt.Errorf("failed to create visitor_profiles table: %w", err)
	}
	return nil
}

// UpsertProfiles stages profiles with COPY and merges them into
// visitor_profiles. NULL columns never overwrite stored values. Session IDs
// within one call must be distinct.
func (r *ProfileRepository) UpsertProfiles(ctx context.Context, profiles []domain.VisitorProfile) error {
	if len(profiles) == 0 {
		return nil
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer txn.Rollback() // no-op after Commit

	_, err = txn.ExecContext(ctx, `CREATE TEMP TABLE `+profilesTempTable+` (LIKE visitor_profiles INCLUDING DEFAULTS) ON COMMIT DROP;`)
	if err != nil {
		return fmt.Errorf("failed to create staging table: %w", err)
	}

	stmt, err := txn.PrepareContext(ctx, pq.CopyIn(profilesTempTable, "session_id", "name", "phone", "email", "created_at", "updated_at"))
	if err != nil {
		return err
	}

	for _, p := range profiles {
		_, err = stmt.ExecContext(ctx, p.SessionID, nullable(p.Name), nullable(p.Phone), nullable(p.Email), p.CreatedAt, p.UpdatedAt)
		if err != nil {
			_ = stmt.Close()
			return fmt.Errorf("failed to stage profile %s: %w", p.SessionID, err)
		}
	}

	// Flush the COPY buffer.
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return err
	}
	if err := stmt.Close(); err != nil {
		return err
	}

	if _, err := txn.ExecContext(ctx, mergeProfilesQuery); err != nil {
		return fmt.Errorf("failed to merge visitor profiles: %w", err)
	}

	if err := txn.Commit(); err != nil {
		return err
	}
	r.logger.Debug("upserted visitor profiles", "count", len(profiles))
	return nil
}

func nullable(s *string) sql.NullString {
	if s == nil || strings.TrimSpace(*s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
