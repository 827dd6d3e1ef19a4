// Package store is the direct-SQL fallback for profile provisioning. It is
// only reached when every profile/registration RPC a backend exposes has
// been exhausted; it writes the same rows those RPCs would have written.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"mesa/internal/onboarding/models"
)

// ErrNotConfigured is returned when no database pool was wired in.
var ErrNotConfigured = errors.New("fallback store not configured")

// Store writes onboarding profiles straight into PostgreSQL.
type Store struct {
	db *sql.DB
}

// New constructs the fallback store. db may be nil; all operations then
// return ErrNotConfigured.
func New(db *sql.DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db}
}

// EnsureUserProfile upserts the base profile row keyed by the identity
// user id. Safe to call repeatedly.
func (s *Store) EnsureUserProfile(ctx context.Context, userID, email, phone string) error {
	if s == nil {
		return ErrNotConfigured
	}
	query := `
		INSERT INTO user_profiles (user_id, email, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET email = EXCLUDED.email, phone = EXCLUDED.phone, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, userID, email, phone, time.Now().UTC()); err != nil {
		return fmt.Errorf("ensure user profile: %w", err)
	}
	return nil
}

// UpsertDeliveryAgentProfile writes the agent's domain row in pending
// status, replacing any earlier attempt for the same user.
func (s *Store) UpsertDeliveryAgentProfile(ctx context.Context, userID string, p models.RegisterDeliveryAgentPayload) error {
	if s == nil {
		return ErrNotConfigured
	}
	query := `
		INSERT INTO delivery_agent_profiles
			(user_id, first_name, last_name, email, phone, city, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (user_id) DO UPDATE
		SET first_name = EXCLUDED.first_name,
		    last_name  = EXCLUDED.last_name,
		    email      = EXCLUDED.email,
		    phone      = EXCLUDED.phone,
		    city       = EXCLUDED.city,
		    status     = EXCLUDED.status,
		    updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		userID,
		p.FirstName,
		p.LastName,
		p.Email,
		p.Phone,
		p.City,
		models.StatusPending,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert delivery agent profile: %w", err)
	}
	return nil
}

// EnsureAccount inserts the operational account row if missing. Duplicate
// inserts from concurrent retries are not an error.
func (s *Store) EnsureAccount(ctx context.Context, userID string, kind models.EntityKind) error {
	if s == nil {
		return ErrNotConfigured
	}
	query := `
		INSERT INTO accounts (user_id, account_type, status, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, account_type) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, userID, string(kind), models.StatusPending, time.Now().UTC()); err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("ensure account: %w", err)
	}
	return nil
}

// Health pings the underlying pool.
func (s *Store) Health(ctx context.Context) error {
	if s == nil {
		return ErrNotConfigured
	}
	return s.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
