package revocation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresList persists revoked jtis when no Redis is configured.
type PostgresList struct {
	db    *sql.DB
	clock Clock
}

// PostgresOption configures a PostgresList.
type PostgresOption func(*PostgresList)

// WithPostgresClock sets the clock function for testability.
func WithPostgresClock(clock Clock) PostgresOption {
	return func(l *PostgresList) {
		if clock != nil {
			l.clock = clock
		}
	}
}

func NewPostgresList(db *sql.DB, opts ...PostgresOption) *PostgresList {
	l := &PostgresList{db: db, clock: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RevokeToken upserts jti with its expiry and drops rows that have lapsed.
func (l *PostgresList) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	now := l.clock()
	query := `
		INSERT INTO session_revocations (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO UPDATE SET
			expires_at = EXCLUDED.expires_at
	`
	if _, err := l.db.ExecContext(ctx, query, jti, now.Add(ttl)); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if _, err := l.db.ExecContext(ctx, `DELETE FROM session_revocations WHERE expires_at < $1`, now); err != nil {
		return fmt.Errorf("prune session revocations: %w", err)
	}
	return nil
}

// IsTokenRevoked reports whether jti is revoked and not yet expired.
func (l *PostgresList) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	var expiresAt time.Time
	err := l.db.QueryRowContext(ctx, `SELECT expires_at FROM session_revocations WHERE jti = $1`, jti).Scan(&expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check session revocation: %w", err)
	}
	return !l.clock().After(expiresAt), nil
}
