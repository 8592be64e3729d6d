package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"facecards/internal/refresh/preview/models"
	"facecards/pkg/platform/sentinel"
	txcontext "facecards/pkg/platform/tx"
)

// PostgresStore keeps pending previews in the pending_previews table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, r *models.Record) error {
	_, err := txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO pending_previews (id, payload, created_at, expires_at)
		VALUES ($1, $2, $3, $4)`,
		r.ID, r.Payload, r.CreatedAt, r.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert preview: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Record, error) {
	row := txcontext.ExecutorFor(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, payload, created_at, expires_at FROM pending_previews WHERE id = $1`, id)
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find preview: %w", err)
	}
	return r, nil
}

// Take deletes and returns the row in one statement. Concurrent applies of the
// same preview serialize on the row lock and only one sees it.
func (s *PostgresStore) Take(ctx context.Context, id string) (*models.Record, error) {
	row := txcontext.ExecutorFor(ctx, s.db).QueryRowContext(ctx, `
		DELETE FROM pending_previews WHERE id = $1
		RETURNING id, payload, created_at, expires_at`, id)
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("take preview: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM pending_previews WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete preview: %w", err)
	}
	return nil
}

func (s *PostgresStore) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM pending_previews WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge expired previews: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge expired previews rows affected: %w", err)
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.Record, error) {
	var r models.Record
	if err := row.Scan(&r.ID, &r.Payload, &r.CreatedAt, &r.ExpiresAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	return errors.As(err, &pgErr) && pgErr.SQLState() == "23505"
}
