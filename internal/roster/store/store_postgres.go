package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"facecards/internal/roster/models"
	"facecards/pkg/platform/sentinel"
	txcontext "facecards/pkg/platform/tx"
)

// PostgresStore persists leaders in PostgreSQL. Calls join the transaction
// carried by the context when there is one.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const leaderColumns = `id, name, title, photo_url, category, branch, organization, is_active, last_verified, created_at, updated_at`

// category rank mirrors models.Category.Rank so both stores list in the same order.
const orderBy = ` ORDER BY CASE category
	WHEN 'MILITARY_4STAR' THEN 0
	WHEN 'MILITARY_3STAR' THEN 1
	WHEN 'MAJOR_COMMAND' THEN 2
	WHEN 'SERVICE_SECRETARY' THEN 3
	WHEN 'CIVILIAN_SES' THEN 4
	WHEN 'APPOINTEE' THEN 5
	WHEN 'SECRETARIAT' THEN 6
	ELSE 7 END, name COLLATE "C", id`

func (s *PostgresStore) ListActive(ctx context.Context) ([]*models.Leader, error) {
	return s.List(ctx, models.ListFilter{})
}

func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter) ([]*models.Leader, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if !filter.IncludeInactive {
		where = append(where, "is_active")
	}
	if filter.Category != "" {
		where = append(where, "category = "+arg(string(filter.Category)))
	}
	if filter.Branch != "" {
		where = append(where, "branch = "+arg(string(filter.Branch)))
	}
	if filter.Organization != "" {
		where = append(where, "lower(organization) = lower("+arg(filter.Organization)+")")
	}
	if filter.Search != "" {
		p := arg("%" + escapeLike(strings.ToLower(filter.Search)) + "%")
		where = append(where, "(lower(name) LIKE "+p+" OR lower(title) LIKE "+p+")")
	}

	query := `SELECT ` + leaderColumns + ` FROM leaders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += orderBy

	rows, err := txcontext.ExecutorFor(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list leaders: %w", err)
	}
	defer rows.Close()

	var out []*models.Leader
	for rows.Next() {
		l, err := scanLeader(rows)
		if err != nil {
			return nil, fmt.Errorf("scan leader: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaders: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.Leader, error) {
	row := txcontext.ExecutorFor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+leaderColumns+` FROM leaders WHERE id = $1`, id)
	l, err := scanLeader(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find leader by id: %w", err)
	}
	return l, nil
}

func (s *PostgresStore) FindActiveByTitle(ctx context.Context, title string) (*models.Leader, error) {
	row := txcontext.ExecutorFor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+leaderColumns+` FROM leaders
		 WHERE is_active AND lower(trim(title)) = lower(trim($1))
		 ORDER BY created_at, id
		 LIMIT 1
		 FOR UPDATE`, title)
	l, err := scanLeader(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find leader by title: %w", err)
	}
	return l, nil
}

func (s *PostgresStore) Create(ctx context.Context, l *models.Leader) error {
	_, err := txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO leaders (`+leaderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		l.ID, l.Name, l.Title, l.PhotoURL, string(l.Category), branchValue(l.Branch),
		l.Organization, l.IsActive(), l.LastVerified, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert leader: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, l *models.Leader) error {
	res, err := txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx, `
		UPDATE leaders
		SET name = $2, title = $3, photo_url = $4, category = $5, branch = $6,
		    organization = $7, is_active = $8, last_verified = $9, updated_at = $10
		WHERE id = $1`,
		l.ID, l.Name, l.Title, l.PhotoURL, string(l.Category), branchValue(l.Branch),
		l.Organization, l.IsActive(), l.LastVerified, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update leader: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update leader rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) TouchVerified(ctx context.Context, ids []string, at time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := txcontext.ExecutorFor(ctx, s.db).ExecContext(ctx, `
		UPDATE leaders SET last_verified = $2, updated_at = $2
		WHERE id::text = ANY($1::text[])`,
		pq.Array(ids), at,
	)
	if err != nil {
		return 0, fmt.Errorf("touch leaders: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("touch leaders rows affected: %w", err)
	}
	return int(n), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLeader(row scanner) (*models.Leader, error) {
	var (
		l        models.Leader
		category string
		branch   sql.NullString
		active   bool
	)
	if err := row.Scan(&l.ID, &l.Name, &l.Title, &l.PhotoURL, &category, &branch,
		&l.Organization, &active, &l.LastVerified, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.Category = models.Category(category)
	if branch.Valid {
		b := models.Branch(branch.String)
		l.Branch = &b
	}
	l.Status = models.LeaderStatusInactive
	if active {
		l.Status = models.LeaderStatusActive
	}
	return &l, nil
}

func branchValue(b *models.Branch) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*b), Valid: true}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	return errors.As(err, &pgErr) && pgErr.SQLState() == "23505"
}
