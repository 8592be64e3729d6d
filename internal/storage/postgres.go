package storage

import (
	"context"
	"database/sql"
	"time"

	auditstore "facecards/internal/audit/store"
	previewstore "facecards/internal/refresh/preview/store"
	rosterstore "facecards/internal/roster/store"
	txcontext "facecards/pkg/platform/tx"

	dErrors "facecards/pkg/domain-errors"
)

// PostgresBackend runs transactions on a *sql.DB. The stores pick the
// transaction up from the context.
type PostgresBackend struct {
	db      *sql.DB
	stores  Stores
	timeout time.Duration
}

// NewPostgres wires the PostgreSQL stores. The returned outbox store is the
// audit relay's source.
func NewPostgres(db *sql.DB) (*PostgresBackend, Backend, *auditstore.PostgresStore) {
	outbox := auditstore.NewPostgres(db)
	p := &PostgresBackend{
		db: db,
		stores: Stores{
			Leaders:  rosterstore.NewPostgres(db),
			Previews: previewstore.NewPostgres(db),
			Audit:    outbox,
		},
		timeout: defaultTxTimeout,
	}
	return p, Backend{Stores: p.stores, Tx: p}, outbox
}

func (p *PostgresBackend) RunInTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	return txcontext.Run(ctx, p.db, func(ctx context.Context) error {
		return fn(ctx, p.stores)
	})
}
