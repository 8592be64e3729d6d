package tx

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithTxNilKeepsContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithTx(ctx, nil))

	_, ok := From(ctx)
	assert.False(t, ok)
}

func TestExecutorForFallsBackToDB(t *testing.T) {
	db := &sql.DB{}
	exec := ExecutorFor(context.Background(), db)
	assert.Same(t, db, exec)

	tx := &sql.Tx{}
	exec = ExecutorFor(WithTx(context.Background(), tx), db)
	assert.Same(t, tx, exec)
}

func TestRunJoinsCarriedTransaction(t *testing.T) {
	outer := &sql.Tx{}
	ctx := WithTx(context.Background(), outer)

	var seen *sql.Tx
	err := Run(ctx, nil, func(ctx context.Context) error {
		seen, _ = From(ctx)
		return nil
	})
	assert.NoError(t, err)
	assert.Same(t, outer, seen, "a nested Run reuses the outer transaction without touching db")
}
