package storage

import (
	"context"

	"facecards/internal/audit"
)

type auditSink struct {
	tx Tx
}

// AuditSink returns an audit.Store that appends each event in its own
// transaction, for events that do not belong to a roster write.
func AuditSink(tx Tx) audit.Store {
	return auditSink{tx: tx}
}

func (a auditSink) Append(ctx context.Context, event audit.Event) error {
	return a.tx.RunInTx(ctx, func(ctx context.Context, stores Stores) error {
		return stores.Audit.Append(ctx, event)
	})
}
