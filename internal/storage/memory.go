package storage

import (
	"context"
	"sync"
	"time"

	auditstore "facecards/internal/audit/store"
	previewstore "facecards/internal/refresh/preview/store"
	rosterstore "facecards/internal/roster/store"

	dErrors "facecards/pkg/domain-errors"
)

// MemoryBackend holds the in-memory stores. Every write must go through
// RunInTx: it clones all stores, runs fn against the clones and swaps them in
// only when fn succeeds, so a failed fn leaves no trace.
type MemoryBackend struct {
	mu       sync.Mutex
	leaders  *rosterstore.InMemoryStore
	previews *previewstore.InMemoryStore
	audit    *auditstore.InMemoryStore
	timeout  time.Duration
}

// NewMemory returns an empty in-memory backend.
func NewMemory() (*MemoryBackend, Backend) {
	m := &MemoryBackend{
		leaders:  rosterstore.NewInMemoryStore(),
		previews: previewstore.NewInMemoryStore(),
		audit:    auditstore.NewInMemoryStore(),
		timeout:  defaultTxTimeout,
	}
	return m, Backend{Stores: m.live(), Tx: m}
}

func (m *MemoryBackend) live() Stores {
	return Stores{Leaders: m.leaders, Previews: m.previews, Audit: m.audit}
}

// Audit exposes the event log for tests and in-memory deployments.
func (m *MemoryBackend) Audit() *auditstore.InMemoryStore {
	return m.audit
}

func (m *MemoryBackend) RunInTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	leaders := m.leaders.Clone()
	previews := m.previews.Clone()
	events := m.audit.Clone()
	if err := fn(ctx, Stores{Leaders: leaders, Previews: previews, Audit: events}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: deadline exceeded")
	}

	m.leaders.ReplaceWith(leaders)
	m.previews.ReplaceWith(previews)
	m.audit.ReplaceWith(events)
	return nil
}
