// Package storage groups the stores that change together and the transaction
// boundary around them. A roster write, the preview it consumes and its audit
// record commit or roll back as one unit.
package storage

import (
	"context"
	"time"

	"facecards/internal/audit"
	previewmodels "facecards/internal/refresh/preview/models"
	"facecards/internal/roster/models"
)

// LeaderStore persists roster records.
type LeaderStore interface {
	ListActive(ctx context.Context) ([]*models.Leader, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Leader, error)
	FindByID(ctx context.Context, id string) (*models.Leader, error)
	FindActiveByTitle(ctx context.Context, title string) (*models.Leader, error)
	Create(ctx context.Context, leader *models.Leader) error
	Update(ctx context.Context, leader *models.Leader) error
	TouchVerified(ctx context.Context, ids []string, at time.Time) (int, error)
}

// PreviewStore persists pending refresh previews.
type PreviewStore interface {
	Save(ctx context.Context, record *previewmodels.Record) error
	Get(ctx context.Context, id string) (*previewmodels.Record, error)
	Take(ctx context.Context, id string) (*previewmodels.Record, error)
	Delete(ctx context.Context, id string) error
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// Stores is the set of stores visible inside a transaction.
type Stores struct {
	Leaders  LeaderStore
	Previews PreviewStore
	Audit    audit.Store
}

// Tx runs fn atomically. fn must use the ctx and stores it is given; writes
// through any other handle are outside the transaction.
type Tx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error
}

// Backend is a storage implementation: live stores for reads and a Tx for writes.
type Backend struct {
	Stores Stores
	Tx     Tx
}

const defaultTxTimeout = 5 * time.Second
