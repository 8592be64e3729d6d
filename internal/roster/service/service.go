// Package service implements the roster CMS: listing, editing and soft
// deletion of leader records.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"facecards/internal/audit"
	"facecards/internal/refresh/changeset"
	"facecards/internal/roster/models"
	"facecards/internal/storage"
	"facecards/pkg/platform/sentinel"
	"facecards/pkg/requestcontext"

	dErrors "facecards/pkg/domain-errors"
)

// Service manages leader records on behalf of admins and the public roster.
type Service struct {
	tx      storage.Tx
	leaders storage.LeaderStore
	logger  *slog.Logger
	newID   func() string
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithIDGenerator overrides how new leader IDs are minted.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

func New(backend storage.Backend, opts ...Option) *Service {
	s := &Service{
		tx:      backend.Tx,
		leaders: backend.Stores.Leaders,
		logger:  slog.Default(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns records matching filter in roster order.
func (s *Service) List(ctx context.Context, filter models.ListFilter) ([]*models.Leader, error) {
	leaders, err := s.leaders.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list leaders")
	}
	return leaders, nil
}

// ListPublic returns active records only, whatever the filter asks for.
func (s *Service) ListPublic(ctx context.Context, filter models.ListFilter) ([]*models.Leader, error) {
	filter.IncludeInactive = false
	filter.Search = ""
	return s.List(ctx, filter)
}

func (s *Service) Get(ctx context.Context, id string) (*models.Leader, error) {
	if !validID(id) {
		return nil, errLeaderNotFound()
	}
	leader, err := s.leaders.FindByID(ctx, id)
	if err != nil {
		return nil, wrapLeaderErr(err, "failed to load leader")
	}
	return leader, nil
}

// Create adds a record. active=false creates it already soft-deleted.
func (s *Service) Create(ctx context.Context, cand models.CandidateLeader, active bool) (*models.Leader, error) {
	now := requestcontext.Now(ctx)
	leader, err := models.NewLeader(s.newID(), cand, now)
	if err != nil {
		return nil, err
	}
	if !active {
		leader.Deactivate(now)
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context, stores storage.Stores) error {
		if err := stores.Leaders.Create(ctx, leader); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "leader already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create leader")
		}
		return stores.Audit.Append(ctx, audit.Stamp(ctx, audit.Event{
			Action:  audit.ActionLeaderCreated,
			Subject: leader.ID,
			Details: map[string]string{"name": leader.Name, "title": leader.Title},
		}))
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "leader created",
		"request_id", requestcontext.RequestID(ctx),
		"leader_id", leader.ID,
	)
	return leader, nil
}

// Update applies a partial edit. Only whitelisted fields are written; the
// rest are ignored.
func (s *Service) Update(ctx context.Context, id string, changes []changeset.FieldChange) (*models.Leader, error) {
	if !validID(id) {
		return nil, errLeaderNotFound()
	}
	now := requestcontext.Now(ctx)

	var updated *models.Leader
	err := s.tx.RunInTx(ctx, func(ctx context.Context, stores storage.Stores) error {
		leader, err := stores.Leaders.FindByID(ctx, id)
		if err != nil {
			return wrapLeaderErr(err, "failed to load leader")
		}
		applied, err := changeset.ApplyChanges(leader, changes, now)
		if err != nil {
			return err
		}
		updated = leader
		if applied == 0 {
			return nil
		}
		if err := stores.Leaders.Update(ctx, leader); err != nil {
			return wrapLeaderErr(err, "failed to update leader")
		}
		fields := make([]string, 0, len(changes))
		for _, c := range changes {
			if changeset.IsMutable(c.Field) {
				fields = append(fields, c.Field)
			}
		}
		return stores.Audit.Append(ctx, audit.Stamp(ctx, audit.Event{
			Action:  audit.ActionLeaderUpdated,
			Subject: leader.ID,
			Details: map[string]string{"fields": strings.Join(fields, ",")},
		}))
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Deactivate soft-deletes a record. Deleting an inactive record succeeds.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	if !validID(id) {
		return errLeaderNotFound()
	}
	now := requestcontext.Now(ctx)

	return s.tx.RunInTx(ctx, func(ctx context.Context, stores storage.Stores) error {
		leader, err := stores.Leaders.FindByID(ctx, id)
		if err != nil {
			return wrapLeaderErr(err, "failed to load leader")
		}
		if !leader.IsActive() {
			return nil
		}
		leader.Deactivate(now)
		if err := stores.Leaders.Update(ctx, leader); err != nil {
			return wrapLeaderErr(err, "failed to deactivate leader")
		}
		return stores.Audit.Append(ctx, audit.Stamp(ctx, audit.Event{
			Action:  audit.ActionLeaderDeactivated,
			Subject: leader.ID,
			Details: map[string]string{"name": leader.Name},
		}))
	})
}

// validID rejects ids that cannot name a record, so they read as not found
// instead of reaching the database.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func errLeaderNotFound() error {
	return dErrors.New(dErrors.CodeNotFound, "leader not found")
}

func wrapLeaderErr(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return errLeaderNotFound()
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
