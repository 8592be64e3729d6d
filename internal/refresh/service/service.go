// Package service runs the refresh workflow: fetch, diff, preview, apply.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"facecards/internal/audit"
	"facecards/internal/refresh/changeset"
	"facecards/internal/refresh/diff"
	"facecards/internal/refresh/fetcher"
	refreshmetrics "facecards/internal/refresh/metrics"
	"facecards/internal/refresh/preview"
	"facecards/internal/roster/models"
	"facecards/internal/storage"
	"facecards/pkg/platform/sentinel"
	"facecards/pkg/requestcontext"

	dErrors "facecards/pkg/domain-errors"
)

var tracer = otel.Tracer("facecards/internal/refresh/service")

const (
	previewFlight = "preview"

	defaultGenerateTimeout = 5 * time.Minute
)

// Fetcher retrieves the fresh roster.
type Fetcher interface {
	FetchPositions(ctx context.Context, positions []string) (*fetcher.Result, error)
}

// Previews binds changesets to tokens. *preview.Service implements it.
type Previews interface {
	Issue(ctx context.Context, cs changeset.Changeset) (*preview.Issued, error)
	Verify(token string) (string, error)
	Resolve(ctx context.Context, token string) (changeset.Changeset, time.Time, error)
	Consume(ctx context.Context, stores storage.Stores, ref string) (changeset.Changeset, error)
	PurgeIfUnusable(ctx context.Context, ref string)
}

// PreviewResult is a generated or inspected preview.
type PreviewResult struct {
	Changeset changeset.Changeset
	Token     string
	ExpiresAt time.Time
	// FailedPositions could not be looked up; their holders show as removals.
	FailedPositions []string
}

// Service orchestrates preview generation and apply.
type Service struct {
	tx        storage.Tx
	leaders   storage.LeaderStore
	fetcher   Fetcher
	previews  Previews
	positions []string
	logger    *slog.Logger
	metrics   *refreshmetrics.Metrics
	audit     *audit.Publisher
	newID     func() string
	flight    singleflight.Group

	generateTimeout time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *refreshmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithIDGenerator overrides how new leader IDs are minted.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// WithGenerateTimeout bounds one shared preview generation.
func WithGenerateTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.generateTimeout = d
		}
	}
}

func New(backend storage.Backend, f Fetcher, previews Previews, positions []string, opts ...Option) (*Service, error) {
	if backend.Tx == nil || backend.Stores.Leaders == nil {
		return nil, errors.New("storage backend is required")
	}
	if f == nil {
		return nil, errors.New("fetcher is required")
	}
	if previews == nil {
		return nil, errors.New("preview service is required")
	}
	s := &Service{
		tx:        backend.Tx,
		leaders:   backend.Stores.Leaders,
		fetcher:   f,
		previews:  previews,
		positions: positions,
		logger:    slog.Default(),
		newID:     uuid.NewString,

		generateTimeout: defaultGenerateTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.audit = audit.NewPublisher(storage.AuditSink(backend.Tx), s.logger)
	return s, nil
}

// Preview fetches the fresh roster, diffs it against the active one and
// issues a token for the result. Concurrent calls share one generation,
// which runs detached from any single caller: a caller that goes away stops
// waiting without failing the others.
func (s *Service) Preview(ctx context.Context) (*PreviewResult, error) {
	ch := s.flight.DoChan(previewFlight, func() (any, error) {
		genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.generateTimeout)
		defer cancel()
		return s.generate(genCtx)
	})

	select {
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "preview request abandoned",
			"request_id", requestcontext.RequestID(ctx),
			"error", ctx.Err(),
		)
		return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "preview request cancelled")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			s.logger.InfoContext(ctx, "preview generation shared with a concurrent request",
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		return res.Val.(*PreviewResult), nil
	}
}

func (s *Service) generate(ctx context.Context) (*PreviewResult, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "refresh.Preview")
	defer span.End()

	fetched, err := s.fetcher.FetchPositions(ctx, s.positions)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		s.logger.ErrorContext(ctx, "refresh fetch failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to fetch current leadership")
	}

	current, err := s.leaders.ListActive(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load roster")
	}

	cs := diff.ComputeChangeset(current, fetched.Candidates)
	issued, err := s.previews.Issue(ctx, cs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "issue failed")
		return nil, err
	}

	counts := cs.Counts()
	span.SetAttributes(
		attribute.Int("additions", counts.Additions),
		attribute.Int("updates", counts.Updates),
		attribute.Int("removals", counts.Removals),
		attribute.Int("failed_positions", len(fetched.Failed)),
	)
	s.audit.Emit(ctx, audit.Event{
		Action: audit.ActionPreviewIssued,
		Details: map[string]string{
			"preview_id":       issued.Ref,
			"additions":        strconv.Itoa(counts.Additions),
			"updates":          strconv.Itoa(counts.Updates),
			"removals":         strconv.Itoa(counts.Removals),
			"failed_positions": strconv.Itoa(len(fetched.Failed)),
		},
	})
	s.metrics.ObservePreview(start)
	s.logger.InfoContext(ctx, "refresh preview issued",
		"request_id", requestcontext.RequestID(ctx),
		"preview_id", issued.Ref,
		"additions", counts.Additions,
		"updates", counts.Updates,
		"removals", counts.Removals,
		"failed_positions", len(fetched.Failed),
		"rejected", fetched.Rejected,
	)

	failed := fetched.Failed
	if failed == nil {
		failed = []string{}
	}
	return &PreviewResult{
		Changeset:       cs,
		Token:           issued.Token,
		ExpiresAt:       issued.ExpiresAt,
		FailedPositions: failed,
	}, nil
}

// Inspect returns the changeset behind token without consuming it.
func (s *Service) Inspect(ctx context.Context, token string) (*PreviewResult, error) {
	cs, expiresAt, err := s.previews.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	return &PreviewResult{Changeset: cs, ExpiresAt: expiresAt}, nil
}

// Apply consumes the preview behind token and writes its changeset to the
// roster in one transaction. On any failure nothing is written and the
// preview stays redeemable until it expires.
func (s *Service) Apply(ctx context.Context, token string) (changeset.Counts, error) {
	start := time.Now()
	ref, err := s.previews.Verify(token)
	if err != nil {
		s.metrics.ObserveApply("invalid_token", start, 0, 0, 0)
		return changeset.Counts{}, err
	}

	ctx, span := tracer.Start(ctx, "refresh.Apply")
	defer span.End()
	span.SetAttributes(attribute.String("preview_id", ref))

	var counts changeset.Counts
	err = s.tx.RunInTx(ctx, func(ctx context.Context, stores storage.Stores) error {
		cs, err := s.previews.Consume(ctx, stores, ref)
		if err != nil {
			return err
		}
		if err := s.applyChangeset(ctx, stores, cs); err != nil {
			return err
		}
		counts = cs.Counts()
		return stores.Audit.Append(ctx, audit.Stamp(ctx, audit.Event{
			Action: audit.ActionRefreshApplied,
			Details: map[string]string{
				"preview_id": ref,
				"additions":  strconv.Itoa(counts.Additions),
				"updates":    strconv.Itoa(counts.Updates),
				"removals":   strconv.Itoa(counts.Removals),
			},
		}))
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "apply failed")
		if dErrors.Is(err, dErrors.CodeInvalidToken) {
			s.previews.PurgeIfUnusable(ctx, ref)
			s.metrics.ObserveApply("invalid_token", start, 0, 0, 0)
			return changeset.Counts{}, err
		}
		s.metrics.ObserveApply("failed", start, 0, 0, 0)
		s.logger.ErrorContext(ctx, "refresh apply rolled back",
			"request_id", requestcontext.RequestID(ctx),
			"preview_id", ref,
			"error", err,
		)
		if dErrors.Is(err, dErrors.CodeApplyFailed) {
			return changeset.Counts{}, err
		}
		return changeset.Counts{}, dErrors.Wrap(err, dErrors.CodeApplyFailed, "failed to apply refresh")
	}

	s.metrics.ObserveApply("applied", start, counts.Additions, counts.Updates, counts.Removals)
	s.logger.InfoContext(ctx, "refresh applied",
		"request_id", requestcontext.RequestID(ctx),
		"preview_id", ref,
		"additions", counts.Additions,
		"updates", counts.Updates,
		"removals", counts.Removals,
	)
	return counts, nil
}

func (s *Service) applyChangeset(ctx context.Context, stores storage.Stores, cs changeset.Changeset) error {
	now := requestcontext.Now(ctx)

	for i, add := range cs.Additions {
		leader, err := models.NewLeader(s.newID(), add, now)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeApplyFailed, fmt.Sprintf("addition %d is invalid", i))
		}
		if err := stores.Leaders.Create(ctx, leader); err != nil {
			return dErrors.Wrap(err, dErrors.CodeApplyFailed, "failed to create leader")
		}
	}

	for _, u := range cs.Updates {
		leader, err := findTarget(ctx, stores, u.ID)
		if err != nil {
			return err
		}
		applied, err := changeset.ApplyChanges(leader, u.Changes, now)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeApplyFailed, "update for leader "+u.ID+" is invalid")
		}
		if applied == 0 {
			continue
		}
		if err := stores.Leaders.Update(ctx, leader); err != nil {
			return dErrors.Wrap(err, dErrors.CodeApplyFailed, "failed to update leader "+u.ID)
		}
	}

	for _, r := range cs.Removals {
		leader, err := findTarget(ctx, stores, r.ID)
		if err != nil {
			return err
		}
		if !leader.IsActive() {
			continue
		}
		leader.Deactivate(now)
		if err := stores.Leaders.Update(ctx, leader); err != nil {
			return dErrors.Wrap(err, dErrors.CodeApplyFailed, "failed to deactivate leader "+r.ID)
		}
	}
	return nil
}

func findTarget(ctx context.Context, stores storage.Stores, id string) (*models.Leader, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, dErrors.New(dErrors.CodeApplyFailed, "unknown leader "+id)
	}
	leader, err := stores.Leaders.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeApplyFailed, "unknown leader "+id)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeApplyFailed, "failed to load leader "+id)
	}
	return leader, nil
}
