package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"facecards/internal/audit"
	refreshmetrics "facecards/internal/refresh/metrics"
	"facecards/internal/roster/models"
	"facecards/internal/storage"
	"facecards/pkg/platform/sentinel"
	"facecards/pkg/requestcontext"

	dErrors "facecards/pkg/domain-errors"
)

// SweepKind selects which positions a verification sweep covers.
type SweepKind string

const (
	SweepDaily  SweepKind = "daily"
	SweepWeekly SweepKind = "weekly"
)

func ParseSweepKind(s string) (SweepKind, error) {
	switch SweepKind(s) {
	case SweepDaily, SweepWeekly:
		return SweepKind(s), nil
	}
	return "", dErrors.New(dErrors.CodeBadRequest, "sweep kind must be daily or weekly")
}

// PositionFetcher looks one position up.
type PositionFetcher interface {
	FetchOne(ctx context.Context, position string) (*models.CandidateLeader, error)
}

// Positions lists the positions each sweep covers.
type Positions interface {
	All() []string
	Key() []string
}

// SweepResult summarizes one verification sweep.
type SweepResult struct {
	Kind      SweepKind `json:"type"`
	Checked   int       `json:"checked"`
	Updated   int       `json:"updated"`
	Created   int       `json:"created"`
	Verified  int       `json:"verified"`
	Failed    int       `json:"failed"`
	Timestamp time.Time `json:"timestamp"`
}

// Verifier reconciles the roster with the upstream source position by
// position, outside the preview workflow.
type Verifier struct {
	tx        storage.Tx
	fetcher   PositionFetcher
	positions Positions
	logger    *slog.Logger
	metrics   *refreshmetrics.Metrics
	audit     *audit.Publisher
	newID     func() string
}

type VerifierOption func(*Verifier)

func WithVerifierLogger(logger *slog.Logger) VerifierOption {
	return func(v *Verifier) { v.logger = logger }
}

func WithVerifierMetrics(m *refreshmetrics.Metrics) VerifierOption {
	return func(v *Verifier) { v.metrics = m }
}

func WithVerifierIDGenerator(fn func() string) VerifierOption {
	return func(v *Verifier) { v.newID = fn }
}

func NewVerifier(backend storage.Backend, fetcher PositionFetcher, positions Positions, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		tx:        backend.Tx,
		fetcher:   fetcher,
		positions: positions,
		logger:    slog.Default(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.audit = audit.NewPublisher(storage.AuditSink(backend.Tx), v.logger)
	return v
}

// Sweep checks each position of kind. For every answer it finds the active
// holder of the same title: a different name is a handover (deactivate and
// create), the same name refreshes lastVerified, and no holder creates one
// on weekly sweeps only. Each position commits on its own.
func (v *Verifier) Sweep(ctx context.Context, kind SweepKind) (*SweepResult, error) {
	positions := v.positions.Key()
	if kind == SweepWeekly {
		positions = v.positions.All()
	}

	res := &SweepResult{Kind: kind}
	for _, position := range positions {
		cand, err := v.fetcher.FetchOne(ctx, position)
		if err != nil {
			if ctx.Err() != nil {
				v.metrics.IncrementSweep(string(kind), "cancelled")
				return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "sweep cancelled")
			}
			res.Failed++
			continue
		}
		if cand == nil {
			continue
		}
		res.Checked++

		outcome, err := v.reconcile(ctx, kind, *cand)
		if err != nil {
			v.logger.ErrorContext(ctx, "sweep position failed",
				"request_id", requestcontext.RequestID(ctx),
				"position", position,
				"error", err,
			)
			res.Failed++
			continue
		}
		switch outcome {
		case outcomeHandover:
			res.Updated++
		case outcomeVerified:
			res.Verified++
		case outcomeCreated:
			res.Created++
		}
	}
	res.Timestamp = requestcontext.Now(ctx)

	result := "ok"
	if res.Failed > 0 {
		result = "partial"
	}
	v.metrics.IncrementSweep(string(kind), result)
	v.audit.Emit(ctx, audit.Event{
		Action: audit.ActionLeadersVerified,
		Details: map[string]string{
			"kind":     string(kind),
			"checked":  strconv.Itoa(res.Checked),
			"updated":  strconv.Itoa(res.Updated),
			"created":  strconv.Itoa(res.Created),
			"verified": strconv.Itoa(res.Verified),
			"failed":   strconv.Itoa(res.Failed),
		},
	})
	v.logger.InfoContext(ctx, "verification sweep finished",
		"request_id", requestcontext.RequestID(ctx),
		"kind", string(kind),
		"checked", res.Checked,
		"updated", res.Updated,
		"created", res.Created,
		"failed", res.Failed,
	)
	return res, nil
}

type outcome int

const (
	outcomeNone outcome = iota
	outcomeHandover
	outcomeVerified
	outcomeCreated
)

func (v *Verifier) reconcile(ctx context.Context, kind SweepKind, cand models.CandidateLeader) (outcome, error) {
	now := requestcontext.Now(ctx)
	result := outcomeNone
	cand = cand.Normalized()

	err := v.tx.RunInTx(ctx, func(ctx context.Context, stores storage.Stores) error {
		existing, err := stores.Leaders.FindActiveByTitle(ctx, cand.Title)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}

		switch {
		case existing != nil && strings.TrimSpace(existing.Name) != strings.TrimSpace(cand.Name):
			existing.Deactivate(now)
			if err := stores.Leaders.Update(ctx, existing); err != nil {
				return err
			}
			successor, err := v.create(ctx, stores, cand, now)
			if err != nil {
				return err
			}
			result = outcomeHandover
			return stores.Audit.Append(ctx, audit.Stamp(ctx, audit.Event{
				Action:  audit.ActionLeaderHandover,
				Subject: successor.ID,
				Details: map[string]string{
					"title":       cand.Title,
					"previous_id": existing.ID,
					"previous":    existing.Name,
					"successor":   successor.Name,
				},
			}))
		case existing != nil:
			if _, err := stores.Leaders.TouchVerified(ctx, []string{existing.ID}, now); err != nil {
				return err
			}
			result = outcomeVerified
			return nil
		case kind == SweepWeekly:
			created, err := v.create(ctx, stores, cand, now)
			if err != nil {
				return err
			}
			result = outcomeCreated
			return stores.Audit.Append(ctx, audit.Stamp(ctx, audit.Event{
				Action:  audit.ActionLeaderCreated,
				Subject: created.ID,
				Details: map[string]string{"name": created.Name, "title": created.Title},
			}))
		}
		return nil
	})
	if err != nil {
		return outcomeNone, err
	}
	return result, nil
}

func (v *Verifier) create(ctx context.Context, stores storage.Stores, cand models.CandidateLeader, now time.Time) (*models.Leader, error) {
	leader, err := models.NewLeader(v.newID(), cand, now)
	if err != nil {
		return nil, err
	}
	if err := stores.Leaders.Create(ctx, leader); err != nil {
		return nil, err
	}
	return leader, nil
}
