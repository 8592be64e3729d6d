// Package fetcher retrieves candidate leaders from the upstream knowledge
// source, one position at a time.
package fetcher

//go:generate mockgen -source=fetcher.go -destination=mocks/mocks.go -package=mocks Source

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	refreshmetrics "facecards/internal/refresh/metrics"
	"facecards/internal/roster/models"
	"facecards/pkg/platform/circuit"
	strs "facecards/pkg/platform/strings"
	"facecards/pkg/requestcontext"

	dErrors "facecards/pkg/domain-errors"
)

var tracer = otel.Tracer("facecards/internal/refresh/fetcher")

// Source answers one position lookup. (nil, nil) means no current holder
// was found. Errors wrapped with retry.RetryableError are retried.
type Source interface {
	Lookup(ctx context.Context, position string) (*models.CandidateLeader, error)
}

// Result is the outcome of a batch lookup.
type Result struct {
	Candidates []models.CandidateLeader
	// Failed lists positions whose lookup errored after all attempts.
	Failed []string
	// Empty counts positions the source had no answer for.
	Empty int
	// Rejected counts answers that failed candidate validation.
	Rejected int
}

// Fetcher spaces, retries and validates lookups against a Source.
type Fetcher struct {
	source      Source
	limiter     *rate.Limiter
	maxAttempts uint64
	backoffBase time.Duration
	logger      *slog.Logger
	metrics     *refreshmetrics.Metrics
	breaker     *circuit.Breaker
}

type Option func(*Fetcher)

func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = logger }
}

func WithMetrics(m *refreshmetrics.Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

// WithBreaker replaces the default upstream circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(f *Fetcher) {
		if b != nil {
			f.breaker = b
		}
	}
}

// WithInterval sets the minimum spacing between upstream calls. Zero disables spacing.
func WithInterval(d time.Duration) Option {
	return func(f *Fetcher) {
		if d <= 0 {
			f.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		f.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithMaxAttempts bounds the attempts per position, first call included.
func WithMaxAttempts(n uint64) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxAttempts = n
		}
	}
}

// WithBackoff sets the base delay of the exponential retry backoff.
func WithBackoff(base time.Duration) Option {
	return func(f *Fetcher) {
		if base > 0 {
			f.backoffBase = base
		}
	}
}

// New returns a fetcher over source. A nil source yields a fetcher whose
// every call fails with a configuration error.
func New(source Source, opts ...Option) *Fetcher {
	f := &Fetcher{
		source:      source,
		limiter:     rate.NewLimiter(rate.Every(time.Second), 1),
		maxAttempts: 3,
		backoffBase: 500 * time.Millisecond,
		logger:      slog.Default(),
		breaker:     circuit.New("upstream", circuit.WithFailureThreshold(5)),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchPositions looks up every position in order, skipping blank and
// case-insensitive repeat titles. A position that fails after retries is
// logged, counted and skipped. The batch itself fails only when ctx ends or
// when every attempted lookup errored.
func (f *Fetcher) FetchPositions(ctx context.Context, positions []string) (*Result, error) {
	if f.source == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "upstream source is not configured")
	}
	positions = strs.DedupeFold(positions)
	ctx, span := tracer.Start(ctx, "fetcher.FetchPositions")
	defer span.End()
	span.SetAttributes(attribute.Int("positions", len(positions)))

	res := &Result{Candidates: []models.CandidateLeader{}}
	for _, position := range positions {
		cand, err := f.FetchOne(ctx, position)
		if err != nil {
			if ctx.Err() != nil {
				span.SetStatus(codes.Error, "cancelled")
				return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "fetch cancelled")
			}
			if dErrors.HasCode(err, dErrors.CodeValidation) {
				res.Rejected++
			} else {
				res.Failed = append(res.Failed, position)
			}
			continue
		}
		if cand == nil {
			res.Empty++
			continue
		}
		res.Candidates = append(res.Candidates, *cand)
	}

	span.SetAttributes(
		attribute.Int("candidates", len(res.Candidates)),
		attribute.Int("failed", len(res.Failed)),
	)
	if len(positions) > 0 && len(res.Failed) == len(positions) {
		span.SetStatus(codes.Error, "all lookups failed")
		return nil, dErrors.New(dErrors.CodeUpstream, "upstream source failed for every position")
	}
	return res, nil
}

// FetchOne looks one position up with rate spacing and bounded retries. A
// candidate that fails validation is reported as a CodeValidation error.
func (f *Fetcher) FetchOne(ctx context.Context, position string) (*models.CandidateLeader, error) {
	if f.source == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "upstream source is not configured")
	}
	if !f.breaker.Allow() {
		f.metrics.ObserveFetch(refreshmetrics.OutcomeFailed, time.Now())
		return nil, dErrors.New(dErrors.CodeUpstream, "upstream circuit open")
	}
	start := time.Now()
	backoff := retry.WithMaxRetries(f.maxAttempts-1, retry.NewExponential(f.backoffBase))

	var cand *models.CandidateLeader
	attempts := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := f.limiter.Wait(ctx); err != nil {
			return err
		}
		attempts++
		c, err := f.source.Lookup(ctx, position)
		if err != nil {
			return err
		}
		cand = c
		return nil
	})
	if err != nil {
		if ctx.Err() == nil {
			f.logger.WarnContext(ctx, "position lookup failed",
				"position", position,
				"attempts", attempts,
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			if _, change := f.breaker.RecordFailure(); change.Opened {
				f.logger.WarnContext(ctx, "upstream circuit opened", "breaker", f.breaker.Name())
			}
		}
		f.metrics.ObserveFetch(refreshmetrics.OutcomeFailed, start)
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "upstream lookup failed")
	}
	if _, change := f.breaker.RecordSuccess(); change.Closed {
		f.logger.InfoContext(ctx, "upstream circuit closed", "breaker", f.breaker.Name())
	}
	if cand == nil {
		f.metrics.ObserveFetch(refreshmetrics.OutcomeEmpty, start)
		return nil, nil
	}
	normalized := cand.Normalized()
	cand = &normalized
	if err := cand.Validate(); err != nil {
		f.logger.WarnContext(ctx, "discarding invalid candidate",
			"position", position,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		f.metrics.ObserveFetch(refreshmetrics.OutcomeRejected, start)
		return nil, err
	}
	f.metrics.ObserveFetch(refreshmetrics.OutcomeFound, start)
	return cand, nil
}
