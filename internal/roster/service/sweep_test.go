package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facecards/internal/audit"
	"facecards/internal/roster/models"
	"facecards/internal/storage"
	"facecards/pkg/requestcontext"

	dErrors "facecards/pkg/domain-errors"
)

type stubFetcher map[string]*models.CandidateLeader

func (f stubFetcher) FetchOne(_ context.Context, position string) (*models.CandidateLeader, error) {
	cand, ok := f[position]
	if !ok {
		return nil, dErrors.New(dErrors.CodeUpstream, "upstream lookup failed")
	}
	return cand, nil
}

type stubPositions struct {
	all, key []string
}

func (p stubPositions) All() []string { return p.all }
func (p stubPositions) Key() []string { return p.key }

type sweepFixture struct {
	mem      *storage.MemoryBackend
	backend  storage.Backend
	roster   *Service
	verifier *Verifier
	ctx      context.Context
}

func newSweepFixture(t *testing.T, fetcher PositionFetcher) *sweepFixture {
	t.Helper()
	mem, backend := storage.NewMemory()
	ids := 0
	newID := func() string {
		ids++
		return fmt.Sprintf("00000000-0000-0000-0000-%012d", ids)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	positions := stubPositions{
		all: []string{"Secretary of Defense", "Chief of Naval Operations", "Chief of Space Operations"},
		key: []string{"Secretary of Defense", "Chief of Naval Operations"},
	}
	return &sweepFixture{
		mem:      mem,
		backend:  backend,
		roster:   New(backend, WithLogger(logger), WithIDGenerator(newID)),
		verifier: NewVerifier(backend, fetcher, positions, WithVerifierLogger(logger), WithVerifierIDGenerator(newID)),
		ctx:      requestcontext.WithTime(context.Background(), time.Date(2026, 5, 2, 6, 0, 0, 0, time.UTC)),
	}
}

func holder(name, title string) *models.CandidateLeader {
	c := candidate(name, title, models.CategoryMilitary4Star)
	return &c
}

func TestDailySweepHandoverAndVerify(t *testing.T) {
	fetcher := stubFetcher{
		"Secretary of Defense":      holder("New Secretary", "Secretary of Defense"),
		"Chief of Naval Operations": holder("Adm Same", "Chief of Naval Operations"),
		"Chief of Space Operations": holder("Gen Space", "Chief of Space Operations"),
	}
	f := newSweepFixture(t, fetcher)
	seedCtx := requestcontext.WithTime(context.Background(), time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	old, err := f.roster.Create(seedCtx, *holder("Old Secretary", "Secretary of Defense"), true)
	require.NoError(t, err)
	same, err := f.roster.Create(seedCtx, *holder("Adm Same", "Chief of Naval Operations"), true)
	require.NoError(t, err)

	res, err := f.verifier.Sweep(f.ctx, SweepDaily)
	require.NoError(t, err)
	assert.Equal(t, SweepDaily, res.Kind)
	assert.Equal(t, 2, res.Checked)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Verified)
	assert.Equal(t, 0, res.Created, "daily sweeps never create")

	prev, err := f.roster.Get(f.ctx, old.ID)
	require.NoError(t, err)
	assert.False(t, prev.IsActive())

	active, err := f.roster.List(f.ctx, models.ListFilter{})
	require.NoError(t, err)
	names := []string{}
	for _, l := range active {
		names = append(names, l.Name)
	}
	assert.ElementsMatch(t, []string{"New Secretary", "Adm Same"}, names)

	verified, err := f.roster.Get(f.ctx, same.ID)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 2, 6, 0, 0, 0, time.UTC), verified.LastVerified)

	events, err := f.mem.Audit().ListAll(context.Background())
	require.NoError(t, err)
	actions := []audit.Action{}
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	assert.Contains(t, actions, audit.ActionLeaderHandover)
	assert.Equal(t, audit.ActionLeadersVerified, actions[len(actions)-1])
}

func TestWeeklySweepCreatesMissingHolders(t *testing.T) {
	fetcher := stubFetcher{
		"Secretary of Defense":      holder("Sec Def", "Secretary of Defense"),
		"Chief of Space Operations": holder("Gen Space", "Chief of Space Operations"),
	}
	f := newSweepFixture(t, fetcher)

	res, err := f.verifier.Sweep(f.ctx, SweepWeekly)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Failed, "CNO lookup fails and is skipped")

	active, err := f.roster.List(f.ctx, models.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestSweepSkipsEmptyAnswers(t *testing.T) {
	fetcher := stubFetcher{"Secretary of Defense": nil, "Chief of Naval Operations": nil}
	f := newSweepFixture(t, fetcher)

	res, err := f.verifier.Sweep(f.ctx, SweepDaily)
	require.NoError(t, err)
	assert.Zero(t, res.Checked)
	assert.Zero(t, res.Failed)
}

type cancellingFetcher struct {
	cancel context.CancelFunc
}

func (c cancellingFetcher) FetchOne(ctx context.Context, _ string) (*models.CandidateLeader, error) {
	c.cancel()
	return nil, errors.New("context canceled")
}

func TestSweepStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := newSweepFixture(t, cancellingFetcher{cancel: cancel})

	_, err := f.verifier.Sweep(ctx, SweepWeekly)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestParseSweepKind(t *testing.T) {
	k, err := ParseSweepKind("weekly")
	require.NoError(t, err)
	assert.Equal(t, SweepWeekly, k)

	_, err = ParseSweepKind("hourly")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func TestWeeklySweepMatchesPaddedTitles(t *testing.T) {
	fetcher := stubFetcher{
		"Secretary of Defense": holder("Sec Def ", " Secretary of Defense "),
	}
	f := newSweepFixture(t, fetcher)
	_, err := f.roster.Create(f.ctx, *holder("Sec Def", "Secretary of Defense"), true)
	require.NoError(t, err)

	res, err := f.verifier.Sweep(f.ctx, SweepWeekly)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Verified)
	assert.Zero(t, res.Created)

	active, err := f.roster.List(f.ctx, models.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, active, 1, "no duplicate active holder")
}
