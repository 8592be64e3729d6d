//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"facecards/internal/roster/models"
	"facecards/internal/roster/store"
	"facecards/pkg/platform/sentinel"
	"facecards/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "leaders"))
}

func newLeader(name, title string, cat models.Category, branch *models.Branch) *models.Leader {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Leader{
		ID:           uuid.NewString(),
		Name:         name,
		Title:        title,
		PhotoURL:     "https://example.mil/photo.jpg",
		Category:     cat,
		Branch:       branch,
		Organization: "Department of Defense",
		Status:       models.LeaderStatusActive,
		LastVerified: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	navy := models.BranchNavy
	l := newLeader("Jane Doe", "Chief of Naval Operations", models.CategoryMilitary4Star, &navy)
	s.Require().NoError(s.store.Create(ctx, l))

	got, err := s.store.FindByID(ctx, l.ID)
	s.Require().NoError(err)
	s.Equal(l.Name, got.Name)
	s.Require().NotNil(got.Branch)
	s.Equal(navy, *got.Branch)
	s.True(got.IsActive())

	err = s.store.Create(ctx, l)
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *PostgresStoreSuite) TestListFiltersAndOrder() {
	ctx := context.Background()
	army := models.BranchArmy
	a := newLeader("Zed Alpha", "Chief of Staff of the Army", models.CategoryMilitary4Star, &army)
	b := newLeader("Amy Beta", "Secretary of the Army", models.CategoryServiceSecretary, nil)
	c := newLeader("Al Gamma", "Vice Chief", models.CategoryMilitary4Star, &army)
	c.Deactivate(time.Now())
	for _, l := range []*models.Leader{a, b, c} {
		s.Require().NoError(s.store.Create(ctx, l))
	}

	active, err := s.store.ListActive(ctx)
	s.Require().NoError(err)
	s.Require().Len(active, 2)
	s.Equal(a.ID, active[0].ID, "4-star category sorts first")
	s.Equal(b.ID, active[1].ID)

	withInactive, err := s.store.List(ctx, models.ListFilter{Branch: models.BranchArmy, IncludeInactive: true})
	s.Require().NoError(err)
	s.Len(withInactive, 2)

	search, err := s.store.List(ctx, models.ListFilter{Search: "secretary"})
	s.Require().NoError(err)
	s.Require().Len(search, 1)
	s.Equal(b.ID, search[0].ID)
}

func (s *PostgresStoreSuite) TestUpdateAndTouch() {
	ctx := context.Background()
	l := newLeader("Jane Doe", "Vice Chief", models.CategoryMilitary4Star, nil)
	s.Require().NoError(s.store.Create(ctx, l))

	l.Title = "Chief"
	l.Deactivate(time.Now())
	s.Require().NoError(s.store.Update(ctx, l))

	got, err := s.store.FindByID(ctx, l.ID)
	s.Require().NoError(err)
	s.Equal("Chief", got.Title)
	s.False(got.IsActive())

	later := time.Now().Add(time.Hour).UTC().Truncate(time.Microsecond)
	n, err := s.store.TouchVerified(ctx, []string{l.ID}, later)
	s.Require().NoError(err)
	s.Equal(1, n)

	got, err = s.store.FindByID(ctx, l.ID)
	s.Require().NoError(err)
	s.True(later.Equal(got.LastVerified))

	missing := newLeader("Ghost", "None", models.CategoryAppointee, nil)
	s.ErrorIs(s.store.Update(ctx, missing), sentinel.ErrNotFound)
}
