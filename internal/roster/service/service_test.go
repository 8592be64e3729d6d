package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"facecards/internal/audit"
	"facecards/internal/refresh/changeset"
	"facecards/internal/roster/models"
	"facecards/internal/storage"
	"facecards/pkg/requestcontext"

	dErrors "facecards/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite
	mem     *storage.MemoryBackend
	backend storage.Backend
	svc     *Service
	now     time.Time
	ids     int
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s.ids = 0
	s.mem, s.backend = storage.NewMemory()
	s.svc = New(s.backend,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithIDGenerator(s.nextID),
	)
}

func (s *ServiceSuite) nextID() string {
	s.ids++
	return fmt.Sprintf("00000000-0000-0000-0000-%012d", s.ids)
}

func (s *ServiceSuite) ctx() context.Context {
	return requestcontext.WithAdmin(requestcontext.WithTime(context.Background(), s.now), "admin")
}

func candidate(name, title string, cat models.Category) models.CandidateLeader {
	return models.CandidateLeader{
		Name:         name,
		Title:        title,
		PhotoURL:     "https://example.mil/photo.jpg",
		Category:     cat,
		Organization: "Department of Defense",
	}
}

func (s *ServiceSuite) create(name, title string, cat models.Category) *models.Leader {
	l, err := s.svc.Create(s.ctx(), candidate(name, title, cat), true)
	s.Require().NoError(err)
	return l
}

func (s *ServiceSuite) TestCreateAndGet() {
	created := s.create(" Jane Doe ", "Chief of Staff of the Army", models.CategoryMilitary4Star)
	s.Equal("Jane Doe", created.Name)
	s.True(created.IsActive())
	s.Equal(s.now, created.LastVerified)

	got, err := s.svc.Get(s.ctx(), created.ID)
	s.Require().NoError(err)
	s.Equal(created.Name, got.Name)

	events, err := s.mem.Audit().ListAll(context.Background())
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.ActionLeaderCreated, events[0].Action)
	s.Equal(created.ID, events[0].Subject)
}

func (s *ServiceSuite) TestCreateInactive() {
	l, err := s.svc.Create(s.ctx(), candidate("Old Chief", "Chief", models.CategoryMilitary4Star), false)
	s.Require().NoError(err)
	s.False(l.IsActive())
}

func (s *ServiceSuite) TestCreateValidates() {
	_, err := s.svc.Create(s.ctx(), candidate("", "Chief", models.CategoryMilitary4Star), true)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.svc.Create(s.ctx(), candidate("A", "Chief", "GENERALISSIMO"), true)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestGetUnknownOrMalformedID() {
	for _, id := range []string{"nope", "", "99999999-0000-0000-0000-000000000000"} {
		_, err := s.svc.Get(s.ctx(), id)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound), id)
	}
}

func (s *ServiceSuite) TestListFiltersAndOrders() {
	s.create("Zed Secretary", "Secretary of Defense", models.CategoryAppointee)
	s.create("Bea General", "Chief of Staff of the Army", models.CategoryMilitary4Star)
	gone := s.create("Al General", "Vice Chief", models.CategoryMilitary4Star)
	s.Require().NoError(s.svc.Deactivate(s.ctx(), gone.ID))

	active, err := s.svc.List(s.ctx(), models.ListFilter{})
	s.Require().NoError(err)
	s.Require().Len(active, 2)
	s.Equal("Bea General", active[0].Name)
	s.Equal("Zed Secretary", active[1].Name)

	all, err := s.svc.List(s.ctx(), models.ListFilter{IncludeInactive: true})
	s.Require().NoError(err)
	s.Len(all, 3)

	search, err := s.svc.List(s.ctx(), models.ListFilter{Search: "secretary", IncludeInactive: true})
	s.Require().NoError(err)
	s.Len(search, 1)

	public, err := s.svc.ListPublic(s.ctx(), models.ListFilter{IncludeInactive: true, Category: models.CategoryMilitary4Star})
	s.Require().NoError(err)
	s.Require().Len(public, 1)
	s.Equal("Bea General", public[0].Name)
}

func (s *ServiceSuite) TestUpdateWritesWhitelistedFieldsOnly() {
	l := s.create("Jane Doe", "Vice Chief", models.CategoryMilitary3Star)
	s.now = s.now.Add(time.Hour)

	updated, err := s.svc.Update(s.ctx(), l.ID, []changeset.FieldChange{
		{Field: changeset.FieldTitle, Proposed: "Chief of Staff"},
		{Field: changeset.FieldCategory, Proposed: "MILITARY_4STAR"},
		{Field: changeset.FieldBranch, Proposed: "ARMY"},
		{Field: "lastVerified", Proposed: "2000-01-01T00:00:00Z"},
	})
	s.Require().NoError(err)
	s.Equal("Chief of Staff", updated.Title)
	s.Equal(models.CategoryMilitary4Star, updated.Category)
	s.Require().NotNil(updated.Branch)
	s.Equal(models.BranchArmy, *updated.Branch)
	s.Equal(s.now.Add(-time.Hour), updated.LastVerified)
	s.Equal(s.now, updated.UpdatedAt)

	stored, err := s.svc.Get(s.ctx(), l.ID)
	s.Require().NoError(err)
	s.Equal("Chief of Staff", stored.Title)
}

func (s *ServiceSuite) TestUpdateClearsBranch() {
	l := s.create("Jane Doe", "Chief", models.CategoryMilitary4Star)
	_, err := s.svc.Update(s.ctx(), l.ID, []changeset.FieldChange{{Field: changeset.FieldBranch, Proposed: "NAVY"}})
	s.Require().NoError(err)

	updated, err := s.svc.Update(s.ctx(), l.ID, []changeset.FieldChange{{Field: changeset.FieldBranch, Proposed: ""}})
	s.Require().NoError(err)
	s.Nil(updated.Branch)
}

func (s *ServiceSuite) TestUpdateRejectsBadValueAtomically() {
	l := s.create("Jane Doe", "Chief", models.CategoryMilitary4Star)

	_, err := s.svc.Update(s.ctx(), l.ID, []changeset.FieldChange{
		{Field: changeset.FieldTitle, Proposed: "Changed"},
		{Field: changeset.FieldName, Proposed: "   "},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	stored, err := s.svc.Get(s.ctx(), l.ID)
	s.Require().NoError(err)
	s.Equal("Chief", stored.Title)
}

func (s *ServiceSuite) TestUpdateReactivates() {
	l := s.create("Jane Doe", "Chief", models.CategoryMilitary4Star)
	s.Require().NoError(s.svc.Deactivate(s.ctx(), l.ID))

	updated, err := s.svc.Update(s.ctx(), l.ID, []changeset.FieldChange{{Field: changeset.FieldIsActive, Proposed: "true"}})
	s.Require().NoError(err)
	s.True(updated.IsActive())
}

func (s *ServiceSuite) TestUpdateUnknown() {
	_, err := s.svc.Update(s.ctx(), "99999999-0000-0000-0000-000000000000", []changeset.FieldChange{{Field: changeset.FieldTitle, Proposed: "x"}})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestDeactivateIsSoftAndIdempotent() {
	l := s.create("Jane Doe", "Chief", models.CategoryMilitary4Star)

	s.Require().NoError(s.svc.Deactivate(s.ctx(), l.ID))
	s.Require().NoError(s.svc.Deactivate(s.ctx(), l.ID))

	stored, err := s.svc.Get(s.ctx(), l.ID)
	s.Require().NoError(err)
	s.False(stored.IsActive())

	events, err := s.mem.Audit().ListAll(context.Background())
	s.Require().NoError(err)
	s.Len(events, 2, "one create and one deactivation")

	err = s.svc.Deactivate(s.ctx(), "99999999-0000-0000-0000-000000000000")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
