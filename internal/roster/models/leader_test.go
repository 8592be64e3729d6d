package models

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "facecards/pkg/domain-errors"
)

func validCandidate() CandidateLeader {
	army := BranchArmy
	return CandidateLeader{
		Name:         "Jane Doe",
		Title:        "Chief of Staff of the Army",
		PhotoURL:     "https://example.mil/jane.jpg",
		Category:     CategoryMilitary4Star,
		Branch:       &army,
		Organization: "U.S. Army",
	}
}

func TestCandidateValidate(t *testing.T) {
	bogus := Branch("MERCHANT_MARINE")
	tests := []struct {
		name    string
		mutate  func(c *CandidateLeader)
		wantMsg string
	}{
		{name: "valid", mutate: func(*CandidateLeader) {}},
		{name: "civilian without branch", mutate: func(c *CandidateLeader) { c.Branch = nil; c.Category = CategoryAppointee }},
		{name: "blank name", mutate: func(c *CandidateLeader) { c.Name = "   " }, wantMsg: "name is required"},
		{name: "missing photo", mutate: func(c *CandidateLeader) { c.PhotoURL = "" }, wantMsg: "photoUrl is required"},
		{name: "unknown category", mutate: func(c *CandidateLeader) { c.Category = "ADMIRAL" }, wantMsg: "invalid category"},
		{name: "unknown branch", mutate: func(c *CandidateLeader) { c.Branch = &bogus }, wantMsg: "invalid branch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCandidate()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			de, ok := dErrors.As(err)
			require.True(t, ok)
			assert.Equal(t, dErrors.CodeValidation, de.Code)
			assert.Equal(t, tt.wantMsg, de.Message)
		})
	}
}

func TestLeaderLifecycle(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	l, err := NewLeader("id-1", validCandidate(), now)
	require.NoError(t, err)
	assert.True(t, l.IsActive())
	assert.Equal(t, now, l.LastVerified)

	later := now.Add(time.Hour)
	l.Deactivate(later)
	assert.Equal(t, LeaderStatusInactive, l.Status)
	assert.Equal(t, later, l.UpdatedAt)

	l.Deactivate(later.Add(time.Hour))
	assert.Equal(t, later, l.UpdatedAt, "second deactivate is a no-op")
}

func TestCloneIsDeep(t *testing.T) {
	l, err := NewLeader("id-1", validCandidate(), time.Now())
	require.NoError(t, err)
	c := l.Clone()
	*c.Branch = BranchNavy
	assert.Equal(t, BranchArmy, *l.Branch)
}

func TestListFilter(t *testing.T) {
	now := time.Now()
	jane, _ := NewLeader("1", validCandidate(), now)
	civ := validCandidate()
	civ.Name, civ.Title, civ.Category, civ.Branch, civ.Organization = "Sam Roe", "Secretary of Defense", CategoryAppointee, nil, "OSD"
	sam, _ := NewLeader("2", civ, now)
	gone, _ := NewLeader("3", validCandidate(), now)
	gone.Deactivate(now)

	assert.True(t, ListFilter{}.Matches(jane))
	assert.False(t, ListFilter{}.Matches(gone))
	assert.True(t, ListFilter{IncludeInactive: true}.Matches(gone))
	assert.True(t, ListFilter{Branch: BranchArmy}.Matches(jane))
	assert.False(t, ListFilter{Branch: BranchArmy}.Matches(sam))
	assert.True(t, ListFilter{Search: "secretary"}.Matches(sam))
	assert.True(t, ListFilter{Organization: "osd"}.Matches(sam))
	assert.False(t, ListFilter{Category: CategoryAppointee}.Matches(jane))
}

func TestLessOrdersByCategoryThenName(t *testing.T) {
	mk := func(id, name string, cat Category) *Leader {
		return &Leader{ID: id, Name: name, Category: cat}
	}
	list := []*Leader{
		mk("4", "Alpha", CategoryAppointee),
		mk("3", "Zulu", CategoryMilitary4Star),
		mk("2", "Alpha", CategoryMilitary4Star),
		mk("1", "Alpha", CategoryMilitary4Star),
	}
	sort.Slice(list, func(i, j int) bool { return Less(list[i], list[j]) })
	var ids []string
	for _, l := range list {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids)
}
