package diff

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facecards/internal/refresh/changeset"
	"facecards/internal/roster/models"
	"facecards/pkg/testutil"
)

func record(id, name, title string) *models.Leader {
	return &models.Leader{
		ID:           id,
		Name:         name,
		Title:        title,
		PhotoURL:     "https://example.mil/" + id + ".jpg",
		Category:     models.CategoryMilitary4Star,
		Organization: "DoD",
		Status:       models.LeaderStatusActive,
		CreatedAt:    time.Unix(0, 0),
	}
}

func candidateFrom(l *models.Leader) models.CandidateLeader {
	return models.CandidateLeader{
		Name:         l.Name,
		Title:        l.Title,
		PhotoURL:     l.PhotoURL,
		Category:     l.Category,
		Organization: l.Organization,
	}
}

func TestComputeChangeset_JaneDoeTitleChange(t *testing.T) {
	testutil.Given(t, "Jane Doe is on the roster as Vice Chief", func(t *testing.T) {
		current := []*models.Leader{record("L1", "Jane Doe", "Vice Chief")}

		testutil.When(t, "the fetch returns JANE DOE as Chief", func(t *testing.T) {
			fresh := candidateFrom(current[0])
			fresh.Name = "JANE DOE"
			fresh.Title = "Chief"

			cs := ComputeChangeset(current, []models.CandidateLeader{fresh})

			testutil.Then(t, "one title update is proposed and nothing else", func(t *testing.T) {
				assert.Empty(t, cs.Additions)
				assert.Empty(t, cs.Removals)
				require.Len(t, cs.Updates, 1)
				assert.Equal(t, changeset.Update{
					ID:   "L1",
					Name: "Jane Doe",
					Changes: []changeset.FieldChange{
						{Field: "title", Current: "Vice Chief", Proposed: "Chief"},
					},
				}, cs.Updates[0])
			})
		})
	})
}

func TestComputeChangeset_Buckets(t *testing.T) {
	keep := record("K", "Kept Same", "Chief")
	moved := record("M", "Moved Person", "Vice")
	gone := record("G", "Gone Person", "Director")
	current := []*models.Leader{keep, moved, gone}

	movedFresh := candidateFrom(moved)
	movedFresh.Organization = "Joint Staff"
	movedFresh.PhotoURL = "https://example.mil/new.jpg"
	newcomer := models.CandidateLeader{Name: "New Person", Title: "Secretary", PhotoURL: "https://example.mil/n.jpg", Category: models.CategoryAppointee, Organization: "OSD"}

	cs := ComputeChangeset(current, []models.CandidateLeader{candidateFrom(keep), newcomer, movedFresh})

	assert.Equal(t, []models.CandidateLeader{newcomer}, cs.Additions)
	require.Len(t, cs.Updates, 1)
	assert.Equal(t, "M", cs.Updates[0].ID)
	assert.Equal(t, []string{"photoUrl", "organization"}, fields(cs.Updates[0].Changes))
	assert.Equal(t, []changeset.Removal{{ID: "G", Name: "Gone Person", Title: "Director"}}, cs.Removals)
}

func TestComputeChangeset_OnlyComparesDiffedFields(t *testing.T) {
	cur := record("A", "Jane Doe", "Chief")
	fresh := candidateFrom(cur)
	fresh.Category = models.CategoryAppointee
	navy := models.BranchNavy
	fresh.Branch = &navy

	cs := ComputeChangeset([]*models.Leader{cur}, []models.CandidateLeader{fresh})
	assert.True(t, cs.Empty(), "category and branch differences are not proposed")
}

func TestComputeChangeset_EmptyInputs(t *testing.T) {
	cs := ComputeChangeset(nil, nil)
	assert.NotNil(t, cs.Additions)
	assert.NotNil(t, cs.Updates)
	assert.NotNil(t, cs.Removals)
	assert.True(t, cs.Empty())

	current := []*models.Leader{record("A", "A", "t"), record("B", "B", "t")}
	cs = ComputeChangeset(current, nil)
	assert.Len(t, cs.Removals, 2, "an empty fetch proposes removing everyone")
}

func TestComputeChangeset_DuplicateNames(t *testing.T) {
	first := record("1", "John Smith", "Chief")
	second := record("2", "john smith", "Director")
	current := []*models.Leader{first, second}

	fresh := candidateFrom(first)
	fresh.Title = "Vice"
	repeat := fresh

	cs := ComputeChangeset(current, []models.CandidateLeader{fresh, repeat})

	require.Len(t, cs.Updates, 2, "each fetched candidate is processed on its own")
	assert.Equal(t, "1", cs.Updates[0].ID)
	assert.Equal(t, "1", cs.Updates[1].ID)
	assert.Empty(t, cs.Removals, "the shadowed duplicate is not removed while the name is fetched")
	assert.Empty(t, cs.Additions)
}

func TestComputeChangeset_IsPure(t *testing.T) {
	current := []*models.Leader{record("A", "Jane Doe", "Vice"), record("B", "Old", "X")}
	fresh := []models.CandidateLeader{candidateFrom(current[0])}
	fresh[0].Title = "Chief"

	snapshotCurrent := fmt.Sprintf("%+v %+v", *current[0], *current[1])
	snapshotFresh := fmt.Sprintf("%+v", fresh)

	a := ComputeChangeset(current, fresh)
	b := ComputeChangeset(current, fresh)

	assert.Equal(t, a, b)
	assert.Equal(t, snapshotCurrent, fmt.Sprintf("%+v %+v", *current[0], *current[1]))
	assert.Equal(t, snapshotFresh, fmt.Sprintf("%+v", fresh))
}

// Every fetched candidate lands in exactly one of additions or matched, and
// every current record is either matched by name or removed.
func TestComputeChangeset_Partition(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	names := []string{"Ann", "Bob", "Cid", "Dee", "Eve", "Fay", "Gus", "Hal"}

	for iter := 0; iter < 200; iter++ {
		var current []*models.Leader
		for i, n := range names {
			if rng.Intn(2) == 0 {
				current = append(current, record(fmt.Sprintf("id-%d", i), n, "T"+fmt.Sprint(rng.Intn(2))))
			}
		}
		var fresh []models.CandidateLeader
		for _, n := range names {
			if rng.Intn(2) == 0 {
				name := n
				if rng.Intn(2) == 0 {
					name = strings.ToUpper(n)
				}
				fresh = append(fresh, models.CandidateLeader{Name: name, Title: "T" + fmt.Sprint(rng.Intn(2)), PhotoURL: "https://example.mil/" + strings.ToLower(n) + "-" + "id" + ".jpg", Category: models.CategoryMilitary4Star, Organization: "DoD"})
			}
		}

		cs := ComputeChangeset(current, fresh)

		currentNames := map[string]bool{}
		for _, l := range current {
			currentNames[strings.ToLower(l.Name)] = true
		}
		freshNames := map[string]bool{}
		matched := 0
		for _, f := range fresh {
			freshNames[strings.ToLower(f.Name)] = true
			if currentNames[strings.ToLower(f.Name)] {
				matched++
			}
		}
		require.Equal(t, len(fresh), len(cs.Additions)+matched, "iteration %d", iter)
		assert.LessOrEqual(t, len(cs.Updates), matched)

		removed := map[string]bool{}
		for _, r := range cs.Removals {
			removed[r.ID] = true
		}
		for _, l := range current {
			assert.NotEqual(t, freshNames[strings.ToLower(l.Name)], removed[l.ID], "iteration %d record %s", iter, l.ID)
		}
		for _, u := range cs.Updates {
			assert.NotEmpty(t, u.Changes)
			for _, c := range u.Changes {
				assert.NotEqual(t, c.Current, c.Proposed)
			}
		}
	}
}

func fields(changes []changeset.FieldChange) []string {
	out := make([]string, 0, len(changes))
	for _, c := range changes {
		out = append(out, c.Field)
	}
	return out
}

func TestComputeChangeset_PaddedCandidateMatchesStoredRecord(t *testing.T) {
	padded := models.CandidateLeader{
		Name:         "Jane Doe ",
		Title:        " Secretary X ",
		PhotoURL:     "https://example.mil/jane.jpg ",
		Category:     models.CategoryServiceSecretary,
		Organization: "Department of the Army ",
	}
	stored, err := models.NewLeader("jane", padded, time.Unix(0, 0))
	require.NoError(t, err)

	cs := ComputeChangeset([]*models.Leader{stored}, []models.CandidateLeader{padded})
	assert.True(t, cs.Empty(), "a padded answer must not churn the record it created: %+v", cs)

	added := ComputeChangeset(nil, []models.CandidateLeader{padded})
	require.Len(t, added.Additions, 1)
	assert.Equal(t, "Jane Doe", added.Additions[0].Name)
	assert.Equal(t, "Secretary X", added.Additions[0].Title)
}
