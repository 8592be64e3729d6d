// Package diff computes the changeset between the live roster and a fetched one.
package diff

import (
	"strings"

	"facecards/internal/refresh/changeset"
	"facecards/internal/roster/models"
)

// joinKey is the identity used to pair fetched candidates with records.
// Names are a weak key (two people can share one, one person can be renamed)
// but the upstream source carries nothing stronger.
func joinKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ComputeChangeset is pure: it reads its inputs, never mutates them, and
// returns the same result for the same inputs.
//
// Candidates are compared in their normalized form, the form they are stored
// in. Additions and updates follow fresh order; removals follow current order.
// When current holds several records with one name, the first is the match
// target and the rest are left alone while that name is still fetched.
func ComputeChangeset(current []*models.Leader, fresh []models.CandidateLeader) changeset.Changeset {
	byName := make(map[string]*models.Leader, len(current))
	for _, l := range current {
		key := joinKey(l.Name)
		if _, seen := byName[key]; !seen {
			byName[key] = l
		}
	}

	freshNames := make(map[string]struct{}, len(fresh))
	var cs changeset.Changeset
	for _, f := range fresh {
		f = f.Normalized()
		key := joinKey(f.Name)
		freshNames[key] = struct{}{}

		cur, ok := byName[key]
		if !ok {
			cs.Additions = append(cs.Additions, f)
			continue
		}
		if changes := compare(cur, f); len(changes) > 0 {
			cs.Updates = append(cs.Updates, changeset.Update{ID: cur.ID, Name: cur.Name, Changes: changes})
		}
	}

	for _, l := range current {
		if _, ok := freshNames[joinKey(l.Name)]; !ok {
			cs.Removals = append(cs.Removals, changeset.Removal{ID: l.ID, Name: l.Name, Title: l.Title})
		}
	}

	cs.Normalize()
	return cs
}

func compare(cur *models.Leader, f models.CandidateLeader) []changeset.FieldChange {
	var changes []changeset.FieldChange
	add := func(field, current, proposed string) {
		if current != proposed {
			changes = append(changes, changeset.FieldChange{Field: field, Current: current, Proposed: proposed})
		}
	}
	add(changeset.FieldTitle, cur.Title, f.Title)
	add(changeset.FieldPhotoURL, cur.PhotoURL, f.PhotoURL)
	add(changeset.FieldOrganization, cur.Organization, f.Organization)
	return changes
}
