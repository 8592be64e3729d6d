// Package changeset defines the reviewable difference between the live roster
// and a freshly fetched one, and the rules for applying it.
package changeset

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"facecards/internal/roster/models"

	dErrors "facecards/pkg/domain-errors"
)

// Mutable field names, as they appear in FieldChange.Field.
const (
	FieldName         = "name"
	FieldTitle        = "title"
	FieldPhotoURL     = "photoUrl"
	FieldCategory     = "category"
	FieldBranch       = "branch"
	FieldOrganization = "organization"
	FieldIsActive     = "isActive"
)

var mutableFields = map[string]struct{}{
	FieldName:         {},
	FieldTitle:        {},
	FieldPhotoURL:     {},
	FieldCategory:     {},
	FieldBranch:       {},
	FieldOrganization: {},
	FieldIsActive:     {},
}

// IsMutable reports whether apply may write field. Anything else in a
// changeset is ignored.
func IsMutable(field string) bool {
	_, ok := mutableFields[field]
	return ok
}

// FieldChange is one differing field, captured when the diff was computed.
type FieldChange struct {
	Field    string `json:"field"`
	Current  string `json:"current"`
	Proposed string `json:"proposed"`
}

// Update targets an existing record.
type Update struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Changes []FieldChange `json:"changes"`
}

// Removal soft-deletes an existing record.
type Removal struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Title string `json:"title"`
}

// Changeset is the full proposal. Every slice is non-nil after Normalize so
// clients always see arrays.
type Changeset struct {
	Additions []models.CandidateLeader `json:"additions"`
	Updates   []Update                 `json:"updates"`
	Removals  []Removal                `json:"removals"`
}

// Normalize replaces nil slices with empty ones.
func (c *Changeset) Normalize() {
	if c.Additions == nil {
		c.Additions = []models.CandidateLeader{}
	}
	if c.Updates == nil {
		c.Updates = []Update{}
	}
	if c.Removals == nil {
		c.Removals = []Removal{}
	}
}

// Empty reports whether applying c would change nothing.
func (c Changeset) Empty() bool {
	return len(c.Additions) == 0 && len(c.Updates) == 0 && len(c.Removals) == 0
}

// Counts summarizes the size of each bucket.
type Counts struct {
	Additions int `json:"additions"`
	Updates   int `json:"updates"`
	Removals  int `json:"removals"`
}

func (c Changeset) Counts() Counts {
	return Counts{Additions: len(c.Additions), Updates: len(c.Updates), Removals: len(c.Removals)}
}

// Validate checks the structural schema a stored changeset must satisfy
// before it can be resolved or applied.
func (c Changeset) Validate() error {
	for i, a := range c.Additions {
		if err := a.Validate(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeValidation, fmt.Sprintf("additions[%d] is invalid", i))
		}
	}
	for i, u := range c.Updates {
		if strings.TrimSpace(u.ID) == "" || strings.TrimSpace(u.Name) == "" {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("updates[%d] requires id and name", i))
		}
		for j, fc := range u.Changes {
			if fc.Field == "" {
				return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("updates[%d].changes[%d] requires a field", i, j))
			}
		}
	}
	for i, r := range c.Removals {
		if strings.TrimSpace(r.ID) == "" {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("removals[%d] requires id", i))
		}
	}
	return nil
}

// ApplyChanges writes the whitelisted changes onto l and returns how many
// fields were written. Non-whitelisted fields are skipped without error; a
// whitelisted field with an unusable value is an error.
func ApplyChanges(l *models.Leader, changes []FieldChange, now time.Time) (int, error) {
	applied := 0
	for _, fc := range changes {
		if !IsMutable(fc.Field) {
			continue
		}
		if err := applyField(l, fc, now); err != nil {
			return applied, err
		}
		applied++
	}
	if applied > 0 {
		l.UpdatedAt = now
	}
	return applied, nil
}

func applyField(l *models.Leader, fc FieldChange, now time.Time) error {
	value := strings.TrimSpace(fc.Proposed)
	requireText := func() error {
		if value == "" {
			return dErrors.New(dErrors.CodeValidation, fc.Field+" cannot be empty")
		}
		return nil
	}

	switch fc.Field {
	case FieldName:
		if err := requireText(); err != nil {
			return err
		}
		l.Name = value
	case FieldTitle:
		if err := requireText(); err != nil {
			return err
		}
		l.Title = value
	case FieldPhotoURL:
		if err := requireText(); err != nil {
			return err
		}
		l.PhotoURL = value
	case FieldOrganization:
		if err := requireText(); err != nil {
			return err
		}
		l.Organization = value
	case FieldCategory:
		cat := models.Category(strings.ToUpper(value))
		if !cat.IsValid() {
			return dErrors.New(dErrors.CodeValidation, "invalid category")
		}
		l.Category = cat
	case FieldBranch:
		b, err := models.ParseBranch(&value)
		if err != nil {
			return err
		}
		l.Branch = b
	case FieldIsActive:
		active, err := strconv.ParseBool(value)
		if err != nil {
			return dErrors.New(dErrors.CodeValidation, "isActive must be true or false")
		}
		if active {
			l.Reactivate(now)
		} else {
			l.Deactivate(now)
		}
	}
	return nil
}
