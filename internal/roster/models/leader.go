package models

import (
	"strings"
	"time"

	dErrors "facecards/pkg/domain-errors"
)

// Category is the closed set of leadership tiers.
type Category string

const (
	CategoryMilitary4Star    Category = "MILITARY_4STAR"
	CategoryMilitary3Star    Category = "MILITARY_3STAR"
	CategoryMajorCommand     Category = "MAJOR_COMMAND"
	CategoryServiceSecretary Category = "SERVICE_SECRETARY"
	CategoryCivilianSES      Category = "CIVILIAN_SES"
	CategoryAppointee        Category = "APPOINTEE"
	CategorySecretariat      Category = "SECRETARIAT"
)

var categoryOrder = map[Category]int{
	CategoryMilitary4Star:    0,
	CategoryMilitary3Star:    1,
	CategoryMajorCommand:     2,
	CategoryServiceSecretary: 3,
	CategoryCivilianSES:      4,
	CategoryAppointee:        5,
	CategorySecretariat:      6,
}

func (c Category) IsValid() bool {
	_, ok := categoryOrder[c]
	return ok
}

// Rank orders categories the way the roster is listed.
func (c Category) Rank() int {
	if r, ok := categoryOrder[c]; ok {
		return r
	}
	return len(categoryOrder)
}

// Branch is a military service. Civilians have no branch.
type Branch string

const (
	BranchArmy        Branch = "ARMY"
	BranchNavy        Branch = "NAVY"
	BranchAirForce    Branch = "AIR_FORCE"
	BranchMarineCorps Branch = "MARINE_CORPS"
	BranchSpaceForce  Branch = "SPACE_FORCE"
	BranchCoastGuard  Branch = "COAST_GUARD"
)

func (b Branch) IsValid() bool {
	switch b {
	case BranchArmy, BranchNavy, BranchAirForce, BranchMarineCorps, BranchSpaceForce, BranchCoastGuard:
		return true
	}
	return false
}

// ParseBranch accepts nil or a valid branch name.
func ParseBranch(s *string) (*Branch, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	b := Branch(strings.ToUpper(*s))
	if !b.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid branch")
	}
	return &b, nil
}

// LeaderStatus is the lifecycle state of a roster record.
type LeaderStatus string

const (
	LeaderStatusActive   LeaderStatus = "active"
	LeaderStatusInactive LeaderStatus = "inactive"
)

// Leader is a roster record.
//
// Invariants:
//   - ID never changes once assigned
//   - Name, Title, PhotoURL and Organization are non-empty
//   - Category is valid; Branch is nil or valid
//   - the only transition out of active is Deactivate; records are never removed
type Leader struct {
	ID           string
	Name         string
	Title        string
	PhotoURL     string
	Category     Category
	Branch       *Branch
	Organization string
	Status       LeaderStatus
	LastVerified time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewLeader builds an active record from a candidate.
func NewLeader(id string, c CandidateLeader, now time.Time) (*Leader, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &Leader{
		ID:           id,
		Name:         strings.TrimSpace(c.Name),
		Title:        strings.TrimSpace(c.Title),
		PhotoURL:     strings.TrimSpace(c.PhotoURL),
		Category:     c.Category,
		Branch:       cloneBranch(c.Branch),
		Organization: strings.TrimSpace(c.Organization),
		Status:       LeaderStatusActive,
		LastVerified: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (l *Leader) IsActive() bool {
	return l.Status == LeaderStatusActive
}

// Deactivate soft-deletes the record. Deactivating an inactive record is a no-op.
func (l *Leader) Deactivate(now time.Time) {
	if !l.IsActive() {
		return
	}
	l.Status = LeaderStatusInactive
	l.UpdatedAt = now
}

// Reactivate restores a soft-deleted record; only admins editing by hand do this.
func (l *Leader) Reactivate(now time.Time) {
	if l.IsActive() {
		return
	}
	l.Status = LeaderStatusActive
	l.UpdatedAt = now
}

// Touch records that an upstream check confirmed the record.
func (l *Leader) Touch(now time.Time) {
	l.LastVerified = now
	l.UpdatedAt = now
}

// Clone returns a deep copy.
func (l *Leader) Clone() *Leader {
	c := *l
	c.Branch = cloneBranch(l.Branch)
	return &c
}

func cloneBranch(b *Branch) *Branch {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

// ListFilter narrows a roster listing. Zero values match everything.
type ListFilter struct {
	Category        Category
	Branch          Branch
	Organization    string
	Search          string
	IncludeInactive bool
}

// Matches applies the filter to one record.
func (f ListFilter) Matches(l *Leader) bool {
	if !f.IncludeInactive && !l.IsActive() {
		return false
	}
	if f.Category != "" && l.Category != f.Category {
		return false
	}
	if f.Branch != "" && (l.Branch == nil || *l.Branch != f.Branch) {
		return false
	}
	if f.Organization != "" && !strings.EqualFold(l.Organization, f.Organization) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(l.Name), q) && !strings.Contains(strings.ToLower(l.Title), q) {
			return false
		}
	}
	return true
}

// Less is the canonical roster order: category rank, then name, then id.
func Less(a, b *Leader) bool {
	if ra, rb := a.Category.Rank(), b.Category.Rank(); ra != rb {
		return ra < rb
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.ID < b.ID
}
