package domain

import "time"

// UnitKind discriminates the organizational unit a reference points to.
type UnitKind string

const (
	UnitKindDepartment UnitKind = "Department"
	UnitKindMarket     UnitKind = "Market"
)

// Valid reports whether k is a known unit kind.
func (k UnitKind) Valid() bool {
	return k == UnitKindDepartment || k == UnitKindMarket
}

// UnitRef is a tagged reference to a Department or a Market.
type UnitRef struct {
	ID   string   `json:"id"`
	Kind UnitKind `json:"kind"`
}

// IsZero reports whether the reference is unset.
func (r UnitRef) IsZero() bool {
	return r.ID == "" && r.Kind == ""
}

// OrganizationalUnit is a resolved Department or Market.
type OrganizationalUnit struct {
	ID        string
	Name      string
	Kind      UnitKind
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Ref returns the tagged reference for the unit.
func (u OrganizationalUnit) Ref() UnitRef {
	return UnitRef{ID: u.ID, Kind: u.Kind}
}
