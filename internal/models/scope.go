package models

import "fmt"

// ScopeType names the kind of entity that owns a ledger record.
type ScopeType string

const (
	ScopeUser    ScopeType = "user"
	ScopeFamily  ScopeType = "family"
	ScopeCompany ScopeType = "company"
)

// Valid reports whether t is a known scope type.
func (t ScopeType) Valid() bool {
	switch t {
	case ScopeUser, ScopeFamily, ScopeCompany:
		return true
	}
	return false
}

// GroupKind returns the group kind backing a family or company scope.
// ok is false for user scopes.
func (t ScopeType) GroupKind() (kind GroupKind, ok bool) {
	switch t {
	case ScopeFamily:
		return GroupFamily, true
	case ScopeCompany:
		return GroupCompany, true
	}
	return "", false
}

// Scope identifies the owner of a transaction or goal: a user, a family or a company.
type Scope struct {
	Type ScopeType `json:"type"`
	ID   string    `json:"id"`
}

// UserScope returns the personal scope of a user.
func UserScope(userID string) Scope {
	return Scope{Type: ScopeUser, ID: userID}
}

// FamilyScope returns the scope of a family.
func FamilyScope(familyID string) Scope {
	return Scope{Type: ScopeFamily, ID: familyID}
}

// CompanyScope returns the scope of a company.
func CompanyScope(companyID string) Scope {
	return Scope{Type: ScopeCompany, ID: companyID}
}

// IsZero reports whether the scope is unset.
func (s Scope) IsZero() bool {
	return s.Type == "" && s.ID == ""
}

func (s Scope) String() string {
	return fmt.Sprintf("%s:%s", s.Type, s.ID)
}
