package models

import "time"

// GroupKind distinguishes families from companies.
type GroupKind string

const (
	GroupFamily  GroupKind = "family"
	GroupCompany GroupKind = "company"
)

// Scope returns the ledger scope type used for records owned by groups of this kind.
func (k GroupKind) Scope() ScopeType {
	if k == GroupCompany {
		return ScopeCompany
	}
	return ScopeFamily
}

// Group is a family or company. Members share the group's ledger scope.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string `json:"id"`

	Kind GroupKind `json:"kind"`

	// Name is the display name (e.g., "Dela Cruz Family", "Acme Inc.").
	Name string `json:"name"`

	// OwnerID is the user who created the group. Only the owner may rename,
	// delete or add members. The owner is always a member.
	OwnerID string `json:"owner_id"`

	// Members is the list of member user IDs.
	Members []string `json:"members"`

	CreatedAt time.Time `json:"created_at"`
}

// HasMember reports whether userID belongs to the group.
func (g *Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}
