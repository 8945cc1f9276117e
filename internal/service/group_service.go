package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmynk/fiambond/internal/auth"
	"github.com/mmynk/fiambond/internal/ledger"
	"github.com/mmynk/fiambond/internal/models"
	"github.com/mmynk/fiambond/internal/storage"
)

// GroupService manages families and companies.
type GroupService struct {
	base
}

// NewGroupService creates a new GroupService with the given storage backend.
func NewGroupService(store storage.Store) *GroupService {
	return &GroupService{base: newBase(store)}
}

// Create makes userID the owner and first member of a new group.
func (s *GroupService) Create(ctx context.Context, userID string, kind models.GroupKind, name string) (*models.Group, error) {
	slog.Info("CreateGroup request received", "kind", kind, "name", name, "owner_id", userID)

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fieldError("name", "The name field is required.")
	}

	group := &models.Group{
		ID:        newID(),
		Kind:      kind,
		Name:      name,
		OwnerID:   userID,
		Members:   []string{userID},
		CreatedAt: s.now(),
	}
	if err := s.store.RunInTx(ctx, func(repo storage.Repository) error {
		return repo.CreateGroup(ctx, group)
	}); err != nil {
		slog.Error("CreateGroup failed", "error", err)
		return nil, err
	}

	slog.Info("Group created", "group_id", group.ID, "kind", kind)
	return group, nil
}

// List returns the groups of kind that userID belongs to.
func (s *GroupService) List(ctx context.Context, userID string, kind models.GroupKind) ([]*models.Group, error) {
	groups, err := s.store.ListGroupsForUser(ctx, kind, userID)
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []*models.Group{}
	}
	return groups, nil
}

// Get returns a group to one of its members.
func (s *GroupService) Get(ctx context.Context, userID string, kind models.GroupKind, id string) (*models.Group, error) {
	return authorizeScope(ctx, s.store, userID, models.Scope{Type: kind.Scope(), ID: id})
}

// Rename changes a group's name. Owner only.
func (s *GroupService) Rename(ctx context.Context, userID string, kind models.GroupKind, id, name string) (*models.Group, error) {
	slog.Info("RenameGroup request received", "group_id", id, "name", name)

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fieldError("name", "The name field is required.")
	}

	var group *models.Group
	err := s.store.RunInTx(ctx, func(repo storage.Repository) error {
		g, err := ownedGroup(ctx, repo, userID, kind, id)
		if err != nil {
			return err
		}
		if err := repo.RenameGroup(ctx, kind, id, name); err != nil {
			return err
		}
		g.Name = name
		group = g
		return nil
	})
	if err != nil {
		slog.Warn("RenameGroup rejected", "group_id", id, "error", err)
		return nil, err
	}
	return group, nil
}

// Delete removes a group. Owner only. Entries recorded in the group's
// scope stay in the ledger.
func (s *GroupService) Delete(ctx context.Context, userID string, kind models.GroupKind, id string) error {
	slog.Info("DeleteGroup request received", "group_id", id, "user_id", userID)

	err := s.store.RunInTx(ctx, func(repo storage.Repository) error {
		if _, err := ownedGroup(ctx, repo, userID, kind, id); err != nil {
			return err
		}
		return repo.DeleteGroup(ctx, kind, id)
	})
	if err != nil {
		slog.Warn("DeleteGroup rejected", "group_id", id, "error", err)
		return err
	}

	slog.Info("Group deleted", "group_id", id)
	return nil
}

// AddMember adds the registered user with email to the group. Owner only.
func (s *GroupService) AddMember(ctx context.Context, userID string, kind models.GroupKind, id, email string) (*models.Group, error) {
	slog.Info("AddMember request received", "group_id", id, "email", email)

	var group *models.Group
	err := s.store.RunInTx(ctx, func(repo storage.Repository) error {
		g, err := ownedGroup(ctx, repo, userID, kind, id)
		if err != nil {
			return err
		}

		user, err := repo.GetUserByEmail(ctx, auth.NormalizeEmail(email))
		if errors.Is(err, storage.ErrNotFound) {
			return fieldError("email", "No user is registered with this email.")
		}
		if err != nil {
			return err
		}

		if err := repo.AddGroupMember(ctx, id, user.ID); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return fieldError("email", "This user is already a member.")
			}
			return err
		}
		g.Members = append(g.Members, user.ID)
		group = g
		return nil
	})
	if err != nil {
		slog.Warn("AddMember rejected", "group_id", id, "error", err)
		return nil, err
	}

	slog.Info("Member added", "group_id", id, "members_count", len(group.Members))
	return group, nil
}

// FamilyBalances nets the family's outstanding member-to-member loans and
// simplifies them into suggested payments.
func (s *GroupService) FamilyBalances(ctx context.Context, userID, familyID string) ([]ledger.MemberBalance, []ledger.DebtEdge, error) {
	if _, err := authorizeScope(ctx, s.store, userID, models.FamilyScope(familyID)); err != nil {
		return nil, nil, err
	}
	loans, err := s.store.ListLoans(ctx, storage.LoanFilter{FamilyID: familyID, Status: models.LoanOutstanding})
	if err != nil {
		return nil, nil, err
	}
	balances, debts := ledger.GroupBalances(loans)
	if debts == nil {
		debts = []ledger.DebtEdge{}
	}
	return balances, debts, nil
}

func ownedGroup(ctx context.Context, repo storage.Repository, userID string, kind models.GroupKind, id string) (*models.Group, error) {
	group, err := repo.GetGroup(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if group.OwnerID != userID {
		return nil, fmt.Errorf("%w: only the owner can manage %s %s", ErrForbidden, kind, id)
	}
	return group, nil
}
