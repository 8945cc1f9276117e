package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmynk/fiambond/internal/models"
	"github.com/mmynk/fiambond/internal/storage"
)

// ResolveScope picks the scope named by exactly one of userID, familyID or
// companyID. With none set it falls back to the caller's personal scope.
func ResolveScope(callerID, userID, familyID, companyID string) (models.Scope, error) {
	var scopes []models.Scope
	if userID != "" {
		scopes = append(scopes, models.UserScope(userID))
	}
	if familyID != "" {
		scopes = append(scopes, models.FamilyScope(familyID))
	}
	if companyID != "" {
		scopes = append(scopes, models.CompanyScope(companyID))
	}

	switch len(scopes) {
	case 0:
		return models.UserScope(callerID), nil
	case 1:
		return scopes[0], nil
	default:
		return models.Scope{}, fieldError("scope", "Only one of user_id, family_id or company_id may be given.")
	}
}

// authorizeScope checks that userID may read and write records in scope:
// its own personal scope, or a family or company it is a member of.
// It returns the backing group for group scopes.
func authorizeScope(ctx context.Context, repo storage.Repository, userID string, scope models.Scope) (*models.Group, error) {
	if !scope.Type.Valid() || scope.ID == "" {
		return nil, fieldError("scope", "A valid user, family or company is required.")
	}

	kind, isGroup := scope.Type.GroupKind()
	if !isGroup {
		if scope.ID != userID {
			return nil, fmt.Errorf("%w: scope %s belongs to another user", ErrForbidden, scope)
		}
		return nil, nil
	}

	group, err := repo.GetGroup(ctx, kind, scope.ID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(userID) {
		return nil, fmt.Errorf("%w: not a member of %s", ErrForbidden, scope)
	}
	return group, nil
}

// canViewLoan reports whether userID is a party to the loan or a member of
// its family.
func canViewLoan(ctx context.Context, repo storage.Repository, userID string, loan *models.Loan) error {
	if loan.CreditorID == userID || loan.DebtorID == userID {
		return nil
	}
	if loan.FamilyID != "" {
		family, err := repo.GetGroup(ctx, models.GroupFamily, loan.FamilyID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if family != nil && family.HasMember(userID) {
			return nil
		}
	}
	return fmt.Errorf("%w: not a party to loan %s", ErrForbidden, loan.ID)
}
