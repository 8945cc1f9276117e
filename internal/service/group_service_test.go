package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmynk/fiambond/internal/models"
	"github.com/mmynk/fiambond/internal/storage"
)

func TestGroupService(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	owner := createUser(t, store, "owner")
	member := createUser(t, store, "member")
	groups := NewGroupService(store)

	family, err := groups.Create(ctx, owner.ID, models.GroupFamily, "  Santos  ")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if family.Name != "Santos" || !family.HasMember(owner.ID) {
		t.Errorf("family = %+v", family)
	}

	t.Run("add member by email", func(t *testing.T) {
		got, err := groups.AddMember(ctx, owner.ID, models.GroupFamily, family.ID, "MEMBER@example.com")
		if err != nil {
			t.Fatalf("AddMember failed: %v", err)
		}
		if !got.HasMember(member.ID) {
			t.Errorf("members = %v", got.Members)
		}

		_, err = groups.AddMember(ctx, owner.ID, models.GroupFamily, family.ID, member.Email)
		assertValidation(t, err, "email")
		_, err = groups.AddMember(ctx, owner.ID, models.GroupFamily, family.ID, "ghost@example.com")
		assertValidation(t, err, "email")
	})

	t.Run("only the owner manages", func(t *testing.T) {
		if _, err := groups.Rename(ctx, member.ID, models.GroupFamily, family.ID, "Mine"); !errors.Is(err, ErrForbidden) {
			t.Errorf("expected ErrForbidden on rename, got %v", err)
		}
		if err := groups.Delete(ctx, member.ID, models.GroupFamily, family.ID); !errors.Is(err, ErrForbidden) {
			t.Errorf("expected ErrForbidden on delete, got %v", err)
		}
	})

	t.Run("families and companies are separate", func(t *testing.T) {
		if _, err := groups.Get(ctx, owner.ID, models.GroupCompany, family.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		companies, _ := groups.List(ctx, owner.ID, models.GroupCompany)
		if len(companies) != 0 {
			t.Errorf("companies = %+v", companies)
		}
	})

	t.Run("balances", func(t *testing.T) {
		loans := NewLoanService(store)
		loan, err := loans.Create(ctx, owner.ID, CreateLoanInput{FamilyID: family.ID, DebtorID: member.ID, Amount: dec("200"), Description: "Rent share"})
		if err != nil {
			t.Fatalf("Create loan failed: %v", err)
		}
		loans.ConfirmFunds(ctx, member.ID, loan.ID, decimal.Zero, "")

		balances, debts, err := groups.FamilyBalances(ctx, member.ID, family.ID)
		if err != nil {
			t.Fatalf("FamilyBalances failed: %v", err)
		}
		if len(balances) != 2 || len(debts) != 1 {
			t.Fatalf("balances=%+v debts=%+v", balances, debts)
		}
		if debts[0].From != member.ID || debts[0].To != owner.ID || !debts[0].Amount.Equal(dec("200")) {
			t.Errorf("debt = %+v", debts[0])
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := groups.Delete(ctx, owner.ID, models.GroupFamily, family.ID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := groups.Get(ctx, owner.ID, models.GroupFamily, family.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})
}
