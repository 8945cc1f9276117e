package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mmynk/fiambond/internal/models"
)

func TestTransactionService_GoalConflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := createUser(t, store, "ana")
	scope := models.UserScope(user.ID)

	goals := NewGoalService(store)
	txns := NewTransactionService(store)

	goal, err := goals.Create(ctx, user.ID, CreateGoalInput{Scope: scope, Name: "Laptop", TargetAmount: dec("5000")})
	if err != nil {
		t.Fatalf("Create goal failed: %v", err)
	}

	expense := CreateTransactionInput{Scope: scope, Type: models.Expense, Amount: dec("5000"), Description: "TV"}

	t.Run("blocked without force", func(t *testing.T) {
		_, err := txns.Create(ctx, user.ID, expense)
		var conflict *GoalConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected GoalConflictError, got %v", err)
		}
		if conflict.Goal.ID != goal.ID {
			t.Errorf("conflict goal = %s, want %s", conflict.Goal.ID, goal.ID)
		}
		if n := len(listEntries(t, store, scope)); n != 0 {
			t.Errorf("blocked expense was recorded (%d entries)", n)
		}
	})

	t.Run("income is never blocked", func(t *testing.T) {
		income := CreateTransactionInput{Scope: scope, Type: models.Income, Amount: dec("100"), Description: "Salary"}
		if _, err := txns.Create(ctx, user.ID, income); err != nil {
			t.Fatalf("income rejected: %v", err)
		}
	})

	t.Run("forced expense notes the goal", func(t *testing.T) {
		forced := expense
		forced.ForceCreation = true
		tx, err := txns.Create(ctx, user.ID, forced)
		if err != nil {
			t.Fatalf("forced expense rejected: %v", err)
		}
		if !tx.Amount.Equal(dec("5000")) {
			t.Errorf("amount = %s", tx.Amount)
		}

		got, _ := store.GetGoal(ctx, goal.ID)
		if !got.IsActive() {
			t.Errorf("goal status = %s, want active", got.Status)
		}
		if !strings.Contains(got.ConsequenceNote, "Forced expense of 5000.00: TV") {
			t.Errorf("consequence note = %q", got.ConsequenceNote)
		}
	})
}

// Goal 5000, expense 5000 is blocked; after abandoning the goal a forced
// expense goes through.
func TestTransactionService_AbandonThenForce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := createUser(t, store, "ben")
	scope := models.UserScope(user.ID)

	goals := NewGoalService(store)
	txns := NewTransactionService(store)

	goal, _ := goals.Create(ctx, user.ID, CreateGoalInput{Scope: scope, Name: "Car", TargetAmount: dec("5000")})
	expense := CreateTransactionInput{Scope: scope, Type: models.Expense, Amount: dec("5000"), Description: "Rent"}

	var conflict *GoalConflictError
	if _, err := txns.Create(ctx, user.ID, expense); !errors.As(err, &conflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	if _, err := goals.Abandon(ctx, user.ID, goal.ID); err != nil {
		t.Fatalf("Abandon failed: %v", err)
	}

	expense.ForceCreation = true
	if _, err := txns.Create(ctx, user.ID, expense); err != nil {
		t.Fatalf("expense after abandon failed: %v", err)
	}

	got, _ := store.GetGoal(ctx, goal.ID)
	if got.Status != models.GoalAbandoned || got.ConsequenceNote != "" {
		t.Errorf("abandoned goal changed: %+v", got)
	}
}

func TestTransactionService_FamilyScope(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	owner := createUser(t, store, "owner")
	outsider := createUser(t, store, "outsider")

	family, err := NewGroupService(store).Create(ctx, owner.ID, models.GroupFamily, "Reyes")
	if err != nil {
		t.Fatalf("Create family failed: %v", err)
	}
	txns := NewTransactionService(store)
	scope := models.FamilyScope(family.ID)

	t.Run("deduct immediately records a contribution", func(t *testing.T) {
		_, err := txns.Create(ctx, owner.ID, CreateTransactionInput{
			Scope:             scope,
			Type:              models.Income,
			Amount:            dec("250"),
			Description:       "Groceries fund",
			DeductImmediately: true,
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		personal := listEntries(t, store, models.UserScope(owner.ID))
		if len(personal) != 1 || personal[0].Type != models.Expense || !personal[0].Amount.Equal(dec("250")) {
			t.Fatalf("personal entries = %+v", personal)
		}
		if !strings.HasPrefix(personal[0].Description, "Contribution to Reyes") {
			t.Errorf("description = %q", personal[0].Description)
		}
	})

	t.Run("non-member is forbidden", func(t *testing.T) {
		_, err := txns.Create(ctx, outsider.ID, CreateTransactionInput{
			Scope: scope, Type: models.Expense, Amount: dec("1"), Description: "x",
		})
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
		if _, err := txns.List(ctx, outsider.ID, scope, ListTransactionsQuery{}); !errors.Is(err, ErrForbidden) {
			t.Errorf("expected ErrForbidden on list, got %v", err)
		}
	})

	t.Run("deduct immediately only for family income", func(t *testing.T) {
		_, err := txns.Create(ctx, owner.ID, CreateTransactionInput{
			Scope: models.UserScope(owner.ID), Type: models.Income, Amount: dec("1"), Description: "x", DeductImmediately: true,
		})
		assertValidation(t, err, "deduct_immediately")
	})
}

func TestTransactionService_Validation(t *testing.T) {
	store := newTestStore(t)
	user := createUser(t, store, "val")
	txns := NewTransactionService(store)
	future := time.Now().Add(48 * time.Hour)

	tests := []struct {
		name  string
		in    CreateTransactionInput
		field string
	}{
		{"zero amount", CreateTransactionInput{Type: models.Income, Amount: dec("0"), Description: "x"}, "amount"},
		{"three decimals", CreateTransactionInput{Type: models.Income, Amount: dec("1.005"), Description: "x"}, "amount"},
		{"bad type", CreateTransactionInput{Type: "transfer", Amount: dec("1"), Description: "x"}, "type"},
		{"no description", CreateTransactionInput{Type: models.Income, Amount: dec("1"), Description: "  "}, "description"},
		{"future date", CreateTransactionInput{Type: models.Income, Amount: dec("1"), Description: "x", CreatedAt: &future}, "created_at"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.Scope = models.UserScope(user.ID)
			_, err := txns.Create(context.Background(), user.ID, tt.in)
			assertValidation(t, err, tt.field)
		})
	}
}
