package sqlstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/fiambond/internal/models"
	"github.com/mmynk/fiambond/internal/storage"
)

// newTestStore opens a SQLite store in a temp dir, or a Postgres store when
// TEST_DATABASE_URL is set.
func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	ctx := context.Background()

	if url := os.Getenv("TEST_DATABASE_URL"); url != "" {
		store, err := Open(ctx, DriverPostgres, url)
		if err != nil {
			t.Fatalf("Failed to open postgres store: %v", err)
		}
		t.Cleanup(func() { store.Close() })
		return store
	}

	tempDir, err := os.MkdirTemp("", "fiambond-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := Open(ctx, DriverSQLite, filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func createUser(t *testing.T, store *SQLStore, name string) *models.User {
	t.Helper()
	user := models.NewUser(name+"-"+uuid.NewString()[:8]+"@example.com", name, "hash")
	if err := store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	alice := createUser(t, store, "alice")

	t.Run("GetUserByEmail", func(t *testing.T) {
		got, err := store.GetUserByEmail(ctx, alice.Email)
		if err != nil {
			t.Fatalf("GetUserByEmail failed: %v", err)
		}
		if got.ID != alice.ID || got.DisplayName != "alice" {
			t.Errorf("got %+v, want %+v", got, alice)
		}
		if !got.CreatedAt.Equal(alice.CreatedAt.Truncate(time.Millisecond)) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, alice.CreatedAt)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		dup := models.NewUser(alice.Email, "other", "hash")
		if err := store.CreateUser(ctx, dup); !errors.Is(err, storage.ErrDuplicate) {
			t.Errorf("expected ErrDuplicate, got %v", err)
		}
	})

	t.Run("missing user", func(t *testing.T) {
		if _, err := store.GetUserByID(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdateUser", func(t *testing.T) {
		bob := createUser(t, store, "bob")
		bob.DisplayName = "Robert"
		bob.Email = "robert-" + uuid.NewString()[:8] + "@example.com"
		bob.UpdatedAt = time.Now().UTC()
		if err := store.UpdateUser(ctx, bob); err != nil {
			t.Fatalf("UpdateUser failed: %v", err)
		}
		got, err := store.GetUserByEmail(ctx, bob.Email)
		if err != nil || got.ID != bob.ID || got.DisplayName != "Robert" {
			t.Errorf("got %+v, %v", got, err)
		}

		bob.Email = alice.Email
		if err := store.UpdateUser(ctx, bob); !errors.Is(err, storage.ErrDuplicate) {
			t.Errorf("expected ErrDuplicate, got %v", err)
		}
		ghost := models.NewUser("ghost@example.com", "ghost", "hash")
		if err := store.UpdateUser(ctx, ghost); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("GetUsersByIDs omits unknown IDs", func(t *testing.T) {
		users, err := store.GetUsersByIDs(ctx, []string{alice.ID, "ghost"})
		if err != nil {
			t.Fatalf("GetUsersByIDs failed: %v", err)
		}
		if len(users) != 1 || users[alice.ID] == nil {
			t.Errorf("got %v", users)
		}
	})
}

func TestGroups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	owner := createUser(t, store, "owner")
	member := createUser(t, store, "member")

	family := &models.Group{
		ID:        uuid.NewString(),
		Kind:      models.GroupFamily,
		Name:      "Dela Cruz",
		OwnerID:   owner.ID,
		Members:   []string{owner.ID},
		CreatedAt: time.Now().UTC(),
	}
	if err := store.CreateGroup(ctx, family); err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}

	t.Run("kind is part of the lookup", func(t *testing.T) {
		if _, err := store.GetGroup(ctx, models.GroupCompany, family.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound for wrong kind, got %v", err)
		}
	})

	t.Run("add member", func(t *testing.T) {
		if err := store.AddGroupMember(ctx, family.ID, member.ID); err != nil {
			t.Fatalf("AddGroupMember failed: %v", err)
		}
		if err := store.AddGroupMember(ctx, family.ID, member.ID); !errors.Is(err, storage.ErrDuplicate) {
			t.Errorf("expected ErrDuplicate, got %v", err)
		}

		got, err := store.GetGroup(ctx, models.GroupFamily, family.ID)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if !got.HasMember(owner.ID) || !got.HasMember(member.ID) {
			t.Errorf("members = %v", got.Members)
		}

		groups, err := store.ListGroupsForUser(ctx, models.GroupFamily, member.ID)
		if err != nil {
			t.Fatalf("ListGroupsForUser failed: %v", err)
		}
		if len(groups) != 1 || groups[0].ID != family.ID {
			t.Errorf("groups = %+v", groups)
		}
	})

	t.Run("rename and delete", func(t *testing.T) {
		if err := store.RenameGroup(ctx, models.GroupFamily, family.ID, "Santos"); err != nil {
			t.Fatalf("RenameGroup failed: %v", err)
		}
		got, _ := store.GetGroup(ctx, models.GroupFamily, family.ID)
		if got.Name != "Santos" {
			t.Errorf("name = %s", got.Name)
		}

		if err := store.DeleteGroup(ctx, models.GroupFamily, family.ID); err != nil {
			t.Fatalf("DeleteGroup failed: %v", err)
		}
		if _, err := store.GetGroup(ctx, models.GroupFamily, family.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})
}

func TestTransactions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := createUser(t, store, "spender")
	scope := models.UserScope(user.ID)
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	for i, amount := range []string{"10.50", "20", "30.25"} {
		tx := &models.Transaction{
			ID:          uuid.NewString(),
			Scope:       scope,
			UserID:      user.ID,
			Type:        models.Expense,
			Amount:      dec(amount),
			Description: "item",
			CreatedAt:   base.AddDate(0, 0, i),
		}
		if err := store.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("CreateTransaction failed: %v", err)
		}
	}

	t.Run("newest first with paging", func(t *testing.T) {
		txns, err := store.ListTransactions(ctx, storage.TransactionFilter{Scope: scope, Limit: 2})
		if err != nil {
			t.Fatalf("ListTransactions failed: %v", err)
		}
		if len(txns) != 2 {
			t.Fatalf("got %d transactions, want 2", len(txns))
		}
		if !txns[0].Amount.Equal(dec("30.25")) || !txns[1].Amount.Equal(dec("20")) {
			t.Errorf("unexpected order: %s, %s", txns[0].Amount, txns[1].Amount)
		}

		rest, _ := store.ListTransactions(ctx, storage.TransactionFilter{Scope: scope, Limit: 2, Offset: 2})
		if len(rest) != 1 || !rest[0].Amount.Equal(dec("10.50")) {
			t.Errorf("second page = %+v", rest)
		}
	})

	t.Run("time window", func(t *testing.T) {
		txns, _ := store.ListTransactions(ctx, storage.TransactionFilter{
			Scope: scope,
			Since: base.AddDate(0, 0, 1),
			Until: base.AddDate(0, 0, 2),
		})
		if len(txns) != 1 || !txns[0].Amount.Equal(dec("20")) {
			t.Errorf("window = %+v", txns)
		}
	})

	t.Run("system key is unique", func(t *testing.T) {
		sys := func() *models.Transaction {
			return &models.Transaction{
				ID:                uuid.NewString(),
				Scope:             scope,
				UserID:            user.ID,
				Type:              models.Expense,
				Amount:            dec("4.27"),
				Description:       "Unseen costs",
				IsSystemGenerated: true,
				SystemKey:         "unseen:" + user.ID + ":2026-02",
				CreatedAt:         base,
			}
		}
		if err := store.CreateTransaction(ctx, sys()); err != nil {
			t.Fatalf("CreateTransaction failed: %v", err)
		}
		if err := store.CreateTransaction(ctx, sys()); !errors.Is(err, storage.ErrDuplicate) {
			t.Errorf("expected ErrDuplicate, got %v", err)
		}

		txns, _ := store.ListTransactions(ctx, storage.TransactionFilter{Scope: scope, ExcludeSystem: true})
		if len(txns) != 3 {
			t.Errorf("got %d non-system transactions, want 3", len(txns))
		}
	})
}

func TestLoans(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	creditor := createUser(t, store, "creditor")
	debtor := createUser(t, store, "debtor")
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	loan := &models.Loan{
		ID:                uuid.NewString(),
		CreditorID:        creditor.ID,
		DebtorID:          debtor.ID,
		Amount:            dec("1000"),
		InterestAmount:    dec("100"),
		TotalOwed:         dec("1100"),
		RepaidAmount:      decimal.Zero,
		Description:       "tuition",
		Status:            models.LoanOutstanding,
		RepaymentReceipts: []models.RepaymentReceipt{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := store.CreateLoan(ctx, loan); err != nil {
		t.Fatalf("CreateLoan failed: %v", err)
	}
	if loan.Version != 1 {
		t.Errorf("version = %d, want 1", loan.Version)
	}

	t.Run("pending repayment round-trips", func(t *testing.T) {
		loan.PendingRepayment = &models.PendingRepayment{
			Amount:      dec("500"),
			ReceiptURL:  "https://receipts/1",
			SubmittedBy: debtor.ID,
			SubmittedAt: now,
		}
		if err := store.UpdateLoan(ctx, loan); err != nil {
			t.Fatalf("UpdateLoan failed: %v", err)
		}

		got, err := store.GetLoan(ctx, loan.ID)
		if err != nil {
			t.Fatalf("GetLoan failed: %v", err)
		}
		if got.PendingRepayment == nil || !got.PendingRepayment.Amount.Equal(dec("500")) {
			t.Errorf("pending = %+v", got.PendingRepayment)
		}
		if got.Version != 2 || loan.Version != 2 {
			t.Errorf("version = %d/%d, want 2", got.Version, loan.Version)
		}
	})

	t.Run("receipts append", func(t *testing.T) {
		loan.PendingRepayment = nil
		loan.RepaidAmount = dec("500")
		loan.RepaymentReceipts = append(loan.RepaymentReceipts, models.RepaymentReceipt{Amount: dec("500"), RecordedAt: now})
		if err := store.UpdateLoan(ctx, loan); err != nil {
			t.Fatalf("UpdateLoan failed: %v", err)
		}
		loan.RepaidAmount = dec("1100")
		loan.Status = models.LoanRepaid
		loan.RepaymentReceipts = append(loan.RepaymentReceipts, models.RepaymentReceipt{Amount: dec("600"), RecordedAt: now})
		if err := store.UpdateLoan(ctx, loan); err != nil {
			t.Fatalf("UpdateLoan failed: %v", err)
		}

		got, _ := store.GetLoan(ctx, loan.ID)
		if len(got.RepaymentReceipts) != 2 || !got.RepaymentReceipts[1].Amount.Equal(dec("600")) {
			t.Errorf("receipts = %+v", got.RepaymentReceipts)
		}
		if got.PendingRepayment != nil || got.Status != models.LoanRepaid {
			t.Errorf("loan = %+v", got)
		}
	})

	t.Run("stale version is rejected", func(t *testing.T) {
		stale := *loan
		stale.Version = 1
		stale.Description = "overwrite"
		if err := store.UpdateLoan(ctx, &stale); !errors.Is(err, storage.ErrVersionConflict) {
			t.Errorf("expected ErrVersionConflict, got %v", err)
		}
		got, _ := store.GetLoan(ctx, loan.ID)
		if got.Description != "tuition" {
			t.Errorf("stale update was applied: %s", got.Description)
		}
	})

	t.Run("list by party", func(t *testing.T) {
		loans, err := store.ListLoans(ctx, storage.LoanFilter{UserID: debtor.ID})
		if err != nil {
			t.Fatalf("ListLoans failed: %v", err)
		}
		if len(loans) != 1 || len(loans[0].RepaymentReceipts) != 2 {
			t.Errorf("loans = %+v", loans)
		}
		outstanding, _ := store.ListLoans(ctx, storage.LoanFilter{UserID: debtor.ID, Status: models.LoanOutstanding})
		if len(outstanding) != 0 {
			t.Errorf("expected no outstanding loans, got %d", len(outstanding))
		}
	})
}

func TestGoals(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := createUser(t, store, "saver")
	target := time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC)

	goal := &models.Goal{
		ID:           uuid.NewString(),
		Scope:        models.UserScope(user.ID),
		UserID:       user.ID,
		Name:         "Laptop",
		TargetAmount: dec("5000"),
		TargetDate:   &target,
		Status:       models.GoalActive,
		CreatedAt:    time.Now().UTC(),
	}
	if err := store.CreateGoal(ctx, goal); err != nil {
		t.Fatalf("CreateGoal failed: %v", err)
	}

	got, err := store.GetGoal(ctx, goal.ID)
	if err != nil {
		t.Fatalf("GetGoal failed: %v", err)
	}
	if got.TargetDate == nil || !got.TargetDate.Equal(target) {
		t.Errorf("target date = %v", got.TargetDate)
	}

	got.Status = models.GoalAbandoned
	got.AbandonedAt = &target
	if err := store.UpdateGoal(ctx, got); err != nil {
		t.Fatalf("UpdateGoal failed: %v", err)
	}
	if err := store.UpdateGoal(ctx, goal); !errors.Is(err, storage.ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict for stale goal, got %v", err)
	}

	active, _ := store.ListGoals(ctx, storage.GoalFilter{Scope: goal.Scope, Status: models.GoalActive})
	if len(active) != 0 {
		t.Errorf("expected no active goals, got %d", len(active))
	}
}

func TestRunInTx(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := createUser(t, store, "atomic")
	boom := errors.New("boom")

	err := store.RunInTx(ctx, func(repo storage.Repository) error {
		tx := &models.Transaction{
			ID:        uuid.NewString(),
			Scope:     models.UserScope(user.ID),
			UserID:    user.ID,
			Type:      models.Income,
			Amount:    dec("1"),
			CreatedAt: time.Now().UTC(),
		}
		if err := repo.CreateTransaction(ctx, tx); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	txns, _ := store.ListTransactions(ctx, storage.TransactionFilter{Scope: models.UserScope(user.ID)})
	if len(txns) != 0 {
		t.Errorf("rolled back transaction was persisted: %+v", txns)
	}
}

func TestIdempotencyRecords(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	old := time.Now().UTC().Add(-100 * time.Hour)
	userID := uuid.NewString()

	rec := &models.IdempotencyRecord{
		Key:         "key-1",
		UserID:      userID,
		RequestHash: "abc",
		Status:      models.IdempotencyInProgress,
		CreatedAt:   old,
	}
	if err := store.CreateIdempotencyRecord(ctx, rec); err != nil {
		t.Fatalf("CreateIdempotencyRecord failed: %v", err)
	}
	if err := store.CreateIdempotencyRecord(ctx, rec); !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	rec.ResponseStatus = 201
	rec.ResponseBody = []byte(`{"id":"t1"}`)
	if err := store.CompleteIdempotencyRecord(ctx, rec); err != nil {
		t.Fatalf("CompleteIdempotencyRecord failed: %v", err)
	}

	got, err := store.GetIdempotencyRecord(ctx, userID, "key-1")
	if err != nil {
		t.Fatalf("GetIdempotencyRecord failed: %v", err)
	}
	if got.Status != models.IdempotencyCompleted || got.ResponseStatus != 201 || string(got.ResponseBody) != `{"id":"t1"}` {
		t.Errorf("record = %+v", got)
	}

	n, err := store.PurgeIdempotencyRecords(ctx, time.Now().Add(-72*time.Hour))
	if err != nil {
		t.Fatalf("PurgeIdempotencyRecords failed: %v", err)
	}
	if n < 1 {
		t.Errorf("purged %d records, want at least 1", n)
	}
	if _, err := store.GetIdempotencyRecord(ctx, userID, "key-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound after purge, got %v", err)
	}
}

func TestRebind(t *testing.T) {
	r := &repo{dialect: DriverPostgres}
	got := r.rebind("SELECT * FROM t WHERE a = ? AND b IN (?, ?)")
	want := "SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)"
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}

	sqlite := &repo{dialect: DriverSQLite}
	if q := "SELECT ?"; sqlite.rebind(q) != q {
		t.Errorf("sqlite query was rewritten")
	}
}
