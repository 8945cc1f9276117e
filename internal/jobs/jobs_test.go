package jobs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmynk/fiambond/internal/models"
	"github.com/mmynk/fiambond/internal/storage"
	"github.com/mmynk/fiambond/internal/storage/sqlstore"
)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "fiambond-jobs-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	store, err := sqlstore.Open(context.Background(), sqlstore.DriverSQLite, filepath.Join(tempDir, "test.db"))
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
		os.RemoveAll(tempDir)
	})
	return store
}

func addEntry(t *testing.T, store storage.Store, tx *models.Transaction) {
	t.Helper()
	tx.ID = uuid.New().String()
	if err := store.CreateTransaction(context.Background(), tx); err != nil {
		t.Fatalf("CreateTransaction failed: %v", err)
	}
}

func TestGenerateUnseenCosts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	alice := models.NewUser("alice@example.com", "Alice", "hash")
	bob := models.NewUser("bob@example.com", "Bob", "hash")
	for _, u := range []*models.User{alice, bob} {
		if err := store.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
	}

	feb := func(day int) time.Time { return time.Date(2026, time.February, day, 12, 0, 0, 0, time.UTC) }
	personal := models.UserScope(alice.ID)
	addEntry(t, store, &models.Transaction{Scope: personal, UserID: alice.ID, Type: models.Expense, Amount: decimal.NewFromInt(100), Description: "Groceries", CreatedAt: feb(3)})
	addEntry(t, store, &models.Transaction{Scope: personal, UserID: alice.ID, Type: models.Expense, Amount: decimal.RequireFromString("50.50"), Description: "Fuel", CreatedAt: feb(20)})
	// Ignored: income, a system entry, another month, another scope.
	addEntry(t, store, &models.Transaction{Scope: personal, UserID: alice.ID, Type: models.Income, Amount: decimal.NewFromInt(900), Description: "Salary", CreatedAt: feb(1)})
	addEntry(t, store, &models.Transaction{Scope: personal, UserID: alice.ID, Type: models.Expense, Amount: decimal.NewFromInt(40), Description: "Old", IsSystemGenerated: true, SystemKey: "seed", CreatedAt: feb(2)})
	addEntry(t, store, &models.Transaction{Scope: personal, UserID: alice.ID, Type: models.Expense, Amount: decimal.NewFromInt(70), Description: "March", CreatedAt: time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)})
	addEntry(t, store, &models.Transaction{Scope: models.FamilyScope("fam"), UserID: alice.ID, Type: models.Expense, Amount: decimal.NewFromInt(500), Description: "Family", CreatedAt: feb(5)})

	now := time.Date(2026, time.March, 1, 0, 5, 0, 0, time.UTC)

	for run := 1; run <= 2; run++ {
		created, err := GenerateUnseenCosts(ctx, store, now)
		if err != nil {
			t.Fatalf("run %d: GenerateUnseenCosts failed: %v", run, err)
		}
		want := 0
		if run == 1 {
			want = 1
		}
		if created != want {
			t.Errorf("run %d: expected %d new entries, got %d", run, want, created)
		}
	}

	system, err := store.ListTransactions(ctx, storage.TransactionFilter{
		Scope: personal,
		Since: time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC),
		Until: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(system) != 1 {
		t.Fatalf("expected one unseen-cost entry, got %d", len(system))
	}
	got := system[0]
	if !got.IsSystemGenerated || got.Type != models.Expense {
		t.Errorf("expected a system expense, got %+v", got)
	}
	// 7% of 150.50
	if !got.Amount.Equal(decimal.RequireFromString("10.54")) {
		t.Errorf("expected 10.54, got %s", got.Amount)
	}
	if want := time.Date(2026, time.February, 28, 23, 59, 59, 0, time.UTC); !got.CreatedAt.Equal(want) {
		t.Errorf("expected entry dated %v, got %v", want, got.CreatedAt)
	}

	bobs, err := store.ListTransactions(ctx, storage.TransactionFilter{Scope: models.UserScope(bob.ID)})
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(bobs) != 0 {
		t.Errorf("expected nothing for a user without expenses, got %d", len(bobs))
	}
}

func TestPurgeKeys(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)

	for key, age := range map[string]time.Duration{"old": 96 * time.Hour, "fresh": time.Hour} {
		err := store.CreateIdempotencyRecord(ctx, &models.IdempotencyRecord{
			Key:         key,
			UserID:      "u-purge",
			RequestHash: "h",
			Status:      models.IdempotencyCompleted,
			CreatedAt:   now.Add(-age),
		})
		if err != nil {
			t.Fatalf("CreateIdempotencyRecord failed: %v", err)
		}
	}

	s, err := New(store, Options{IdempotencyTTL: 72 * time.Hour, Location: time.UTC})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.now = func() time.Time { return now }

	if err := s.purgeKeys(ctx); err != nil {
		t.Fatalf("purgeKeys failed: %v", err)
	}
	if _, err := store.GetIdempotencyRecord(ctx, "u-purge", "old"); err == nil {
		t.Error("expected the old record to be purged")
	}
	if _, err := store.GetIdempotencyRecord(ctx, "u-purge", "fresh"); err != nil {
		t.Errorf("expected the fresh record to remain: %v", err)
	}
}

func TestSchedulerRegistersJobs(t *testing.T) {
	s, err := New(newTestStore(t), Options{IdempotencyTTL: time.Hour, Location: time.UTC})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if n := len(s.cron.Entries()); n != 2 {
		t.Errorf("expected 2 scheduled jobs, got %d", n)
	}

	s.Start()
	<-s.Stop().Done()
}
