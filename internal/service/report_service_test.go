package service

import (
	"context"
	"testing"
	"time"

	"github.com/mmynk/fiambond/internal/ledger"
	"github.com/mmynk/fiambond/internal/models"
)

func TestReportService(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := createUser(t, store, "reporter")
	scope := models.UserScope(user.ID)

	now := time.Date(2026, time.March, 18, 10, 0, 0, 0, time.UTC) // Wednesday
	txns := NewTransactionService(store)
	txns.now = func() time.Time { return now }

	record := func(typ models.TransactionType, amount string, at time.Time) {
		t.Helper()
		_, err := txns.Create(ctx, user.ID, CreateTransactionInput{Scope: scope, Type: typ, Amount: dec(amount), Description: "x", CreatedAt: &at})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	record(models.Income, "1000", time.Date(2026, time.March, 16, 9, 0, 0, 0, time.UTC))  // this week, Mon
	record(models.Expense, "150", time.Date(2026, time.March, 18, 8, 0, 0, 0, time.UTC))  // this week, Wed
	record(models.Expense, "50", time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC))    // this month
	record(models.Income, "400", time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC)) // this year

	reports := NewReportService(store, time.UTC)
	reports.now = func() time.Time { return now }

	tests := []struct {
		period      ledger.Period
		wantIn      string
		wantOut     string
		wantCount   int
		wantBuckets int
	}{
		{ledger.Weekly, "1000", "150", 2, 7},
		{ledger.Monthly, "1000", "200", 3, 31},
		{ledger.Yearly, "1400", "200", 4, 12},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			r, err := reports.Report(ctx, user.ID, scope, tt.period)
			if err != nil {
				t.Fatalf("Report failed: %v", err)
			}
			if !r.TotalInflow.Equal(dec(tt.wantIn)) || !r.TotalOutflow.Equal(dec(tt.wantOut)) {
				t.Errorf("in=%s out=%s, want %s/%s", r.TotalInflow, r.TotalOutflow, tt.wantIn, tt.wantOut)
			}
			if r.TransactionCount != tt.wantCount || len(r.Buckets) != tt.wantBuckets {
				t.Errorf("count=%d buckets=%d", r.TransactionCount, len(r.Buckets))
			}
		})
	}

	balance, err := reports.Balance(ctx, user.ID, scope)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if !balance.Equal(dec("1200")) {
		t.Errorf("balance = %s, want 1200", balance)
	}
}
