package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/fiambond/internal/ledger"
	"github.com/mmynk/fiambond/internal/models"
	"github.com/mmynk/fiambond/internal/storage"
)

// ReportService builds reports and balances for a scope.
type ReportService struct {
	base
	loc *time.Location
}

// NewReportService creates a ReportService whose windows are anchored in loc.
func NewReportService(store storage.Store, loc *time.Location) *ReportService {
	return &ReportService{base: newBase(store), loc: loc}
}

// Report aggregates the scope's entries over the window of period that
// contains now.
func (s *ReportService) Report(ctx context.Context, userID string, scope models.Scope, period ledger.Period) (ledger.Report, error) {
	if _, err := authorizeScope(ctx, s.store, userID, scope); err != nil {
		return ledger.Report{}, err
	}

	window := ledger.WindowFor(period, s.now().In(s.loc))
	txns, err := s.store.ListTransactions(ctx, storage.TransactionFilter{
		Scope: scope,
		Since: window.Start,
		Until: window.End,
	})
	if err != nil {
		return ledger.Report{}, err
	}
	return ledger.Aggregate(txns, window), nil
}

// Balance returns the scope's all-time income minus expenses.
func (s *ReportService) Balance(ctx context.Context, userID string, scope models.Scope) (decimal.Decimal, error) {
	if _, err := authorizeScope(ctx, s.store, userID, scope); err != nil {
		return decimal.Zero, err
	}
	txns, err := s.store.ListTransactions(ctx, storage.TransactionFilter{Scope: scope})
	if err != nil {
		return decimal.Zero, err
	}
	return ledger.Balance(txns), nil
}
