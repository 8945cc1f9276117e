// Package service implements the ledger's use cases: authorization,
// validation and atomic orchestration of storage writes around the pure
// decisions in package ledger.
package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/fiambond/internal/auth"
	"github.com/mmynk/fiambond/internal/storage"
)

// base holds what every service needs.
type base struct {
	store storage.Store
	now   func() time.Time
}

func newBase(store storage.Store) base {
	return base{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func newID() string {
	return uuid.New().String()
}

// Services bundles the services served by the REST and RPC layers.
type Services struct {
	Transactions *TransactionService
	Loans        *LoanService
	Goals        *GoalService
	Groups       *GroupService
	Reports      *ReportService
	Users        *UserService
}

// New wires every service to store.
func New(store storage.Store, authenticator auth.Authenticator, jwtManager *auth.JWTManager) *Services {
	return &Services{
		Transactions: NewTransactionService(store),
		Loans:        NewLoanService(store),
		Goals:        NewGoalService(store),
		Groups:       NewGroupService(store),
		Reports:      NewReportService(store, time.Local),
		Users:        NewUserService(store, authenticator, jwtManager),
	}
}
