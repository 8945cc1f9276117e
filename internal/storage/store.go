// Package storage provides abstractions for persistent ledger storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mmynk/fiambond/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrVersionConflict is returned when an update targets a stale version
	// of a loan or goal.
	ErrVersionConflict = errors.New("version conflict")

	// ErrDuplicate is returned when an insert violates a uniqueness rule
	// (email, group member, system key, idempotency key).
	ErrDuplicate = errors.New("duplicate record")
)

// TransactionFilter narrows a transaction listing. Zero values are ignored.
type TransactionFilter struct {
	Scope models.Scope

	// Since and Until bound created_at as [Since, Until).
	Since time.Time
	Until time.Time

	Type          models.TransactionType
	ExcludeSystem bool

	Limit  int
	Offset int
}

// LoanFilter narrows a loan listing. UserID matches either party.
type LoanFilter struct {
	UserID   string
	FamilyID string
	Status   models.LoanStatus
}

// GoalFilter narrows a goal listing.
type GoalFilter struct {
	Scope  models.Scope
	Status models.GoalStatus
}

// Repository defines the ledger storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL)
// without changing the service layer.
type Repository interface {
	// CreateUser inserts a user. Returns ErrDuplicate if the email is taken.
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// UpdateUser writes the email, display name and password hash.
	// Returns ErrDuplicate if the new email is taken.
	UpdateUser(ctx context.Context, user *models.User) error
	// GetUsersByIDs returns a map of user ID to user. Missing users are omitted.
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
	ListUserIDs(ctx context.Context) ([]string, error)

	// CreateGroup persists a group and its initial members.
	CreateGroup(ctx context.Context, group *models.Group) error
	GetGroup(ctx context.Context, kind models.GroupKind, id string) (*models.Group, error)
	ListGroupsForUser(ctx context.Context, kind models.GroupKind, userID string) ([]*models.Group, error)
	RenameGroup(ctx context.Context, kind models.GroupKind, id, name string) error
	DeleteGroup(ctx context.Context, kind models.GroupKind, id string) error
	// AddGroupMember returns ErrDuplicate if the user is already a member.
	AddGroupMember(ctx context.Context, groupID, userID string) error

	// CreateTransaction appends a ledger entry. Returns ErrDuplicate when a
	// system-generated entry with the same system key already exists.
	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	// ListTransactions returns matching entries, newest first.
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]*models.Transaction, error)

	CreateLoan(ctx context.Context, loan *models.Loan) error
	GetLoan(ctx context.Context, id string) (*models.Loan, error)
	// UpdateLoan writes loan if its stored version equals loan.Version and
	// increments the version. Returns ErrVersionConflict otherwise.
	UpdateLoan(ctx context.Context, loan *models.Loan) error
	ListLoans(ctx context.Context, filter LoanFilter) ([]*models.Loan, error)

	CreateGoal(ctx context.Context, goal *models.Goal) error
	GetGoal(ctx context.Context, id string) (*models.Goal, error)
	// UpdateGoal has the same version semantics as UpdateLoan.
	UpdateGoal(ctx context.Context, goal *models.Goal) error
	ListGoals(ctx context.Context, filter GoalFilter) ([]*models.Goal, error)

	// CreateIdempotencyRecord claims a key. Returns ErrDuplicate if the
	// user already holds a record for it.
	CreateIdempotencyRecord(ctx context.Context, rec *models.IdempotencyRecord) error
	GetIdempotencyRecord(ctx context.Context, userID, key string) (*models.IdempotencyRecord, error)
	CompleteIdempotencyRecord(ctx context.Context, rec *models.IdempotencyRecord) error
	DeleteIdempotencyRecord(ctx context.Context, userID, key string) error
	// PurgeIdempotencyRecords deletes records created before cutoff and
	// returns how many were removed.
	PurgeIdempotencyRecords(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store is a Repository that can run a unit of work atomically.
type Store interface {
	Repository

	// RunInTx calls fn with a Repository bound to a single database
	// transaction. The transaction commits if fn returns nil and rolls back
	// otherwise. fn must only use the Repository it is given.
	RunInTx(ctx context.Context, fn func(repo Repository) error) error

	// Close releases any resources held by the store.
	Close() error
}
