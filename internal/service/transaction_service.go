package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/fiambond/internal/ledger"
	"github.com/mmynk/fiambond/internal/metrics"
	"github.com/mmynk/fiambond/internal/models"
	"github.com/mmynk/fiambond/internal/storage"
)

// CreateTransactionInput describes a new ledger entry.
type CreateTransactionInput struct {
	Scope         models.Scope
	Type          models.TransactionType
	Amount        decimal.Decimal
	Description   string
	AttachmentURL string

	// CreatedAt backdates the entry. Nil means now.
	CreatedAt *time.Time

	// ForceCreation records an expense even when it conflicts with an
	// active goal. The goal's consequence note records the override.
	ForceCreation bool

	// DeductImmediately, for family income, also records a personal
	// contribution expense for the author.
	DeductImmediately bool
}

// ListTransactionsQuery pages through a scope's entries.
type ListTransactionsQuery struct {
	Since  time.Time
	Limit  int
	Offset int
}

// TransactionService records and lists ledger entries.
type TransactionService struct {
	base
}

// NewTransactionService creates a new TransactionService with the given storage backend.
func NewTransactionService(store storage.Store) *TransactionService {
	return &TransactionService{base: newBase(store)}
}

// Create records a ledger entry after checking it against the scope's
// active goals. The conflict check, the optional consequence note and the
// inserts run in one database transaction.
func (s *TransactionService) Create(ctx context.Context, userID string, in CreateTransactionInput) (*models.Transaction, error) {
	slog.Info("CreateTransaction request received",
		"user_id", userID,
		"scope", in.Scope.String(),
		"type", in.Type,
		"force", in.ForceCreation,
	)

	now := s.now()
	if err := validateTransaction(in, now); err != nil {
		return nil, err
	}

	createdAt := now
	if in.CreatedAt != nil {
		createdAt = in.CreatedAt.UTC()
	}

	var created *models.Transaction
	err := withRetry(ctx, "CreateTransaction", func() error {
		return s.store.RunInTx(ctx, func(repo storage.Repository) error {
			group, err := authorizeScope(ctx, repo, userID, in.Scope)
			if err != nil {
				return err
			}

			tx := &models.Transaction{
				ID:            newID(),
				Scope:         in.Scope,
				UserID:        userID,
				Type:          in.Type,
				Amount:        in.Amount,
				Description:   strings.TrimSpace(in.Description),
				AttachmentURL: in.AttachmentURL,
				CreatedAt:     createdAt,
			}

			if err := s.checkGoals(ctx, repo, tx, in.ForceCreation, now); err != nil {
				return err
			}
			if err := repo.CreateTransaction(ctx, tx); err != nil {
				return err
			}

			if in.DeductImmediately {
				contribution := &models.Transaction{
					ID:          newID(),
					Scope:       models.UserScope(userID),
					UserID:      userID,
					Type:        models.Expense,
					Amount:      in.Amount,
					Description: fmt.Sprintf("Contribution to %s: %s", group.Name, tx.Description),
					CreatedAt:   createdAt,
				}
				if err := repo.CreateTransaction(ctx, contribution); err != nil {
					return err
				}
			}

			created = tx
			return nil
		})
	})
	if err != nil {
		slog.Warn("CreateTransaction rejected", "user_id", userID, "error", err)
		return nil, err
	}

	slog.Info("Transaction created", "transaction_id", created.ID, "scope", created.Scope.String(), "amount", created.Amount.String())
	return created, nil
}

// checkGoals runs the conflict detector for tx. A forced expense appends a
// dated line to the selected goal's consequence note.
func (s *TransactionService) checkGoals(ctx context.Context, repo storage.Repository, tx *models.Transaction, force bool, now time.Time) error {
	if tx.Type != models.Expense {
		return nil
	}

	goals, err := repo.ListGoals(ctx, storage.GoalFilter{Scope: tx.Scope, Status: models.GoalActive})
	if err != nil {
		return err
	}
	result := ledger.CheckConflict(goals, tx)
	if !result.Conflict() {
		return nil
	}

	if !force {
		metrics.GoalConflicts.WithLabelValues(metrics.OutcomeBlocked).Inc()
		return &GoalConflictError{Goal: result.Goal}
	}

	goal := result.Goal
	line := fmt.Sprintf("[%s] Forced expense of %s: %s", now.Format("2006-01-02"), tx.Amount.StringFixed(2), tx.Description)
	if goal.ConsequenceNote != "" {
		goal.ConsequenceNote += "\n"
	}
	goal.ConsequenceNote += line
	if err := repo.UpdateGoal(ctx, goal); err != nil {
		return err
	}
	metrics.GoalConflicts.WithLabelValues(metrics.OutcomeForced).Inc()
	slog.Info("Expense forced past active goal", "goal_id", goal.ID, "amount", tx.Amount.String())
	return nil
}

// Get returns a single entry visible to userID.
func (s *TransactionService) Get(ctx context.Context, userID, id string) (*models.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := authorizeScope(ctx, s.store, userID, tx.Scope); err != nil {
		return nil, err
	}
	return tx, nil
}

// List returns a scope's entries, newest first.
func (s *TransactionService) List(ctx context.Context, userID string, scope models.Scope, q ListTransactionsQuery) ([]*models.Transaction, error) {
	if _, err := authorizeScope(ctx, s.store, userID, scope); err != nil {
		return nil, err
	}
	if q.Limit < 0 || q.Offset < 0 {
		return nil, fieldError("limit", "Limit and offset must not be negative.")
	}

	txns, err := s.store.ListTransactions(ctx, storage.TransactionFilter{
		Scope:  scope,
		Since:  q.Since,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
	if err != nil {
		return nil, err
	}
	if txns == nil {
		txns = []*models.Transaction{}
	}
	return txns, nil
}

func validateTransaction(in CreateTransactionInput, now time.Time) error {
	fields := map[string]string{}

	if in.Type != models.Income && in.Type != models.Expense {
		fields["type"] = "The type must be income or expense."
	}
	if err := ledger.ValidateAmount(in.Amount); err != nil {
		fields["amount"] = "The amount must be greater than zero with at most two decimal places."
	}
	if strings.TrimSpace(in.Description) == "" {
		fields["description"] = "The description field is required."
	}
	if in.CreatedAt != nil && in.CreatedAt.After(now.Add(time.Minute)) {
		fields["created_at"] = "The date cannot be in the future."
	}
	if in.DeductImmediately && (in.Scope.Type != models.ScopeFamily || in.Type != models.Income) {
		fields["deduct_immediately"] = "Only family income can be deducted immediately."
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
