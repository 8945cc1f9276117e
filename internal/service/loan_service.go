package service

import (
	"context"
	"errors"
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

// CreateLoanInput describes a new loan. Exactly one of DebtorID and
// DebtorName identifies the debtor.
type CreateLoanInput struct {
	FamilyID       string
	DebtorID       string
	DebtorName     string
	Amount         decimal.Decimal
	InterestAmount decimal.Decimal
	Description    string
	Deadline       *time.Time
	AttachmentURL  string
}

// UpdateLoanInput changes descriptive loan fields. Nil fields are left
// unchanged. Version, when set, must match the stored version.
type UpdateLoanInput struct {
	Description *string
	Deadline    *time.Time
	Version     *int64
}

// LoanQuery filters ListLoans. Without FamilyID it lists the caller's loans.
type LoanQuery struct {
	FamilyID string
	Status   models.LoanStatus
}

// LoanService runs the loan state machine against the store.
type LoanService struct {
	base
}

// NewLoanService creates a new LoanService with the given storage backend.
func NewLoanService(store storage.Store) *LoanService {
	return &LoanService{base: newBase(store)}
}

// Create records a loan from userID and the creditor's expense for the
// principal in one database transaction.
func (s *LoanService) Create(ctx context.Context, userID string, in CreateLoanInput) (*models.Loan, error) {
	slog.Info("CreateLoan request received",
		"creditor_id", userID,
		"family_id", in.FamilyID,
		"debtor_id", in.DebtorID,
	)

	if strings.TrimSpace(in.Description) == "" {
		return nil, fieldError("description", "The description field is required.")
	}
	if in.DebtorID != "" && in.DebtorName != "" {
		return nil, fieldError("debtor_id", "Give either a registered debtor or a debtor name, not both.")
	}

	var loan *models.Loan
	err := s.store.RunInTx(ctx, func(repo storage.Repository) error {
		if err := s.checkDebtor(ctx, repo, userID, in); err != nil {
			return err
		}

		created, entries, err := ledger.NewLoan(ledger.NewLoanParams{
			FamilyID:       in.FamilyID,
			CreditorID:     userID,
			DebtorID:       in.DebtorID,
			DebtorName:     in.DebtorName,
			Amount:         in.Amount,
			InterestAmount: in.InterestAmount,
			Description:    strings.TrimSpace(in.Description),
			Deadline:       in.Deadline,
			AttachmentURL:  in.AttachmentURL,
		}, s.now())
		if err != nil {
			return ledgerError(err)
		}

		created.ID = newID()
		if err := repo.CreateLoan(ctx, created); err != nil {
			return err
		}
		if err := writeEntries(ctx, repo, created.ID, entries); err != nil {
			return err
		}
		loan = created
		return nil
	})
	if err != nil {
		slog.Warn("CreateLoan rejected", "creditor_id", userID, "error", err)
		return nil, err
	}

	metrics.LoanTransitions.WithLabelValues(metrics.ActionCreate).Inc()
	slog.Info("Loan created", "loan_id", loan.ID, "status", loan.Status, "amount", loan.Amount.String())
	return loan, nil
}

// checkDebtor validates the parties of a new loan.
func (s *LoanService) checkDebtor(ctx context.Context, repo storage.Repository, creditorID string, in CreateLoanInput) error {
	if in.FamilyID != "" {
		family, err := repo.GetGroup(ctx, models.GroupFamily, in.FamilyID)
		if err != nil {
			return err
		}
		if !family.HasMember(creditorID) {
			return fmt.Errorf("%w: not a member of family %s", ErrForbidden, in.FamilyID)
		}
		if in.DebtorID != "" && !family.HasMember(in.DebtorID) {
			return fieldError("debtor_id", "The borrower must be a member of the family.")
		}
		return nil
	}

	if in.DebtorID != "" {
		if _, err := repo.GetUserByID(ctx, in.DebtorID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fieldError("debtor_id", "The selected borrower does not exist.")
			}
			return err
		}
	}
	return nil
}

// Get returns a loan visible to userID.
func (s *LoanService) Get(ctx context.Context, userID, id string) (*models.Loan, error) {
	loan, err := s.store.GetLoan(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canViewLoan(ctx, s.store, userID, loan); err != nil {
		return nil, err
	}
	return loan, nil
}

// List returns the caller's loans, or a family's loans when q.FamilyID is set.
func (s *LoanService) List(ctx context.Context, userID string, q LoanQuery) ([]*models.Loan, error) {
	filter := storage.LoanFilter{Status: q.Status}
	if q.FamilyID != "" {
		if _, err := authorizeScope(ctx, s.store, userID, models.FamilyScope(q.FamilyID)); err != nil {
			return nil, err
		}
		filter.FamilyID = q.FamilyID
	} else {
		filter.UserID = userID
	}

	loans, err := s.store.ListLoans(ctx, filter)
	if err != nil {
		return nil, err
	}
	if loans == nil {
		loans = []*models.Loan{}
	}
	return loans, nil
}

// CountActive returns how many of a family's loans are not yet repaid.
func (s *LoanService) CountActive(ctx context.Context, userID, familyID string) (int, error) {
	if _, err := authorizeScope(ctx, s.store, userID, models.FamilyScope(familyID)); err != nil {
		return 0, err
	}
	loans, err := s.store.ListLoans(ctx, storage.LoanFilter{FamilyID: familyID})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, loan := range loans {
		if loan.Status != models.LoanRepaid {
			n++
		}
	}
	return n, nil
}

// Update changes the description or deadline. Only the creditor may edit.
func (s *LoanService) Update(ctx context.Context, userID, id string, in UpdateLoanInput) (*models.Loan, error) {
	if in.Description != nil && strings.TrimSpace(*in.Description) == "" {
		return nil, fieldError("description", "The description field is required.")
	}

	return s.mutate(ctx, userID, id, "UpdateLoan", "", func(loan *models.Loan, now time.Time) ([]*models.Transaction, error) {
		if loan.CreditorID != userID {
			return nil, fmt.Errorf("%w: only the lender can edit a loan", ErrForbidden)
		}
		if in.Version != nil && *in.Version != loan.Version {
			return nil, fmt.Errorf("%w: loan %s is at version %d", ErrStaleVersion, loan.ID, loan.Version)
		}
		if in.Description != nil {
			loan.Description = strings.TrimSpace(*in.Description)
		}
		if in.Deadline != nil {
			loan.Deadline = in.Deadline
		}
		loan.UpdatedAt = now
		return nil, nil
	})
}

// ConfirmFunds is called by the debtor once the money arrived. A zero
// amount confirms the principal.
func (s *LoanService) ConfirmFunds(ctx context.Context, userID, id string, amount decimal.Decimal, description string) (*models.Loan, error) {
	return s.mutate(ctx, userID, id, "ConfirmFunds", metrics.ActionConfirm, func(loan *models.Loan, now time.Time) ([]*models.Transaction, error) {
		if loan.DebtorID != userID {
			return nil, fmt.Errorf("%w: only the borrower can confirm receipt", ErrForbidden)
		}
		return ledger.ConfirmFunds(loan, userID, amount, description, now)
	})
}

// SubmitRepayment is called by the debtor to claim a repayment.
func (s *LoanService) SubmitRepayment(ctx context.Context, userID, id string, amount decimal.Decimal, receiptURL string) (*models.Loan, error) {
	return s.mutate(ctx, userID, id, "SubmitRepayment", metrics.ActionSubmit, func(loan *models.Loan, now time.Time) ([]*models.Transaction, error) {
		if loan.DebtorID != userID {
			return nil, fmt.Errorf("%w: only the borrower can submit a repayment", ErrForbidden)
		}
		return ledger.SubmitRepayment(loan, userID, amount, receiptURL, now)
	})
}

// ApproveRepayment is called by the creditor to accept the pending claim.
// A zero amount approves the claimed amount.
func (s *LoanService) ApproveRepayment(ctx context.Context, userID, id string, amount decimal.Decimal, receiptURL string) (*models.Loan, error) {
	return s.mutate(ctx, userID, id, "ApproveRepayment", metrics.ActionApprove, func(loan *models.Loan, now time.Time) ([]*models.Transaction, error) {
		if loan.CreditorID != userID {
			return nil, fmt.Errorf("%w: only the lender can approve a repayment", ErrForbidden)
		}
		return ledger.ApproveRepayment(loan, userID, amount, receiptURL, now)
	})
}

// RecordRepayment is called by the creditor of a loan to an external debtor.
func (s *LoanService) RecordRepayment(ctx context.Context, userID, id string, amount decimal.Decimal, receiptURL string) (*models.Loan, error) {
	return s.mutate(ctx, userID, id, "RecordRepayment", metrics.ActionRecord, func(loan *models.Loan, now time.Time) ([]*models.Transaction, error) {
		if loan.CreditorID != userID {
			return nil, fmt.Errorf("%w: only the lender can record a repayment", ErrForbidden)
		}
		return ledger.RecordRepayment(loan, userID, amount, receiptURL, now)
	})
}

// mutate loads a loan, applies change and persists the loan with the
// returned ledger entries in one database transaction. Lost version races
// re-run the whole step, so preconditions are checked against fresh state.
func (s *LoanService) mutate(
	ctx context.Context,
	userID, id, op, action string,
	change func(loan *models.Loan, now time.Time) ([]*models.Transaction, error),
) (*models.Loan, error) {
	slog.Info(op+" request received", "loan_id", id, "user_id", userID)

	var loan *models.Loan
	err := withRetry(ctx, op, func() error {
		return s.store.RunInTx(ctx, func(repo storage.Repository) error {
			current, err := repo.GetLoan(ctx, id)
			if err != nil {
				return err
			}
			if err := canViewLoan(ctx, repo, userID, current); err != nil {
				return err
			}

			entries, err := change(current, s.now())
			if err != nil {
				return ledgerError(err)
			}
			if err := repo.UpdateLoan(ctx, current); err != nil {
				return err
			}
			if err := writeEntries(ctx, repo, current.ID, entries); err != nil {
				return err
			}
			loan = current
			return nil
		})
	})
	if err != nil {
		slog.Warn(op+" rejected", "loan_id", id, "user_id", userID, "error", err)
		return nil, err
	}

	if action != "" {
		metrics.LoanTransitions.WithLabelValues(action).Inc()
	}
	slog.Info(op+" successful",
		"loan_id", loan.ID,
		"status", loan.Status,
		"repaid_amount", loan.RepaidAmount.String(),
		"version", loan.Version,
	)
	return loan, nil
}

func writeEntries(ctx context.Context, repo storage.Repository, loanID string, entries []*models.Transaction) error {
	for _, e := range entries {
		e.ID = newID()
		e.LoanID = loanID
		if err := repo.CreateTransaction(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
