package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/fiambond/internal/models"
)

// NewLoanParams describes a loan as entered by the creditor.
type NewLoanParams struct {
	FamilyID       string
	CreditorID     string
	DebtorID       string
	DebtorName     string
	Amount         decimal.Decimal
	InterestAmount decimal.Decimal
	Description    string
	Deadline       *time.Time
	AttachmentURL  string
}

// NewLoan builds a loan and the creditor's expense for the principal.
//
// Loans to registered debtors start in pending_confirmation until the debtor
// confirms the funds; loans to external debtors are outstanding immediately.
func NewLoan(p NewLoanParams, now time.Time) (*models.Loan, []*models.Transaction, error) {
	if err := ValidateAmount(p.Amount); err != nil {
		return nil, nil, err
	}
	if err := CheckSize(p.InterestAmount); err != nil {
		return nil, nil, err
	}
	if p.InterestAmount.IsNegative() {
		return nil, nil, fmt.Errorf("%w: interest cannot be negative", ErrInvalidAmount)
	}
	if !p.InterestAmount.Equal(p.InterestAmount.Round(2)) {
		return nil, nil, fmt.Errorf("%w: interest allows at most two decimal places", ErrInvalidAmount)
	}
	if p.DebtorID == "" && strings.TrimSpace(p.DebtorName) == "" {
		return nil, nil, fmt.Errorf("%w: a debtor is required", ErrInvalidTransition)
	}
	if p.DebtorID != "" && p.DebtorID == p.CreditorID {
		return nil, nil, fmt.Errorf("%w: cannot lend to yourself", ErrInvalidTransition)
	}

	loan := &models.Loan{
		FamilyID:          p.FamilyID,
		CreditorID:        p.CreditorID,
		DebtorID:          p.DebtorID,
		DebtorName:        strings.TrimSpace(p.DebtorName),
		Amount:            p.Amount,
		InterestAmount:    p.InterestAmount,
		TotalOwed:         p.Amount.Add(p.InterestAmount),
		RepaidAmount:      decimal.Zero,
		Description:       p.Description,
		Status:            models.LoanOutstanding,
		AttachmentURL:     p.AttachmentURL,
		RepaymentReceipts: []models.RepaymentReceipt{},
		Deadline:          p.Deadline,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	label := "Personal loan"
	if loan.HasRegisteredDebtor() {
		loan.Status = models.LoanPendingConfirmation
		label = "Loan"
	}

	entry := &models.Transaction{
		Scope:         models.UserScope(p.CreditorID),
		UserID:        p.CreditorID,
		Type:          models.Expense,
		Amount:        p.Amount,
		Description:   fmt.Sprintf("%s to %s: %s", label, loan.DebtorLabel(), p.Description),
		AttachmentURL: p.AttachmentURL,
		CreatedAt:     now,
	}
	return loan, []*models.Transaction{entry}, nil
}

// ConfirmFunds moves a loan from pending_confirmation to outstanding and
// returns the income entry for the party receiving the funds. A non-zero
// amount must match the principal.
func ConfirmFunds(loan *models.Loan, receiverID string, amount decimal.Decimal, description string, now time.Time) ([]*models.Transaction, error) {
	if loan.Status != models.LoanPendingConfirmation {
		return nil, fmt.Errorf("%w: loan is %s, not awaiting confirmation", ErrInvalidTransition, loan.Status)
	}
	if err := CheckSize(amount); err != nil {
		return nil, err
	}
	if amount.IsZero() {
		amount = loan.Amount
	}
	if !amount.Equal(loan.Amount) {
		return nil, fmt.Errorf("%w: confirmed amount %s does not match principal %s", ErrInvalidAmount, amount, loan.Amount)
	}
	if description == "" {
		description = loan.Description
	}

	loan.Status = models.LoanOutstanding
	loan.ConfirmedAt = &now
	loan.UpdatedAt = now

	return []*models.Transaction{{
		Scope:       models.UserScope(receiverID),
		UserID:      receiverID,
		Type:        models.Income,
		Amount:      amount,
		Description: "Loan funds received: " + description,
		LoanID:      loan.ID,
		CreatedAt:   now,
	}}, nil
}

// SubmitRepayment places a repayment claim on the loan, replacing any claim
// already pending, and returns the submitter's expense. When a claim is
// replaced, the superseded claim's expense is reversed with an income entry.
func SubmitRepayment(loan *models.Loan, submitterID string, amount decimal.Decimal, receiptURL string, now time.Time) ([]*models.Transaction, error) {
	switch loan.Status {
	case models.LoanRepaid:
		return nil, fmt.Errorf("%w: loan is already repaid", ErrInvalidTransition)
	case models.LoanPendingConfirmation:
		return nil, fmt.Errorf("%w: loan funds have not been confirmed", ErrInvalidTransition)
	}
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	if amount.GreaterThan(loan.Outstanding()) {
		return nil, fmt.Errorf("%w: %s exceeds the outstanding balance %s", ErrInvalidAmount, amount, loan.Outstanding())
	}

	var entries []*models.Transaction
	if prev := loan.PendingRepayment; prev != nil {
		entries = append(entries, &models.Transaction{
			Scope:       models.UserScope(prev.SubmittedBy),
			UserID:      prev.SubmittedBy,
			Type:        models.Income,
			Amount:      prev.Amount,
			Description: "Repayment claim replaced: " + loan.Description,
			LoanID:      loan.ID,
			CreatedAt:   now,
		})
	}

	loan.PendingRepayment = &models.PendingRepayment{
		Amount:      amount,
		ReceiptURL:  receiptURL,
		SubmittedBy: submitterID,
		SubmittedAt: now,
	}
	loan.UpdatedAt = now

	entries = append(entries, &models.Transaction{
		Scope:         models.UserScope(submitterID),
		UserID:        submitterID,
		Type:          models.Expense,
		Amount:        amount,
		Description:   "Repayment submitted: " + loan.Description,
		AttachmentURL: receiptURL,
		LoanID:        loan.ID,
		CreatedAt:     now,
	})
	return entries, nil
}

// ApproveRepayment accepts the pending claim. A zero amount approves the
// claimed amount; a smaller amount approves part of it and the unapproved
// remainder of the submitter's expense is reversed. The receipt defaults to
// the one attached to the claim.
func ApproveRepayment(loan *models.Loan, creditorID string, amount decimal.Decimal, receiptURL string, now time.Time) ([]*models.Transaction, error) {
	pending := loan.PendingRepayment
	if pending == nil {
		return nil, fmt.Errorf("%w: no repayment is pending approval", ErrInvalidTransition)
	}
	if err := CheckSize(amount); err != nil {
		return nil, err
	}
	if amount.IsZero() {
		amount = pending.Amount
	}
	if amount.GreaterThan(pending.Amount) {
		return nil, fmt.Errorf("%w: %s exceeds the claimed amount %s", ErrInvalidAmount, amount, pending.Amount)
	}
	if receiptURL == "" {
		receiptURL = pending.ReceiptURL
	}

	entry, err := applyRepayment(loan, creditorID, amount, receiptURL, "Repayment confirmed: "+loan.Description, now)
	if err != nil {
		return nil, err
	}
	entries := []*models.Transaction{entry}

	if rest := pending.Amount.Sub(amount); rest.IsPositive() {
		entries = append(entries, &models.Transaction{
			Scope:       models.UserScope(pending.SubmittedBy),
			UserID:      pending.SubmittedBy,
			Type:        models.Income,
			Amount:      rest,
			Description: "Repayment claim reduced: " + loan.Description,
			LoanID:      loan.ID,
			CreatedAt:   now,
		})
	}
	return entries, nil
}

// RecordRepayment lets the creditor of a loan to an external debtor record a
// repayment directly; there is no debtor account to submit a claim.
func RecordRepayment(loan *models.Loan, creditorID string, amount decimal.Decimal, receiptURL string, now time.Time) ([]*models.Transaction, error) {
	if loan.HasRegisteredDebtor() {
		return nil, fmt.Errorf("%w: repayments from registered debtors must be submitted and approved", ErrInvalidTransition)
	}
	if loan.Status == models.LoanRepaid {
		return nil, fmt.Errorf("%w: loan is already repaid", ErrInvalidTransition)
	}

	entry, err := applyRepayment(loan, creditorID, amount, receiptURL, "Repayment from "+loan.DebtorLabel(), now)
	if err != nil {
		return nil, err
	}
	return []*models.Transaction{entry}, nil
}

// applyRepayment adds amount to the repaid total, settles the status,
// clears the pending claim and appends a receipt.
func applyRepayment(loan *models.Loan, creditorID string, amount decimal.Decimal, receiptURL, description string, now time.Time) (*models.Transaction, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	newRepaid := loan.RepaidAmount.Add(amount)
	if newRepaid.GreaterThan(loan.TotalOwed) {
		return nil, fmt.Errorf("%w: repaying %s would exceed the total owed %s", ErrInvalidAmount, amount, loan.TotalOwed)
	}

	loan.RepaidAmount = newRepaid
	loan.Status = StatusFor(newRepaid, loan.TotalOwed)
	loan.PendingRepayment = nil
	loan.RepaymentReceipts = append(loan.RepaymentReceipts, models.RepaymentReceipt{
		Amount:     amount,
		ReceiptURL: receiptURL,
		RecordedAt: now,
	})
	loan.UpdatedAt = now

	return &models.Transaction{
		Scope:         models.UserScope(creditorID),
		UserID:        creditorID,
		Type:          models.Income,
		Amount:        amount,
		Description:   description,
		AttachmentURL: receiptURL,
		LoanID:        loan.ID,
		CreatedAt:     now,
	}, nil
}

// StatusFor returns repaid once repaid reaches totalOwed minus Tolerance,
// outstanding otherwise.
func StatusFor(repaid, totalOwed decimal.Decimal) models.LoanStatus {
	if repaid.GreaterThanOrEqual(totalOwed.Sub(Tolerance)) {
		return models.LoanRepaid
	}
	return models.LoanOutstanding
}
