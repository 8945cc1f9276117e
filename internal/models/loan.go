package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

const (
	// LoanPendingConfirmation: the creditor recorded the loan, the debtor has
	// not yet confirmed receiving the funds.
	LoanPendingConfirmation LoanStatus = "pending_confirmation"
	// LoanOutstanding: funds are owed.
	LoanOutstanding LoanStatus = "outstanding"
	// LoanRepaid is terminal.
	LoanRepaid LoanStatus = "repaid"
)

// Loan represents money lent by a creditor to a debtor.
//
// A debtor is either a registered user (DebtorID) or an external person
// tracked by name only (DebtorName). Loans to external debtors skip the
// confirmation and pending-repayment steps.
type Loan struct {
	// ID is the unique identifier for the loan (UUID format).
	ID string `json:"id"`

	// FamilyID is set when the loan was made inside a family.
	FamilyID string `json:"family_id,omitempty"`

	CreditorID string `json:"creditor_id"`
	DebtorID   string `json:"debtor_id,omitempty"`
	DebtorName string `json:"debtor_name,omitempty"`

	// Amount is the principal.
	Amount         decimal.Decimal `json:"amount"`
	InterestAmount decimal.Decimal `json:"interest_amount"`

	// TotalOwed is Amount + InterestAmount.
	TotalOwed    decimal.Decimal `json:"total_owed"`
	RepaidAmount decimal.Decimal `json:"repaid_amount"`

	Description   string     `json:"description"`
	Status        LoanStatus `json:"status"`
	AttachmentURL string     `json:"attachment_url,omitempty"`

	// PendingRepayment is the single repayment claim awaiting the
	// creditor's approval.
	PendingRepayment *PendingRepayment `json:"pending_repayment"`

	// RepaymentReceipts lists approved repayments in the order recorded.
	RepaymentReceipts []RepaymentReceipt `json:"repayment_receipts"`

	Deadline    *time.Time `json:"deadline,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`

	// Version increments on every update.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PendingRepayment is a debtor-submitted, not yet approved repayment claim.
type PendingRepayment struct {
	Amount      decimal.Decimal `json:"amount"`
	ReceiptURL  string          `json:"receipt_url,omitempty"`
	SubmittedBy string          `json:"submitted_by"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// RepaymentReceipt records one approved repayment.
type RepaymentReceipt struct {
	Amount     decimal.Decimal `json:"amount"`
	ReceiptURL string          `json:"receipt_url,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Outstanding returns what is still owed.
func (l *Loan) Outstanding() decimal.Decimal {
	return l.TotalOwed.Sub(l.RepaidAmount)
}

// HasRegisteredDebtor reports whether the debtor is a user of the system.
func (l *Loan) HasRegisteredDebtor() bool {
	return l.DebtorID != ""
}

// DebtorLabel returns a display name for the debtor.
func (l *Loan) DebtorLabel() string {
	if l.DebtorName != "" {
		return l.DebtorName
	}
	return "Borrower"
}
