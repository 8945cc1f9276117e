package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a ledger entry.
type TransactionType string

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// Transaction is a single ledger entry. Transactions are never updated or
// deleted once recorded.
type Transaction struct {
	// ID is the unique identifier for the transaction (UUID format).
	ID string `json:"id"`

	// Scope is the user, family or company the entry is recorded against.
	Scope Scope `json:"scope"`

	// UserID is the user who recorded the entry (or on whose behalf the
	// system recorded it).
	UserID string `json:"user_id"`

	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`

	// AttachmentURL references an uploaded receipt or proof, if any.
	AttachmentURL string `json:"attachment_url,omitempty"`

	// LoanID links entries produced by the loan state machine.
	LoanID string `json:"loan_id,omitempty"`

	// GoalID links the expense produced by goal completion.
	GoalID string `json:"goal_id,omitempty"`

	// IsSystemGenerated marks entries written by scheduled jobs.
	IsSystemGenerated bool `json:"is_system_generated"`

	// SystemKey deduplicates system-generated entries (e.g. one unseen-cost
	// entry per user and month). Empty for user entries.
	SystemKey string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// Signed returns the amount as a positive value for income and a negative
// value for expenses.
func (t *Transaction) Signed() decimal.Decimal {
	if t.Type == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}
