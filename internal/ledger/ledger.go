// Package ledger holds the pure decision logic of the ledger: the loan state
// machine, goal conflict detection and report aggregation. Nothing in this
// package performs I/O; callers persist the results.
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Tolerance is the slack used when deciding whether a loan is fully repaid.
var Tolerance = decimal.New(1, -2)

var (
	// ErrInvalidTransition is returned when an operation is not allowed in
	// the loan's current state.
	ErrInvalidTransition = errors.New("invalid loan transition")

	// ErrInvalidAmount is returned for non-positive amounts, amounts with
	// more than two decimal places and amounts exceeding what is owed.
	ErrInvalidAmount = errors.New("invalid amount")
)

// Amounts carry at most maxIntegerDigits digits before the decimal point.
// maxExponent bounds the exponent an amount may arrive with.
const (
	maxIntegerDigits = 13
	maxExponent      = 15
)

// CheckSize rejects amounts too large to be money, or written with an
// exponent far outside the cent range. It reads the representation only and
// never rescales, so it must run before any arithmetic on request amounts.
func CheckSize(amount decimal.Decimal) error {
	exp := amount.Exponent()
	if exp < -maxExponent || exp > maxExponent {
		return fmt.Errorf("%w: out of range", ErrInvalidAmount)
	}
	if amount.NumDigits()+int(exp) > maxIntegerDigits {
		return fmt.Errorf("%w: out of range", ErrInvalidAmount)
	}
	return nil
}

// ValidateAmount checks that amount is positive, within CheckSize bounds and
// has at most two decimal places.
func ValidateAmount(amount decimal.Decimal) error {
	if err := CheckSize(amount); err != nil {
		return err
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: at most two decimal places allowed", ErrInvalidAmount)
	}
	return nil
}
