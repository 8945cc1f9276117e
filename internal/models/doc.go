// Package models defines the core domain models for the FiamBond ledger.
//
// # Models
//
//   - Transaction: an immutable ledger entry (income or expense) owned by a Scope
//   - Loan: money lent by a creditor to a registered or external debtor
//   - Goal: a savings target owned by a Scope
//   - Group: a family or company whose members share a ledger scope
//   - User: a registered account
//   - IdempotencyRecord: the stored outcome of a keyed write request
//
// # Design Principles
//
// 1. **Money is decimal**: amounts use shopspring/decimal, never float64
// 2. **Scopes are explicit**: every ledger record names its owning Scope
// 3. **IDs, not pointers**: relationships are ID strings (UUID format)
// 4. **Versioned mutables**: loans and goals carry a Version for optimistic concurrency
package models
