package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/fiambond/internal/models"
	"github.com/mmynk/fiambond/internal/storage"
)

const loanColumns = `id, family_id, creditor_id, debtor_id, debtor_name, amount, interest_amount,
	total_owed, repaid_amount, description, status, attachment_url,
	pending_amount, pending_receipt_url, pending_submitted_by, pending_submitted_at,
	deadline, confirmed_at, version, created_at, updated_at`

// CreateLoan persists a new loan with version 1.
func (r *repo) CreateLoan(ctx context.Context, loan *models.Loan) error {
	loan.Version = 1
	pending := pendingColumns(loan.PendingRepayment)

	_, err := r.exec(ctx,
		"INSERT INTO loans ("+loanColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		loan.ID,
		loan.FamilyID,
		loan.CreditorID,
		loan.DebtorID,
		loan.DebtorName,
		loan.Amount,
		loan.InterestAmount,
		loan.TotalOwed,
		loan.RepaidAmount,
		loan.Description,
		string(loan.Status),
		loan.AttachmentURL,
		pending.amount,
		pending.receiptURL,
		pending.submittedBy,
		pending.submittedAt,
		nullMillis(loan.Deadline),
		nullMillis(loan.ConfirmedAt),
		loan.Version,
		toMillis(loan.CreatedAt),
		toMillis(loan.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert loan: %w", err)
	}

	return r.insertReceipts(ctx, loan.ID, 0, loan.RepaymentReceipts)
}

// GetLoan retrieves a loan with its repayment receipts.
func (r *repo) GetLoan(ctx context.Context, id string) (*models.Loan, error) {
	loan, err := scanLoan(r.queryRow(ctx, "SELECT "+loanColumns+" FROM loans WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loan %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}

	receipts, err := r.loanReceipts(ctx, loan.ID)
	if err != nil {
		return nil, err
	}
	loan.RepaymentReceipts = receipts
	return loan, nil
}

// UpdateLoan writes the mutable loan fields when the stored version matches
// loan.Version, then increments loan.Version. Receipts are append-only: only
// receipts beyond those already stored are inserted.
func (r *repo) UpdateLoan(ctx context.Context, loan *models.Loan) error {
	pending := pendingColumns(loan.PendingRepayment)

	res, err := r.exec(ctx, `
		UPDATE loans SET
			repaid_amount = ?, description = ?, status = ?,
			pending_amount = ?, pending_receipt_url = ?, pending_submitted_by = ?, pending_submitted_at = ?,
			deadline = ?, confirmed_at = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		loan.RepaidAmount,
		loan.Description,
		string(loan.Status),
		pending.amount,
		pending.receiptURL,
		pending.submittedBy,
		pending.submittedAt,
		nullMillis(loan.Deadline),
		nullMillis(loan.ConfirmedAt),
		toMillis(loan.UpdatedAt),
		loan.ID,
		loan.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	if err := checkAffected(res, fmt.Errorf("loan %s at version %d: %w", loan.ID, loan.Version, storage.ErrVersionConflict)); err != nil {
		return err
	}
	loan.Version++

	var stored int
	if err := r.queryRow(ctx, "SELECT COUNT(*) FROM loan_receipts WHERE loan_id = ?", loan.ID).Scan(&stored); err != nil {
		return fmt.Errorf("failed to count receipts: %w", err)
	}
	if stored < len(loan.RepaymentReceipts) {
		return r.insertReceipts(ctx, loan.ID, stored, loan.RepaymentReceipts[stored:])
	}
	return nil
}

// ListLoans returns loans matching filter, newest first.
func (r *repo) ListLoans(ctx context.Context, filter storage.LoanFilter) ([]*models.Loan, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != "" {
		where = append(where, "(creditor_id = ? OR debtor_id = ?)")
		args = append(args, filter.UserID, filter.UserID)
	}
	if filter.FamilyID != "" {
		where = append(where, "family_id = ?")
		args = append(args, filter.FamilyID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := "SELECT " + loanColumns + " FROM loans"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}

	var loans []*models.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loans = append(loans, loan)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate loans: %w", err)
	}

	for _, loan := range loans {
		receipts, err := r.loanReceipts(ctx, loan.ID)
		if err != nil {
			return nil, err
		}
		loan.RepaymentReceipts = receipts
	}
	return loans, nil
}

func (r *repo) insertReceipts(ctx context.Context, loanID string, startSeq int, receipts []models.RepaymentReceipt) error {
	for i, receipt := range receipts {
		_, err := r.exec(ctx,
			"INSERT INTO loan_receipts (loan_id, seq, amount, receipt_url, recorded_at) VALUES (?, ?, ?, ?, ?)",
			loanID, startSeq+i, receipt.Amount, receipt.ReceiptURL, toMillis(receipt.RecordedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert repayment receipt: %w", err)
		}
	}
	return nil
}

func (r *repo) loanReceipts(ctx context.Context, loanID string) ([]models.RepaymentReceipt, error) {
	rows, err := r.query(ctx,
		"SELECT amount, receipt_url, recorded_at FROM loan_receipts WHERE loan_id = ? ORDER BY seq",
		loanID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get repayment receipts: %w", err)
	}
	defer rows.Close()

	receipts := []models.RepaymentReceipt{}
	for rows.Next() {
		var (
			receipt    models.RepaymentReceipt
			recordedAt int64
		)
		if err := rows.Scan(&receipt.Amount, &receipt.ReceiptURL, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan repayment receipt: %w", err)
		}
		receipt.RecordedAt = fromMillis(recordedAt)
		receipts = append(receipts, receipt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate repayment receipts: %w", err)
	}
	return receipts, nil
}

type pendingRow struct {
	amount      sql.NullString
	receiptURL  sql.NullString
	submittedBy sql.NullString
	submittedAt sql.NullInt64
}

func pendingColumns(p *models.PendingRepayment) pendingRow {
	if p == nil {
		return pendingRow{}
	}
	return pendingRow{
		amount:      sql.NullString{String: p.Amount.String(), Valid: true},
		receiptURL:  sql.NullString{String: p.ReceiptURL, Valid: true},
		submittedBy: sql.NullString{String: p.SubmittedBy, Valid: true},
		submittedAt: sql.NullInt64{Int64: toMillis(p.SubmittedAt), Valid: true},
	}
}

func scanLoan(row rowScanner) (*models.Loan, error) {
	var (
		loan                  models.Loan
		status                string
		pending               pendingRow
		deadline, confirmedAt sql.NullInt64
		createdAt, updatedAt  int64
	)
	err := row.Scan(
		&loan.ID,
		&loan.FamilyID,
		&loan.CreditorID,
		&loan.DebtorID,
		&loan.DebtorName,
		&loan.Amount,
		&loan.InterestAmount,
		&loan.TotalOwed,
		&loan.RepaidAmount,
		&loan.Description,
		&status,
		&loan.AttachmentURL,
		&pending.amount,
		&pending.receiptURL,
		&pending.submittedBy,
		&pending.submittedAt,
		&deadline,
		&confirmedAt,
		&loan.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	loan.Status = models.LoanStatus(status)
	loan.Deadline = timePtr(deadline)
	loan.ConfirmedAt = timePtr(confirmedAt)
	loan.CreatedAt = fromMillis(createdAt)
	loan.UpdatedAt = fromMillis(updatedAt)

	if pending.amount.Valid {
		amount, err := decimal.NewFromString(pending.amount.String)
		if err != nil {
			return nil, fmt.Errorf("invalid pending amount %q: %w", pending.amount.String, err)
		}
		loan.PendingRepayment = &models.PendingRepayment{
			Amount:      amount,
			ReceiptURL:  pending.receiptURL.String,
			SubmittedBy: pending.submittedBy.String,
			SubmittedAt: fromMillis(pending.submittedAt.Int64),
		}
	}
	return &loan, nil
}
