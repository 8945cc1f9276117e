package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mmynk/fiambond/internal/models"
	"github.com/mmynk/fiambond/internal/storage"
)

const transactionColumns = `id, scope_type, scope_id, user_id, type, amount, description,
	attachment_url, loan_id, goal_id, is_system_generated, system_key, created_at`

// CreateTransaction appends a ledger entry.
func (r *repo) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	_, err := r.exec(ctx,
		"INSERT INTO transactions ("+transactionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		tx.ID,
		string(tx.Scope.Type),
		tx.Scope.ID,
		tx.UserID,
		string(tx.Type),
		tx.Amount,
		tx.Description,
		tx.AttachmentURL,
		tx.LoanID,
		tx.GoalID,
		boolInt(tx.IsSystemGenerated),
		nullString(tx.SystemKey),
		toMillis(tx.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("transaction %s: %w", tx.SystemKey, storage.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// GetTransaction retrieves a ledger entry by ID.
func (r *repo) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	tx, err := scanTransaction(r.queryRow(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

// ListTransactions returns entries matching filter, newest first.
func (r *repo) ListTransactions(ctx context.Context, filter storage.TransactionFilter) ([]*models.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if !filter.Scope.IsZero() {
		where = append(where, "scope_type = ? AND scope_id = ?")
		args = append(args, string(filter.Scope.Type), filter.Scope.ID)
	}
	if !filter.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, toMillis(filter.Since))
	}
	if !filter.Until.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, toMillis(filter.Until))
	}
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.ExcludeSystem {
		where = append(where, "is_system_generated = 0")
	}

	query := "SELECT " + transactionColumns + " FROM transactions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []*models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txns, nil
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		tx                  models.Transaction
		scopeType, txType   string
		isSystem, createdAt int64
		systemKey           sql.NullString
	)
	err := row.Scan(
		&tx.ID,
		&scopeType,
		&tx.Scope.ID,
		&tx.UserID,
		&txType,
		&tx.Amount,
		&tx.Description,
		&tx.AttachmentURL,
		&tx.LoanID,
		&tx.GoalID,
		&isSystem,
		&systemKey,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	tx.Scope.Type = models.ScopeType(scopeType)
	tx.Type = models.TransactionType(txType)
	tx.IsSystemGenerated = isSystem != 0
	tx.SystemKey = systemKey.String
	tx.CreatedAt = fromMillis(createdAt)
	return &tx, nil
}
