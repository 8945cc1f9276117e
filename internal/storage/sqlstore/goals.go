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

const goalColumns = `id, scope_type, scope_id, user_id, name, target_amount, target_date, status,
	consequence_note, completed_by, completed_at, abandoned_at, version, created_at`

// CreateGoal persists a new goal with version 1.
func (r *repo) CreateGoal(ctx context.Context, goal *models.Goal) error {
	goal.Version = 1
	_, err := r.exec(ctx,
		"INSERT INTO goals ("+goalColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		goal.ID,
		string(goal.Scope.Type),
		goal.Scope.ID,
		goal.UserID,
		goal.Name,
		goal.TargetAmount,
		nullMillis(goal.TargetDate),
		string(goal.Status),
		goal.ConsequenceNote,
		goal.CompletedBy,
		nullMillis(goal.CompletedAt),
		nullMillis(goal.AbandonedAt),
		goal.Version,
		toMillis(goal.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert goal: %w", err)
	}
	return nil
}

// GetGoal retrieves a goal by ID.
func (r *repo) GetGoal(ctx context.Context, id string) (*models.Goal, error) {
	goal, err := scanGoal(r.queryRow(ctx, "SELECT "+goalColumns+" FROM goals WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("goal %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}
	return goal, nil
}

// UpdateGoal writes the mutable goal fields when the stored version
// matches goal.Version, then increments goal.Version.
func (r *repo) UpdateGoal(ctx context.Context, goal *models.Goal) error {
	res, err := r.exec(ctx, `
		UPDATE goals SET
			name = ?, target_amount = ?, target_date = ?, status = ?, consequence_note = ?,
			completed_by = ?, completed_at = ?, abandoned_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		goal.Name,
		goal.TargetAmount,
		nullMillis(goal.TargetDate),
		string(goal.Status),
		goal.ConsequenceNote,
		goal.CompletedBy,
		nullMillis(goal.CompletedAt),
		nullMillis(goal.AbandonedAt),
		goal.ID,
		goal.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update goal: %w", err)
	}
	if err := checkAffected(res, fmt.Errorf("goal %s at version %d: %w", goal.ID, goal.Version, storage.ErrVersionConflict)); err != nil {
		return err
	}
	goal.Version++
	return nil
}

// ListGoals returns goals matching filter, oldest first.
func (r *repo) ListGoals(ctx context.Context, filter storage.GoalFilter) ([]*models.Goal, error) {
	var (
		where []string
		args  []any
	)
	if !filter.Scope.IsZero() {
		where = append(where, "scope_type = ? AND scope_id = ?")
		args = append(args, string(filter.Scope.Type), filter.Scope.ID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := "SELECT " + goalColumns + " FROM goals"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()

	var goals []*models.Goal
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		goals = append(goals, goal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate goals: %w", err)
	}
	return goals, nil
}

func scanGoal(row rowScanner) (*models.Goal, error) {
	var (
		goal                                 models.Goal
		scopeType, status                    string
		targetDate, completedAt, abandonedAt sql.NullInt64
		createdAt                            int64
	)
	err := row.Scan(
		&goal.ID,
		&scopeType,
		&goal.Scope.ID,
		&goal.UserID,
		&goal.Name,
		&goal.TargetAmount,
		&targetDate,
		&status,
		&goal.ConsequenceNote,
		&goal.CompletedBy,
		&completedAt,
		&abandonedAt,
		&goal.Version,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	goal.Scope.Type = models.ScopeType(scopeType)
	goal.Status = models.GoalStatus(status)
	goal.TargetDate = timePtr(targetDate)
	goal.CompletedAt = timePtr(completedAt)
	goal.AbandonedAt = timePtr(abandonedAt)
	goal.CreatedAt = fromMillis(createdAt)
	return &goal, nil
}
