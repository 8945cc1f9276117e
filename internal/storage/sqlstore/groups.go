package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/fiambond/internal/models"
	"github.com/mmynk/fiambond/internal/storage"
)

// CreateGroup persists a new group with its members.
// Callers needing atomicity with other writes run it inside RunInTx.
func (r *repo) CreateGroup(ctx context.Context, group *models.Group) error {
	_, err := r.exec(ctx,
		"INSERT INTO groups (id, kind, name, owner_id, created_at) VALUES (?, ?, ?, ?, ?)",
		group.ID, string(group.Kind), group.Name, group.OwnerID, toMillis(group.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	for _, member := range group.Members {
		if err := r.AddGroupMember(ctx, group.ID, member); err != nil {
			return err
		}
	}
	return nil
}

// GetGroup retrieves a group of the given kind, including its members.
func (r *repo) GetGroup(ctx context.Context, kind models.GroupKind, id string) (*models.Group, error) {
	var (
		group     models.Group
		groupKind string
		createdAt int64
	)
	err := r.queryRow(ctx,
		"SELECT id, kind, name, owner_id, created_at FROM groups WHERE id = ? AND kind = ?",
		id, string(kind),
	).Scan(&group.ID, &groupKind, &group.Name, &group.OwnerID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	group.Kind = models.GroupKind(groupKind)
	group.CreatedAt = fromMillis(createdAt)

	members, err := r.groupMembers(ctx, group.ID)
	if err != nil {
		return nil, err
	}
	group.Members = members
	return &group, nil
}

// ListGroupsForUser returns the groups of the given kind that userID belongs to.
func (r *repo) ListGroupsForUser(ctx context.Context, kind models.GroupKind, userID string) ([]*models.Group, error) {
	rows, err := r.query(ctx, `
		SELECT g.id FROM groups g
		JOIN group_members m ON m.group_id = g.id
		WHERE g.kind = ? AND m.user_id = ?
		ORDER BY g.created_at, g.id`,
		string(kind), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan group ID: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating groups: %w", err)
	}

	// Rows are closed before loading members so a single-connection pool
	// is not held by two open queries.
	groups := make([]*models.Group, 0, len(ids))
	for _, id := range ids {
		group, err := r.GetGroup(ctx, kind, id)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// RenameGroup updates a group's display name.
func (r *repo) RenameGroup(ctx context.Context, kind models.GroupKind, id, name string) error {
	res, err := r.exec(ctx, "UPDATE groups SET name = ? WHERE id = ? AND kind = ?", name, id, string(kind))
	if err != nil {
		return fmt.Errorf("failed to rename group: %w", err)
	}
	return checkAffected(res, fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound))
}

// DeleteGroup removes a group and its memberships. Ledger entries recorded
// against the group's scope are kept.
func (r *repo) DeleteGroup(ctx context.Context, kind models.GroupKind, id string) error {
	if _, err := r.exec(ctx, "DELETE FROM group_members WHERE group_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete group members: %w", err)
	}
	res, err := r.exec(ctx, "DELETE FROM groups WHERE id = ? AND kind = ?", id, string(kind))
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	return checkAffected(res, fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound))
}

// AddGroupMember adds a user to a group.
func (r *repo) AddGroupMember(ctx context.Context, groupID, userID string) error {
	_, err := r.exec(ctx,
		"INSERT INTO group_members (group_id, user_id, joined_at) VALUES (?, ?, ?)",
		groupID, userID, toMillis(nowUTC()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("member %s: %w", userID, storage.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert group member: %w", err)
	}
	return nil
}

func (r *repo) groupMembers(ctx context.Context, groupID string) ([]string, error) {
	rows, err := r.query(ctx,
		"SELECT user_id FROM group_members WHERE group_id = ? ORDER BY joined_at, user_id",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}
