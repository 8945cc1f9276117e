package ledger

import (
	"sort"

	"github.com/mmynk/fiambond/internal/models"
)

// ConflictResult is the outcome of a goal conflict check. Goal is nil when
// there is no conflict.
type ConflictResult struct {
	Goal *models.Goal
}

// Conflict reports whether a goal is at risk.
func (r ConflictResult) Conflict() bool {
	return r.Goal != nil
}

// CheckConflict decides whether recording tx jeopardizes one of goals.
//
// Goals carry no progress, so any expense recorded against a scope with an
// active goal reduces that goal's feasibility. Income never conflicts. When
// several goals are active, the one reported is chosen by SelectConflictGoal.
func CheckConflict(goals []*models.Goal, tx *models.Transaction) ConflictResult {
	if tx.Type != models.Expense {
		return ConflictResult{}
	}
	var candidates []*models.Goal
	for _, g := range goals {
		if g.IsActive() && g.Scope == tx.Scope {
			candidates = append(candidates, g)
		}
	}
	return ConflictResult{Goal: SelectConflictGoal(candidates)}
}

// SelectConflictGoal orders goals by earliest target date (undated goals
// last), then by creation time, then by ID, and returns the first.
// Returns nil for an empty list.
func SelectConflictGoal(goals []*models.Goal) *models.Goal {
	if len(goals) == 0 {
		return nil
	}
	sorted := make([]*models.Goal, len(goals))
	copy(sorted, goals)
	sort.SliceStable(sorted, func(i, j int) bool {
		return goalBefore(sorted[i], sorted[j])
	})
	return sorted[0]
}

func goalBefore(a, b *models.Goal) bool {
	switch {
	case a.TargetDate != nil && b.TargetDate == nil:
		return true
	case a.TargetDate == nil && b.TargetDate != nil:
		return false
	case a.TargetDate != nil && !a.TargetDate.Equal(*b.TargetDate):
		return a.TargetDate.Before(*b.TargetDate)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
