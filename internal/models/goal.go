package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GoalStatus is the lifecycle state of a goal.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalAbandoned GoalStatus = "abandoned"
)

// Goal is a savings target owned by a scope. Completion is binary: there is
// no partial progress, and completing a goal records an expense equal to
// TargetAmount.
type Goal struct {
	// ID is the unique identifier for the goal (UUID format).
	ID string `json:"id"`

	Scope Scope `json:"scope"`

	// UserID is the goal's creator.
	UserID string `json:"user_id"`

	Name         string          `json:"name"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	TargetDate   *time.Time      `json:"target_date,omitempty"`
	Status       GoalStatus      `json:"status"`

	// ConsequenceNote accumulates one line per expense that was forced
	// through while the goal was active.
	ConsequenceNote string `json:"consequence_note,omitempty"`

	CompletedBy string     `json:"completed_by,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	AbandonedAt *time.Time `json:"abandoned_at,omitempty"`

	// Version increments on every update.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
}

// IsActive reports whether the goal can still be completed or abandoned.
func (g *Goal) IsActive() bool {
	return g.Status == GoalActive
}
