package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/fiambond/internal/ledger"
	"github.com/mmynk/fiambond/internal/models"
	"github.com/mmynk/fiambond/internal/storage"
)

var minGoalTarget = decimal.NewFromInt(1)

// CreateGoalInput describes a new goal.
type CreateGoalInput struct {
	Scope        models.Scope
	Name         string
	TargetAmount decimal.Decimal
	TargetDate   *time.Time
}

// UpdateGoalInput edits an active goal. Nil fields are left unchanged.
// Setting Status to completed or abandoned runs Complete or Abandon.
type UpdateGoalInput struct {
	Name         *string
	TargetAmount *decimal.Decimal
	TargetDate   *time.Time
	Status       *models.GoalStatus
	Version      *int64
}

// GoalService manages savings goals.
type GoalService struct {
	base
	loc *time.Location
}

// NewGoalService creates a new GoalService with the given storage backend.
func NewGoalService(store storage.Store) *GoalService {
	return &GoalService{base: newBase(store), loc: time.Local}
}

// Create adds an active goal to scope.
func (s *GoalService) Create(ctx context.Context, userID string, in CreateGoalInput) (*models.Goal, error) {
	slog.Info("CreateGoal request received", "user_id", userID, "scope", in.Scope.String(), "name", in.Name)

	name := strings.TrimSpace(in.Name)
	if err := s.validate(name, in.TargetAmount, in.TargetDate); err != nil {
		return nil, err
	}

	goal := &models.Goal{
		ID:           newID(),
		Scope:        in.Scope,
		UserID:       userID,
		Name:         name,
		TargetAmount: in.TargetAmount,
		TargetDate:   in.TargetDate,
		Status:       models.GoalActive,
		CreatedAt:    s.now(),
	}

	err := s.store.RunInTx(ctx, func(repo storage.Repository) error {
		if _, err := authorizeScope(ctx, repo, userID, in.Scope); err != nil {
			return err
		}
		if err := checkGoalName(ctx, repo, in.Scope, name, ""); err != nil {
			return err
		}
		return repo.CreateGoal(ctx, goal)
	})
	if err != nil {
		slog.Warn("CreateGoal rejected", "user_id", userID, "error", err)
		return nil, err
	}

	slog.Info("Goal created", "goal_id", goal.ID, "scope", goal.Scope.String())
	return goal, nil
}

// Get returns a goal visible to userID.
func (s *GoalService) Get(ctx context.Context, userID, id string) (*models.Goal, error) {
	goal, err := s.store.GetGoal(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := authorizeScope(ctx, s.store, userID, goal.Scope); err != nil {
		return nil, err
	}
	return goal, nil
}

// List returns the goals of scope, optionally filtered by status.
func (s *GoalService) List(ctx context.Context, userID string, scope models.Scope, status models.GoalStatus) ([]*models.Goal, error) {
	if _, err := authorizeScope(ctx, s.store, userID, scope); err != nil {
		return nil, err
	}
	goals, err := s.store.ListGoals(ctx, storage.GoalFilter{Scope: scope, Status: status})
	if err != nil {
		return nil, err
	}
	if goals == nil {
		goals = []*models.Goal{}
	}
	return goals, nil
}

// CountActive returns how many active goals scope has.
func (s *GoalService) CountActive(ctx context.Context, userID string, scope models.Scope) (int, error) {
	goals, err := s.List(ctx, userID, scope, models.GoalActive)
	if err != nil {
		return 0, err
	}
	return len(goals), nil
}

// Update edits an active goal. Only the creator may edit; status changes
// follow the rules of Complete and Abandon.
func (s *GoalService) Update(ctx context.Context, userID, id string, in UpdateGoalInput) (*models.Goal, error) {
	if in.Status != nil {
		switch *in.Status {
		case models.GoalCompleted:
			goal, _, err := s.complete(ctx, userID, id, in.Version)
			return goal, err
		case models.GoalAbandoned:
			return s.abandon(ctx, userID, id, in.Version)
		case models.GoalActive:
		default:
			return nil, fieldError("status", "The status must be active, completed or abandoned.")
		}
	}

	var name string
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fieldError("name", "The name field is required.")
		}
	}
	if in.TargetAmount != nil {
		if msg := targetError(*in.TargetAmount); msg != "" {
			return nil, fieldError("target_amount", msg)
		}
	}
	if in.TargetDate != nil {
		if msg := s.targetDateError(*in.TargetDate); msg != "" {
			return nil, fieldError("target_date", msg)
		}
	}

	return s.mutate(ctx, userID, id, "UpdateGoal", in.Version, func(repo storage.Repository, goal *models.Goal, _ time.Time) error {
		if goal.UserID != userID {
			return fmt.Errorf("%w: only the creator can edit a goal", ErrForbidden)
		}
		if in.Name != nil && !strings.EqualFold(name, goal.Name) {
			if err := checkGoalName(ctx, repo, goal.Scope, name, goal.ID); err != nil {
				return err
			}
		}
		if in.Name != nil {
			goal.Name = name
		}
		if in.TargetAmount != nil {
			goal.TargetAmount = *in.TargetAmount
		}
		if in.TargetDate != nil {
			goal.TargetDate = in.TargetDate
		}
		return nil
	})
}

// Complete marks the goal completed and records one expense of the target
// amount in the goal's scope for its creator, atomically. The creator or
// any member of the goal's scope may complete it.
func (s *GoalService) Complete(ctx context.Context, userID, id string) (*models.Goal, *models.Transaction, error) {
	return s.complete(ctx, userID, id, nil)
}

func (s *GoalService) complete(ctx context.Context, userID, id string, version *int64) (*models.Goal, *models.Transaction, error) {
	var expense *models.Transaction
	goal, err := s.mutate(ctx, userID, id, "CompleteGoal", version, func(repo storage.Repository, goal *models.Goal, now time.Time) error {
		goal.Status = models.GoalCompleted
		goal.CompletedBy = userID
		goal.CompletedAt = &now

		expense = &models.Transaction{
			ID:          newID(),
			Scope:       goal.Scope,
			UserID:      goal.UserID,
			Type:        models.Expense,
			Amount:      goal.TargetAmount,
			Description: "Goal completed: " + goal.Name,
			GoalID:      goal.ID,
			CreatedAt:   now,
		}
		return repo.CreateTransaction(ctx, expense)
	})
	if err != nil {
		return nil, nil, err
	}
	return goal, expense, nil
}

// Abandon marks an active goal abandoned. Only its creator may do so.
func (s *GoalService) Abandon(ctx context.Context, userID, id string) (*models.Goal, error) {
	return s.abandon(ctx, userID, id, nil)
}

func (s *GoalService) abandon(ctx context.Context, userID, id string, version *int64) (*models.Goal, error) {
	return s.mutate(ctx, userID, id, "AbandonGoal", version, func(_ storage.Repository, goal *models.Goal, now time.Time) error {
		if goal.UserID != userID {
			return fmt.Errorf("%w: only the creator can abandon a goal", ErrForbidden)
		}
		goal.Status = models.GoalAbandoned
		goal.AbandonedAt = &now
		return nil
	})
}

// mutate loads an active goal the caller can see, applies change and
// stores it in one database transaction, retrying lost version races.
func (s *GoalService) mutate(
	ctx context.Context,
	userID, id, op string,
	version *int64,
	change func(repo storage.Repository, goal *models.Goal, now time.Time) error,
) (*models.Goal, error) {
	slog.Info(op+" request received", "goal_id", id, "user_id", userID)

	var goal *models.Goal
	err := withRetry(ctx, op, func() error {
		return s.store.RunInTx(ctx, func(repo storage.Repository) error {
			current, err := repo.GetGoal(ctx, id)
			if err != nil {
				return err
			}
			if _, err := authorizeScope(ctx, repo, userID, current.Scope); err != nil {
				return err
			}
			if version != nil && *version != current.Version {
				return fmt.Errorf("%w: goal %s is at version %d", ErrStaleVersion, current.ID, current.Version)
			}
			if !current.IsActive() {
				return fmt.Errorf("%w: goal is already %s", ErrInvalidState, current.Status)
			}

			if err := change(repo, current, s.now()); err != nil {
				return err
			}
			if err := repo.UpdateGoal(ctx, current); err != nil {
				return err
			}
			goal = current
			return nil
		})
	})
	if err != nil {
		slog.Warn(op+" rejected", "goal_id", id, "user_id", userID, "error", err)
		return nil, err
	}

	slog.Info(op+" successful", "goal_id", goal.ID, "status", goal.Status, "version", goal.Version)
	return goal, nil
}

func (s *GoalService) validate(name string, target decimal.Decimal, targetDate *time.Time) error {
	fields := map[string]string{}
	if name == "" {
		fields["name"] = "The name field is required."
	} else if len(name) > 255 {
		fields["name"] = "The name may not be greater than 255 characters."
	}
	if msg := targetError(target); msg != "" {
		fields["target_amount"] = msg
	}
	if targetDate != nil {
		if msg := s.targetDateError(*targetDate); msg != "" {
			fields["target_date"] = msg
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func targetError(target decimal.Decimal) string {
	if ledger.ValidateAmount(target) != nil || target.LessThan(minGoalTarget) {
		return "The target amount must be at least 1 with at most two decimal places."
	}
	return ""
}

// targetDateError rejects dates before today in the server's location.
func (s *GoalService) targetDateError(d time.Time) string {
	y, m, day := s.now().In(s.loc).Date()
	if d.Before(time.Date(y, m, day, 0, 0, 0, 0, s.loc)) {
		return "The target date must be today or later."
	}
	return ""
}

// checkGoalName enforces unique goal names within a scope, ignoring case
// and the goal being renamed.
func checkGoalName(ctx context.Context, repo storage.Repository, scope models.Scope, name, exceptID string) error {
	goals, err := repo.ListGoals(ctx, storage.GoalFilter{Scope: scope})
	if err != nil {
		return err
	}
	for _, g := range goals {
		if g.ID != exceptID && strings.EqualFold(g.Name, name) {
			return fieldError("name", "A goal with this name already exists.")
		}
	}
	return nil
}
