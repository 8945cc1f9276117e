package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mmynk/fiambond/internal/ledger"
	"github.com/mmynk/fiambond/internal/models"
	"github.com/mmynk/fiambond/internal/storage"
)

var (
	// ErrForbidden is returned when the caller is authenticated but does
	// not own, take part in or belong to the target record's scope.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState is returned when an operation is not allowed in the
	// record's current state (a repaid loan, a completed goal).
	ErrInvalidState = errors.New("invalid state")

	// ErrStaleVersion is returned when the caller supplied a version that
	// no longer matches the stored record.
	ErrStaleVersion = errors.New("record was modified by another request")
)

// ValidationError carries per-field messages for a rejected request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// fieldError returns a ValidationError for a single field.
func fieldError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// GoalConflictError is returned when an expense would jeopardize an active
// goal and the caller did not force it through.
type GoalConflictError struct {
	Goal *models.Goal
}

func (e *GoalConflictError) Error() string {
	return fmt.Sprintf("expense conflicts with active goal %q", e.Goal.Name)
}

// ledgerError translates ledger decision errors into service errors.
func ledgerError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		return fieldError("amount", strings.TrimPrefix(err.Error(), ledger.ErrInvalidAmount.Error()+": "))
	case errors.Is(err, ledger.ErrInvalidTransition):
		return fmt.Errorf("%w: %s", ErrInvalidState, strings.TrimPrefix(err.Error(), ledger.ErrInvalidTransition.Error()+": "))
	}
	return err
}

// maxAttempts bounds how often an operation is re-run after losing an
// optimistic version race.
const maxAttempts = 3

// withRetry re-runs fn while it fails with storage.ErrVersionConflict.
// fn must re-read everything it decides on.
func withRetry(ctx context.Context, op string, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if !errors.Is(err, storage.ErrVersionConflict) || attempt == maxAttempts {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		slog.Warn("Version conflict, retrying", "op", op, "attempt", attempt)
	}
}
