package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/mmynk/fiambond/internal/models"
	"github.com/mmynk/fiambond/internal/service"
)

type goalRequest struct {
	UserID         string          `json:"user_id"`
	FamilyID       string          `json:"family_id"`
	CompanyID      string          `json:"company_id"`
	Name           string          `json:"name" validate:"required,max=255"`
	TargetAmount   decimal.Decimal `json:"target_amount" validate:"required"`
	TargetDate     string          `json:"target_date" validate:"omitempty,date"`
	IdempotencyKey string          `json:"idempotency_key"`
}

type updateGoalRequest struct {
	Name         *string          `json:"name" validate:"omitempty,max=255"`
	TargetAmount *decimal.Decimal `json:"target_amount"`
	TargetDate   *string          `json:"target_date" validate:"omitempty,date"`
	Status       *string          `json:"status" validate:"omitempty,oneof=active completed abandoned"`
	Version      *int64           `json:"version"`
}

type completeGoalResponse struct {
	Goal        *models.Goal        `json:"goal"`
	Transaction *models.Transaction `json:"transaction"`
}

func (s *Server) createGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	scope, err := service.ResolveScope(callerID(r), req.UserID, req.FamilyID, req.CompanyID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	goal, err := s.services.Goals.Create(r.Context(), callerID(r), service.CreateGoalInput{
		Scope:        scope,
		Name:         req.Name,
		TargetAmount: req.TargetAmount,
		TargetDate:   optionalTime(req.TargetDate),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, goal)
}

func (s *Server) listGoals(w http.ResponseWriter, r *http.Request) {
	scope, err := queryScope(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := models.GoalStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.GoalActive, models.GoalCompleted, models.GoalAbandoned:
	default:
		writeError(w, r, &service.ValidationError{Fields: map[string]string{"status": "The selected status is invalid."}})
		return
	}

	goals, err := s.services.Goals.List(r.Context(), callerID(r), scope, status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

func (s *Server) countActiveGoals(w http.ResponseWriter, r *http.Request) {
	scope, err := queryScope(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	n, err := s.services.Goals.CountActive(r.Context(), callerID(r), scope)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (s *Server) getGoal(w http.ResponseWriter, r *http.Request) {
	goal, err := s.services.Goals.Get(r.Context(), callerID(r), pathID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (s *Server) updateGoal(w http.ResponseWriter, r *http.Request) {
	var req updateGoalRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	in := service.UpdateGoalInput{
		Name:         req.Name,
		TargetAmount: req.TargetAmount,
		Version:      req.Version,
	}
	if req.TargetDate != nil {
		in.TargetDate = optionalTime(*req.TargetDate)
	}
	if req.Status != nil {
		status := models.GoalStatus(*req.Status)
		in.Status = &status
	}

	goal, err := s.services.Goals.Update(r.Context(), callerID(r), pathID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (s *Server) completeGoal(w http.ResponseWriter, r *http.Request) {
	goal, tx, err := s.services.Goals.Complete(r.Context(), callerID(r), pathID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, completeGoalResponse{Goal: goal, Transaction: tx})
}

func (s *Server) abandonGoal(w http.ResponseWriter, r *http.Request) {
	goal, err := s.services.Goals.Abandon(r.Context(), callerID(r), pathID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "The goal has been abandoned.",
		"goal":    goal,
	})
}
