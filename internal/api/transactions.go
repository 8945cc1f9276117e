package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/mmynk/fiambond/internal/models"
	"github.com/mmynk/fiambond/internal/service"
)

const defaultPageSize = 50

type transactionRequest struct {
	UserID            string          `json:"user_id"`
	FamilyID          string          `json:"family_id"`
	CompanyID         string          `json:"company_id"`
	Type              string          `json:"type" validate:"required,oneof=income expense"`
	Amount            decimal.Decimal `json:"amount" validate:"required"`
	Description       string          `json:"description" validate:"required,max=255"`
	AttachmentURL     string          `json:"attachment_url" validate:"omitempty,url,max=2048"`
	CreatedAt         string          `json:"created_at" validate:"omitempty,date"`
	ForceCreation     bool            `json:"force_creation"`
	DeductImmediately bool            `json:"deduct_immediately"`
	IdempotencyKey    string          `json:"idempotency_key" validate:"omitempty,max=255"`
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	scope, err := service.ResolveScope(callerID(r), req.UserID, req.FamilyID, req.CompanyID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	tx, err := s.services.Transactions.Create(r.Context(), callerID(r), service.CreateTransactionInput{
		Scope:             scope,
		Type:              models.TransactionType(req.Type),
		Amount:            req.Amount,
		Description:       req.Description,
		AttachmentURL:     req.AttachmentURL,
		CreatedAt:         optionalTime(req.CreatedAt),
		ForceCreation:     req.ForceCreation,
		DeductImmediately: req.DeductImmediately,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	scope, err := queryScope(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var q service.ListTransactionsQuery
	if raw := r.URL.Query().Get("startDate"); raw != "" {
		since, err := parseTime(raw)
		if err != nil {
			writeError(w, r, &service.ValidationError{Fields: map[string]string{"startDate": "The start date is not a valid date."}})
			return
		}
		q.Since = since
	}
	if q.Limit, err = queryInt(r, "limit", defaultPageSize); err != nil {
		writeError(w, r, err)
		return
	}
	if q.Offset, err = queryInt(r, "offset", 0); err != nil {
		writeError(w, r, err)
		return
	}

	txns, err := s.services.Transactions.List(r.Context(), callerID(r), scope, q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txns)
}

func (s *Server) getTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.services.Transactions.Get(r.Context(), callerID(r), pathID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}
