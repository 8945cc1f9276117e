package api

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/mmynk/fiambond/internal/models"
	"github.com/mmynk/fiambond/internal/service"
)

type loanRequest struct {
	FamilyID       string          `json:"family_id"`
	DebtorID       string          `json:"debtor_id" validate:"required_without=DebtorName"`
	DebtorName     string          `json:"debtor_name" validate:"max=255"`
	Amount         decimal.Decimal `json:"amount" validate:"required"`
	InterestAmount decimal.Decimal `json:"interest_amount"`
	Description    string          `json:"description" validate:"required,max=255"`
	Deadline       string          `json:"deadline" validate:"omitempty,date"`
	AttachmentURL  string          `json:"attachment_url" validate:"omitempty,url,max=2048"`
	IdempotencyKey string          `json:"idempotency_key"`
}

type updateLoanRequest struct {
	Description *string `json:"description" validate:"omitempty,max=255"`
	Deadline    *string `json:"deadline" validate:"omitempty,date"`
	Version     *int64  `json:"version"`
}

type confirmLoanRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Description    string          `json:"description" validate:"max=255"`
	IdempotencyKey string          `json:"idempotency_key"`
}

type repaymentRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	ReceiptURL     string          `json:"receipt_url" validate:"omitempty,url,max=2048"`
	IdempotencyKey string          `json:"idempotency_key"`
}

func (s *Server) createLoan(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	loan, err := s.services.Loans.Create(r.Context(), callerID(r), service.CreateLoanInput{
		FamilyID:       req.FamilyID,
		DebtorID:       req.DebtorID,
		DebtorName:     req.DebtorName,
		Amount:         req.Amount,
		InterestAmount: req.InterestAmount,
		Description:    req.Description,
		Deadline:       optionalTime(req.Deadline),
		AttachmentURL:  req.AttachmentURL,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loan)
}

func (s *Server) listLoans(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := models.LoanStatus(q.Get("status"))
	switch status {
	case "", models.LoanPendingConfirmation, models.LoanOutstanding, models.LoanRepaid:
	default:
		writeError(w, r, &service.ValidationError{Fields: map[string]string{"status": "The selected status is invalid."}})
		return
	}

	loans, err := s.services.Loans.List(r.Context(), callerID(r), service.LoanQuery{
		FamilyID: q.Get("family_id"),
		Status:   status,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (s *Server) getLoan(w http.ResponseWriter, r *http.Request) {
	loan, err := s.services.Loans.Get(r.Context(), callerID(r), pathID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) updateLoan(w http.ResponseWriter, r *http.Request) {
	var req updateLoanRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	in := service.UpdateLoanInput{Description: req.Description, Version: req.Version}
	if req.Deadline != nil {
		in.Deadline = optionalTime(*req.Deadline)
	}

	loan, err := s.services.Loans.Update(r.Context(), callerID(r), pathID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) confirmLoan(w http.ResponseWriter, r *http.Request) {
	var req confirmLoanRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	loan, err := s.services.Loans.ConfirmFunds(r.Context(), callerID(r), pathID(r), req.Amount, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) submitRepayment(w http.ResponseWriter, r *http.Request) {
	s.repayment(w, r, s.services.Loans.SubmitRepayment)
}

func (s *Server) approveRepayment(w http.ResponseWriter, r *http.Request) {
	s.repayment(w, r, s.services.Loans.ApproveRepayment)
}

func (s *Server) recordRepayment(w http.ResponseWriter, r *http.Request) {
	s.repayment(w, r, s.services.Loans.RecordRepayment)
}

type repaymentFunc func(ctx context.Context, userID, id string, amount decimal.Decimal, receiptURL string) (*models.Loan, error)

func (s *Server) repayment(w http.ResponseWriter, r *http.Request, apply repaymentFunc) {
	var req repaymentRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	loan, err := apply(r.Context(), callerID(r), pathID(r), req.Amount, req.ReceiptURL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) countActiveLoans(w http.ResponseWriter, r *http.Request) {
	n, err := s.services.Loans.CountActive(r.Context(), callerID(r), pathID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}
