package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/mmynk/fiambond/internal/ledger"
	"github.com/mmynk/fiambond/internal/models"
)

type balanceResponse struct {
	Scope   models.Scope    `json:"scope"`
	Balance decimal.Decimal `json:"balance"`
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	scope, err := queryScope(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := s.services.Reports.Report(r.Context(), callerID(r), scope, ledger.ParsePeriod(r.URL.Query().Get("period")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	scope, err := queryScope(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	bal, err := s.services.Reports.Balance(r.Context(), callerID(r), scope)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Scope: scope, Balance: bal})
}
