package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mmynk/fiambond/internal/ledger"
	"github.com/mmynk/fiambond/internal/models"
)

type groupRequest struct {
	Name           string `json:"name" validate:"required,max=255"`
	IdempotencyKey string `json:"idempotency_key"`
}

type memberRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type balancesResponse struct {
	Balances []ledger.MemberBalance `json:"balances"`
	Debts    []ledger.DebtEdge      `json:"debts"`
}

// groupHandlers serves one group kind under its own prefix.
type groupHandlers struct {
	*Server
	kind models.GroupKind
}

func (s *Server) groupRoutes(r *mux.Router, prefix string, kind models.GroupKind) {
	h := groupHandlers{Server: s, kind: kind}
	r.HandleFunc(prefix, h.create).Methods(http.MethodPost)
	r.HandleFunc(prefix, h.list).Methods(http.MethodGet)
	r.HandleFunc(prefix+"/{id}", h.get).Methods(http.MethodGet)
	r.HandleFunc(prefix+"/{id}", h.rename).Methods(http.MethodPatch)
	r.HandleFunc(prefix+"/{id}", h.delete).Methods(http.MethodDelete)
	r.HandleFunc(prefix+"/{id}/members", h.addMember).Methods(http.MethodPost)
}

func (h groupHandlers) create(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	group, err := h.services.Groups.Create(r.Context(), callerID(r), h.kind, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

func (h groupHandlers) list(w http.ResponseWriter, r *http.Request) {
	groups, err := h.services.Groups.List(r.Context(), callerID(r), h.kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h groupHandlers) get(w http.ResponseWriter, r *http.Request) {
	group, err := h.services.Groups.Get(r.Context(), callerID(r), h.kind, pathID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (h groupHandlers) rename(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	group, err := h.services.Groups.Rename(r.Context(), callerID(r), h.kind, pathID(r), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (h groupHandlers) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.services.Groups.Delete(r.Context(), callerID(r), h.kind, pathID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h groupHandlers) addMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	group, err := h.services.Groups.AddMember(r.Context(), callerID(r), h.kind, pathID(r), req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *Server) familyBalances(w http.ResponseWriter, r *http.Request) {
	balances, debts, err := s.services.Groups.FamilyBalances(r.Context(), callerID(r), pathID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balancesResponse{Balances: balances, Debts: debts})
}
