// Package api serves the ledger over JSON REST routes.
//
// Every route except /healthz and /metrics requires a bearer token issued
// by the auth RPC. POST routes honor an Idempotency-Key header (or an
// idempotency_key body field).
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/fiambond/internal/auth"
	"github.com/mmynk/fiambond/internal/middleware"
	"github.com/mmynk/fiambond/internal/models"
	"github.com/mmynk/fiambond/internal/service"
	"github.com/mmynk/fiambond/internal/storage"
)

// Options configures the router.
type Options struct {
	JWTManager *auth.JWTManager

	// IdempotencyTTL is how long a completed keyed response is replayed.
	// Zero keeps records until the purge job removes them.
	IdempotencyTTL time.Duration
}

// Server holds the handler dependencies.
type Server struct {
	services *service.Services
	store    storage.Store
	validate *validate
	ttl      time.Duration
	now      func() time.Time
}

// NewRouter builds the REST router.
func NewRouter(services *service.Services, store storage.Store, opts Options) *mux.Router {
	s := &Server{
		services: services,
		store:    store,
		validate: newValidator(),
		ttl:      opts.IdempotencyTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not found.")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed.")
	})
	r.Use(middleware.Metrics)

	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	authed := r.NewRoute().Subrouter()
	authed.Use(middleware.Authenticate(opts.JWTManager))
	authed.Use(s.idempotency)

	authed.HandleFunc("/user", s.currentUser).Methods(http.MethodGet)
	authed.HandleFunc("/user", s.updateUser).Methods(http.MethodPut)

	authed.HandleFunc("/transactions", s.createTransaction).Methods(http.MethodPost)
	authed.HandleFunc("/transactions", s.listTransactions).Methods(http.MethodGet)
	authed.HandleFunc("/transactions/{id}", s.getTransaction).Methods(http.MethodGet)

	authed.HandleFunc("/loans", s.createLoan).Methods(http.MethodPost)
	authed.HandleFunc("/loans", s.listLoans).Methods(http.MethodGet)
	authed.HandleFunc("/loans/{id}", s.getLoan).Methods(http.MethodGet)
	authed.HandleFunc("/loans/{id}", s.updateLoan).Methods(http.MethodPatch)
	authed.HandleFunc("/loans/{id}/confirm", s.confirmLoan).Methods(http.MethodPost)
	authed.HandleFunc("/loans/{id}/repayments", s.submitRepayment).Methods(http.MethodPost)
	authed.HandleFunc("/loans/{id}/repayments/approve", s.approveRepayment).Methods(http.MethodPost)
	authed.HandleFunc("/loans/{id}/repayments/record", s.recordRepayment).Methods(http.MethodPost)

	authed.HandleFunc("/goals", s.createGoal).Methods(http.MethodPost)
	authed.HandleFunc("/goals", s.listGoals).Methods(http.MethodGet)
	authed.HandleFunc("/goals/active-count", s.countActiveGoals).Methods(http.MethodGet)
	authed.HandleFunc("/goals/{id}", s.getGoal).Methods(http.MethodGet)
	authed.HandleFunc("/goals/{id}", s.updateGoal).Methods(http.MethodPatch)
	authed.HandleFunc("/goals/{id}", s.abandonGoal).Methods(http.MethodDelete)
	authed.HandleFunc("/goals/{id}/complete", s.completeGoal).Methods(http.MethodPost)

	s.groupRoutes(authed, "/families", models.GroupFamily)
	s.groupRoutes(authed, "/companies", models.GroupCompany)
	authed.HandleFunc("/families/{id}/balances", s.familyBalances).Methods(http.MethodGet)
	authed.HandleFunc("/families/{id}/active-loans-count", s.countActiveLoans).Methods(http.MethodGet)

	authed.HandleFunc("/reports", s.report).Methods(http.MethodGet)
	authed.HandleFunc("/balance", s.balance).Methods(http.MethodGet)

	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func callerID(r *http.Request) string {
	return middleware.GetUserID(r.Context())
}

func pathID(r *http.Request) string {
	return mux.Vars(r)["id"]
}

// queryScope resolves the user_id, family_id or company_id query parameter.
func queryScope(r *http.Request) (models.Scope, error) {
	q := r.URL.Query()
	return service.ResolveScope(callerID(r), q.Get("user_id"), q.Get("family_id"), q.Get("company_id"))
}

// queryInt parses a non-negative integer query parameter.
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &service.ValidationError{Fields: map[string]string{name: "The " + name + " must be a non-negative integer."}}
	}
	return n, nil
}
