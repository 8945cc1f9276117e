package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/mmynk/fiambond/internal/auth"
	"github.com/mmynk/fiambond/internal/models"
	"github.com/mmynk/fiambond/internal/service"
	"github.com/mmynk/fiambond/internal/storage"
)

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
	Goal    *models.Goal      `json:"goal,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Message: msg})
}

// writeError maps service and storage errors to HTTP responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr     *service.ValidationError
		conflict *service.GoalConflictError
	)

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{
			Message: validationMessage(verr),
			Errors:  verr.Fields,
		})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, errorBody{
			Message: fmt.Sprintf("This expense conflicts with your goal %q.", conflict.Goal.Name),
			Goal:    conflict.Goal,
		})
	case errors.Is(err, errMalformedBody):
		writeMessage(w, http.StatusBadRequest, "The request body is not valid JSON.")
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		writeMessage(w, http.StatusUnauthorized, "Unauthenticated.")
	case errors.Is(err, service.ErrForbidden):
		writeMessage(w, http.StatusForbidden, "This action is unauthorized.")
	case errors.Is(err, storage.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Not found.")
	case errors.Is(err, errKeyInProgress):
		writeMessage(w, http.StatusConflict, "A request with this idempotency key is still being processed.")
	case errors.Is(err, service.ErrStaleVersion), errors.Is(err, storage.ErrVersionConflict):
		writeMessage(w, http.StatusConflict, "The record was modified by another request. Reload it and try again.")
	case errors.Is(err, service.ErrInvalidState):
		writeMessage(w, http.StatusUnprocessableEntity, stateMessage(err))
	case errors.Is(err, context.DeadlineExceeded):
		writeMessage(w, http.StatusGatewayTimeout, "The request timed out.")
	default:
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeMessage(w, http.StatusInternalServerError, "Server Error")
	}
}

// validationMessage follows the "first error (and N more errors)" form.
func validationMessage(verr *service.ValidationError) string {
	if len(verr.Fields) == 0 {
		return "The given data was invalid."
	}
	keys := make([]string, 0, len(verr.Fields))
	for k := range verr.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msg := verr.Fields[keys[0]]
	switch n := len(keys) - 1; n {
	case 0:
		return msg
	case 1:
		return fmt.Sprintf("%s (and 1 more error)", msg)
	default:
		return fmt.Sprintf("%s (and %d more errors)", msg, n)
	}
}

// stateMessage strips the sentinel prefix and capitalizes the detail.
func stateMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, service.ErrInvalidState.Error()+": "); i >= 0 {
		msg = msg[i+len(service.ErrInvalidState.Error())+2:]
	}
	if msg == "" {
		return "The operation is not allowed in the current state."
	}
	return strings.ToUpper(msg[:1]) + msg[1:] + "."
}
