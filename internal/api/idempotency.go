package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/mmynk/fiambond/internal/models"
	"github.com/mmynk/fiambond/internal/service"
	"github.com/mmynk/fiambond/internal/storage"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"
	maxKeyLength      = 255
)

var errKeyInProgress = errors.New("idempotent request in progress")

// idempotency replays the stored response of a completed POST that carried
// the same key and body. Only 2xx responses are stored: after a rejection
// the key is released so the client can retry, for instance with
// force_creation set.
func (s *Server) idempotency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, r, errMalformedBody)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		key := idempotencyKey(r, body)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		if len(key) > maxKeyLength {
			writeError(w, r, &service.ValidationError{Fields: map[string]string{
				"idempotency_key": "The idempotency key may not be greater than 255 characters.",
			}})
			return
		}

		rec := &models.IdempotencyRecord{
			Key:         key,
			UserID:      callerID(r),
			RequestHash: requestHash(r, body),
			Status:      models.IdempotencyInProgress,
			CreatedAt:   s.now(),
		}
		existing, err := s.claim(r.Context(), rec)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if existing != nil {
			s.replay(w, r, rec, existing)
			return
		}

		capture := &captureWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(capture, r)

		ctx := context.WithoutCancel(r.Context())
		if capture.status >= 200 && capture.status < 300 {
			rec.Status = models.IdempotencyCompleted
			rec.ResponseStatus = capture.status
			rec.ResponseBody = capture.body.Bytes()
			if err := s.store.CompleteIdempotencyRecord(ctx, rec); err != nil {
				slog.Error("Failed to store idempotent response", "key", key, "user_id", rec.UserID, "error", err)
			}
			return
		}
		if err := s.store.DeleteIdempotencyRecord(ctx, rec.UserID, key); err != nil {
			slog.Error("Failed to release idempotency key", "key", key, "user_id", rec.UserID, "error", err)
		}
	})
}

// claim inserts rec. If the key is already held it returns the holder,
// after dropping it once when it has expired.
func (s *Server) claim(ctx context.Context, rec *models.IdempotencyRecord) (*models.IdempotencyRecord, error) {
	for attempt := 0; attempt < 2; attempt++ {
		err := s.store.CreateIdempotencyRecord(ctx, rec)
		if err == nil {
			return nil, nil
		}
		if !errors.Is(err, storage.ErrDuplicate) {
			return nil, err
		}

		existing, err := s.store.GetIdempotencyRecord(ctx, rec.UserID, rec.Key)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if s.ttl > 0 && existing.Status == models.IdempotencyCompleted && rec.CreatedAt.Sub(existing.CreatedAt) > s.ttl {
			if err := s.store.DeleteIdempotencyRecord(ctx, rec.UserID, rec.Key); err != nil {
				return nil, err
			}
			continue
		}
		return existing, nil
	}
	return nil, errKeyInProgress
}

func (s *Server) replay(w http.ResponseWriter, r *http.Request, rec, existing *models.IdempotencyRecord) {
	if existing.RequestHash != rec.RequestHash {
		slog.Warn("Idempotency key reused with a different request", "key", rec.Key, "user_id", rec.UserID)
		writeError(w, r, &service.ValidationError{Fields: map[string]string{
			"idempotency_key": "The idempotency key has already been used for a different request.",
		}})
		return
	}
	if existing.Status != models.IdempotencyCompleted {
		writeMessage(w, http.StatusConflict, "A request with this idempotency key is still being processed.")
		return
	}

	slog.Info("Replaying idempotent response", "key", rec.Key, "user_id", rec.UserID, "status", existing.ResponseStatus)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(existing.ResponseStatus)
	w.Write(existing.ResponseBody)
}

func idempotencyKey(r *http.Request, body []byte) string {
	if key := r.Header.Get(idempotencyHeader); key != "" {
		return key
	}
	var payload struct {
		Key string `json:"idempotency_key"`
	}
	if len(body) > 0 {
		_ = json.Unmarshal(body, &payload)
	}
	return payload.Key
}

func requestHash(r *http.Request, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.Method + " " + r.URL.Path + "\n"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// captureWriter copies the response so it can be stored for replay.
type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}
