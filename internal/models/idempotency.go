package models

import "time"

// IdempotencyStatus tracks whether a keyed request has finished.
type IdempotencyStatus string

const (
	IdempotencyInProgress IdempotencyStatus = "in_progress"
	IdempotencyCompleted  IdempotencyStatus = "completed"
)

// IdempotencyRecord holds the outcome of a write request made with an
// idempotency key. Replays with the same key and request hash receive the
// stored response instead of re-running the write.
type IdempotencyRecord struct {
	Key            string
	UserID         string
	RequestHash    string
	Status         IdempotencyStatus
	ResponseStatus int
	ResponseBody   []byte
	CreatedAt      time.Time
}
