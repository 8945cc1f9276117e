package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mmynk/fiambond/internal/models"
	"github.com/mmynk/fiambond/internal/storage"
)

// CreateIdempotencyRecord claims an idempotency key for a user.
func (r *repo) CreateIdempotencyRecord(ctx context.Context, rec *models.IdempotencyRecord) error {
	_, err := r.exec(ctx, `
		INSERT INTO idempotency_keys (user_id, idem_key, request_hash, status, response_status, response_body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.UserID,
		rec.Key,
		rec.RequestHash,
		string(rec.Status),
		rec.ResponseStatus,
		string(rec.ResponseBody),
		toMillis(rec.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("idempotency key %s: %w", rec.Key, storage.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert idempotency record: %w", err)
	}
	return nil
}

// GetIdempotencyRecord retrieves the record a user holds for key.
func (r *repo) GetIdempotencyRecord(ctx context.Context, userID, key string) (*models.IdempotencyRecord, error) {
	var (
		rec       models.IdempotencyRecord
		status    string
		body      string
		createdAt int64
	)
	err := r.queryRow(ctx, `
		SELECT user_id, idem_key, request_hash, status, response_status, response_body, created_at
		FROM idempotency_keys WHERE user_id = ? AND idem_key = ?`,
		userID, key,
	).Scan(&rec.UserID, &rec.Key, &rec.RequestHash, &status, &rec.ResponseStatus, &body, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("idempotency key %s: %w", key, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency record: %w", err)
	}
	rec.Status = models.IdempotencyStatus(status)
	rec.ResponseBody = []byte(body)
	rec.CreatedAt = fromMillis(createdAt)
	return &rec, nil
}

// CompleteIdempotencyRecord stores the final response for a claimed key.
func (r *repo) CompleteIdempotencyRecord(ctx context.Context, rec *models.IdempotencyRecord) error {
	res, err := r.exec(ctx, `
		UPDATE idempotency_keys SET status = ?, response_status = ?, response_body = ?
		WHERE user_id = ? AND idem_key = ?`,
		string(models.IdempotencyCompleted),
		rec.ResponseStatus,
		string(rec.ResponseBody),
		rec.UserID,
		rec.Key,
	)
	if err != nil {
		return fmt.Errorf("failed to complete idempotency record: %w", err)
	}
	if err := checkAffected(res, fmt.Errorf("idempotency key %s: %w", rec.Key, storage.ErrNotFound)); err != nil {
		return err
	}
	rec.Status = models.IdempotencyCompleted
	return nil
}

// DeleteIdempotencyRecord releases a key so the request can be retried.
func (r *repo) DeleteIdempotencyRecord(ctx context.Context, userID, key string) error {
	if _, err := r.exec(ctx, "DELETE FROM idempotency_keys WHERE user_id = ? AND idem_key = ?", userID, key); err != nil {
		return fmt.Errorf("failed to delete idempotency record: %w", err)
	}
	return nil
}

// PurgeIdempotencyRecords deletes records created before cutoff.
func (r *repo) PurgeIdempotencyRecords(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.exec(ctx, "DELETE FROM idempotency_keys WHERE created_at < ?", toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to purge idempotency records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}
