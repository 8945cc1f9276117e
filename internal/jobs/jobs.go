// Package jobs runs the ledger's scheduled maintenance: the monthly
// unseen-cost entries and the idempotency record purge.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/mmynk/fiambond/internal/metrics"
	"github.com/mmynk/fiambond/internal/models"
	"github.com/mmynk/fiambond/internal/storage"
)

const (
	JobUnseenCosts = "unseen_costs"
	JobPurgeKeys   = "purge_idempotency_keys"

	unseenCostsSpec = "0 5 1 * *"
	purgeKeysSpec   = "@daily"

	unseenDescription = "System Entry: Aggregate Unseen Costs (Taxes, Fees)"
)

// unseenRate is the share of a month's expenses recorded as unseen costs.
var unseenRate = decimal.RequireFromString("0.07")

// Options configures the scheduler.
type Options struct {
	// IdempotencyTTL is the age after which idempotency records are purged.
	IdempotencyTTL time.Duration

	// Location anchors month boundaries and the cron schedule.
	Location *time.Location
}

// Scheduler owns the cron runner and the jobs it triggers.
type Scheduler struct {
	cron  *cron.Cron
	store storage.Store
	ttl   time.Duration
	loc   *time.Location
	now   func() time.Time
}

// New creates a scheduler with both jobs registered. Call Start to run it.
func New(store storage.Store, opts Options) (*Scheduler, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	logger := cronLogger{}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		store: store,
		ttl:   opts.IdempotencyTTL,
		loc:   loc,
		now:   time.Now,
	}

	if _, err := s.cron.AddFunc(unseenCostsSpec, func() { s.run(JobUnseenCosts, s.generateUnseenCosts) }); err != nil {
		return nil, fmt.Errorf("failed to schedule %s: %w", JobUnseenCosts, err)
	}
	if _, err := s.cron.AddFunc(purgeKeysSpec, func() { s.run(JobPurgeKeys, s.purgeKeys) }); err != nil {
		return nil, fmt.Errorf("failed to schedule %s: %w", JobPurgeKeys, err)
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("Scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop halts scheduling and returns a context that is done once running
// jobs have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) run(job string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	start := time.Now()
	if err := fn(ctx); err != nil {
		metrics.JobRuns.WithLabelValues(job, "error").Inc()
		slog.Error("Job failed", "job", job, "error", err, "duration_ms", time.Since(start).Milliseconds())
		return
	}
	metrics.JobRuns.WithLabelValues(job, "ok").Inc()
	slog.Info("Job completed", "job", job, "duration_ms", time.Since(start).Milliseconds())
}

func (s *Scheduler) generateUnseenCosts(ctx context.Context) error {
	_, err := GenerateUnseenCosts(ctx, s.store, s.now().In(s.loc))
	return err
}

func (s *Scheduler) purgeKeys(ctx context.Context) error {
	if s.ttl <= 0 {
		return nil
	}
	n, err := s.store.PurgeIdempotencyRecords(ctx, s.now().Add(-s.ttl))
	if err != nil {
		return err
	}
	slog.Info("Purged idempotency records", "count", n)
	return nil
}

// GenerateUnseenCosts records, for every user, a system expense of 7% of
// their personal non-system expenses in the calendar month before now.
// Month boundaries follow now's location. Each user and month is recorded
// at most once, so reruns are safe. It returns the number of new entries.
func GenerateUnseenCosts(ctx context.Context, store storage.Store, now time.Time) (int, error) {
	y, m, _ := now.Date()
	end := time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	start := end.AddDate(0, -1, 0)
	month := start.Format("2006-01")

	userIDs, err := store.ListUserIDs(ctx)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return created, err
		}

		expenses, err := store.ListTransactions(ctx, storage.TransactionFilter{
			Scope:         models.UserScope(userID),
			Since:         start,
			Until:         end,
			Type:          models.Expense,
			ExcludeSystem: true,
		})
		if err != nil {
			return created, err
		}

		total := decimal.Zero
		for _, tx := range expenses {
			total = total.Add(tx.Amount)
		}
		if !total.IsPositive() {
			continue
		}

		cost := total.Mul(unseenRate).Round(2)
		err = store.CreateTransaction(ctx, &models.Transaction{
			ID:                uuid.New().String(),
			Scope:             models.UserScope(userID),
			UserID:            userID,
			Type:              models.Expense,
			Amount:            cost,
			Description:       unseenDescription,
			IsSystemGenerated: true,
			SystemKey:         fmt.Sprintf("unseen:%s:%s", userID, month),
			CreatedAt:         end.Add(-time.Second),
		})
		if errors.Is(err, storage.ErrDuplicate) {
			continue
		}
		if err != nil {
			return created, err
		}

		created++
		slog.Info("Recorded unseen costs", "user_id", userID, "month", month, "amount", cost.String())
	}
	return created, nil
}

// cronLogger routes cron's own logging through slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
