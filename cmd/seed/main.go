// Command seed fills a database with demo users, families, transactions,
// goals and loans. It writes through the service layer, so every seeded
// record obeys the same rules as API traffic.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"

	"github.com/mmynk/fiambond/internal/auth"
	"github.com/mmynk/fiambond/internal/config"
	"github.com/mmynk/fiambond/internal/models"
	"github.com/mmynk/fiambond/internal/service"
	"github.com/mmynk/fiambond/internal/storage/sqlstore"
	"github.com/mmynk/fiambond/pkg/logging"
)

const demoPassword = "password123"

func main() {
	users := flag.Int("users", 4, "number of demo users")
	months := flag.Int("months", 3, "months of transaction history")
	perMonth := flag.Int("per-month", 12, "transactions per user per month")
	seed := flag.Int64("seed", 0, "random seed (0 picks one)")
	flag.Parse()

	logging.Setup()

	if err := run(*users, *months, *perMonth, *seed); err != nil {
		slog.Error("Seed failed", "error", err)
		os.Exit(1)
	}
}

func run(userCount, months, perMonth int, seed int64) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Configure(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	ctx := context.Background()
	store, err := sqlstore.Open(ctx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	svc := service.New(store, auth.NewPasswordAuthenticator(store), auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL))
	s := &seeder{svc: svc, faker: gofakeit.New(seed)}

	members, err := s.users(ctx, userCount)
	if err != nil {
		return err
	}
	if len(members) == 0 {
		return errors.New("no users created")
	}

	owner := members[0]
	family, err := svc.Groups.Create(ctx, owner.ID, models.GroupFamily, s.faker.LastName()+" Family")
	if err != nil {
		return err
	}
	for _, m := range members[1:] {
		if _, err := svc.Groups.AddMember(ctx, owner.ID, models.GroupFamily, family.ID, m.Email); err != nil {
			return err
		}
	}
	company, err := svc.Groups.Create(ctx, owner.ID, models.GroupCompany, s.faker.Company())
	if err != nil {
		return err
	}

	now := time.Now()
	for _, m := range members {
		if err := s.history(ctx, m.ID, models.UserScope(m.ID), now, months, perMonth); err != nil {
			return err
		}
	}
	if err := s.history(ctx, owner.ID, models.FamilyScope(family.ID), now, months, perMonth/2); err != nil {
		return err
	}
	if err := s.history(ctx, owner.ID, models.CompanyScope(company.ID), now, months, perMonth/2); err != nil {
		return err
	}

	// Goals go in last so the history above is not blocked by them.
	for _, m := range members {
		target := now.AddDate(0, s.faker.Number(2, 12), 0)
		if _, err := svc.Goals.Create(ctx, m.ID, service.CreateGoalInput{
			Scope:        models.UserScope(m.ID),
			Name:         "Save for " + s.faker.Word(),
			TargetAmount: s.amount(500, 5000),
			TargetDate:   &target,
		}); err != nil {
			return err
		}
	}

	if len(members) > 1 {
		if err := s.loans(ctx, family.ID, owner, members[1]); err != nil {
			return err
		}
	}

	slog.Info("Seed complete",
		"users", len(members),
		"family_id", family.ID,
		"company_id", company.ID,
		"password", demoPassword,
	)
	return nil
}

type seeder struct {
	svc   *service.Services
	faker *gofakeit.Faker
}

func (s *seeder) amount(lo, hi float64) decimal.Decimal {
	return decimal.NewFromFloat(s.faker.Price(lo, hi)).Round(2)
}

func (s *seeder) users(ctx context.Context, n int) ([]*models.User, error) {
	var users []*models.User
	for len(users) < n {
		person := s.faker.Person()
		sess, err := s.svc.Users.Register(ctx, s.faker.Email(), person.FirstName+" "+person.LastName, demoPassword)
		if errors.Is(err, auth.ErrEmailExists) {
			continue
		}
		if err != nil {
			return nil, err
		}
		slog.Info("Seeded user", "email", sess.User.Email)
		users = append(users, sess.User)
	}
	return users, nil
}

// history records income and expenses spread over the last months, oldest
// first. Expenses never exceed what came in so balances stay positive.
func (s *seeder) history(ctx context.Context, userID string, scope models.Scope, now time.Time, months, perMonth int) error {
	for m := months; m >= 1; m-- {
		start := now.AddDate(0, -m, 0)
		end := start.AddDate(0, 1, 0)

		if _, err := s.svc.Transactions.Create(ctx, userID, service.CreateTransactionInput{
			Scope:       scope,
			Type:        models.Income,
			Amount:      s.amount(2500, 6000),
			Description: "Salary",
			CreatedAt:   &start,
		}); err != nil {
			return err
		}

		for i := 0; i < perMonth; i++ {
			at := s.faker.DateRange(start, end)
			if at.After(now) {
				at = now
			}
			if _, err := s.svc.Transactions.Create(ctx, userID, service.CreateTransactionInput{
				Scope:       scope,
				Type:        models.Expense,
				Amount:      s.amount(5, 150),
				Description: s.faker.Sentence(4),
				CreatedAt:   &at,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// loans creates one family loan walked through confirmation and a partial
// repayment, and one loan to someone outside the system.
func (s *seeder) loans(ctx context.Context, familyID string, creditor, debtor *models.User) error {
	loan, err := s.svc.Loans.Create(ctx, creditor.ID, service.CreateLoanInput{
		FamilyID:       familyID,
		DebtorID:       debtor.ID,
		Amount:         decimal.NewFromInt(1000),
		InterestAmount: decimal.NewFromInt(50),
		Description:    "Help with " + s.faker.Word(),
	})
	if err != nil {
		return err
	}
	if _, err := s.svc.Loans.ConfirmFunds(ctx, debtor.ID, loan.ID, decimal.Zero, ""); err != nil {
		return err
	}
	if _, err := s.svc.Loans.SubmitRepayment(ctx, debtor.ID, loan.ID, decimal.NewFromInt(400), ""); err != nil {
		return err
	}
	if _, err := s.svc.Loans.ApproveRepayment(ctx, creditor.ID, loan.ID, decimal.Zero, ""); err != nil {
		return err
	}

	_, err = s.svc.Loans.Create(ctx, creditor.ID, service.CreateLoanInput{
		DebtorName:  s.faker.Name(),
		Amount:      s.amount(50, 300),
		Description: "Short-term loan",
	})
	return err
}
