package rpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/fiambond/internal/auth"
	"github.com/mmynk/fiambond/internal/middleware"
	"github.com/mmynk/fiambond/internal/models"
	"github.com/mmynk/fiambond/internal/service"
	"github.com/mmynk/fiambond/internal/storage/sqlstore"
)

// setupTestServer mounts both RPC services with the production interceptors.
func setupTestServer(t *testing.T) (string, *service.Services) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "fiambond-rpc-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	store, err := sqlstore.Open(context.Background(), sqlstore.DriverSQLite, filepath.Join(tempDir, "test.db"))
	if err != nil {
		os.RemoveAll(tempDir)
		t.Fatalf("failed to create store: %v", err)
	}

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	services := service.New(store, auth.NewPasswordAuthenticator(store).WithCost(bcrypt.MinCost), jwtManager)
	interceptors := connect.WithInterceptors(
		middleware.LoggingInterceptor(),
		middleware.RequireAuth(jwtManager, PublicProcedures...),
	)

	mux := http.NewServeMux()
	mux.Handle(NewAuthServiceHandler(NewAuthService(services.Users), interceptors))
	mux.Handle(NewReportServiceHandler(NewReportService(services.Reports), interceptors))
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		store.Close()
		os.RemoveAll(tempDir)
	})
	return server.URL, services
}

func call[Req, Res any](t *testing.T, baseURL, procedure, token string, msg *Req) (*connect.Response[Res], error) {
	t.Helper()
	client := connect.NewClient[Req, Res](http.DefaultClient, baseURL+procedure, WithJSON())
	req := connect.NewRequest(msg)
	if token != "" {
		req.Header().Set("Authorization", "Bearer "+token)
	}
	return client.CallUnary(context.Background(), req)
}

func TestAuthService(t *testing.T) {
	baseURL, _ := setupTestServer(t)

	reg, err := call[RegisterRequest, AuthResponse](t, baseURL, AuthServiceRegisterProcedure, "", &RegisterRequest{
		Email:       "Alice@Example.com",
		DisplayName: "Alice",
		Password:    "password123",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if reg.Msg.Token == "" || reg.Msg.User == nil {
		t.Fatalf("expected token and user, got %+v", reg.Msg)
	}
	if reg.Msg.User.Email != "alice@example.com" {
		t.Errorf("expected normalized email, got %s", reg.Msg.User.Email)
	}

	t.Run("duplicate email", func(t *testing.T) {
		_, err := call[RegisterRequest, AuthResponse](t, baseURL, AuthServiceRegisterProcedure, "", &RegisterRequest{
			Email: "alice@example.com", DisplayName: "Other", Password: "password123",
		})
		if connect.CodeOf(err) != connect.CodeAlreadyExists {
			t.Errorf("expected AlreadyExists, got %v", err)
		}
	})

	t.Run("weak password", func(t *testing.T) {
		_, err := call[RegisterRequest, AuthResponse](t, baseURL, AuthServiceRegisterProcedure, "", &RegisterRequest{
			Email: "bob@example.com", DisplayName: "Bob", Password: "short",
		})
		if connect.CodeOf(err) != connect.CodeInvalidArgument {
			t.Errorf("expected InvalidArgument, got %v", err)
		}
	})

	t.Run("login", func(t *testing.T) {
		resp, err := call[LoginRequest, AuthResponse](t, baseURL, AuthServiceLoginProcedure, "", &LoginRequest{
			Email: "alice@example.com", Password: "password123",
		})
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if resp.Msg.User.ID != reg.Msg.User.ID {
			t.Errorf("expected user %s, got %s", reg.Msg.User.ID, resp.Msg.User.ID)
		}

		_, err = call[LoginRequest, AuthResponse](t, baseURL, AuthServiceLoginProcedure, "", &LoginRequest{
			Email: "alice@example.com", Password: "wrong-password",
		})
		if connect.CodeOf(err) != connect.CodeUnauthenticated {
			t.Errorf("expected Unauthenticated, got %v", err)
		}
	})

	t.Run("current user", func(t *testing.T) {
		resp, err := call[GetCurrentUserRequest, GetCurrentUserResponse](t, baseURL, AuthServiceGetCurrentUserProcedure, reg.Msg.Token, &GetCurrentUserRequest{})
		if err != nil {
			t.Fatalf("GetCurrentUser failed: %v", err)
		}
		if resp.Msg.User.DisplayName != "Alice" {
			t.Errorf("expected Alice, got %s", resp.Msg.User.DisplayName)
		}

		_, err = call[GetCurrentUserRequest, GetCurrentUserResponse](t, baseURL, AuthServiceGetCurrentUserProcedure, "", &GetCurrentUserRequest{})
		if connect.CodeOf(err) != connect.CodeUnauthenticated {
			t.Errorf("expected Unauthenticated without token, got %v", err)
		}
	})
}

func TestReportService(t *testing.T) {
	baseURL, services := setupTestServer(t)
	ctx := context.Background()

	alice, err := services.Users.Register(ctx, "alice@example.com", "Alice", "password123")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	bob, err := services.Users.Register(ctx, "bob@example.com", "Bob", "password123")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	for _, in := range []service.CreateTransactionInput{
		{Type: models.Income, Amount: decimal.NewFromInt(1000), Description: "Salary"},
		{Type: models.Expense, Amount: decimal.RequireFromString("250.40"), Description: "Rent"},
	} {
		in.Scope = models.UserScope(alice.User.ID)
		if _, err := services.Transactions.Create(ctx, alice.User.ID, in); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	t.Run("balance", func(t *testing.T) {
		resp, err := call[GetBalanceRequest, GetBalanceResponse](t, baseURL, ReportServiceGetBalanceProcedure, alice.Token, &GetBalanceRequest{})
		if err != nil {
			t.Fatalf("GetBalance failed: %v", err)
		}
		if !resp.Msg.Balance.Equal(decimal.RequireFromString("749.60")) {
			t.Errorf("expected 749.60, got %s", resp.Msg.Balance)
		}
		if resp.Msg.Scope != models.UserScope(alice.User.ID) {
			t.Errorf("expected alice's scope, got %v", resp.Msg.Scope)
		}
	})

	t.Run("report", func(t *testing.T) {
		resp, err := call[GetReportRequest, GetReportResponse](t, baseURL, ReportServiceGetReportProcedure, alice.Token, &GetReportRequest{Period: "yearly"})
		if err != nil {
			t.Fatalf("GetReport failed: %v", err)
		}
		r := resp.Msg.Report
		if r.TransactionCount != 2 || len(r.Buckets) != 12 {
			t.Errorf("expected 2 transactions in 12 buckets, got %d in %d", r.TransactionCount, len(r.Buckets))
		}
	})

	t.Run("other user's scope", func(t *testing.T) {
		_, err := call[GetBalanceRequest, GetBalanceResponse](t, baseURL, ReportServiceGetBalanceProcedure, bob.Token, &GetBalanceRequest{
			ScopeRequest: ScopeRequest{UserID: alice.User.ID},
		})
		if connect.CodeOf(err) != connect.CodePermissionDenied {
			t.Errorf("expected PermissionDenied, got %v", err)
		}
	})

	t.Run("two scopes", func(t *testing.T) {
		_, err := call[GetBalanceRequest, GetBalanceResponse](t, baseURL, ReportServiceGetBalanceProcedure, alice.Token, &GetBalanceRequest{
			ScopeRequest: ScopeRequest{FamilyID: "f", CompanyID: "c"},
		})
		if connect.CodeOf(err) != connect.CodeInvalidArgument {
			t.Errorf("expected InvalidArgument, got %v", err)
		}
	})

	t.Run("missing family", func(t *testing.T) {
		_, err := call[GetReportRequest, GetReportResponse](t, baseURL, ReportServiceGetReportProcedure, alice.Token, &GetReportRequest{
			ScopeRequest: ScopeRequest{FamilyID: "00000000-0000-0000-0000-000000000000"},
		})
		if connect.CodeOf(err) != connect.CodeNotFound {
			t.Errorf("expected NotFound, got %v", err)
		}
	})
}
