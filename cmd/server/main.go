package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/fiambond/internal/api"
	"github.com/mmynk/fiambond/internal/auth"
	"github.com/mmynk/fiambond/internal/config"
	"github.com/mmynk/fiambond/internal/jobs"
	"github.com/mmynk/fiambond/internal/middleware"
	"github.com/mmynk/fiambond/internal/rpc"
	"github.com/mmynk/fiambond/internal/service"
	"github.com/mmynk/fiambond/internal/storage/sqlstore"
	"github.com/mmynk/fiambond/pkg/logging"
)

const shutdownTimeout = 20 * time.Second

func main() {
	logging.Setup()

	if err := run(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Configure(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlstore.Open(ctx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	slog.Info("Storage initialized", "driver", cfg.DBDriver)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	services := service.New(store, auth.NewPasswordAuthenticator(store), jwtManager)

	mux := http.NewServeMux()

	// Connect services
	interceptors := connect.WithInterceptors(
		middleware.LoggingInterceptor(),
		middleware.RequireAuth(jwtManager, rpc.PublicProcedures...),
	)
	mux.Handle(rpc.NewAuthServiceHandler(rpc.NewAuthService(services.Users), interceptors))
	mux.Handle(rpc.NewReportServiceHandler(rpc.NewReportService(services.Reports), interceptors))

	// Everything else is REST
	mux.Handle("/", api.NewRouter(services, store, api.Options{
		JWTManager:     jwtManager,
		IdempotencyTTL: cfg.IdempotencyTTL,
	}))

	handler := middleware.CORS(cfg.CORSOrigin)(middleware.Logging(middleware.Timeout(cfg.RequestTimeout)(mux)))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	var scheduler *jobs.Scheduler
	if cfg.CronEnabled {
		scheduler, err = jobs.New(store, jobs.Options{IdempotencyTTL: cfg.IdempotencyTTL})
		if err != nil {
			return err
		}
		scheduler.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "address", srv.Addr, "url", fmt.Sprintf("http://localhost%s", srv.Addr), "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if scheduler != nil {
		select {
		case <-scheduler.Stop().Done():
		case <-shutdownCtx.Done():
			slog.Warn("Scheduled jobs still running at shutdown")
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	slog.Info("Server stopped")
	return nil
}
