package main

import (
	"errors"
	"net/http"
	"os"
	"time"

	"estatecrm/internal/auth"
	"estatecrm/internal/cli"
	apphttp "estatecrm/internal/http"
	"estatecrm/internal/log"
	"estatecrm/internal/middleware/ratelimit"
	"estatecrm/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.NotifyContext(logger)
	defer stop()

	rt, err := cli.NewRuntime(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize runtime", log.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Error("Failed to release resources", log.FieldError, err)
		}
	}()

	store := rt.Store.Store
	authSvc := auth.NewService(store.Users(), cfg.SessionSecret, cfg.SessionTTL, logger)
	if cfg.AdminEmail != "" {
		created, err := authSvc.Bootstrap(ctx, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			logger.Error("Failed to bootstrap admin user", log.FieldError, err)
			os.Exit(1)
		}
		if created {
			logger.Info("Created admin user", "email", cfg.AdminEmail)
		}
	}

	checks := map[string]apphttp.Checker{}
	for name, fn := range rt.Checks() {
		checks[name] = fn
	}

	limits := ratelimit.DefaultConfig()
	limits.RequestsPerMinute = cfg.RateLimitPerMinute

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Store:         store,
		Loans:         rt.Loans,
		Transactions:  services.NewTransactionService(store, rt.Publisher(), rt.Metrics, logger),
		Dashboard:     services.NewDashboardService(store, rt.Loans, logger),
		Auth:          authSvc,
		Metrics:       rt.Metrics,
		Logger:        logger,
		RateLimit:     limits,
		SecureCookies: cfg.SecureCookies,
		Checks:        checks,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting crm server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := cli.ShutdownContext(shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldError, err)
	}
	logger.Info("Server stopped gracefully")
}
