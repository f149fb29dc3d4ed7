// Package cli holds the start-up steps shared by the crm, crm-worker and
// crmctl binaries.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"estatecrm/internal/amqp"
	"estatecrm/internal/backend"
	"estatecrm/internal/cache"
	"estatecrm/internal/config"
	"estatecrm/internal/log"
	"estatecrm/internal/metrics"
	"estatecrm/internal/services"
	"estatecrm/internal/sheets"
	gsheet "estatecrm/internal/sheets/google"
)

const cacheCleanupInterval = 5 * time.Minute

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from the LOG_LEVEL and LOG_FORMAT
// environment variables, before the full configuration is validated.
func SetupLogger(component string) *log.Logger {
	return log.Setup(os.Stdout, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), component)
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenStore opens the configured backend, seeding it when asked.
func OpenStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend.Result, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger).CreateBackend(ctx, bc)
}

// Runtime is the set of collaborators shared by the server and the worker.
type Runtime struct {
	Store    *backend.Result
	Events   *amqp.Client
	Cache    *cache.Manager
	Metrics  *metrics.Metrics
	Loans    *services.LoanService
	redis    *cache.RedisCache[services.ScheduleView]
	closeFns []func() error
}

// NewRuntime opens the store, the schedule cache and, when configured, the
// AMQP client. An unreachable broker is logged and events are disabled.
func NewRuntime(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Runtime, error) {
	store, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	rt := &Runtime{Store: store, Metrics: metrics.New(), Cache: cache.NewManager(logger.Logger)}
	rt.closeFns = append(rt.closeFns, store.Cleanup)

	var schedules cache.Cache[services.ScheduleView]
	if cfg.RedisAddr != "" {
		rt.redis = cache.NewRedisCache[services.ScheduleView](cfg.RedisAddr, "crm:schedule:", cfg.ScheduleCacheTTL, logger.Logger)
		rt.closeFns = append(rt.closeFns, rt.redis.Close)
		schedules = rt.redis
		logger.Info("Using Redis schedule cache", "addr", cfg.RedisAddr)
	} else {
		lru := cache.NewLRUCache[services.ScheduleView](1000, cfg.ScheduleCacheTTL)
		rt.Cache.Register(lru)
		rt.Cache.StartCleanup(cacheCleanupInterval)
		schedules = lru
	}

	if cfg.EventsEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.Logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		} else {
			rt.Events = client
			rt.closeFns = append(rt.closeFns, client.Close)
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	var pub services.EventPublisher
	if rt.Events != nil {
		pub = rt.Events
	}
	rt.Loans = services.NewLoanService(store.Store, schedules, pub, rt.Metrics, logger)
	return rt, nil
}

// Publisher returns the event publisher, nil when events are disabled.
func (rt *Runtime) Publisher() services.EventPublisher {
	if rt.Events == nil {
		return nil
	}
	return rt.Events
}

// Checks are the readiness probes of the optional dependencies.
func (rt *Runtime) Checks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{}
	if rt.redis != nil {
		checks["redis"] = rt.redis.Ping
	}
	if rt.Events != nil {
		checks["amqp"] = rt.Events.Healthy
	}
	return checks
}

// Close releases everything in reverse order of acquisition.
func (rt *Runtime) Close() error {
	rt.Cache.Stop()
	var first error
	for i := len(rt.closeFns) - 1; i >= 0; i-- {
		if err := rt.closeFns[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// NewLedger returns the Google Sheets ledger, or nil when the export is not
// configured.
func NewLedger(ctx context.Context, cfg *config.Config, logger *log.Logger) (sheets.LedgerWriter, error) {
	if !cfg.LedgerEnabled() {
		logger.Info("Ledger export disabled - no GOOGLE_SPREADSHEET_ID provided")
		return nil, nil
	}
	client, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		Sheet:           cfg.GoogleLedgerSheet,
		OAuthClientJSON: cfg.GoogleOAuthClientJSON,
		OAuthClientFile: cfg.GoogleOAuthClientFile,
		OAuthTokenJSON:  cfg.GoogleOAuthTokenJSON,
		OAuthTokenFile:  cfg.GoogleOAuthTokenFile,
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Ledger export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleLedgerSheet)
	return client, nil
}

// NotifyContext returns a context cancelled on SIGINT or SIGTERM.
func NotifyContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received")
	}()
	return ctx, cancel
}

// ShutdownContext bounds the time allowed for draining.
func ShutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
