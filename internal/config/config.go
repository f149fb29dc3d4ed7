package config

import (
	"fmt"
	"net/mail"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Config struct {
	// HTTP Server
	Port               string
	SecureCookies      bool
	RateLimitPerMinute int

	// Backend selection
	DataBackend  string
	SQLiteDBPath string
	SeedDemoData bool

	// AMQP; events are disabled when the URL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Redis schedule cache; in-process LRU when empty
	RedisAddr        string
	ScheduleCacheTTL time.Duration

	// Auth
	SessionSecret string
	SessionTTL    time.Duration
	AdminEmail    string
	AdminPassword string

	// Worker
	ServicingSchedule string

	// Google Sheets ledger export; disabled when the spreadsheet ID is empty
	GoogleSpreadsheetID   string
	GoogleLedgerSheet     string
	GoogleOAuthClientFile string
	GoogleOAuthTokenFile  string
	GoogleOAuthClientJSON string
	GoogleOAuthTokenJSON  string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		SecureCookies:      getEnvBool("SECURE_COOKIES", false),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/crm.db"),
		SeedDemoData: getEnvBool("SEED_DEMO_DATA", false),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "crm"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "crm_events"),

		RedisAddr:        getEnv("REDIS_ADDR", ""),
		ScheduleCacheTTL: getEnvDuration("SCHEDULE_CACHE_TTL", 30*time.Minute),

		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionTTL:    getEnvDuration("SESSION_TTL", 12*time.Hour),
		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		ServicingSchedule: getEnv("SERVICING_SCHEDULE", "0 2 * * *"),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleLedgerSheet:     getEnv("GOOGLE_LEDGER_SHEET", "Ledger"),
		GoogleOAuthClientFile: getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthTokenFile:  getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),
		GoogleOAuthClientJSON: getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthTokenJSON:  getEnv("GOOGLE_OAUTH_TOKEN_JSON", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// EventsEnabled reports whether an AMQP broker is configured.
func (c *Config) EventsEnabled() bool { return c.AMQPURL != "" }

// LedgerEnabled reports whether transactions are exported to Google Sheets.
func (c *Config) LedgerEnabled() bool { return c.GoogleSpreadsheetID != "" }

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	switch c.DataBackend {
	case "memory":
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [memory sqlite]", c.DataBackend))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ScheduleCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid schedule cache TTL %v: must be at least 1 second", c.ScheduleCacheTTL))
	}

	if len(c.SessionSecret) < 32 {
		errors = append(errors, "SESSION_SECRET must be at least 32 characters")
	}
	if c.SessionTTL < time.Minute || c.SessionTTL > 30*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be between 1 minute and 30 days", c.SessionTTL))
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		errors = append(errors, "ADMIN_EMAIL and ADMIN_PASSWORD must be set together")
	}
	if c.AdminEmail != "" {
		if _, err := mail.ParseAddress(c.AdminEmail); err != nil {
			errors = append(errors, fmt.Sprintf("invalid admin email '%s'", c.AdminEmail))
		}
		if len(c.AdminPassword) < 8 {
			errors = append(errors, "ADMIN_PASSWORD must be at least 8 characters")
		}
	}

	if _, err := cron.ParseStandard(c.ServicingSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid servicing schedule '%s': %v", c.ServicingSchedule, err))
	}

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleLedgerSheet == "" {
			errors = append(errors, "Google ledger sheet name is required when a spreadsheet ID is set")
		}
		if c.GoogleOAuthClientFile == "" && c.GoogleOAuthClientJSON == "" {
			errors = append(errors, "either GOOGLE_OAUTH_CLIENT_FILE or GOOGLE_OAUTH_CLIENT_JSON must be provided for the ledger export")
		}
		if c.GoogleOAuthTokenFile == "" && c.GoogleOAuthTokenJSON == "" {
			errors = append(errors, "either GOOGLE_OAUTH_TOKEN_FILE or GOOGLE_OAUTH_TOKEN_JSON must be provided for the ledger export")
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
