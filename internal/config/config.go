// Package config loads process configuration from environment variables.
// Every value has a default except the spreadsheet settings; leaving those
// unset runs the in-memory demo store.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Sheets   SheetsConfig
	Retry    RetryConfig
	IDs      IDConfig
	Audit    AuditConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 90s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"90s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout per request (default: 60s).
	// It must cover a full retry cycle against the spreadsheet API.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// SheetsConfig selects the spreadsheet backing the record store.
type SheetsConfig struct {
	// SpreadsheetID is the document id from the spreadsheet URL.
	SpreadsheetID string `env:"SHEETS_SPREADSHEET_ID"`

	// CredentialsFile is a service-account JSON key file.
	CredentialsFile string `env:"SHEETS_CREDENTIALS_FILE" envAlt:"GOOGLE_APPLICATION_CREDENTIALS"`

	// BatchSize caps rows per append call (default: 500)
	BatchSize int `env:"SHEETS_BATCH_SIZE" default:"500"`

	// ProvisionOnStart runs schema provisioning when the server starts (default: true)
	ProvisionOnStart bool `env:"SHEETS_PROVISION_ON_START" default:"true"`
}

// RetryConfig controls retries of spreadsheet API calls.
type RetryConfig struct {
	MaxAttempts int           `env:"SHEETS_MAX_ATTEMPTS" default:"5"`
	BaseDelay   time.Duration `env:"SHEETS_BASE_DELAY" default:"500ms"`
	MaxDelay    time.Duration `env:"SHEETS_MAX_DELAY" default:"8s"`
	CallTimeout time.Duration `env:"SHEETS_CALL_TIMEOUT" default:"15s"`
	Jitter      float64       `env:"SHEETS_RETRY_JITTER" default:"0.2"`
}

// IDConfig configures identifier generation.
type IDConfig struct {
	// RedisURL enables the shared id sequence, e.g. redis://localhost:6379/0.
	// Empty means ids are coordinated within this process only.
	RedisURL string `env:"IDS_REDIS_URL"`
}

// AuditConfig configures the audit logger.
type AuditConfig struct {
	// QueueSize bounds audit entries held for retry (default: 1000)
	QueueSize int `env:"AUDIT_QUEUE_SIZE" default:"1000"`

	// FlushInterval is how often the server retries queued entries (default: 1m, 0 disables)
	FlushInterval time.Duration `env:"AUDIT_FLUSH_INTERVAL" default:"1m"`

	// AppendTimeout bounds the audit write made for each mutation (default: 5s)
	AppendTimeout time.Duration `env:"AUDIT_APPEND_TIMEOUT" default:"5s"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RequireAPIKey rejects API requests without a valid X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of name:key pairs. The name is
	// recorded as the audit actor.
	APIKeys []string `env:"API_KEYS"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// TrustedProxies lists CIDRs whose X-Real-IP / X-Forwarded-For headers
	// are believed. Empty means the connection address is always used.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RateLimit is requests per minute per client IP (default: 100, 0 disables)
	RateLimit int `env:"RATE_LIMIT_PER_MINUTE" default:"100"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// HasRemoteCredentials reports whether the spreadsheet store is configured.
func (c *Config) HasRemoteCredentials() bool {
	return c.Sheets.SpreadsheetID != "" && c.Sheets.CredentialsFile != ""
}
