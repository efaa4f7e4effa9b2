// Package config loads application configuration from environment
// variables with defaults, and validates it on startup so a bad
// deployment fails before it serves traffic.
package config

import (
	"net"
	"strconv"
	"time"
)

// Store drivers.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Upload   UploadConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" envAlt:"PORT" default:"8000"`

	// ReadTimeout bounds reading the request, including upload bodies.
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is applied by middleware to every request.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	// Driver is one of mongo, postgres or memory (default: mongo)
	Driver string `env:"STORE_DRIVER" default:"mongo"`

	// URL is the connection string. Required unless Driver is memory.
	URL string `env:"MONGODB_URL" envAlt:"DATABASE_URL"`

	// Database is the MongoDB database name (default: test)
	Database string `env:"MONGODB_DB" default:"test"`

	StudentsCollection string `env:"STUDENTS_COLLECTION" default:"students"`
	ConfigCollection   string `env:"CONFIG_COLLECTION" default:"app_config"`

	MaxConns        int           `env:"STORE_MAX_CONNS" default:"20"`
	MinConns        int           `env:"STORE_MIN_CONNS" default:"2"`
	ConnectTimeout  time.Duration `env:"STORE_CONNECT_TIMEOUT" default:"10s"`
	MaxConnLifetime time.Duration `env:"STORE_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"STORE_MAX_CONN_IDLE_TIME" default:"30m"`
}

// UploadConfig holds spreadsheet upload settings.
type UploadConfig struct {
	// MaxFileSize is the largest accepted upload in bytes (default: 20MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"20971520"`

	// MaxConcurrent is the number of imports allowed to run at once (default: 3)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"3"`

	// MaxWaitTime is how long an upload waits for a free slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds a single import (default: 5m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"5m"`
}

// RateLimitConfig holds per-IP rate limits.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`
	UploadLimit       int  `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// forwarding headers are honored.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey turns on X-API-Key authentication for /api routes.
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`

	// CORSOrigins lists the browser origins allowed to call the API.
	CORSOrigins []string `env:"CORS_ORIGINS" default:"http://localhost:5173"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the listen address in host:port form.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
