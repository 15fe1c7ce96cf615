package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
)

// RepositoryVersion is the repository version tag for config file references.
const RepositoryVersion = "v0.4.0"

// Current version of each config file.
const (
	CurrentCommonVersion = 1
	CurrentAPIVersion    = 1
	CurrentWorkerVersion = 1
)

// Environment variables that override secrets from the config files.
// They may also be placed in a .env file next to the config files.
const (
	EnvGeminiAPIKey       = "MANGROVE_GEMINI_API_KEY"
	EnvPostgresPassword   = "MANGROVE_POSTGRES_PASSWORD"
	EnvRedisPassword      = "MANGROVE_REDIS_PASSWORD"
	EnvTelemetryDSN       = "MANGROVE_TELEMETRY_DSN"
	envFileName           = ".env"
	configFileExtension   = ".toml"
	defaultSessionTTLHour = 72
)

// Config represents the entire application configuration.
type Config struct {
	Common CommonConfig
	API    APIConfig
	Worker WorkerConfig
}

// CommonConfig contains configuration shared between the API and the workers.
type CommonConfig struct {
	// Version of the common config.
	Version        int            `koanf:"version"`
	Debug          Debug          `koanf:"debug"`
	CircuitBreaker CircuitBreaker `koanf:"circuit_breaker"`
	Retry          Retry          `koanf:"retry"`
	PostgreSQL     PostgreSQL     `koanf:"postgresql"`
	Redis          Redis          `koanf:"redis"`
	Gemini         Gemini         `koanf:"gemini"`
	Telemetry      Telemetry      `koanf:"telemetry"`
	Scoring        Scoring        `koanf:"scoring"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
	// Maximum log sessions to keep.
	MaxLogsToKeep int `koanf:"max_logs_to_keep"`
	// Maximum lines per log file.
	MaxLogLines int `koanf:"max_log_lines"`
}

// CircuitBreaker contains circuit breaker configuration for the classifier.
type CircuitBreaker struct {
	// Maximum number of requests allowed through while half-open.
	MaxRequests uint32 `koanf:"max_requests"`
	// Cyclic period of the closed state in milliseconds, 0 to never clear counts.
	Interval int `koanf:"interval"`
	// Period of the open state in milliseconds before moving to half-open.
	Timeout int `koanf:"timeout"`
	// Minimum requests in a window before the breaker may trip.
	MinRequests uint32 `koanf:"min_requests"`
	// Failure ratio at which the breaker trips.
	FailureRatio float64 `koanf:"failure_ratio"`
}

// Retry contains retry configuration for classifier calls.
type Retry struct {
	// Maximum retry attempts.
	MaxRetries uint64 `koanf:"max_retries"`
	// Initial retry delay in milliseconds.
	Delay int `koanf:"delay"`
	// Maximum retry delay in milliseconds.
	MaxDelay int `koanf:"max_delay"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Database hostname.
	Host string `koanf:"host"`
	// Database port.
	Port int `koanf:"port"`
	// Database username.
	User string `koanf:"user"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Idle timeout in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// Redis hostname.
	Host string `koanf:"host"`
	// Redis port.
	Port int `koanf:"port"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
}

// Gemini contains configuration for the image classifier.
type Gemini struct {
	// API key for authentication.
	APIKey string `koanf:"api_key"`
	// Model used for image classification.
	Model string `koanf:"model"`
	// Maximum concurrent classifier requests per process.
	MaxConcurrent int64 `koanf:"max_concurrent"`
	// Sampling temperature.
	Temperature float32 `koanf:"temperature"`
	// Largest submission image downloaded for classification, in bytes.
	MaxImageBytes int64 `koanf:"max_image_bytes"`
	// Timeout for downloading a submission image, in milliseconds.
	ImageTimeout int `koanf:"image_timeout"`
}

// Telemetry contains tracing configuration.
type Telemetry struct {
	// Uptrace DSN; tracing is disabled when empty.
	DSN string `koanf:"dsn"`
	// Deployment environment reported with every span.
	Environment string `koanf:"environment"`
}

// Scoring contains reward policy configuration.
type Scoring struct {
	// Minimum points for automatic approval.
	ApprovalThreshold int `koanf:"approval_threshold"`
}

// APIConfig contains REST server configuration.
type APIConfig struct {
	// Version of the api config.
	Version      int          `koanf:"version"`
	Server       Server       `koanf:"server"`
	RateLimit    RateLimit    `koanf:"rate_limit"`
	Session      Session      `koanf:"session"`
	Registration Registration `koanf:"registration"`
}

// Server contains HTTP listener configuration.
type Server struct {
	// Host address to listen on.
	Host string `koanf:"host"`
	// Port to listen on.
	Port int `koanf:"port"`
	// Read timeout in seconds.
	ReadTimeout int `koanf:"read_timeout"`
	// Write timeout in seconds.
	WriteTimeout int `koanf:"write_timeout"`
	// Idle timeout in seconds.
	IdleTimeout int `koanf:"idle_timeout"`
	// Allowed CORS origins; empty allows any origin.
	AllowedOrigins []string `koanf:"allowed_origins"`
	// Trusted proxy header for the client IP.
	TrustedProxyHeader string `koanf:"trusted_proxy_header"`
}

// RateLimit contains per-client request limits.
type RateLimit struct {
	// Requests per second allowed for each client.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	// Burst size for each client.
	BurstSize int `koanf:"burst_size"`
	// Violations before a client is blocked.
	StrikeLimit int `koanf:"strike_limit"`
	// Block duration in seconds once the strike limit is reached.
	BlockDuration int `koanf:"block_duration"`
}

// Session contains login session configuration.
type Session struct {
	// Session lifetime in hours.
	TTLHours int `koanf:"ttl_hours"`
}

// Registration contains account registration configuration.
type Registration struct {
	// Region used to parse phone numbers without a country code.
	DefaultRegion string `koanf:"default_region"`
}

// WorkerConfig contains worker specific configuration.
type WorkerConfig struct {
	// Version of the worker config.
	Version int `koanf:"version"`
	// Startup delay in milliseconds.
	StartupDelay int            `koanf:"startup_delay"`
	Analysis     AnalysisWorker `koanf:"analysis"`
	Recovery     RecoveryWorker `koanf:"recovery"`
	Stats        StatsWorker    `koanf:"stats"`
}

// AnalysisWorker configures the classification pipeline workers.
type AnalysisWorker struct {
	// Jobs popped from the queue per iteration.
	BatchSize int `koanf:"batch_size"`
	// Jobs processed concurrently within a batch.
	Concurrency int `koanf:"concurrency"`
	// Per-job timeout in seconds.
	Timeout int `koanf:"timeout"`
	// Idle poll interval in milliseconds when the queue is empty.
	PollInterval int `koanf:"poll_interval"`
}

// RecoveryWorker configures the stuck-job recovery worker.
type RecoveryWorker struct {
	// Minutes a submission may stay pending or analyzing before it is re-enqueued.
	StaleAfter int `koanf:"stale_after"`
	// Seconds between recovery sweeps.
	Interval int `koanf:"interval"`
	// Maximum submissions handled per sweep.
	BatchSize int `koanf:"batch_size"`
}

// StatsWorker configures hourly statistics snapshots.
type StatsWorker struct {
	// Days of hourly snapshots to keep.
	RetentionDays int `koanf:"retention_days"`
}

// JobTimeout returns the per-job pipeline timeout.
func (w *AnalysisWorker) JobTimeout() time.Duration {
	if w.Timeout <= 0 {
		return 90 * time.Second
	}
	return time.Duration(w.Timeout) * time.Second
}

// StaleDuration returns how long a job may be in flight before recovery.
func (w *RecoveryWorker) StaleDuration() time.Duration {
	if w.StaleAfter <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(w.StaleAfter) * time.Minute
}

// TTL returns the session lifetime.
func (s *Session) TTL() time.Duration {
	if s.TTLHours <= 0 {
		return defaultSessionTTLHour * time.Hour
	}
	return time.Duration(s.TTLHours) * time.Hour
}

// LoadConfig loads the configuration files from the first matching search path.
// Returns the config along with the directory the first file was found in.
func LoadConfig() (*Config, string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	configPaths := []string{
		".mangrove",
		homeDir + "/.mangrove/config",
		"/etc/mangrove/config",
		"/app/config",
		"config",
		".",
	}

	return LoadConfigFrom(configPaths)
}

// LoadConfigFrom loads the configuration using the given search paths.
func LoadConfigFrom(configPaths []string) (*Config, string, error) {
	var (
		config         Config
		usedConfigPath string
	)

	targets := []struct {
		name   string
		target any
	}{
		{"common", &config.Common},
		{"api", &config.API},
		{"worker", &config.Worker},
	}

	for _, t := range targets {
		path, err := loadFile(configPaths, t.name, t.target)
		if err != nil {
			return nil, "", err
		}

		if usedConfigPath == "" {
			usedConfigPath = path
		}
	}

	if err := checkConfigVersion("common", config.Common.Version, CurrentCommonVersion); err != nil {
		return nil, "", err
	}

	if err := checkConfigVersion("api", config.API.Version, CurrentAPIVersion); err != nil {
		return nil, "", err
	}

	if err := checkConfigVersion("worker", config.Worker.Version, CurrentWorkerVersion); err != nil {
		return nil, "", err
	}

	if err := applySecretOverrides(&config, usedConfigPath); err != nil {
		return nil, "", err
	}

	return &config, usedConfigPath, nil
}

// loadFile loads <name>.toml from the first path that has it.
func loadFile(configPaths []string, name string, target any) (string, error) {
	for _, path := range configPaths {
		k := koanf.New(".")

		configPath := filepath.Join(path, name+configFileExtension)
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			continue
		}

		if err := k.Unmarshal("", target); err != nil {
			return "", fmt.Errorf("error unmarshaling %s%s: %w", name, configFileExtension, err)
		}

		return path, nil
	}

	return "", fmt.Errorf("%w: %s%s", ErrConfigFileNotFound, name, configFileExtension)
}

// applySecretOverrides loads an optional .env file and lets environment variables
// replace secrets from the config files.
func applySecretOverrides(config *Config, configDir string) error {
	envPath := filepath.Join(configDir, envFileName)
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	overrides := map[string]*string{
		EnvGeminiAPIKey:     &config.Common.Gemini.APIKey,
		EnvPostgresPassword: &config.Common.PostgreSQL.Password,
		EnvRedisPassword:    &config.Common.Redis.Password,
		EnvTelemetryDSN:     &config.Common.Telemetry.DSN,
	}

	for name, target := range overrides {
		if value, ok := os.LookupEnv(name); ok && value != "" {
			*target = value
		}
	}

	return nil
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(name string, current, expected int) error {
	if current == 0 {
		return fmt.Errorf("%w: %s.toml", ErrConfigVersionMissing, name)
	}

	if current != expected {
		return fmt.Errorf(
			"%w: %s.toml (got: %d, expected: %d)\n"+
				"Please update your config file from: https://github.com/mangrovewatch/mangrove/tree/%s/config/%s.toml",
			ErrConfigVersionMismatch,
			name,
			current,
			expected,
			RepositoryVersion,
			name,
		)
	}

	return nil
}
