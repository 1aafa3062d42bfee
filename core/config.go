package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the storefront client core.
// It supports three-layer configuration priority:
//  1. Default values (lowest priority)
//  2. Environment variables (medium priority)
//  3. Functional options (highest priority)
//
// Example usage:
//
//	cfg, err := NewConfig(
//	    WithService("saareats-kiosk"),
//	    WithBaseURL("https://api.saareats.example"),
//	    WithStorageDir("/var/lib/saareats"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
type Config struct {
	// Service is the client instance name used in logs and telemetry.
	Service string `json:"service" yaml:"service"`

	// API configures the backend HTTP client.
	API APIConfig `json:"api" yaml:"api"`

	// Storage configures the durable slot store backing the cart and
	// guest checkout details.
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Stream configures the order-update push channel.
	Stream StreamConfig `json:"stream" yaml:"stream"`

	// Session configures session manager timing behavior.
	Session SessionConfig `json:"session" yaml:"session"`

	// Telemetry configuration (optional module)
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// APIConfig contains backend HTTP client configuration.
type APIConfig struct {
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// StorageConfig selects and configures the durable slot store.
// Provider is one of "memory", "file", or "redis".
type StorageConfig struct {
	Provider     string `json:"provider" yaml:"provider"`
	Dir          string `json:"dir" yaml:"dir"`
	RedisURL     string `json:"redis_url" yaml:"redis_url"`
	CartSlotKey  string `json:"cart_slot_key" yaml:"cart_slot_key"`
	GuestSlotKey string `json:"guest_slot_key" yaml:"guest_slot_key"`
}

// StreamConfig selects and configures the push-channel transport.
// Provider is one of "websocket", "redis", or "none".
type StreamConfig struct {
	Provider string `json:"provider" yaml:"provider"`
	URL      string `json:"url" yaml:"url"`
	RedisURL string `json:"redis_url" yaml:"redis_url"`
	Channel  string `json:"channel" yaml:"channel"`
}

// SessionConfig contains session manager timing configuration.
// NoticeTTL is how long the "session expired" notice stays visible.
// ExpiryCoalesce is the window within which concurrent unauthorized
// responses produce a single notice.
type SessionConfig struct {
	NoticeTTL      time.Duration `json:"notice_ttl" yaml:"notice_ttl"`
	ExpiryCoalesce time.Duration `json:"expiry_coalesce" yaml:"expiry_coalesce"`
}

// TelemetryConfig contains OpenTelemetry configuration.
// This is an optional module - telemetry is only initialized when
// Enabled=true. An empty Endpoint selects the stdout exporter.
type TelemetryConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Endpoint    string `json:"endpoint" yaml:"endpoint"`
	ServiceName string `json:"service_name" yaml:"service_name"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// DefaultConfig returns a configuration with sensible defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Service: "saareats-storefront",
		API: APIConfig{
			Timeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Provider:     "file",
			Dir:          defaultStorageDir(),
			CartSlotKey:  "saareats_cart_v1",
			GuestSlotKey: "saareats_guest_checkout_v1",
		},
		Stream: StreamConfig{
			Provider: "websocket",
			Channel:  "saareats:orders:update",
		},
		Session: SessionConfig{
			NoticeTTL:      4 * time.Second,
			ExpiryCoalesce: 1500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "",
		},
	}
}

func defaultStorageDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "saareats")
	}
	return ".saareats"
}

// LoadFromEnv loads configuration from environment variables.
// Environment variable patterns:
//   - Client-specific: SAAREATS_<SETTING>
//   - Standard variables: REDIS_URL, OTEL_EXPORTER_OTLP_ENDPOINT
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("SAAREATS_SERVICE"); v != "" {
		c.Service = v
	}
	if v := os.Getenv("SAAREATS_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("SAAREATS_API_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.API.Timeout = d
		}
	}

	if v := os.Getenv("SAAREATS_STORAGE_PROVIDER"); v != "" {
		c.Storage.Provider = v
	}
	if v := os.Getenv("SAAREATS_STORAGE_DIR"); v != "" {
		c.Storage.Dir = v
	}
	if v := os.Getenv("SAAREATS_REDIS_URL"); v != "" {
		c.Storage.RedisURL = v
		c.Stream.RedisURL = v
	} else if v := os.Getenv("REDIS_URL"); v != "" {
		c.Storage.RedisURL = v
		c.Stream.RedisURL = v
	}

	if v := os.Getenv("SAAREATS_STREAM_PROVIDER"); v != "" {
		c.Stream.Provider = v
	}
	if v := os.Getenv("SAAREATS_STREAM_URL"); v != "" {
		c.Stream.URL = v
	}

	if v := os.Getenv("SAAREATS_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = parseBool(v)
	}
	if v := os.Getenv("SAAREATS_TELEMETRY_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true
	} else if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
		c.Telemetry.Enabled = true
	}
	if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		c.Telemetry.ServiceName = v
	} else if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = c.Service
	}

	if v := os.Getenv("SAAREATS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SAAREATS_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}

	return nil
}

// LoadFromFile loads configuration from a JSON or YAML file.
// File settings override environment variables but are overridden by
// functional options applied after WithConfigFile.
func (c *Config) LoadFromFile(path string) error {
	cleanPath := filepath.Clean(path)

	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file extension %s: %w", ext, ErrInvalidConfiguration)
	}

	if !filepath.IsAbs(cleanPath) {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		cleanPath = filepath.Join(wd, cleanPath)
	}

	data, err := os.ReadFile(filepath.Clean(cleanPath)) // nosec G304 -- path is validated
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	switch ext {
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse JSON config file: %w", ErrInvalidConfiguration)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse YAML config file: %w", ErrInvalidConfiguration)
		}
	}

	return nil
}

// Validate checks if the configuration is valid and returns an error if not.
//
// Validation rules:
//   - API base URL is required
//   - Redis URL is required when the redis storage or stream provider is selected
//   - Storage directory is required for the file provider
//   - Slot keys must be non-empty
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return &ClientError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "API base URL is required",
			Err:     ErrMissingConfiguration,
		}
	}

	switch c.Storage.Provider {
	case "memory":
	case "file":
		if c.Storage.Dir == "" {
			return &ClientError{
				Op:      "Config.Validate",
				Kind:    "config",
				Message: "storage directory is required for the file provider",
				Err:     ErrMissingConfiguration,
			}
		}
	case "redis":
		if c.Storage.RedisURL == "" {
			return &ClientError{
				Op:      "Config.Validate",
				Kind:    "config",
				Message: "redis URL is required for the redis storage provider",
				Err:     ErrMissingConfiguration,
			}
		}
	default:
		return &ClientError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("unknown storage provider: %s", c.Storage.Provider),
			Err:     ErrInvalidConfiguration,
		}
	}

	switch c.Stream.Provider {
	case "none", "websocket":
	case "redis":
		if c.Stream.RedisURL == "" {
			return &ClientError{
				Op:      "Config.Validate",
				Kind:    "config",
				Message: "redis URL is required for the redis stream provider",
				Err:     ErrMissingConfiguration,
			}
		}
	default:
		return &ClientError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("unknown stream provider: %s", c.Stream.Provider),
			Err:     ErrInvalidConfiguration,
		}
	}

	if c.Storage.CartSlotKey == "" || c.Storage.GuestSlotKey == "" {
		return &ClientError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "storage slot keys must not be empty",
			Err:     ErrMissingConfiguration,
		}
	}

	return nil
}

// Option is a functional option for configuring the client core.
type Option func(*Config) error

// WithService sets the client instance name used in logs and telemetry.
func WithService(name string) Option {
	return func(c *Config) error {
		c.Service = name
		return nil
	}
}

// WithBaseURL sets the backend API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) error {
		c.API.BaseURL = strings.TrimRight(url, "/")
		return nil
	}
}

// WithAPITimeout sets the per-request timeout for backend calls.
func WithAPITimeout(d time.Duration) Option {
	return func(c *Config) error {
		c.API.Timeout = d
		return nil
	}
}

// WithStorageProvider selects the durable slot store backend.
func WithStorageProvider(provider string) Option {
	return func(c *Config) error {
		c.Storage.Provider = provider
		return nil
	}
}

// WithStorageDir sets the directory used by the file storage provider.
func WithStorageDir(dir string) Option {
	return func(c *Config) error {
		c.Storage.Dir = dir
		c.Storage.Provider = "file"
		return nil
	}
}

// WithRedisURL sets the Redis URL for both the storage and stream providers.
func WithRedisURL(url string) Option {
	return func(c *Config) error {
		c.Storage.RedisURL = url
		c.Stream.RedisURL = url
		return nil
	}
}

// WithStreamProvider selects the push-channel transport.
func WithStreamProvider(provider string) Option {
	return func(c *Config) error {
		c.Stream.Provider = provider
		return nil
	}
}

// WithStreamURL sets the websocket endpoint for the order-update stream.
func WithStreamURL(url string) Option {
	return func(c *Config) error {
		c.Stream.URL = url
		c.Stream.Provider = "websocket"
		return nil
	}
}

// WithTelemetry enables telemetry with the given OTLP endpoint.
// An empty endpoint selects the stdout exporter.
func WithTelemetry(endpoint string) Option {
	return func(c *Config) error {
		c.Telemetry.Enabled = true
		c.Telemetry.Endpoint = endpoint
		return nil
	}
}

// WithLogLevel sets the log level (debug, info, warn, error).
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = level
		return nil
	}
}

// WithLogFormat sets the log format ("json" or "text").
func WithLogFormat(format string) Option {
	return func(c *Config) error {
		c.Logging.Format = format
		return nil
	}
}

// WithConfigFile loads settings from a JSON or YAML file.
func WithConfigFile(path string) Option {
	return func(c *Config) error {
		return c.LoadFromFile(path)
	}
}

// NewConfig creates a new configuration with the provided options.
// Configuration is applied in the following order:
//  1. Default values from DefaultConfig()
//  2. Environment variables via LoadFromEnv()
//  3. Functional options (highest priority)
//  4. Validation via Validate()
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// parseBool converts a string to a boolean value.
// Accepts: "true", "1", "yes", "on" (case-insensitive) as true.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
