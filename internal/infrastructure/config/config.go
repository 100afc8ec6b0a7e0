package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the lock bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	Locks     LocksConfig     `yaml:"locks"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings for the audit trail.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
// Tokens are issued elsewhere; the bridge only verifies them.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// LocksConfig contains the lock service connection and monitor tuning.
type LocksConfig struct {
	// BaseURL of the vendor API. Empty selects the public endpoint.
	BaseURL string `yaml:"base_url"`

	Auth LockAuthConfig `yaml:"auth"`

	// PollInterval is the Monitor's inter-poll wait.
	// Default: 900ms
	PollInterval time.Duration `yaml:"poll_interval"`

	// MaxOperationTries is the operation-mode try ceiling.
	// Default: 5
	MaxOperationTries int `yaml:"max_operation_tries"`

	// MaxStateTries is the state-mode try ceiling.
	// Default: 6
	MaxStateTries int `yaml:"max_state_tries"`

	// ResyncInterval is how often idle locks are refreshed from the API.
	// Zero disables the resync loop.
	// Default: 5m
	ResyncInterval time.Duration `yaml:"resync_interval"`

	// RequestTimeout bounds each API request.
	// Default: 15s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// HealthInterval is how often bridge health is published.
	// Default: 30s
	HealthInterval time.Duration `yaml:"health_interval"`

	// Language selects the catalog for user-facing messages.
	// Default: "en"
	Language string `yaml:"language"`
}

// Lock service authentication modes.
const (
	AuthModePersonalKey = "personal_key"
	AuthModeOAuth2      = "oauth2"
)

// LockAuthConfig selects how the bridge authenticates to the lock service.
type LockAuthConfig struct {
	Mode        string       `yaml:"mode"`
	PersonalKey string       `yaml:"personal_key"`
	OAuth2      OAuth2Config `yaml:"oauth2"`
}

// OAuth2Config contains OAuth2 client credentials and a refresh token.
type OAuth2Config struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	AuthURL      string   `yaml:"auth_url"`
	TokenURL     string   `yaml:"token_url"`
	RefreshToken string   `yaml:"refresh_token"`
	Scopes       []string `yaml:"scopes"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. .env file, if one is found (see LoadDotEnv)
//  4. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOCK_SECTION_KEY
// For example: GRAYLOCK_DATABASE_PATH, GRAYLOCK_LOCKS_PERSONAL_KEY
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if _, err := LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Gray Logic Locks",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/graylock.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylock-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{Issuer: "gray-logic"},
		},
		Locks: LocksConfig{
			Auth:              LockAuthConfig{Mode: AuthModePersonalKey},
			PollInterval:      900 * time.Millisecond,
			MaxOperationTries: 5,
			MaxStateTries:     6,
			ResyncInterval:    5 * time.Minute,
			RequestTimeout:    15 * time.Second,
			HealthInterval:    30 * time.Second,
			Language:          "en",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOCK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("GRAYLOCK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOCK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOCK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOCK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("GRAYLOCK_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("GRAYLOCK_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOCK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security
	if v := os.Getenv("GRAYLOCK_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}

	// Lock service credentials
	if v := os.Getenv("GRAYLOCK_LOCKS_BASE_URL"); v != "" {
		cfg.Locks.BaseURL = v
	}
	if v := os.Getenv("GRAYLOCK_LOCKS_PERSONAL_KEY"); v != "" {
		cfg.Locks.Auth.PersonalKey = v
	}
	if v := os.Getenv("GRAYLOCK_LOCKS_CLIENT_ID"); v != "" {
		cfg.Locks.Auth.OAuth2.ClientID = v
	}
	if v := os.Getenv("GRAYLOCK_LOCKS_CLIENT_SECRET"); v != "" {
		cfg.Locks.Auth.OAuth2.ClientSecret = v
	}
	if v := os.Getenv("GRAYLOCK_LOCKS_REFRESH_TOKEN"); v != "" {
		cfg.Locks.Auth.OAuth2.RefreshToken = v
	}
	if v := os.Getenv("GRAYLOCK_LOCKS_LANGUAGE"); v != "" {
		cfg.Locks.Language = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Lock commands move physical bolts; an empty or weak secret would let
	// anyone on the network forge a token.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set GRAYLOCK_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	errs = append(errs, c.Locks.validate()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (l *LocksConfig) validate() []string {
	var errs []string

	switch l.Auth.Mode {
	case AuthModePersonalKey:
		if l.Auth.PersonalKey == "" {
			errs = append(errs, "locks.auth.personal_key is required (set GRAYLOCK_LOCKS_PERSONAL_KEY)")
		}
	case AuthModeOAuth2:
		o := l.Auth.OAuth2
		if o.ClientID == "" || o.TokenURL == "" || o.RefreshToken == "" {
			errs = append(errs, "locks.auth.oauth2 requires client_id, token_url and refresh_token")
		}
	default:
		errs = append(errs, fmt.Sprintf("locks.auth.mode must be %q or %q", AuthModePersonalKey, AuthModeOAuth2))
	}

	if l.PollInterval < 100*time.Millisecond {
		errs = append(errs, "locks.poll_interval must be at least 100ms")
	}
	if l.MaxOperationTries < 1 {
		errs = append(errs, "locks.max_operation_tries must be positive")
	}
	if l.MaxStateTries < 1 {
		errs = append(errs, "locks.max_state_tries must be positive")
	}
	if l.ResyncInterval < 0 {
		errs = append(errs, "locks.resync_interval must not be negative")
	}

	return errs
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
