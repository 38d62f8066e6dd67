package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Dreame bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge    BridgeConfig    `yaml:"bridge"`
	Vacuums   []VacuumConfig  `yaml:"vacuums"`
	Agent     AgentConfig     `yaml:"agent"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// BridgeConfig contains bridge-level settings.
type BridgeConfig struct {
	// ID identifies this bridge instance in MQTT health messages.
	ID string `yaml:"id"`

	// TopicPrefix is the root of all MQTT topics published by the bridge.
	TopicPrefix string `yaml:"topic_prefix"`

	// HealthInterval is how often health status is published (seconds).
	HealthInterval int `yaml:"health_interval"`

	// CommandWorkers bounds the number of concurrent device calls.
	CommandWorkers int `yaml:"command_workers"`
}

// VacuumConfig describes one Dreame vacuum managed by the bridge.
type VacuumConfig struct {
	// ID is the platform identity of the vacuum entity. Must be unique.
	ID string `yaml:"id"`

	// Host is the IP address or hostname of the vacuum on the local network.
	Host string `yaml:"host"`

	// Token is the 32-character miio access token for the device.
	Token string `yaml:"token"`

	// Name is the display name. Defaults to "Dreame Vacuum" if empty.
	Name string `yaml:"name"`

	// PollInterval is the status polling cadence in seconds.
	PollInterval int `yaml:"poll_interval"`
}

// AgentConfig describes the miio agent daemon that owns the device wire
// protocol (discovery, handshake, payload encryption). The bridge talks
// to it over TCP and can optionally manage its lifecycle.
type AgentConfig struct {
	// Managed indicates whether the bridge should start and supervise the
	// agent process. If false, the agent is expected to be running externally.
	Managed bool `yaml:"managed"`

	// Binary is the path to the agent executable. Required when managed.
	Binary string `yaml:"binary"`

	// Host is the address the agent listens on.
	Host string `yaml:"host"`

	// Port is the agent's TCP port.
	Port int `yaml:"port"`

	// RequestTimeout is the per-request timeout in seconds.
	RequestTimeout int `yaml:"request_timeout"`

	// RestartOnFailure enables automatic restart if the managed agent crashes.
	RestartOnFailure bool `yaml:"restart_on_failure"`

	// RestartDelay is the seconds to wait before restarting.
	RestartDelay int `yaml:"restart_delay"`

	// MaxRestartAttempts limits restart attempts. 0 means unlimited.
	MaxRestartAttempts int `yaml:"max_restart_attempts"`

	// GracefulTimeout is the seconds to wait for graceful shutdown before SIGKILL.
	GracefulTimeout int `yaml:"graceful_timeout"`

	// HealthCheckInterval is how often the watchdog probes the agent (seconds).
	HealthCheckInterval int `yaml:"health_check_interval"`
}

// DatabaseConfig contains SQLite database settings.
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

// APITimeoutConfig contains HTTP timeout settings.
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

	// APISecret is the shared bootstrap secret exchanged for a JWT
	// via POST /api/v1/auth/token.
	APISecret string `yaml:"api_secret"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// miioTokenLength is the exact length of a miio device access token.
const miioTokenLength = 32

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: DREAME_SECTION_KEY
// For example: DREAME_DATABASE_PATH, DREAME_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:             "dreame-bridge",
			TopicPrefix:    "dreame",
			HealthInterval: 30,
			CommandWorkers: 4,
		},
		Agent: AgentConfig{
			Managed:             false,
			Host:                "localhost",
			Port:                4050,
			RequestTimeout:      10,
			RestartOnFailure:    true,
			RestartDelay:        5,
			MaxRestartAttempts:  10,
			GracefulTimeout:     10,
			HealthCheckInterval: 30,
		},
		Database: DatabaseConfig{
			Path:        "./data/dreame-bridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "dreame-bridge",
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
			Port: 8086,
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
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DREAME_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("DREAME_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("DREAME_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DREAME_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DREAME_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("DREAME_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// Agent
	if v := os.Getenv("DREAME_AGENT_HOST"); v != "" {
		cfg.Agent.Host = v
	}

	// InfluxDB
	if v := os.Getenv("DREAME_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - JWT secret (IMPORTANT: always override in production)
	if v := os.Getenv("DREAME_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("DREAME_API_SECRET"); v != "" {
		cfg.Security.APISecret = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Bridge validation
	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}
	if c.Bridge.TopicPrefix == "" {
		errs = append(errs, "bridge.topic_prefix is required")
	}
	if c.Bridge.CommandWorkers < 1 {
		errs = append(errs, "bridge.command_workers must be at least 1")
	}

	// Vacuum validation
	if len(c.Vacuums) == 0 {
		errs = append(errs, "at least one vacuum must be configured")
	}
	seen := make(map[string]bool, len(c.Vacuums))
	for i, v := range c.Vacuums {
		prefix := fmt.Sprintf("vacuums[%d]", i)
		if v.ID == "" {
			errs = append(errs, prefix+".id is required")
		} else if seen[v.ID] {
			errs = append(errs, prefix+".id duplicates "+v.ID)
		} else {
			seen[v.ID] = true
		}
		if v.Host == "" {
			errs = append(errs, prefix+".host is required")
		}
		if len(v.Token) != miioTokenLength {
			errs = append(errs, prefix+".token must be exactly 32 characters")
		}
	}

	// Agent validation
	if c.Agent.Host == "" {
		errs = append(errs, "agent.host is required")
	}
	if c.Agent.Port < 1 || c.Agent.Port > 65535 {
		errs = append(errs, "agent.port must be between 1 and 65535")
	}
	if c.Agent.Managed && c.Agent.Binary == "" {
		errs = append(errs, "agent.binary is required when agent.managed is true")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Security validation - JWT secret is REQUIRED.
	// The API issues commands to a physical device; a forged token means
	// unauthorised control of hardware in someone's home.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set DREAME_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// defaultPollInterval is used when a vacuum entry does not set one.
const defaultPollInterval = 30 * time.Second

// GetPollInterval returns the polling cadence for a vacuum as a Duration.
func (v VacuumConfig) GetPollInterval() time.Duration {
	if v.PollInterval <= 0 {
		return defaultPollInterval
	}
	return time.Duration(v.PollInterval) * time.Second
}

// DisplayName returns the configured name or a default.
func (v VacuumConfig) DisplayName() string {
	if v.Name == "" {
		return "Dreame Vacuum"
	}
	return v.Name
}

// Address returns the host:port the agent listens on.
func (a AgentConfig) Address() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// GetRequestTimeout returns the per-request timeout as a Duration.
func (a AgentConfig) GetRequestTimeout() time.Duration {
	if a.RequestTimeout <= 0 {
		return 10 * time.Second //nolint:mnd // default request timeout
	}
	return time.Duration(a.RequestTimeout) * time.Second
}

// GetRestartDelay returns the restart backoff as a Duration.
func (a AgentConfig) GetRestartDelay() time.Duration {
	if a.RestartDelay <= 0 {
		return 5 * time.Second //nolint:mnd // default restart delay
	}
	return time.Duration(a.RestartDelay) * time.Second
}

// GetGracefulTimeout returns the graceful shutdown window as a Duration.
func (a AgentConfig) GetGracefulTimeout() time.Duration {
	if a.GracefulTimeout <= 0 {
		return 10 * time.Second //nolint:mnd // default graceful timeout
	}
	return time.Duration(a.GracefulTimeout) * time.Second
}

// GetHealthCheckInterval returns the agent watchdog cadence as a Duration.
func (a AgentConfig) GetHealthCheckInterval() time.Duration {
	if a.HealthCheckInterval <= 0 {
		return 30 * time.Second //nolint:mnd // default watchdog cadence
	}
	return time.Duration(a.HealthCheckInterval) * time.Second
}

// GetHealthInterval returns the health publish interval as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	if c.Bridge.HealthInterval <= 0 {
		return 30 * time.Second //nolint:mnd // default health cadence
	}
	return time.Duration(c.Bridge.HealthInterval) * time.Second
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
