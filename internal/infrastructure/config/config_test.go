package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testToken = "ffffffffffffffffffffffffffffffff" // 32 chars

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
bridge:
  id: "test-bridge"
vacuums:
  - id: "vacuum-hallway"
    host: "192.168.1.50"
    token: "` + testToken + `"
    name: "Hallway Vacuum"
    poll_interval: 15
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8086
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Bridge.ID != "test-bridge" {
		t.Errorf("Bridge.ID = %q, want %q", cfg.Bridge.ID, "test-bridge")
	}

	if len(cfg.Vacuums) != 1 {
		t.Fatalf("len(Vacuums) = %d, want 1", len(cfg.Vacuums))
	}
	if cfg.Vacuums[0].Host != "192.168.1.50" {
		t.Errorf("Vacuums[0].Host = %q, want %q", cfg.Vacuums[0].Host, "192.168.1.50")
	}
	if got := cfg.Vacuums[0].GetPollInterval().Seconds(); got != 15 {
		t.Errorf("GetPollInterval() = %vs, want 15s", got)
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}

	// Defaults survive partial configs
	if cfg.Bridge.TopicPrefix != "dreame" {
		t.Errorf("Bridge.TopicPrefix = %q, want default %q", cfg.Bridge.TopicPrefix, "dreame")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	validJWTSecret := "test-secret-key-at-least-32-chars!"

	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Security.JWT.Secret = validJWTSecret
		cfg.Vacuums = []VacuumConfig{{
			ID:    "vacuum-1",
			Host:  "192.168.1.50",
			Token: testToken,
		}}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "no vacuums",
			mutate:  func(c *Config) { c.Vacuums = nil },
			wantErr: "at least one vacuum",
		},
		{
			name:    "short token",
			mutate:  func(c *Config) { c.Vacuums[0].Token = "abc123" },
			wantErr: "exactly 32 characters",
		},
		{
			name:    "missing host",
			mutate:  func(c *Config) { c.Vacuums[0].Host = "" },
			wantErr: "host is required",
		},
		{
			name: "duplicate vacuum id",
			mutate: func(c *Config) {
				c.Vacuums = append(c.Vacuums, c.Vacuums[0])
			},
			wantErr: "duplicates",
		},
		{
			name:    "missing jwt secret",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "" },
			wantErr: "jwt.secret is required",
		},
		{
			name:    "weak jwt secret",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "short" },
			wantErr: "at least 32 characters",
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "qos must be",
		},
		{
			name:    "invalid api port",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: "api.port",
		},
		{
			name:    "zero command workers",
			mutate:  func(c *Config) { c.Bridge.CommandWorkers = 0 },
			wantErr: "command_workers",
		},
		{
			name:    "invalid agent port",
			mutate:  func(c *Config) { c.Agent.Port = 70000 },
			wantErr: "agent.port",
		},
		{
			name: "managed agent without binary",
			mutate: func(c *Config) {
				c.Agent.Managed = true
				c.Agent.Binary = ""
			},
			wantErr: "agent.binary",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	content := `
vacuums:
  - id: "vacuum-1"
    host: "192.168.1.50"
    token: "` + testToken + `"
mqtt:
  broker:
    host: "from-file"
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`
	t.Setenv("DREAME_MQTT_HOST", "from-env")
	t.Setenv("DREAME_DATABASE_PATH", "/tmp/env-override.db")

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "from-env" {
		t.Errorf("MQTT.Broker.Host = %q, want env override %q", cfg.MQTT.Broker.Host, "from-env")
	}
	if cfg.Database.Path != "/tmp/env-override.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
}

func TestAgentConfig_Defaults(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Agent.Managed {
		t.Error("Agent.Managed = true, want false by default")
	}
	if got := cfg.Agent.Address(); got != "localhost:4050" {
		t.Errorf("Address() = %q, want localhost:4050", got)
	}
	if got := cfg.Agent.GetRequestTimeout().Seconds(); got != 10 {
		t.Errorf("GetRequestTimeout() = %vs, want 10s", got)
	}

	// Zero values fall back to safe defaults
	zero := AgentConfig{}
	if got := zero.GetRestartDelay().Seconds(); got != 5 {
		t.Errorf("GetRestartDelay() = %vs, want 5s", got)
	}
	if got := zero.GetGracefulTimeout().Seconds(); got != 10 {
		t.Errorf("GetGracefulTimeout() = %vs, want 10s", got)
	}
	if got := zero.GetHealthCheckInterval().Seconds(); got != 30 {
		t.Errorf("GetHealthCheckInterval() = %vs, want 30s", got)
	}
}

func TestVacuumConfig_Defaults(t *testing.T) {
	v := VacuumConfig{}
	if got := v.GetPollInterval(); got != defaultPollInterval {
		t.Errorf("GetPollInterval() = %v, want %v", got, defaultPollInterval)
	}
	if got := v.DisplayName(); got != "Dreame Vacuum" {
		t.Errorf("DisplayName() = %q, want default", got)
	}

	v.Name = "Upstairs"
	if got := v.DisplayName(); got != "Upstairs" {
		t.Errorf("DisplayName() = %q, want %q", got, "Upstairs")
	}
}
