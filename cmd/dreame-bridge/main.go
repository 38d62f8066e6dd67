// Dreame Bridge - MQTT bridge for Dreame robotic vacuums
//
// This is the main entry point for the bridge. It connects Dreame 1C
// (dreame.vacuum.mc1808) vacuums on the local network to the platform's
// MQTT bus: commands in, retained state and health out, with an admin
// HTTP/WebSocket API on the side.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mirobo/dreame-bridge/migrations"

	"github.com/mirobo/dreame-bridge/internal/api"
	"github.com/mirobo/dreame-bridge/internal/bridge"
	"github.com/mirobo/dreame-bridge/internal/dreame"
	"github.com/mirobo/dreame-bridge/internal/infrastructure/config"
	"github.com/mirobo/dreame-bridge/internal/infrastructure/database"
	"github.com/mirobo/dreame-bridge/internal/infrastructure/influxdb"
	"github.com/mirobo/dreame-bridge/internal/infrastructure/logging"
	"github.com/mirobo/dreame-bridge/internal/infrastructure/mqtt"
	"github.com/mirobo/dreame-bridge/internal/miio"
	"github.com/mirobo/dreame-bridge/internal/vacuum"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Dreame Bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Connect to MQTT broker
	topics := mqtt.NewTopics(cfg.Bridge.TopicPrefix)
	mqttClient, err := mqtt.Connect(cfg.MQTT, topics)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Set up MQTT logging callbacks
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start the miio agent (if managed) and connect to it
	agent := miio.NewAgent(cfg.Agent)
	agent.SetLogger(log)
	if err := agent.Start(ctx); err != nil {
		return fmt.Errorf("starting miio agent: %w", err)
	}
	defer func() {
		log.Info("stopping miio agent")
		if stopErr := agent.Stop(); stopErr != nil {
			log.Error("error stopping miio agent", "error", stopErr)
		}
	}()

	miioClient := miio.NewClient(cfg.Agent)
	miioClient.SetLogger(log)
	defer func() {
		if closeErr := miioClient.Close(); closeErr != nil {
			log.Error("error closing miio client", "error", closeErr)
		}
	}()
	log.Info("miio agent connection configured",
		"address", cfg.Agent.Address(),
		"managed", agent.IsManaged(),
	)

	// Build the vacuum registry from configuration
	registry := vacuum.NewRegistry()
	pollIntervals := make(map[string]time.Duration, len(cfg.Vacuums))
	for _, v := range cfg.Vacuums {
		device := dreame.NewVacuum(miioClient.Transport(v.Host, v.Token))
		entity := vacuum.NewEntity(v.ID, v.DisplayName(), device, log)
		registry.Register(entity)
		pollIntervals[v.ID] = v.GetPollInterval()

		log.Info("vacuum registered",
			"id", v.ID,
			"name", v.DisplayName(),
			"host", v.Host,
			"poll_interval", v.GetPollInterval(),
		)
	}

	// State history persistence
	history := vacuum.NewSQLiteStateHistoryRepository(db.DB)

	// Start the MQTT bridge
	bridgeOpts := bridge.Options{
		BridgeID:       cfg.Bridge.ID,
		Version:        version,
		MQTTClient:     mqttClient,
		Topics:         topics,
		Registry:       registry,
		Workers:        cfg.Bridge.CommandWorkers,
		History:        history,
		HealthInterval: cfg.GetHealthInterval(),
		PollIntervals:  pollIntervals,
		Logger:         log,
	}
	if influxClient != nil {
		bridgeOpts.Telemetry = influxClient
	}

	vacuumBridge, err := bridge.New(bridgeOpts)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if err := vacuumBridge.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		vacuumBridge.Stop()
	}()
	log.Info("bridge started", "bridge_id", cfg.Bridge.ID, "vacuums", registry.Count())

	// Start the admin API server
	apiServer, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log,
		Registry: registry,
		MQTT:     mqttClient,
		Topics:   topics,
		History:  history,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient, agent); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Bridge (drains command queue, publishes stopping status)
	// 3. miio client and agent
	// 4. InfluxDB (if enabled)
	// 5. MQTT
	// 6. Database

	log.Info("Dreame Bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses DREAME_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DREAME_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//   - agent: miio agent to probe
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, agent *miio.Agent) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if err := agent.HealthCheck(ctx); err != nil {
		return fmt.Errorf("miio agent: %w", err)
	}

	return nil
}
