package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mirobo/dreame-bridge/internal/dreame"
	"github.com/mirobo/dreame-bridge/internal/infrastructure/logging"
	"github.com/mirobo/dreame-bridge/internal/infrastructure/mqtt"
	"github.com/mirobo/dreame-bridge/internal/vacuum"
)

// Bridge operation constants.
const (
	// commandTopicParts is the number of segments in a command topic
	// ({prefix}/command/vacuum/{device_id}).
	commandTopicParts = 4

	// commandTimeout bounds a single device call. Wifi vacuums answer
	// slowly when cleaning, so this is generous compared to wired buses.
	commandTimeout = 10 * time.Second

	// defaultPollInterval is used for vacuums without a configured cadence.
	defaultPollInterval = 30 * time.Second
)

// Bridge orchestrates bidirectional translation between Dreame vacuums and MQTT.
// It handles:
//   - Receiving commands from the core via MQTT and proxying them to devices
//   - Polling device status and publishing retained state updates
//   - Health reporting and graceful shutdown
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	bridgeID string
	version  string

	mqtt      MQTTClient
	topics    mqtt.Topics
	registry  *vacuum.Registry
	pool      *vacuum.WorkerPool
	history   vacuum.StateHistoryRepository // Optional state history persistence
	telemetry TelemetryWriter               // Optional time-series telemetry
	health    *HealthReporter
	logger    *logging.Logger

	pollIntervals map[string]time.Duration

	// Last published status per device, for change detection
	lastStates   map[string]dreame.Status
	lastStatesMu sync.Mutex

	// Operational counters for health reporting
	commandsReceived atomic.Uint64
	commandsFailed   atomic.Uint64
	pollsFailed      atomic.Uint64
	statesPublished  atomic.Uint64

	// Shutdown coordination
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context    // Bridge-level context, cancelled on Stop()
	ctxCancel context.CancelFunc // Cancel function for ctx
}

// MQTTClient is the interface for MQTT operations.
// *mqtt.Client satisfies it; tests substitute a fake.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// TelemetryWriter records vacuum telemetry in a time-series store.
// This is optional - if nil, the bridge operates without telemetry.
// *influxdb.Client satisfies it.
type TelemetryWriter interface {
	// WriteVacuumStatus records the state, battery, and fan speed of a vacuum.
	WriteVacuumStatus(deviceID string, state string, battery int, fanSpeed int)

	// WriteConsumableLife records remaining life for one consumable.
	WriteConsumableLife(deviceID string, consumable string, lifePercent int, leftHours int)

	// WriteCleanCount records the lifetime cleaning run counter.
	WriteCleanCount(deviceID string, count int)
}

// Options holds configuration for creating a bridge.
type Options struct {
	// BridgeID identifies this bridge instance in health messages.
	BridgeID string

	// Version is the bridge software version.
	Version string

	// MQTTClient is the MQTT client implementation.
	MQTTClient MQTTClient

	// Topics builds the MQTT topic names.
	Topics mqtt.Topics

	// Registry holds the vacuum entities managed by this bridge.
	Registry *vacuum.Registry

	// Workers bounds the number of concurrent device commands.
	Workers int

	// History is optional state history persistence.
	// If nil, the bridge operates without a local audit trail.
	History vacuum.StateHistoryRepository

	// Telemetry is optional time-series telemetry.
	// If nil, the bridge operates without telemetry.
	Telemetry TelemetryWriter

	// HealthInterval is how often health status is published.
	HealthInterval time.Duration

	// PollIntervals maps device IDs to their polling cadence.
	// Devices without an entry poll every 30 seconds.
	PollIntervals map[string]time.Duration

	// Logger is the structured logger.
	Logger *logging.Logger
}

// New creates a new bridge instance.
// Call Start() to begin operation.
func New(opts Options) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, ErrMQTTClientRequired
	}
	if opts.Registry == nil {
		return nil, ErrRegistryRequired
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.With("component", "bridge")

	// Bridge-level context so in-flight commands abort on shutdown
	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		bridgeID:      opts.BridgeID,
		version:       opts.Version,
		mqtt:          opts.MQTTClient,
		topics:        opts.Topics,
		registry:      opts.Registry,
		pool:          vacuum.NewWorkerPool(opts.Workers),
		history:       opts.History,   // May be nil (optional)
		telemetry:     opts.Telemetry, // May be nil (optional)
		pollIntervals: opts.PollIntervals,
		lastStates:    make(map[string]dreame.Status),
		logger:        logger,
		ctx:           ctx,
		ctxCancel:     ctxCancel,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:   opts.BridgeID,
		Version:    opts.Version,
		Interval:   opts.HealthInterval,
		Publisher:  opts.MQTTClient,
		Topic:      opts.Topics.Health(opts.BridgeID),
		Statistics: b.Statistics,
		Logger:     logger,
	})
	b.health.SetDeviceCount(opts.Registry.Count())

	return b, nil
}

// Start begins bridge operation.
// This subscribes to the command topic, starts the per-vacuum pollers,
// and starts health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logger.Error("failed to publish starting status", "error", err)
	}

	commandTopic := b.topics.AllCommands()
	if err := b.mqtt.Subscribe(commandTopic, 1, b.handleCommandMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logger.Info("subscribed to commands", "topic", commandTopic)

	b.startPollers(ctx)

	b.health.Start(ctx)
	if err := b.health.PublishNow(); err != nil {
		b.logger.Error("failed to publish healthy status", "error", err)
	}

	b.logger.Info("bridge started",
		"bridge_id", b.bridgeID,
		"devices", b.registry.Count())

	return nil
}

// Stop gracefully shuts down the bridge.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		// Cancel bridge context to abort in-flight commands and pollers
		b.ctxCancel()

		// Drain queued commands
		b.pool.Close()

		// Stop health reporting (publishes "stopping" status)
		b.health.Stop()

		// Wait for pollers to finish
		b.wg.Wait()

		b.logger.Info("bridge stopped")
	})
}

// Statistics returns a snapshot of the operational counters.
func (b *Bridge) Statistics() BridgeStatistics {
	return BridgeStatistics{
		CommandsReceived: b.commandsReceived.Load(),
		CommandsFailed:   b.commandsFailed.Load(),
		PollsFailed:      b.pollsFailed.Load(),
		StatesPublished:  b.statesPublished.Load(),
	}
}

// handleCommandMessage processes a command received over MQTT.
// Parsing and entity lookup happen on the MQTT callback; the device call
// itself is dispatched to the worker pool.
func (b *Bridge) handleCommandMessage(topic string, payload []byte) error {
	b.commandsReceived.Add(1)

	deviceID, err := deviceIDFromTopic(topic)
	if err != nil {
		b.commandsFailed.Add(1)
		return err
	}

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		b.commandsFailed.Add(1)
		return fmt.Errorf("parse command: %w", err)
	}
	// The topic segment is authoritative for routing.
	cmd.DeviceID = deviceID

	b.logger.Info("received command",
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID,
		"command", cmd.Command)

	entity, ok := b.registry.Get(deviceID)
	if !ok {
		b.commandsFailed.Add(1)
		b.publishAckError(cmd, ErrCodeNotConfigured,
			fmt.Sprintf("vacuum %s not configured", deviceID))
		return nil
	}

	if !b.pool.Submit(func() { b.executeCommand(cmd, entity) }) {
		b.commandsFailed.Add(1)
		b.publishAckError(cmd, ErrCodeBridgeBusy, "command queue full")
	}

	return nil
}

// deviceIDFromTopic extracts the device ID from a command topic
// ({prefix}/command/vacuum/{device_id}).
func deviceIDFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < commandTopicParts || parts[len(parts)-1] == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}
	return parts[len(parts)-1], nil
}

// executeCommand runs one command against the entity and publishes the ack.
// Runs on a worker goroutine.
func (b *Bridge) executeCommand(cmd CommandMessage, entity *vacuum.Entity) {
	// Derive timeout from the bridge context so commands abort on shutdown
	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	var ok bool
	switch cmd.Command {
	case CommandStart:
		ok = entity.Start(ctx)
	case CommandStop:
		ok = entity.Stop(ctx)
	case CommandPause:
		ok = entity.Pause(ctx)
	case CommandLocate:
		ok = entity.Locate(ctx)
	case CommandReturnToDock:
		ok = entity.ReturnToDock(ctx)
	case CommandResetMainBrush:
		ok = entity.ResetMainBrush(ctx)
	case CommandResetSideBrush:
		ok = entity.ResetSideBrush(ctx)
	case CommandResetFilter:
		ok = entity.ResetFilter(ctx)
	case CommandSetFanSpeed:
		speed, err := fanSpeedParameter(cmd.Parameters)
		if err != nil {
			b.commandsFailed.Add(1)
			b.publishAckError(cmd, ErrCodeInvalidParameters, err.Error())
			return
		}
		ok = entity.SetFanSpeed(ctx, speed)
	default:
		b.commandsFailed.Add(1)
		b.publishAckError(cmd, ErrCodeInvalidCommand,
			fmt.Sprintf("unknown command: %s", cmd.Command))
		return
	}

	if !ok {
		b.commandsFailed.Add(1)
		b.publishAckError(cmd, ErrCodeDeviceUnreachable, "device did not accept the command")
		return
	}

	b.publishAck(cmd, AckAccepted)

	// Re-poll so the retained state reflects the command outcome.
	// Best effort: a stale snapshot is corrected on the next poll cycle.
	if err := entity.Update(ctx); err == nil {
		if snap, ok := entity.Snapshot(); ok {
			b.stateChanged(entity.ID(), snap.Status)
		}
		b.publishState(entity)
		b.recordHistory(ctx, entity, vacuum.StateHistorySourceCommand)
		b.writeTelemetry(entity)
	}
}

// fanSpeedParameter extracts the requested fan speed from command parameters.
// JSON numbers arrive as float64; both forms are accepted.
func fanSpeedParameter(params map[string]any) (string, error) {
	raw, ok := params["fan_speed"]
	if !ok {
		return "", fmt.Errorf("missing fan_speed parameter")
	}
	switch v := raw.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.Itoa(int(v)), nil
	default:
		return "", fmt.Errorf("fan_speed must be a string or number")
	}
}

// publishAck publishes a successful command acknowledgment.
func (b *Bridge) publishAck(cmd CommandMessage, status AckStatus) {
	ack := NewAckMessage(cmd, status)

	payload, err := json.Marshal(ack)
	if err != nil {
		b.logger.Error("failed to marshal ack", "error", err)
		return
	}

	if err := b.mqtt.Publish(b.topics.Ack(cmd.DeviceID), payload, 1, false); err != nil {
		b.logger.Error("failed to publish ack", "error", err)
	}
}

// publishAckError publishes a failed command acknowledgment.
func (b *Bridge) publishAckError(cmd CommandMessage, code, message string) {
	ack := NewAckError(cmd, code, message)

	payload, err := json.Marshal(ack)
	if err != nil {
		b.logger.Error("failed to marshal ack error", "error", err)
		return
	}

	if err := b.mqtt.Publish(b.topics.Ack(cmd.DeviceID), payload, 1, false); err != nil {
		b.logger.Error("failed to publish ack error", "error", err)
	}

	b.logger.Error("command failed",
		"command_id", cmd.ID,
		"device_id", cmd.DeviceID,
		"code", code,
		"message", message)
}

// stateChanged reports whether the status differs from the last one
// recorded for the device, and records the new status either way.
func (b *Bridge) stateChanged(deviceID string, status dreame.Status) bool {
	b.lastStatesMu.Lock()
	defer b.lastStatesMu.Unlock()

	last, seen := b.lastStates[deviceID]
	b.lastStates[deviceID] = status
	return !seen || last != status
}

// publishState publishes the entity's current snapshot as a retained
// state message. No-op before the first successful poll.
func (b *Bridge) publishState(entity *vacuum.Entity) {
	snap, ok := entity.Snapshot()
	if !ok {
		return
	}

	state, _ := entity.State()
	battery, _ := entity.BatteryLevel()
	fanSpeed, _ := entity.FanSpeed()
	attrs, _ := entity.Attributes()

	msg := NewStateMessage(entity.ID(), map[string]any{
		"state":          string(state),
		"battery":        battery,
		"fan_speed":      fanSpeed,
		"fan_speed_list": entity.FanSpeedList(),
		"attributes":     attrs,
		"polled_at":      snap.PolledAt,
	})

	payload, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("failed to marshal state", "error", err)
		return
	}

	if err := b.mqtt.Publish(b.topics.State(entity.ID()), payload, 1, true); err != nil {
		b.logger.Error("failed to publish state", "device_id", entity.ID(), "error", err)
		return
	}
	b.statesPublished.Add(1)
}

// recordHistory persists the entity's current snapshot, if history is enabled.
func (b *Bridge) recordHistory(ctx context.Context, entity *vacuum.Entity, source string) {
	if b.history == nil {
		return
	}

	snap, ok := entity.Snapshot()
	if !ok {
		return
	}

	if err := b.history.RecordSnapshot(ctx, entity.ID(), snap, source); err != nil {
		b.logger.Error("failed to record state history", "device_id", entity.ID(), "error", err)
	}
}

// writeTelemetry records the entity's current snapshot in the time-series
// store, if telemetry is enabled.
func (b *Bridge) writeTelemetry(entity *vacuum.Entity) {
	if b.telemetry == nil {
		return
	}

	state, ok := entity.State()
	if !ok {
		return
	}
	battery, _ := entity.BatteryLevel()
	attrs, _ := entity.Attributes()

	b.telemetry.WriteVacuumStatus(entity.ID(), string(state), battery, attrs.FanSpeedCode)
	b.telemetry.WriteConsumableLife(entity.ID(), "main_brush", attrs.MainBrushLifeLevel, attrs.MainBrushTimeLeft)
	b.telemetry.WriteConsumableLife(entity.ID(), "side_brush", attrs.SideBrushLifeLevel, attrs.SideBrushTimeLeft)
	b.telemetry.WriteConsumableLife(entity.ID(), "filter", attrs.FilterLifeLevel, attrs.FilterLeftTime)
	b.telemetry.WriteCleanCount(entity.ID(), attrs.TotalCleanCount)
}
