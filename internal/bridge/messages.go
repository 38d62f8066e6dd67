package bridge

import (
	"encoding/json"
	"fmt"
	"time"
)

// MQTT message types exchanged between the platform core and this bridge.

// Command names accepted on the command topic.
const (
	CommandStart        = "start"
	CommandStop         = "stop"
	CommandPause        = "pause"
	CommandLocate       = "locate"
	CommandReturnToDock   = "return_to_dock"
	CommandSetFanSpeed    = "set_fan_speed"
	CommandResetMainBrush = "reset_main_brush"
	CommandResetSideBrush = "reset_side_brush"
	CommandResetFilter    = "reset_filter"
)

// CommandMessage is sent from the core to the bridge to execute a vacuum command.
// Topic: {prefix}/command/vacuum/{device_id}
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with acknowledgments.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the platform identity of the vacuum.
	// Optional: the topic segment is authoritative.
	DeviceID string `json:"device_id,omitempty"`

	// Command is the command name (e.g., "start", "set_fan_speed").
	Command string `json:"command"`

	// Parameters contains command-specific values.
	// Example: {"fan_speed": "Turbo"} for set_fan_speed.
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated.
	// Values: "api", "automation", "voice", "scene"
	Source string `json:"source"`

	// UserID is the user who triggered the command (if applicable).
	UserID string `json:"user_id,omitempty"`
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command was received and the device accepted it.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"
)

// AckMessage is sent from the bridge to the core to acknowledge a command.
// Topic: {prefix}/ack/vacuum/{device_id}
type AckMessage struct {
	// CommandID is the ID from the original command.
	CommandID string `json:"command_id"`

	// Timestamp is when the acknowledgment was sent (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the platform identity of the vacuum.
	DeviceID string `json:"device_id"`

	// Status indicates the acknowledgment status.
	Status AckStatus `json:"status"`

	// Protocol is the protocol identifier ("vacuum").
	Protocol string `json:"protocol"`

	// Error contains details if status is "failed".
	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	// Code is the error code (e.g., "DEVICE_UNREACHABLE", "INVALID_COMMAND").
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeNotConfigured     = "NOT_CONFIGURED"
	ErrCodeBridgeBusy        = "BRIDGE_BUSY"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// StateMessage is sent from the bridge to the core after each successful poll
// and after each accepted command.
// Topic: {prefix}/state/vacuum/{device_id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	// DeviceID is the platform identity of the vacuum.
	DeviceID string `json:"device_id"`

	// Timestamp is when the state was observed (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// State contains the current vacuum state:
	//   {"state": "cleaning", "battery": 87, "fan_speed": "Turbo",
	//    "fan_speed_list": [...], "attributes": {...}}
	State map[string]any `json:"state"`

	// Protocol is the protocol identifier ("vacuum").
	Protocol string `json:"protocol"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the bridge is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the bridge is operating with issues.
	HealthDegraded HealthStatus = "degraded"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is sent from the bridge to the core to report operational status.
// Topic: {prefix}/health/{bridge_id}
// QoS: 1, Retained: Yes
type HealthMessage struct {
	// Bridge is the bridge identifier (e.g., "dreame-bridge-01").
	Bridge string `json:"bridge"`

	// Timestamp is when the health status was generated (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Status indicates the current operational status.
	Status HealthStatus `json:"status"`

	// Version is the bridge software version.
	Version string `json:"version"`

	// UptimeSeconds is how long the bridge has been running.
	UptimeSeconds int64 `json:"uptime_seconds"`

	// Statistics contains operational metrics.
	Statistics *BridgeStatistics `json:"statistics,omitempty"`

	// DevicesManaged is the number of configured vacuums.
	DevicesManaged int `json:"devices_managed"`

	// Reason explains the status (especially for degraded).
	Reason string `json:"reason,omitempty"`
}

// BridgeStatistics contains operational metrics.
type BridgeStatistics struct {
	// CommandsReceived is the total number of commands received over MQTT.
	CommandsReceived uint64 `json:"commands_received"`

	// CommandsFailed is the total number of commands that could not be executed.
	CommandsFailed uint64 `json:"commands_failed"`

	// PollsFailed is the total number of status polls that returned an error.
	PollsFailed uint64 `json:"polls_failed"`

	// StatesPublished is the total number of state messages published.
	StatesPublished uint64 `json:"states_published"`
}

// JSON marshalling helpers

// MarshalJSON marshals a CommandMessage to JSON with second-precision timestamps.
func (m *CommandMessage) MarshalJSON() ([]byte, error) {
	type Alias CommandMessage
	return json.Marshal(&struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias:     (*Alias)(m),
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
	})
}

// UnmarshalJSON unmarshals a CommandMessage from JSON.
func (m *CommandMessage) UnmarshalJSON(data []byte) error {
	type Alias CommandMessage
	aux := &struct {
		*Alias
		Timestamp string `json:"timestamp"`
	}{
		Alias: (*Alias)(m),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return fmt.Errorf("unmarshal command message: %w", err)
	}
	if aux.Timestamp != "" {
		t, err := time.Parse(time.RFC3339, aux.Timestamp)
		if err != nil {
			return fmt.Errorf("parse timestamp: %w", err)
		}
		m.Timestamp = t
	}
	return nil
}

// NewAckMessage creates an acknowledgment message for a command.
func NewAckMessage(cmd CommandMessage, status AckStatus) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Status:    status,
		Protocol:  "vacuum",
	}
}

// NewAckError creates an acknowledgment with error details.
func NewAckError(cmd CommandMessage, code, message string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		DeviceID:  cmd.DeviceID,
		Status:    AckFailed,
		Protocol:  "vacuum",
		Error: &AckError{
			Code:    code,
			Message: message,
		},
	}
}

// NewStateMessage creates a state message for a vacuum.
func NewStateMessage(deviceID string, state map[string]any) StateMessage {
	return StateMessage{
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		State:     state,
		Protocol:  "vacuum",
	}
}

// NewHealthMessage creates a health status message.
func NewHealthMessage(bridgeID, version string, status HealthStatus, stats BridgeStatistics, deviceCount int, startTime time.Time) HealthMessage {
	return HealthMessage{
		Bridge:         bridgeID,
		Timestamp:      time.Now().UTC(),
		Status:         status,
		Version:        version,
		UptimeSeconds:  int64(time.Since(startTime).Seconds()),
		Statistics:     &stats,
		DevicesManaged: deviceCount,
	}
}
