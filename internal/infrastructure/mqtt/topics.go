package mqtt

import "fmt"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "dreame"

// Protocol is the protocol segment used in all device topics.
// The bridge only speaks to Dreame vacuums, so it is fixed.
const Protocol = "vacuum"

// Topics builds the bridge's MQTT topic names from a configurable prefix.
// Using these helpers ensures consistent topic naming across the codebase.
//
// All device topics use the flat scheme: {prefix}/{category}/vacuum/{device_id}
//
//	topics := mqtt.NewTopics("dreame")
//	stateTopic := topics.State("vacuum-hallway")
//	// Returns: "dreame/state/vacuum/vacuum-hallway"
type Topics struct {
	Prefix string
}

// NewTopics creates a Topics builder, falling back to DefaultTopicPrefix
// if prefix is empty.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: prefix}
}

// State returns the topic for state updates from a vacuum.
//
// Example: dreame/state/vacuum/vacuum-hallway
func (t Topics) State(deviceID string) string {
	return fmt.Sprintf("%s/state/%s/%s", t.Prefix, Protocol, deviceID)
}

// Command returns the topic for commands to a vacuum.
//
// Example: dreame/command/vacuum/vacuum-hallway
func (t Topics) Command(deviceID string) string {
	return fmt.Sprintf("%s/command/%s/%s", t.Prefix, Protocol, deviceID)
}

// Ack returns the topic for command acknowledgements.
//
// Example: dreame/ack/vacuum/vacuum-hallway
func (t Topics) Ack(deviceID string) string {
	return fmt.Sprintf("%s/ack/%s/%s", t.Prefix, Protocol, deviceID)
}

// Health returns the topic for bridge health status.
//
// Example: dreame/health/bridge-01
func (t Topics) Health(bridgeID string) string {
	return fmt.Sprintf("%s/health/%s", t.Prefix, bridgeID)
}

// SystemStatus returns the bridge online/offline status topic.
// This topic carries the Last Will and Testament message.
//
// Example: dreame/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.Prefix)
}

// AllCommands returns a pattern matching commands for every vacuum.
//
// Pattern: dreame/command/vacuum/+
func (t Topics) AllCommands() string {
	return fmt.Sprintf("%s/command/%s/+", t.Prefix, Protocol)
}

// AllStates returns a pattern matching state updates for every vacuum.
//
// Pattern: dreame/state/vacuum/+
func (t Topics) AllStates() string {
	return fmt.Sprintf("%s/state/%s/+", t.Prefix, Protocol)
}
