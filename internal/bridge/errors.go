package bridge

import "errors"

// Bridge errors.
var (
	// ErrMQTTClientRequired is returned when no MQTT client is provided.
	ErrMQTTClientRequired = errors.New("MQTT client is required")

	// ErrRegistryRequired is returned when no entity registry is provided.
	ErrRegistryRequired = errors.New("entity registry is required")

	// ErrInvalidTopic is returned when a command arrives on a malformed topic.
	ErrInvalidTopic = errors.New("invalid command topic")
)
