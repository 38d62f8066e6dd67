package miio

import "errors"

// Sentinel errors for agent operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAgentUnavailable indicates the agent could not be reached or the
	// connection failed mid-request. The connection is dropped and the next
	// call will redial.
	ErrAgentUnavailable = errors.New("miio: agent unavailable")

	// ErrAgentRequest indicates the agent processed the request but the
	// device call failed (unreachable device, bad token, device error).
	ErrAgentRequest = errors.New("miio: agent request failed")
)
