// Package bridge implements the Dreame vacuum protocol bridge.
//
// This package connects Dreame robotic vacuums (miio protocol) to the
// platform core over MQTT. It translates between the core's command and
// state messages and the vacuum entity surface.
//
// # Architecture
//
// The bridge operates as a translator between two transports:
//
//	┌─────────────────┐          ┌─────────────────┐
//	│    Platform     │   MQTT   │  Dreame Bridge  │   miio
//	│      Core       │◄────────►│   (this pkg)    │◄────────► Vacuums
//	└─────────────────┘          └─────────────────┘
//
// # Key Responsibilities
//
//   - Subscribe to command topics and proxy commands to vacuum entities
//   - Poll each vacuum on its configured cadence
//   - Publish retained state messages after every successful poll
//   - Acknowledge every command with an accepted or failed status
//   - Record state history and time-series telemetry
//   - Publish health status and graceful shutdown
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
// Device calls run on a bounded worker pool so a slow vacuum cannot stall
// the MQTT callback goroutine.
package bridge
