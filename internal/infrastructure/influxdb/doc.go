// Package influxdb provides time-series telemetry storage for the bridge.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, vacuum-specific write helpers, and health monitoring.
//
// # Purpose
//
// This package handles time-series data storage for:
//   - Vacuum status history (state, battery, fan speed)
//   - Consumable wear tracking (brushes, filter)
//   - Cleaning cycle counters
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via a
// callback. Connection and health check errors are returned directly.
// Telemetry is best-effort: the bridge keeps operating if InfluxDB is
// unavailable or disabled.
package influxdb
