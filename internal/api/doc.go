// Package api implements the HTTP REST API and WebSocket server for the
// dreame-bridge admin surface.
//
// This package provides:
//   - REST endpoints for vacuum state, commands, and history
//   - WebSocket hub for real-time state change broadcasts
//   - JWT authentication with ticket-based WebSocket auth
//   - Prometheus metrics endpoint
//   - Middleware stack (request ID, logging, recovery, CORS)
//   - TLS support for production deployments
//
// # Architecture
//
// The API server sits beside the MQTT bridge. Commands posted to the API
// are published to the bridge's MQTT command topics, so every command
// takes the same path regardless of origin and every command is
// acknowledged on the ack topic. State changes flow back via MQTT
// subscriptions and are broadcast to WebSocket clients.
//
// # Security
//
// POST /api/v1/auth/token exchanges the configured bootstrap secret for a
// short-lived JWT. WebSocket connections use single-use tickets to avoid
// token leakage in URLs.
package api
