// Package miio provides the connection to the miio agent daemon.
//
// The agent owns the miio wire protocol (UDP discovery, handshake, AES
// payload encryption with the device token) and exposes a simple
// newline-delimited JSON interface over TCP. This package manages the
// agent as a subprocess of the bridge, providing:
//
//   - Configuration-driven startup (or connection to an external agent)
//   - Automatic restart on failure
//   - Health monitoring
//   - Graceful shutdown coordination
//
// The Client speaks the agent's request/response protocol and exposes a
// dreame.Transport per configured device, so the rest of the bridge only
// sees method calls and JSON results.
//
// Example configuration (in config.yaml):
//
//	agent:
//	  managed: true
//	  binary: "/usr/local/bin/miio-agent"
//	  host: "localhost"
//	  port: 4050
//
// When the bridge starts, it will spawn the agent with the appropriate
// arguments and monitor it throughout the application lifecycle.
package miio
