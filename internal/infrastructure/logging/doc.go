// Package logging provides structured logging for the Dreame bridge.
//
// It wraps the standard library's log/slog with configuration-driven
// setup (level, format, destination) and default attributes identifying
// the service and build version. Components derive their own loggers
// with With("component", ...) so log lines can be filtered per subsystem.
package logging
