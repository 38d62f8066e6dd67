// Package vacuum exposes Dreame vacuums as platform entities.
//
// An Entity wraps a device client with the platform-facing surface:
// mapped semantic state, battery level, named fan speeds, consumable
// attributes, and command actions (start, stop, pause, locate, return
// to dock, set fan speed). Commands never propagate device errors; they
// log and report failure as a boolean so one unreachable vacuum cannot
// take the bridge down.
//
// Entities hold the last successful poll snapshot. A failed poll leaves
// the previous snapshot in place (stale reads beat no reads); before the
// first successful poll all observables report absence.
//
// The package also carries the supporting cast: the entity registry,
// the SQLite state history repository, Prometheus metrics, and the
// bounded worker pool used to keep slow device calls off the MQTT and
// HTTP handler goroutines.
package vacuum
