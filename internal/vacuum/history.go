package vacuum

import (
	"context"
	"time"
)

// State history source values.
const (
	StateHistorySourcePoll    = "poll"
	StateHistorySourceCommand = "command"
)

// StateHistoryEntry represents a single recorded vacuum state snapshot.
//
// Each entry stores the full snapshot at the time it was observed. This
// provides a local audit trail even when the time-series database is
// unavailable.
type StateHistoryEntry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// DeviceID is the unique identifier of the vacuum.
	DeviceID string `json:"device_id"`

	// Snapshot is the recorded state.
	Snapshot Snapshot `json:"snapshot"`

	// Source identifies how the entry was recorded (poll, command).
	Source string `json:"source"`

	// CreatedAt is the timestamp of the record (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// StateHistoryRepository stores and retrieves vacuum state history.
//
// Implementations must be thread-safe and use UTC timestamps.
type StateHistoryRepository interface {
	// RecordSnapshot records a vacuum state snapshot.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - deviceID: Unique vacuum identifier
	//   - snapshot: Snapshot to persist
	//   - source: Origin of the record (poll, command)
	//
	// Returns:
	//   - error: nil on success, otherwise the underlying persistence error
	RecordSnapshot(ctx context.Context, deviceID string, snapshot Snapshot, source string) error

	// GetHistory returns recent history for the vacuum, newest first.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - deviceID: Unique vacuum identifier
	//   - limit: Maximum entries to return (implementation may clamp bounds)
	//
	// Returns:
	//   - []StateHistoryEntry: Ordered newest-first entries (may be empty)
	//   - error: nil on success, otherwise the underlying query error
	GetHistory(ctx context.Context, deviceID string, limit int) ([]StateHistoryEntry, error)
}
