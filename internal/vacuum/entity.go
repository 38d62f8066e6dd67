package vacuum

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/mirobo/dreame-bridge/internal/dreame"
	"github.com/mirobo/dreame-bridge/internal/infrastructure/logging"
)

// DeviceClient is the device surface the entity proxies to.
// *dreame.Vacuum satisfies it; tests substitute a fake.
type DeviceClient interface {
	Status(ctx context.Context) (dreame.Status, error)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	ReturnHome(ctx context.Context) error
	Find(ctx context.Context) error
	SetFanSpeed(ctx context.Context, code int) error
	ResetMainBrushLife(ctx context.Context) error
	ResetSideBrushLife(ctx context.Context) error
	ResetFilterLife(ctx context.Context) error
}

// Snapshot is the last successfully polled device state.
type Snapshot struct {
	Status   dreame.Status `json:"status"`
	PolledAt time.Time     `json:"polled_at"`
}

// Attributes are the extended state attributes exposed alongside the
// semantic state. Field names match the platform's attribute keys.
type Attributes struct {
	FanSpeedCode       int `json:"fan_speed"`
	MainBrushTimeLeft  int `json:"main_brush_time_left"`
	MainBrushLifeLevel int `json:"main_brush_life_level"`
	SideBrushTimeLeft  int `json:"side_brush_time_left"`
	SideBrushLifeLevel int `json:"side_brush_life_level"`
	FilterLifeLevel    int `json:"filter_life_level"`
	FilterLeftTime     int `json:"filter_left_time"`
	TotalCleanCount    int `json:"total_cleaning_count"`
}

// Entity adapts one Dreame vacuum to the platform entity surface.
//
// Observable state comes exclusively from the snapshot written by the
// last successful Update; accessors return a second result of false
// before the first successful poll. Commands proxy to the device client
// behind a guard that converts device errors into a logged false return.
//
// Thread Safety:
//   - All methods are safe for concurrent use. The snapshot is guarded
//     by a read/write mutex so pollers, command handlers, and API reads
//     can overlap.
type Entity struct {
	id     string
	name   string
	device DeviceClient
	logger *logging.Logger

	mu       sync.RWMutex
	snapshot *Snapshot
}

// NewEntity creates an entity for one vacuum.
//
// Parameters:
//   - id: Platform identity of the vacuum, unique within the bridge
//   - name: Display name
//   - device: Device client used for polls and commands
//   - logger: Structured logger (a component attribute is added)
func NewEntity(id, name string, device DeviceClient, logger *logging.Logger) *Entity {
	return &Entity{
		id:     id,
		name:   name,
		device: device,
		logger: logger.With("component", "vacuum", "device_id", id),
	}
}

// ID returns the platform identity of the vacuum.
func (e *Entity) ID() string { return e.id }

// Name returns the display name.
func (e *Entity) Name() string { return e.name }

// SupportedFeatures returns the static capability bitmask.
func (e *Entity) SupportedFeatures() Feature { return SupportedFeatures }

// Update polls the device for a fresh status snapshot.
//
// On success the whole snapshot is replaced in one assignment. On
// failure the error is logged and the previous snapshot is left
// untouched: readers keep seeing the last known good state.
//
// Returns:
//   - error: The device error, so callers can track poll health
func (e *Entity) Update(ctx context.Context) error {
	status, err := e.device.Status(ctx)
	if err != nil {
		e.logger.Error("fetching state from device failed", "error", err)
		return err
	}

	if _, known := StateFromCode(status.StatusCode); !known {
		e.logger.Error("unrecognised status code", "code", status.StatusCode)
	}

	e.mu.Lock()
	e.snapshot = &Snapshot{Status: status, PolledAt: time.Now().UTC()}
	e.mu.Unlock()

	return nil
}

// Snapshot returns a copy of the last poll result.
// The second result is false before the first successful poll.
func (e *Entity) Snapshot() (Snapshot, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.snapshot == nil {
		return Snapshot{}, false
	}
	return *e.snapshot, true
}

// State returns the semantic state mapped from the vendor status code.
// Unknown codes surface as StateUnknown rather than an error.
func (e *Entity) State() (State, bool) {
	snap, ok := e.Snapshot()
	if !ok {
		return "", false
	}
	state, _ := StateFromCode(snap.Status.StatusCode)
	return state, true
}

// BatteryLevel returns the battery percentage from the last poll.
func (e *Entity) BatteryLevel() (int, bool) {
	snap, ok := e.Snapshot()
	if !ok {
		return 0, false
	}
	return snap.Status.Battery, true
}

// FanSpeed returns the display name of the current suction level.
// If the device reports a code outside the known set, the raw code is
// surfaced as a string and a diagnostic is logged.
func (e *Entity) FanSpeed() (string, bool) {
	snap, ok := e.Snapshot()
	if !ok {
		return "", false
	}

	if name, known := FanSpeedName(snap.Status.FanSpeed); known {
		return name, true
	}

	e.logger.Debug("no name for fan speed code", "code", snap.Status.FanSpeed)
	return strconv.Itoa(snap.Status.FanSpeed), true
}

// FanSpeedList returns the valid speed names in vendor-code order.
// Empty before the first successful poll.
func (e *Entity) FanSpeedList() []string {
	if _, ok := e.Snapshot(); !ok {
		return nil
	}

	names := make([]string, len(FanSpeedNames))
	copy(names, FanSpeedNames)
	return names
}

// Attributes returns the extended state attributes from the last poll.
func (e *Entity) Attributes() (Attributes, bool) {
	snap, ok := e.Snapshot()
	if !ok {
		return Attributes{}, false
	}

	s := snap.Status
	return Attributes{
		FanSpeedCode:       s.FanSpeed,
		MainBrushTimeLeft:  s.BrushLeftTime,
		MainBrushLifeLevel: s.BrushLifeLevel,
		SideBrushTimeLeft:  s.BrushLeftTime2,
		SideBrushLifeLevel: s.BrushLifeLevel2,
		FilterLifeLevel:    s.FilterLifeLevel,
		FilterLeftTime:     s.FilterLeftTime,
		TotalCleanCount:    s.TotalCleanCount,
	}, true
}

// tryCommand runs one device call, converting any error into a logged
// false return. Commands never raise; a failed call leaves the entity
// in its last known good state.
func (e *Entity) tryCommand(ctx context.Context, msg string, call func(context.Context) error) bool {
	if err := call(ctx); err != nil {
		e.logger.Error(msg, "error", err)
		return false
	}
	return true
}

// Start begins or resumes a cleaning run.
func (e *Entity) Start(ctx context.Context) bool {
	return e.tryCommand(ctx, "unable to start the vacuum", e.device.Start)
}

// Stop ends the current cleaning run.
func (e *Entity) Stop(ctx context.Context) bool {
	return e.tryCommand(ctx, "unable to stop the vacuum", e.device.Stop)
}

// Pause pauses the cleaning run.
//
// The mc1808 integration has always issued the device's stop action
// here, making pause and stop indistinguishable on the wire.
// TODO: verify against mc1808 firmware whether siid 18 exposes a
// distinct pause action before changing this.
func (e *Entity) Pause(ctx context.Context) bool {
	return e.tryCommand(ctx, "unable to pause the vacuum", e.device.Stop)
}

// Locate makes the vacuum announce its position.
func (e *Entity) Locate(ctx context.Context) bool {
	return e.tryCommand(ctx, "unable to locate the vacuum", e.device.Find)
}

// ReturnToDock sends the vacuum back to its charging dock.
func (e *Entity) ReturnToDock(ctx context.Context) bool {
	return e.tryCommand(ctx, "unable to return home", e.device.ReturnHome)
}

// ResetMainBrush resets the main brush wear counter after replacement.
func (e *Entity) ResetMainBrush(ctx context.Context) bool {
	return e.tryCommand(ctx, "unable to reset main brush life", e.device.ResetMainBrushLife)
}

// ResetSideBrush resets the side brush wear counter after replacement.
func (e *Entity) ResetSideBrush(ctx context.Context) bool {
	return e.tryCommand(ctx, "unable to reset side brush life", e.device.ResetSideBrushLife)
}

// ResetFilter resets the filter wear counter after replacement.
func (e *Entity) ResetFilter(ctx context.Context) bool {
	return e.tryCommand(ctx, "unable to reset filter life", e.device.ResetFilterLife)
}

// SetFanSpeed resolves the requested speed and writes it to the device.
//
// Resolution order: a known display name maps to its vendor code; any
// other value is parsed as a raw integer code and forwarded as-is. A
// value that is neither logs an error listing the valid names and makes
// no device call.
func (e *Entity) SetFanSpeed(ctx context.Context, requested string) bool {
	code, ok := FanSpeedCode(requested)
	if !ok {
		parsed, err := strconv.Atoi(requested)
		if err != nil {
			e.logger.Error("fan speed not recognised",
				"requested", requested,
				"valid", FanSpeedNames,
			)
			return false
		}
		code = parsed
	}

	return e.tryCommand(ctx, "unable to set fan speed", func(ctx context.Context) error {
		return e.device.SetFanSpeed(ctx, code)
	})
}
