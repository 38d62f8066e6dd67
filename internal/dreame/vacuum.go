package dreame

import (
	"context"
)

// MIoT action identifiers for dreame.vacuum.mc1808.
const (
	// siid 2 (Battery), aiid 1: Start Charge.
	returnHomeSIID = 2
	returnHomeAIID = 1

	// siid 17 (Identify), aiid 1: play the locate sound.
	findSIID = 17
	findAIID = 1

	// siid 18 (clean), aiid 1: start cleaning, aiid 2: stop cleaning.
	cleanSIID  = 18
	startAIID  = 1
	stopAIID   = 2
	modePIID   = 1
	sweepValue = 2

	// siid 26/27/28, aiid 1: reset consumable life counters.
	mainBrushSIID = 26
	filterSIID    = 27
	sideBrushSIID = 28
	resetLifeAIID = 1
)

// Vacuum is a MIoT client for a single Dreame 1C vacuum.
//
// All methods issue exactly one device round trip (Status issues one per
// property batch) and wrap any failure in ErrDevice, so callers can
// guard every device interaction uniformly.
type Vacuum struct {
	transport Transport
}

// NewVacuum creates a client using the given transport.
func NewVacuum(transport Transport) *Vacuum {
	return &Vacuum{transport: transport}
}

// Status fetches a full state snapshot from the device.
//
// Properties are read in batches of at most 14, the largest request the
// mc1808 firmware accepts. Any transport failure returns an error and no
// snapshot; callers keep their previous state.
func (v *Vacuum) Status(ctx context.Context) (Status, error) {
	values, err := getProperties(ctx, v.transport, statusProperties)
	if err != nil {
		return Status{}, err
	}
	return statusFromValues(values), nil
}

// Start begins a cleaning run (siid 18, aiid 1 with mode 2, full sweep).
func (v *Vacuum) Start(ctx context.Context) error {
	in := []actionParam{{PIID: modePIID, Value: sweepValue}}
	return callAction(ctx, v.transport, cleanSIID, startAIID, in)
}

// Stop ends the current cleaning run (siid 18, aiid 2).
func (v *Vacuum) Stop(ctx context.Context) error {
	return callAction(ctx, v.transport, cleanSIID, stopAIID, nil)
}

// ReturnHome sends the vacuum back to its charging dock (siid 2, aiid 1).
func (v *Vacuum) ReturnHome(ctx context.Context) error {
	return callAction(ctx, v.transport, returnHomeSIID, returnHomeAIID, nil)
}

// Find makes the vacuum announce its location (siid 17, aiid 1).
func (v *Vacuum) Find(ctx context.Context) error {
	return callAction(ctx, v.transport, findSIID, findAIID, nil)
}

// SetFanSpeed writes the suction level code (siid 18, piid 6).
//
// The code is forwarded as given; the device rejects values it does not
// support with a non-zero result code.
func (v *Vacuum) SetFanSpeed(ctx context.Context, code int) error {
	return setProperty(ctx, v.transport, fanSpeedProperty, code)
}

// ResetMainBrushLife resets the main brush wear counter (siid 26, aiid 1).
func (v *Vacuum) ResetMainBrushLife(ctx context.Context) error {
	return callAction(ctx, v.transport, mainBrushSIID, resetLifeAIID, nil)
}

// ResetFilterLife resets the filter wear counter (siid 27, aiid 1).
func (v *Vacuum) ResetFilterLife(ctx context.Context) error {
	return callAction(ctx, v.transport, filterSIID, resetLifeAIID, nil)
}

// ResetSideBrushLife resets the side brush wear counter (siid 28, aiid 1).
func (v *Vacuum) ResetSideBrushLife(ctx context.Context) error {
	return callAction(ctx, v.transport, sideBrushSIID, resetLifeAIID, nil)
}
