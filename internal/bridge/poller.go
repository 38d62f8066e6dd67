package bridge

import (
	"context"
	"time"

	"github.com/mirobo/dreame-bridge/internal/vacuum"
)

// startPollers launches one polling goroutine per registered vacuum.
func (b *Bridge) startPollers(ctx context.Context) {
	for _, entity := range b.registry.List() {
		interval := b.pollIntervals[entity.ID()]
		if interval <= 0 {
			interval = defaultPollInterval
		}

		b.wg.Add(1)
		go b.pollLoop(ctx, entity, interval)
	}
}

// pollLoop polls one vacuum on a fixed cadence until the bridge stops.
// The first poll happens immediately so retained state is available as
// soon as the device answers.
func (b *Bridge) pollLoop(ctx context.Context, entity *vacuum.Entity, interval time.Duration) {
	defer b.wg.Done()

	b.logger.Info("polling started",
		"device_id", entity.ID(),
		"interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	b.pollOnce(entity)

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			b.pollOnce(entity)
		}
	}
}

// pollOnce refreshes one vacuum's snapshot and fans the result out.
// State messages and history entries are only produced when the status
// changed; telemetry is written every poll so the time series stays
// continuous. Poll failures are counted; the entity keeps its last
// known good state.
func (b *Bridge) pollOnce(entity *vacuum.Entity) {
	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	if err := entity.Update(ctx); err != nil {
		b.pollsFailed.Add(1)
		return
	}

	if snap, ok := entity.Snapshot(); ok && b.stateChanged(entity.ID(), snap.Status) {
		b.publishState(entity)
		b.recordHistory(ctx, entity, vacuum.StateHistorySourcePoll)
	}
	b.writeTelemetry(entity)
}
