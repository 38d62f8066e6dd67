package vacuum

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mirobo/dreame-bridge/internal/dreame"
)

func TestMetricsCollector_ExportsPolledEntities(t *testing.T) {
	registry := NewRegistry()

	device := &fakeDevice{status: dreame.Status{
		StatusCode:      1,
		Battery:         87,
		FanSpeed:        3,
		TotalCleanCount: 42,
		BrushLifeLevel:  74,
	}}
	e := newTestEntity(device, &bytes.Buffer{})
	mustUpdate(t, e)
	registry.Register(e)

	// An entity that has never polled exports nothing.
	registry.Register(NewEntity("vacuum-unpolled", "Unpolled", &fakeDevice{}, testLogger(&bytes.Buffer{})))

	collector := NewMetricsCollector(registry)

	expected := `
		# HELP dreame_bridge_battery_percent Battery percentage (0-100)
		# TYPE dreame_bridge_battery_percent gauge
		dreame_bridge_battery_percent{device_id="vacuum-test",device_name="Test Vacuum"} 87
	`
	if err := testutil.CollectAndCompare(collector, strings.NewReader(expected),
		"dreame_bridge_battery_percent"); err != nil {
		t.Errorf("battery metric mismatch: %v", err)
	}

	stateExpected := `
		# HELP dreame_bridge_state Vacuum state (label) mapped from the vendor status code
		# TYPE dreame_bridge_state gauge
		dreame_bridge_state{device_id="vacuum-test",device_name="Test Vacuum",state="cleaning"} 1
	`
	if err := testutil.CollectAndCompare(collector, strings.NewReader(stateExpected),
		"dreame_bridge_state"); err != nil {
		t.Errorf("state metric mismatch: %v", err)
	}

	fanExpected := `
		# HELP dreame_bridge_fan_speed Fan speed (label)
		# TYPE dreame_bridge_fan_speed gauge
		dreame_bridge_fan_speed{device_id="vacuum-test",device_name="Test Vacuum",fan_speed="Turbo"} 1
	`
	if err := testutil.CollectAndCompare(collector, strings.NewReader(fanExpected),
		"dreame_bridge_fan_speed"); err != nil {
		t.Errorf("fan speed metric mismatch: %v", err)
	}
}

func TestMetricsCollector_EmptyRegistry(t *testing.T) {
	collector := NewMetricsCollector(NewRegistry())

	if count := testutil.CollectAndCount(collector); count != 0 {
		t.Errorf("CollectAndCount() = %d series for empty registry, want 0", count)
	}
}

func TestMetricsCollector_ConsumableSeries(t *testing.T) {
	registry := NewRegistry()

	device := &fakeDevice{status: dreame.Status{StatusCode: 2, BrushLifeLevel: 74}}
	e := newTestEntity(device, &bytes.Buffer{})
	if err := e.Update(context.Background()); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	registry.Register(e)

	collector := NewMetricsCollector(registry)

	// Three consumables, each with life and left series.
	count := testutil.CollectAndCount(collector,
		"dreame_bridge_consumable_life_percent",
		"dreame_bridge_consumable_left_hours")
	if count != 6 {
		t.Errorf("consumable series = %d, want 6", count)
	}
}
