package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteVacuumStatus writes a vacuum status measurement to InfluxDB.
//
// This is the primary method for recording poll results. The write is
// non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Unique identifier for the vacuum (e.g., "vacuum-hallway")
//   - state: Mapped platform state (e.g., "cleaning", "docked")
//   - battery: Battery level percentage (0-100)
//   - fanSpeed: Vendor fan speed code
func (c *Client) WriteVacuumStatus(deviceID string, state string, battery int, fanSpeed int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"vacuum_status",
		map[string]string{
			"device_id": deviceID,
			"state":     state,
		},
		map[string]interface{}{
			"battery":   battery,
			"fan_speed": fanSpeed,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteConsumableLife writes a consumable wear measurement.
//
// Used for tracking brush and filter degradation so replacements can be
// scheduled before performance drops.
//
// Parameters:
//   - deviceID: Vacuum identifier
//   - consumable: Which part ("main_brush", "side_brush", "filter")
//   - lifePercent: Remaining life percentage (0-100)
//   - leftHours: Remaining life in operating hours
func (c *Client) WriteConsumableLife(deviceID string, consumable string, lifePercent int, leftHours int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"consumable_life",
		map[string]string{
			"device_id":  deviceID,
			"consumable": consumable,
		},
		map[string]interface{}{
			"life_percent": lifePercent,
			"left_hours":   leftHours,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteCleanCount writes the cumulative cleaning cycle counter.
//
// Parameters:
//   - deviceID: Vacuum identifier
//   - count: Total number of completed cleaning cycles
func (c *Client) WriteCleanCount(deviceID string, count int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"clean_count",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"total": count,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
