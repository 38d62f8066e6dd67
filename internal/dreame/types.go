package dreame

import (
	"encoding/json"
	"strconv"
)

// Status is a snapshot of the vacuum's reported state, read in one
// batched property fetch. Fields the device did not answer are left at
// their zero value; Status is only produced on a fully successful fetch,
// so callers never see a partially transported snapshot.
type Status struct {
	// StatusCode is the vendor status code (siid 3, piid 2).
	// Known values: 1 Sweeping, 2 Idle, 3 Paused, 4 Error,
	// 5 Go Charging, 6 Charging.
	StatusCode int `json:"status"`

	// ErrorCode is the device fault code (siid 3, piid 1). 0 means no fault.
	ErrorCode int `json:"error"`

	// Battery is the battery level percentage 0-100 (siid 2, piid 1).
	Battery int `json:"battery"`

	// FanSpeed is the suction level code 0-3 (siid 18, piid 6).
	FanSpeed int `json:"fan_speed"`

	// OperatingMode is the raw work mode (siid 18, piid 1).
	OperatingMode int `json:"operating_mode"`

	// TotalCleanCount is the cumulative cleaning cycle counter (siid 18, piid 14).
	TotalCleanCount int `json:"total_clean_count"`

	// Main brush wear (siid 26).
	BrushLeftTime  int `json:"brush_left_time"`
	BrushLifeLevel int `json:"brush_life_level"`

	// Filter wear (siid 27).
	FilterLifeLevel int `json:"filter_life_level"`
	FilterLeftTime  int `json:"filter_left_time"`

	// Side brush wear (siid 28).
	BrushLeftTime2  int `json:"brush_left_time2"`
	BrushLifeLevel2 int `json:"brush_life_level2"`
}

// statusFromValues builds a Status from raw property values keyed by
// property name, as returned by getProperties.
func statusFromValues(values map[string]json.RawMessage) Status {
	return Status{
		StatusCode:      intValue(values, "status"),
		ErrorCode:       intValue(values, "error"),
		Battery:         intValue(values, "battery"),
		FanSpeed:        intValue(values, "fan_speed"),
		OperatingMode:   intValue(values, "operating_mode"),
		TotalCleanCount: intValue(values, "total_clean_count"),
		BrushLeftTime:   intValue(values, "brush_left_time"),
		BrushLifeLevel:  intValue(values, "brush_life_level"),
		FilterLifeLevel: intValue(values, "filter_life_level"),
		FilterLeftTime:  intValue(values, "filter_left_time"),
		BrushLeftTime2:  intValue(values, "brush_left_time2"),
		BrushLifeLevel2: intValue(values, "brush_life_level2"),
	}
}

// intValue decodes a raw property value as an integer. The mc1808
// reports numbers as JSON numbers, but some firmware builds quote them,
// so both forms are accepted. Missing or undecodable values yield 0.
func intValue(values map[string]json.RawMessage, name string) int {
	raw, ok := values[name]
	if !ok {
		return 0
	}

	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}

	return 0
}
