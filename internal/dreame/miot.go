package dreame

import (
	"context"
	"encoding/json"
	"fmt"
)

// maxPropertiesPerRequest is the largest batch the mc1808 firmware
// accepts in a single get_properties call.
const maxPropertiesPerRequest = 14

// property identifies one MIoT property by service and property id.
type property struct {
	Name string
	SIID int
	PIID int
}

// Status properties for dreame.vacuum.mc1808.
//
// siid 2: Battery, siid 3: Robot Cleaner, siid 18: clean,
// siid 26: Main Cleaning Brush, siid 27: Filter, siid 28: Side Cleaning Brush.
var statusProperties = []property{
	{Name: "battery", SIID: 2, PIID: 1},
	{Name: "status", SIID: 3, PIID: 2},
	{Name: "error", SIID: 3, PIID: 1},
	{Name: "fan_speed", SIID: 18, PIID: 6},
	{Name: "operating_mode", SIID: 18, PIID: 1},
	{Name: "total_clean_count", SIID: 18, PIID: 14},
	{Name: "brush_left_time", SIID: 26, PIID: 1},
	{Name: "brush_life_level", SIID: 26, PIID: 2},
	{Name: "filter_life_level", SIID: 27, PIID: 1},
	{Name: "filter_left_time", SIID: 27, PIID: 2},
	{Name: "brush_left_time2", SIID: 28, PIID: 1},
	{Name: "brush_life_level2", SIID: 28, PIID: 2},
}

// Fan speed property (siid 18, piid 6) used by set_properties.
var fanSpeedProperty = property{Name: "fan_speed", SIID: 18, PIID: 6}

// propertyRequest is one element of a get_properties params array.
type propertyRequest struct {
	DID  string `json:"did"`
	SIID int    `json:"siid"`
	PIID int    `json:"piid"`
}

// propertyValue is one element of a set_properties params array.
type propertyValue struct {
	DID   string `json:"did"`
	SIID  int    `json:"siid"`
	PIID  int    `json:"piid"`
	Value any    `json:"value"`
}

// propertyResult is one element of a get_properties/set_properties response.
type propertyResult struct {
	DID   string          `json:"did"`
	SIID  int             `json:"siid"`
	PIID  int             `json:"piid"`
	Code  int             `json:"code"`
	Value json.RawMessage `json:"value"`
}

// actionParam is one input parameter of an action invocation.
type actionParam struct {
	PIID  int `json:"piid"`
	Value any `json:"value"`
}

// actionPayload is the params object of an action call.
type actionPayload struct {
	DID  string        `json:"did"`
	SIID int           `json:"siid"`
	AIID int           `json:"aiid"`
	In   []actionParam `json:"in"`
}

// actionResult is the response of an action call.
type actionResult struct {
	Code int `json:"code"`
}

// getProperties reads the given properties, batching requests to the
// firmware's per-call limit, and returns results keyed by property name.
//
// Properties the device answers with a non-zero code are omitted from
// the result map rather than failing the whole read: the mc1808 reports
// some properties only in certain modes.
func getProperties(ctx context.Context, t Transport, props []property) (map[string]json.RawMessage, error) {
	values := make(map[string]json.RawMessage, len(props))

	for start := 0; start < len(props); start += maxPropertiesPerRequest {
		end := start + maxPropertiesPerRequest
		if end > len(props) {
			end = len(props)
		}
		batch := props[start:end]

		params := make([]propertyRequest, len(batch))
		byDID := make(map[string]property, len(batch))
		for i, p := range batch {
			params[i] = propertyRequest{DID: p.Name, SIID: p.SIID, PIID: p.PIID}
			byDID[p.Name] = p
		}

		raw, err := t.Send(ctx, "get_properties", params)
		if err != nil {
			return nil, fmt.Errorf("%w: get_properties: %w", ErrDevice, err)
		}

		var results []propertyResult
		if err := json.Unmarshal(raw, &results); err != nil {
			return nil, fmt.Errorf("%w: decoding get_properties response: %w", ErrDevice, err)
		}

		for _, r := range results {
			if r.Code != 0 {
				continue
			}
			if _, known := byDID[r.DID]; known {
				values[r.DID] = r.Value
			}
		}
	}

	return values, nil
}

// setProperty writes a single property value.
func setProperty(ctx context.Context, t Transport, p property, value any) error {
	params := []propertyValue{{DID: p.Name, SIID: p.SIID, PIID: p.PIID, Value: value}}

	raw, err := t.Send(ctx, "set_properties", params)
	if err != nil {
		return fmt.Errorf("%w: set_properties %s: %w", ErrDevice, p.Name, err)
	}

	var results []propertyResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return fmt.Errorf("%w: decoding set_properties response: %w", ErrDevice, err)
	}
	for _, r := range results {
		if r.Code != 0 {
			return fmt.Errorf("%w: %s returned code %d", ErrPropertyFailed, p.Name, r.Code)
		}
	}

	return nil
}

// callAction invokes a MIoT action with optional input parameters.
func callAction(ctx context.Context, t Transport, siid, aiid int, in []actionParam) error {
	if in == nil {
		in = []actionParam{}
	}
	payload := actionPayload{
		DID:  fmt.Sprintf("call-%d-%d", siid, aiid),
		SIID: siid,
		AIID: aiid,
		In:   in,
	}

	raw, err := t.Send(ctx, "action", payload)
	if err != nil {
		return fmt.Errorf("%w: action %d/%d: %w", ErrDevice, siid, aiid, err)
	}

	var result actionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		// Some firmware versions answer actions with ["ok"] instead of
		// an object. Treat any undecodable but delivered response as
		// success; transport errors were already surfaced above.
		return nil
	}
	if result.Code != 0 {
		return fmt.Errorf("%w: action %d/%d returned code %d", ErrActionFailed, siid, aiid, result.Code)
	}

	return nil
}
