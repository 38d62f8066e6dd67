package vacuum

// State is the platform-level semantic state of a vacuum.
type State string

// Semantic states. StateUnknown covers vendor codes outside the known set.
const (
	StateCleaning  State = "cleaning"
	StateIdle      State = "idle"
	StatePaused    State = "paused"
	StateError     State = "error"
	StateReturning State = "returning"
	StateDocked    State = "docked"
	StateUnknown   State = "unknown"
)

// stateByCode maps the mc1808's vendor status codes to semantic states.
// Vendor values: 1 Sweeping, 2 Idle, 3 Paused, 4 Error, 5 Go Charging,
// 6 Charging.
var stateByCode = map[int]State{
	1: StateCleaning,
	2: StateIdle,
	3: StatePaused,
	4: StateError,
	5: StateReturning,
	6: StateDocked,
}

// StateFromCode maps a vendor status code to its semantic state.
// Unknown codes return (StateUnknown, false); they are reportable,
// never an error.
func StateFromCode(code int) (State, bool) {
	if state, ok := stateByCode[code]; ok {
		return state, true
	}
	return StateUnknown, false
}

// FanSpeedNames is the ordered list of suction levels the device offers.
// The position of each name is its vendor code.
var FanSpeedNames = []string{"Silent", "Standard", "Medium", "Turbo"}

// speedCodeToName and speedNameToCode are a bijection over FanSpeedNames.
var (
	speedCodeToName = map[int]string{
		0: "Silent",
		1: "Standard",
		2: "Medium",
		3: "Turbo",
	}
	speedNameToCode = map[string]int{
		"Silent":   0,
		"Standard": 1,
		"Medium":   2,
		"Turbo":    3,
	}
)

// FanSpeedName maps a vendor speed code to its display name.
func FanSpeedName(code int) (string, bool) {
	name, ok := speedCodeToName[code]
	return name, ok
}

// FanSpeedCode maps a display name back to its vendor code.
func FanSpeedCode(name string) (int, bool) {
	code, ok := speedNameToCode[name]
	return code, ok
}
