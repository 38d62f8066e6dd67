package dreame

import "errors"

// Sentinel errors for device operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrDevice indicates a device communication failure. All transport
	// and protocol errors are wrapped in this so callers can treat any
	// device I/O problem uniformly.
	ErrDevice = errors.New("dreame: device communication failed")

	// ErrPropertyFailed indicates the device rejected a property read or
	// write (non-zero MIoT result code).
	ErrPropertyFailed = errors.New("dreame: property request failed")

	// ErrActionFailed indicates the device rejected an action invocation.
	ErrActionFailed = errors.New("dreame: action failed")
)
