package dreame

import (
	"context"
	"encoding/json"
)

// Transport sends a single miio method call to a device and returns the
// raw JSON result.
//
// Implementations own the wire protocol: UDP discovery, the handshake,
// AES payload encryption with the 32-character device token, and request
// id sequencing. This package only depends on the method/params/result
// shape, so the transport can be swapped for a fake in tests.
type Transport interface {
	Send(ctx context.Context, method string, params any) (json.RawMessage, error)
}
