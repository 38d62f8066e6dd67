// Package dreame implements the MIoT property and action layer for
// Dreame 1C vacuums (dreame.vacuum.mc1808).
//
// MIoT exposes device functionality as numbered services (siid) carrying
// properties (piid) and actions (aiid). This package maps those numbers
// to typed Go values: a Status snapshot read via batched get_properties
// calls, and command methods that invoke actions.
//
// The miio wire protocol itself (discovery, handshake, AES encryption)
// is delegated to a Transport implementation; this package only builds
// and parses the JSON method payloads.
package dreame
