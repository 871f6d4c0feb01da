// Package transport defines the boundary between the probe protocol stack
// and the radio that carries it.
//
// The codec packages never touch a radio. They consume and produce byte
// buffers; a transport moves those buffers to and from named endpoints on a
// probe and reports broadcast advertisements seen while scanning.
//
// # Endpoints
//
// A probe exposes three endpoints:
//   - ProbeStatus: notifications carrying the session status payload
//   - UARTRx: requests are written here
//   - UARTTx: responses arrive here as notifications
//
// # Implementations
//
// The ble package provides the Bluetooth Low Energy implementation. Tests use
// in-memory fakes that satisfy the same interfaces.
package transport
