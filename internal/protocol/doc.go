// Package protocol implements the wire formats of the predictive probe.
//
// This package decodes the BLE advertising payload, the probe status
// notification, and the framed UART messages used to configure a probe over
// its Nordic UART service. It only consumes and produces byte slices; it
// never talks to a transport.
//
// # UART Envelope
//
// Requests sent to the probe have this structure:
//   - Sync: 0xCA 0xFE
//   - CRC: 2 bytes, little-endian CRC-16/CCITT-FALSE
//   - Message type: 1 byte
//   - Payload length: 1 byte
//   - Payload: Variable length
//
// The CRC covers the type, length and payload bytes. Responses carry an
// extra success byte between the type and the length, and the CRC covers it
// too. Every response type is its request type with bit 7 set.
//
// # Advertising Payload
//
// Manufacturer data (company 0x09C7, already stripped by the BLE stack) of at
// least 20 bytes:
//   - Byte 0: Product type
//   - Bytes 1-4: Serial number (little-endian)
//   - Bytes 5-17: Eight packed 13-bit temperatures
//   - Byte 18: Mode (bits 0-1), colour (bits 2-4), id (bits 5-7)
//   - Byte 19: Battery (bit 0), virtual sensor selection (bits 1-7)
//   - Byte 21: Overheat bitmask, when present
//
// # Status Notification
//
// At least 30 bytes: sequence range, temperatures, mode/colour/id,
// battery/virtual, and the 7-byte prediction block. Trailing sections
// (food-safe config and status, overheat, preferences, alarms) are present
// only when the payload is long enough to hold them.
//
// # Usage Example
//
//	frame, err := protocol.SetProbeIDRequest(3)
//	if err != nil {
//	    return err
//	}
//	if err := conn.Write(ctx, transport.UARTRx, frame); err != nil {
//	    return err
//	}
//
//	status, err := protocol.ParseStatus(notification)
//	if err != nil {
//	    logging.Debug("Dropping status", zap.Error(err))
//	    return
//	}
package protocol
