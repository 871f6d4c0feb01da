// Package crc implements the CRC-16/CCITT-FALSE checksum that protects
// probe UART messages.
package crc

const (
	initial    = 0xFFFF
	polynomial = 0x1021
)

// Checksum computes CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF, MSB first,
// no final XOR) over data.
func Checksum(data []byte) uint16 {
	crc := uint16(initial)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ polynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// Append returns data followed by its checksum in little-endian order.
func Append(data []byte) []byte {
	sum := Checksum(data)
	out := make([]byte, len(data), len(data)+2)
	copy(out, data)
	return append(out, byte(sum), byte(sum>>8))
}

// Verify reports whether the last two bytes of data are the little-endian
// checksum of the bytes before them. Inputs shorter than three bytes fail.
func Verify(data []byte) bool {
	if len(data) < 3 {
		return false
	}
	n := len(data) - 2
	want := uint16(data[n]) | uint16(data[n+1])<<8
	return Checksum(data[:n]) == want
}
