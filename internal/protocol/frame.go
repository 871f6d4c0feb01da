package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/muurk/probekit/internal/crc"
)

// Envelope constants
const (
	SyncByte0 = 0xCA
	SyncByte1 = 0xFE

	// RequestHeaderSize covers sync, CRC, type and length.
	RequestHeaderSize = 6
	// ResponseHeaderSize adds the success byte.
	ResponseHeaderSize = 7
	// MaxPayloadSize is the largest payload a one-byte length can describe.
	MaxPayloadSize = 0xFF
)

// Frame is a decoded request envelope.
type Frame struct {
	Type    MessageType
	RawType byte
	Payload []byte
	CRC     uint16
}

// String returns a human-readable summary of the frame
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{type=%s, len=%d, crc=0x%04X}", f.Type, len(f.Payload), f.CRC)
}

// BuildFrame encodes a request envelope.
func BuildFrame(t MessageType, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, NewError(ErrTypeParameterOutOfRange, "payload of %d bytes exceeds %d", len(payload), MaxPayloadSize)
	}

	out := make([]byte, RequestHeaderSize+len(payload))
	out[0], out[1] = SyncByte0, SyncByte1
	out[4] = byte(t)
	out[5] = byte(len(payload))
	copy(out[RequestHeaderSize:], payload)
	binary.LittleEndian.PutUint16(out[2:4], crc.Checksum(out[4:]))
	return out, nil
}

// ParseFrame decodes a request envelope. Sync bytes are checked before the
// CRC; bytes beyond the declared payload are ignored.
func ParseFrame(data []byte) (*Frame, error) {
	if len(data) < RequestHeaderSize {
		return nil, lengthError("frame", RequestHeaderSize, len(data))
	}
	if err := checkSync(data); err != nil {
		return nil, err
	}

	n := int(data[5])
	end := RequestHeaderSize + n
	if len(data) < end {
		return nil, NewError(ErrTypeLength, "declared payload of %d bytes, only %d available", n, len(data)-RequestHeaderSize)
	}

	if err := checkCRC(data[2:4], data[4:end]); err != nil {
		return nil, err
	}

	return &Frame{
		Type:    ParseMessageType(data[4]),
		RawType: data[4],
		Payload: append([]byte(nil), data[RequestHeaderSize:end]...),
		CRC:     binary.LittleEndian.Uint16(data[2:4]),
	}, nil
}

// Response is a decoded response envelope.
type Response struct {
	Type    MessageType
	RawType byte
	Success bool
	Payload []byte
	CRC     uint16
}

// String returns a human-readable summary of the response
func (r *Response) String() string {
	return fmt.Sprintf("Response{type=%s, success=%t, len=%d}", r.Type, r.Success, len(r.Payload))
}

// BuildResponse encodes a response envelope. It exists mainly for tests and
// simulators; probes produce these.
func BuildResponse(t MessageType, success bool, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, NewError(ErrTypeParameterOutOfRange, "payload of %d bytes exceeds %d", len(payload), MaxPayloadSize)
	}

	out := make([]byte, ResponseHeaderSize+len(payload))
	out[0], out[1] = SyncByte0, SyncByte1
	out[4] = byte(t)
	if success {
		out[5] = 1
	}
	out[6] = byte(len(payload))
	copy(out[ResponseHeaderSize:], payload)
	binary.LittleEndian.PutUint16(out[2:4], crc.Checksum(out[4:]))
	return out, nil
}

// ParseResponse decodes one response envelope from the start of data and
// returns it with the number of bytes consumed.
func ParseResponse(data []byte) (*Response, int, error) {
	if len(data) < ResponseHeaderSize {
		return nil, 0, lengthError("response", ResponseHeaderSize, len(data))
	}
	if err := checkSync(data); err != nil {
		return nil, 0, err
	}

	n := int(data[6])
	end := ResponseHeaderSize + n
	if len(data) < end {
		return nil, 0, NewError(ErrTypeLength, "declared payload of %d bytes, only %d available", n, len(data)-ResponseHeaderSize)
	}

	if err := checkCRC(data[2:4], data[4:end]); err != nil {
		return nil, 0, err
	}

	return &Response{
		Type:    ParseMessageType(data[4]),
		RawType: data[4],
		Success: data[5] != 0,
		Payload: append([]byte(nil), data[ResponseHeaderSize:end]...),
		CRC:     binary.LittleEndian.Uint16(data[2:4]),
	}, end, nil
}

func checkSync(data []byte) error {
	if data[0] != SyncByte0 || data[1] != SyncByte1 {
		return NewError(ErrTypeInvalidFraming, "bad sync bytes 0x%02X 0x%02X", data[0], data[1])
	}
	return nil
}

func checkCRC(field, covered []byte) error {
	actual := binary.LittleEndian.Uint16(field)
	expected := crc.Checksum(covered)
	if actual != expected {
		return &Error{Type: ErrTypeCRCMismatch, Expected: expected, Actual: actual}
	}
	return nil
}
