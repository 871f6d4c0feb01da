package protocol

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/muurk/probekit/internal/probedata"
)

// SessionInfoSize is the payload size of a ReadSessionInfo response.
const SessionInfoSize = 6

// SessionInfo identifies the probe's current logging session.
type SessionInfo struct {
	SessionID    uint32        `json:"session_id"`
	SamplePeriod time.Duration `json:"sample_period"`
}

// ParseSessionInfo decodes a ReadSessionInfo response payload: session id
// (u32) then sample period in milliseconds (u16).
func ParseSessionInfo(payload []byte) (SessionInfo, error) {
	if len(payload) < SessionInfoSize {
		return SessionInfo{}, lengthError("session info", SessionInfoSize, len(payload))
	}
	return SessionInfo{
		SessionID:    binary.LittleEndian.Uint32(payload[0:4]),
		SamplePeriod: time.Duration(binary.LittleEndian.Uint16(payload[4:6])) * time.Millisecond,
	}, nil
}

// Bytes encodes the session info payload.
func (s SessionInfo) Bytes() []byte {
	b := make([]byte, SessionInfoSize)
	binary.LittleEndian.PutUint32(b[0:4], s.SessionID)
	binary.LittleEndian.PutUint16(b[4:6], uint16(s.SamplePeriod/time.Millisecond))
	return b
}

// Log record sizes.
const (
	logRecordBaseSize = 4 + probedata.PackedSensorsSize
	LogRecordSize     = logRecordBaseSize + probedata.PredictionLogSize
)

// LogRecord is one logged data point returned by ReadLogs.
type LogRecord struct {
	Sequence   uint32                   `json:"sequence"`
	Sensors    probedata.SensorArray    `json:"sensors"`
	Prediction *probedata.PredictionLog `json:"prediction,omitempty"`
}

// ParseLogRecord decodes a ReadLogs response payload: sequence (u32), 13
// bytes of packed temperatures, then an optional 7-byte prediction log.
func ParseLogRecord(payload []byte) (LogRecord, error) {
	if len(payload) < logRecordBaseSize {
		return LogRecord{}, lengthError("log record", logRecordBaseSize, len(payload))
	}
	rec := LogRecord{
		Sequence: binary.LittleEndian.Uint32(payload[0:4]),
		Sensors:  probedata.UnpackSensors([probedata.PackedSensorsSize]byte(payload[4:logRecordBaseSize])),
	}
	if len(payload) >= LogRecordSize {
		pl := probedata.PredictionLogFromBytes([probedata.PredictionLogSize]byte(payload[logRecordBaseSize:LogRecordSize]))
		rec.Prediction = &pl
	}
	return rec, nil
}

// Bytes encodes the record.
func (r LogRecord) Bytes() []byte {
	size := logRecordBaseSize
	if r.Prediction != nil {
		size = LogRecordSize
	}
	b := make([]byte, size)
	binary.LittleEndian.PutUint32(b[0:4], r.Sequence)
	packed := r.Sensors.Pack()
	copy(b[4:], packed[:])
	if r.Prediction != nil {
		pl := r.Prediction.Bytes()
		copy(b[logRecordBaseSize:], pl[:])
	}
	return b
}

// Decode interprets a response payload according to its type. It returns
// SessionInfo, LogRecord, probedata.Overheat, or nil for acknowledgements
// without a payload.
func (r *Response) Decode() (any, error) {
	if !r.Success {
		return nil, NewError(ErrTypeCommandFailed, "%s rejected by probe", r.Type)
	}
	switch r.Type {
	case MessageTypeReadSessionInfo.Response():
		return ParseSessionInfo(r.Payload)
	case MessageTypeReadLogs.Response():
		return ParseLogRecord(r.Payload)
	case MessageTypeReadOverTemperature.Response():
		if len(r.Payload) < 1 {
			return nil, lengthError("over temperature", 1, len(r.Payload))
		}
		return probedata.Overheat(r.Payload[0]), nil
	case MessageTypeUnknown:
		return nil, fmt.Errorf("cannot decode response type 0x%02X", r.RawType)
	default:
		return nil, nil
	}
}
