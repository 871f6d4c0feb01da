package protocol

import "fmt"

// MessageType identifies a UART request or response.
type MessageType uint8

// Request types. Each response type is the request type | ResponseFlag.
const (
	MessageTypeSetProbeID          MessageType = 0x01
	MessageTypeSetProbeColor       MessageType = 0x02
	MessageTypeReadSessionInfo     MessageType = 0x03
	MessageTypeReadLogs            MessageType = 0x04
	MessageTypeSetPrediction       MessageType = 0x05
	MessageTypeReadOverTemperature MessageType = 0x06
	MessageTypeConfigureFoodSafe   MessageType = 0x07
	MessageTypeResetFoodSafe       MessageType = 0x08
	MessageTypeSetPowerMode        MessageType = 0x09
	MessageTypeResetThermometer    MessageType = 0x0A
	MessageTypeSetHighLowAlarms    MessageType = 0x0B
	MessageTypeSilenceAlarms       MessageType = 0x0C

	// MessageTypeUnknown marks a code this package does not recognise.
	MessageTypeUnknown MessageType = 0xFF
)

// ResponseFlag is set on every response type.
const ResponseFlag = 0x80

var messageTypeNames = map[MessageType]string{
	MessageTypeSetProbeID:          "SetProbeID",
	MessageTypeSetProbeColor:       "SetProbeColor",
	MessageTypeReadSessionInfo:     "ReadSessionInfo",
	MessageTypeReadLogs:            "ReadLogs",
	MessageTypeSetPrediction:       "SetPrediction",
	MessageTypeReadOverTemperature: "ReadOverTemperature",
	MessageTypeConfigureFoodSafe:   "ConfigureFoodSafe",
	MessageTypeResetFoodSafe:       "ResetFoodSafe",
	MessageTypeSetPowerMode:        "SetPowerMode",
	MessageTypeResetThermometer:    "ResetThermometer",
	MessageTypeSetHighLowAlarms:    "SetHighLowAlarms",
	MessageTypeSilenceAlarms:       "SilenceAlarms",
}

// ParseMessageType resolves a wire byte. It never fails: unrecognised codes
// return MessageTypeUnknown.
func ParseMessageType(b byte) MessageType {
	t := MessageType(b)
	if _, ok := messageTypeNames[t.Request()]; ok {
		return t
	}
	return MessageTypeUnknown
}

// Known reports whether t is a recognised request or response type.
func (t MessageType) Known() bool {
	_, ok := messageTypeNames[t.Request()]
	return ok
}

// IsResponse reports whether the response flag is set.
func (t MessageType) IsResponse() bool {
	return t != MessageTypeUnknown && t&ResponseFlag != 0
}

// Response returns the response type paired with request t.
func (t MessageType) Response() MessageType {
	return t | ResponseFlag
}

// Request returns the request type paired with response t.
func (t MessageType) Request() MessageType {
	return t &^ ResponseFlag
}

// String returns a human-readable name for the message type
func (t MessageType) String() string {
	if t == MessageTypeUnknown {
		return "Unknown"
	}
	name, ok := messageTypeNames[t.Request()]
	if !ok {
		return fmt.Sprintf("Unknown(0x%02X)", uint8(t))
	}
	if t.IsResponse() {
		return name + "Response"
	}
	return name
}
