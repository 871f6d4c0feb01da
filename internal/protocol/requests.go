package protocol

import (
	"encoding/binary"
	"math"

	"github.com/muurk/probekit/internal/bitpack"
	"github.com/muurk/probekit/internal/probedata"
)

// Prediction set point bounds in °C, limited by the 10-bit wire field.
const (
	MinSetPoint = 0.0
	MaxSetPoint = 102.3
)

// SetProbeIDRequest builds a request assigning id (1-8).
func SetProbeIDRequest(id probedata.ProbeID) ([]byte, error) {
	if !id.Valid() {
		return nil, NewError(ErrTypeParameterOutOfRange, "probe id %d not in 1..8", id)
	}
	return BuildFrame(MessageTypeSetProbeID, []byte{id.Raw()})
}

// SetProbeColorRequest builds a request setting the ring colour.
func SetProbeColorRequest(c probedata.ProbeColor) ([]byte, error) {
	if c > probedata.ColorPink {
		return nil, NewError(ErrTypeParameterOutOfRange, "probe color %d not in 0..7", c)
	}
	return BuildFrame(MessageTypeSetProbeColor, []byte{byte(c) & 0x07})
}

// ReadSessionInfoRequest builds a session info query.
func ReadSessionInfoRequest() ([]byte, error) {
	return BuildFrame(MessageTypeReadSessionInfo, nil)
}

// ReadLogsRequest asks for logged records with sequence numbers in
// [minSeq, maxSeq].
func ReadLogsRequest(minSeq, maxSeq uint32) ([]byte, error) {
	if maxSeq < minSeq {
		return nil, NewError(ErrTypeParameterOutOfRange, "log range %d..%d is empty", minSeq, maxSeq)
	}
	payload := make([]byte, 8)
	binary.LittleEndian.PutUint32(payload[0:4], minSeq)
	binary.LittleEndian.PutUint32(payload[4:8], maxSeq)
	return BuildFrame(MessageTypeReadLogs, payload)
}

// SetPredictionRequest starts a prediction toward setPoint °C. The payload
// is a little-endian u16: set point in 0.1 °C (bits 0-9), mode (bits 10-11).
func SetPredictionRequest(mode probedata.PredictionMode, setPoint float64) ([]byte, error) {
	if math.IsNaN(setPoint) || setPoint < MinSetPoint || setPoint > MaxSetPoint {
		return nil, NewError(ErrTypeParameterOutOfRange, "set point %.1f°C not in %.1f..%.1f", setPoint, MinSetPoint, MaxSetPoint)
	}
	if mode > probedata.PredictionModeRemovalAndResting {
		return nil, NewError(ErrTypeParameterOutOfRange, "prediction mode %d is reserved", mode)
	}
	raw := bitpack.PredictionTemperature.Encode(setPoint)
	word := uint16(raw&0x3FF) | uint16(mode&0x03)<<10
	payload := make([]byte, 2)
	binary.LittleEndian.PutUint16(payload, word)
	return BuildFrame(MessageTypeSetPrediction, payload)
}

// CancelPredictionRequest clears any active prediction.
func CancelPredictionRequest() ([]byte, error) {
	return BuildFrame(MessageTypeSetPrediction, []byte{0x00, 0x00})
}

// ReadOverTemperatureRequest asks which sensors have overheated.
func ReadOverTemperatureRequest() ([]byte, error) {
	return BuildFrame(MessageTypeReadOverTemperature, nil)
}

// ConfigureFoodSafeRequest loads a food-safe program.
func ConfigureFoodSafeRequest(cfg probedata.FoodSafeConfig) ([]byte, error) {
	b := cfg.Bytes()
	return BuildFrame(MessageTypeConfigureFoodSafe, b[:])
}

// ResetFoodSafeRequest clears the food-safe program.
func ResetFoodSafeRequest() ([]byte, error) {
	return BuildFrame(MessageTypeResetFoodSafe, nil)
}

// SetPowerModeRequest sets the power mode.
func SetPowerModeRequest(mode probedata.PowerMode) ([]byte, error) {
	if mode > probedata.PowerAlwaysOn {
		return nil, NewError(ErrTypeParameterOutOfRange, "power mode %d is reserved", mode)
	}
	return BuildFrame(MessageTypeSetPowerMode, []byte{byte(mode) & 0x03})
}

// ResetThermometerRequest restores the probe's factory settings.
func ResetThermometerRequest() ([]byte, error) {
	return BuildFrame(MessageTypeResetThermometer, nil)
}

// SetAlarmsRequest writes the full alarm table.
func SetAlarmsRequest(table probedata.AlarmTable) ([]byte, error) {
	b := table.Bytes()
	return BuildFrame(MessageTypeSetHighLowAlarms, b[:])
}

// SilenceAlarmsRequest silences every sounding alarm.
func SilenceAlarmsRequest() ([]byte, error) {
	return BuildFrame(MessageTypeSilenceAlarms, nil)
}
