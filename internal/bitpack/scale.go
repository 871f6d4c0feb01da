package bitpack

import "math"

// Scale maps a Width-bit raw field to physical units as raw*Factor + Offset.
// Max, when non-zero, caps the raw value below the field's full range
// (used where the top code is reserved as a sentinel).
type Scale struct {
	Factor float64
	Offset float64
	Width  uint
	Max    uint32
}

// Common fixed-point encodings used across the probe protocol.
var (
	// RawTemperature is the 13-bit sensor reading: 0.05 °C steps from -20 °C.
	// 0x1FFF is reserved as the invalid sentinel.
	RawTemperature = Scale{Factor: 0.05, Offset: -20, Width: 13, Max: 0x1FFE}
	// AlarmTemperature is the 13-bit alarm threshold: 0.1 °C steps from -20 °C.
	AlarmTemperature = Scale{Factor: 0.1, Offset: -20, Width: 13}
	// FoodSafeTemperature covers the food-safe thresholds, z-value and d-value.
	FoodSafeTemperature = Scale{Factor: 0.05, Width: 13}
	// LogReduction is the 8-bit log reduction in 0.1 steps.
	LogReduction = Scale{Factor: 0.1, Width: 8}
	// PredictionTemperature is the 10-bit prediction set point and heat start.
	PredictionTemperature = Scale{Factor: 0.1, Width: 10}
	// EstimatedCore is the 11-bit estimated core temperature.
	EstimatedCore = Scale{Factor: 0.1, Offset: -20, Width: 11}
)

// Limit returns the largest raw value the scale will encode.
func (s Scale) Limit() uint32 {
	limit := uint32(1<<s.Width - 1)
	if s.Max != 0 && s.Max < limit {
		limit = s.Max
	}
	return limit
}

// Decode converts a raw field value to physical units.
func (s Scale) Decode(raw uint32) float64 {
	return float64(raw)*s.Factor + s.Offset
}

// Encode converts a physical value to the nearest raw step, clamped to
// [0, Limit()]. NaN encodes as 0.
func (s Scale) Encode(v float64) uint32 {
	if math.IsNaN(v) {
		return 0
	}
	raw := math.Round((v - s.Offset) / s.Factor)
	if raw <= 0 {
		return 0
	}
	limit := s.Limit()
	if raw >= float64(limit) {
		return limit
	}
	return uint32(raw)
}

// MaxValue is the largest physical value the scale can represent.
func (s Scale) MaxValue() float64 {
	return s.Decode(s.Limit())
}

// MinValue is the smallest physical value the scale can represent.
func (s Scale) MinValue() float64 {
	return s.Offset
}
