package probedata

import (
	"fmt"

	"github.com/muurk/probekit/internal/bitpack"
)

const (
	// SensorCount is the number of physical thermistors on a probe.
	SensorCount = 8
	// PackedSensorsSize is the wire size of a packed SensorArray.
	PackedSensorsSize = 13
	// readingBits is the width of one packed reading.
	readingBits = 13
)

// RawReading is one 13-bit thermistor sample.
type RawReading uint16

// InvalidReading is the sentinel for a sensor without a valid sample.
const InvalidReading RawReading = 0x1FFF

// ReadingFromCelsius encodes a temperature, rounding to the nearest 0.05 °C
// and clamping to the representable range. The result is never the sentinel.
func ReadingFromCelsius(c float64) RawReading {
	return RawReading(bitpack.RawTemperature.Encode(c))
}

// Valid reports whether r holds a real sample.
func (r RawReading) Valid() bool {
	return r&InvalidReading != InvalidReading
}

// Celsius returns the temperature, or false for the invalid sentinel.
func (r RawReading) Celsius() (float64, bool) {
	if !r.Valid() {
		return 0, false
	}
	return bitpack.RawTemperature.Decode(uint32(r & InvalidReading)), true
}

// String returns the temperature with one decimal, or "--" when invalid.
func (r RawReading) String() string {
	c, ok := r.Celsius()
	if !ok {
		return "--"
	}
	return fmt.Sprintf("%.1f°C", c)
}

// SensorArray holds T1 (tip) through T8 (handle).
type SensorArray [SensorCount]RawReading

// InvalidSensors returns an array with every reading set to the sentinel.
func InvalidSensors() SensorArray {
	var s SensorArray
	for i := range s {
		s[i] = InvalidReading
	}
	return s
}

// UnpackSensors decodes eight LSB-first 13-bit readings.
func UnpackSensors(b [PackedSensorsSize]byte) SensorArray {
	var s SensorArray
	c := bitpack.NewCursor(b[:])
	for i := range s {
		s[i] = RawReading(c.Read(readingBits))
	}
	return s
}

// Pack encodes the readings into their 13-byte wire form.
func (s SensorArray) Pack() [PackedSensorsSize]byte {
	var b [PackedSensorsSize]byte
	c := bitpack.NewCursor(b[:])
	for _, r := range s {
		c.Write(readingBits, uint32(r))
	}
	return b
}

// Celsius returns the temperature of sensor i (0-based), or false when the
// index is out of range or the reading is invalid.
func (s SensorArray) Celsius(i int) (float64, bool) {
	if i < 0 || i >= SensorCount {
		return 0, false
	}
	return s[i].Celsius()
}

// Temperatures converts the array to optional Celsius values, nil where a
// sensor has no valid reading.
func (s SensorArray) Temperatures() [SensorCount]*float64 {
	var out [SensorCount]*float64
	for i := range s {
		if c, ok := s[i].Celsius(); ok {
			v := c
			out[i] = &v
		}
	}
	return out
}

// CelsiusToFahrenheit converts a Celsius temperature.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// FahrenheitToCelsius converts a Fahrenheit temperature.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}
