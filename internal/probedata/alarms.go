package probedata

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/muurk/probekit/internal/bitpack"
)

const (
	// AlarmThresholdSize is the wire size of one alarm threshold.
	AlarmThresholdSize = 2
	// AlarmCount is the number of alarms in each of the high and low banks.
	AlarmCount = 11
	// AlarmTableSize is the wire size of the full alarm table.
	AlarmTableSize = 2 * AlarmCount * AlarmThresholdSize
)

// AlarmSensor indexes the alarm banks: T1..T8, then the virtual channels.
type AlarmSensor int

const (
	AlarmT1 AlarmSensor = iota
	AlarmT2
	AlarmT3
	AlarmT4
	AlarmT5
	AlarmT6
	AlarmT7
	AlarmT8
	AlarmCore
	AlarmSurface
	AlarmAmbient
)

func (s AlarmSensor) String() string {
	switch {
	case s >= AlarmT1 && s <= AlarmT8:
		return fmt.Sprintf("T%d", int(s)+1)
	case s == AlarmCore:
		return "Core"
	case s == AlarmSurface:
		return "Surface"
	case s == AlarmAmbient:
		return "Ambient"
	default:
		return fmt.Sprintf("AlarmSensor(%d)", int(s))
	}
}

// Valid reports whether s indexes a real alarm slot.
func (s AlarmSensor) Valid() bool {
	return s >= AlarmT1 && s <= AlarmAmbient
}

// ParseAlarmSensor accepts "T1".."T8", "core", "surface" or "ambient".
func ParseAlarmSensor(name string) (AlarmSensor, error) {
	for s := AlarmT1; s <= AlarmAmbient; s++ {
		if strings.EqualFold(s.String(), name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown alarm sensor %q", name)
}

// AlarmThreshold is one high or low alarm. Temperature is in °C with 0.1 °C
// resolution from -20 °C.
type AlarmThreshold struct {
	Set         bool    `json:"set"`
	Tripped     bool    `json:"tripped"`
	Alarming    bool    `json:"alarming"`
	Temperature float64 `json:"temperature"`
}

// AlarmThresholdFromBytes decodes a little-endian 16-bit threshold:
// set (bit 0), tripped (bit 1), alarming (bit 2), temperature (bits 3-15).
func AlarmThresholdFromBytes(b [AlarmThresholdSize]byte) AlarmThreshold {
	c := bitpack.NewCursor(b[:])
	return AlarmThreshold{
		Set:         c.Read(1) == 1,
		Tripped:     c.Read(1) == 1,
		Alarming:    c.Read(1) == 1,
		Temperature: bitpack.AlarmTemperature.Decode(c.Read(13)),
	}
}

// Bytes encodes the threshold. Temperatures outside the 13-bit range clamp.
func (a AlarmThreshold) Bytes() [AlarmThresholdSize]byte {
	var b [AlarmThresholdSize]byte
	c := bitpack.NewCursor(b[:])
	c.Write(1, boolBit(a.Set))
	c.Write(1, boolBit(a.Tripped))
	c.Write(1, boolBit(a.Alarming))
	c.Write(13, bitpack.AlarmTemperature.Encode(a.Temperature))
	return b
}

// Word returns the threshold as its 16-bit wire value.
func (a AlarmThreshold) Word() uint16 {
	b := a.Bytes()
	return binary.LittleEndian.Uint16(b[:])
}

func boolBit(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}

// AlarmTable holds the high and low banks for every sensor.
type AlarmTable struct {
	High [AlarmCount]AlarmThreshold `json:"high"`
	Low  [AlarmCount]AlarmThreshold `json:"low"`
}

// AlarmTableFromBytes decodes 11 high thresholds followed by 11 low ones.
func AlarmTableFromBytes(b [AlarmTableSize]byte) AlarmTable {
	var t AlarmTable
	for i := 0; i < AlarmCount; i++ {
		t.High[i] = AlarmThresholdFromBytes([AlarmThresholdSize]byte(b[i*2 : i*2+2]))
		off := AlarmCount*AlarmThresholdSize + i*2
		t.Low[i] = AlarmThresholdFromBytes([AlarmThresholdSize]byte(b[off : off+2]))
	}
	return t
}

// Bytes encodes the table.
func (t AlarmTable) Bytes() [AlarmTableSize]byte {
	var b [AlarmTableSize]byte
	for i := 0; i < AlarmCount; i++ {
		hi := t.High[i].Bytes()
		copy(b[i*2:], hi[:])
		lo := t.Low[i].Bytes()
		copy(b[AlarmCount*AlarmThresholdSize+i*2:], lo[:])
	}
	return b
}

// SetHigh arms the high alarm for s at celsius.
func (t *AlarmTable) SetHigh(s AlarmSensor, celsius float64) error {
	if !s.Valid() {
		return fmt.Errorf("invalid alarm sensor %d", int(s))
	}
	t.High[s] = AlarmThreshold{Set: true, Temperature: celsius}
	return nil
}

// SetLow arms the low alarm for s at celsius.
func (t *AlarmTable) SetLow(s AlarmSensor, celsius float64) error {
	if !s.Valid() {
		return fmt.Errorf("invalid alarm sensor %d", int(s))
	}
	t.Low[s] = AlarmThreshold{Set: true, Temperature: celsius}
	return nil
}

// Clear disarms both alarms for s.
func (t *AlarmTable) Clear(s AlarmSensor) {
	if !s.Valid() {
		return
	}
	t.High[s] = AlarmThreshold{}
	t.Low[s] = AlarmThreshold{}
}

// Tripped reports whether any alarm has tripped.
func (t AlarmTable) Tripped() bool {
	for i := 0; i < AlarmCount; i++ {
		if t.High[i].Tripped || t.Low[i].Tripped {
			return true
		}
	}
	return false
}

// Alarming reports whether any alarm is currently sounding.
func (t AlarmTable) Alarming() bool {
	for i := 0; i < AlarmCount; i++ {
		if t.High[i].Alarming || t.Low[i].Alarming {
			return true
		}
	}
	return false
}

// Silenced returns a copy with every alarming flag cleared.
func (t AlarmTable) Silenced() AlarmTable {
	for i := 0; i < AlarmCount; i++ {
		t.High[i].Alarming = false
		t.Low[i].Alarming = false
	}
	return t
}
