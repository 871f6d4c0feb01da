package probedata

import (
	"fmt"
	"math/bits"
	"strings"
)

// ProductType identifies the kind of device sending an advertisement.
type ProductType uint8

const (
	ProductUnknown ProductType = iota
	ProductPredictiveProbe
	ProductMeatNetRepeater
	ProductGiantGrillGauge
	ProductDisplay
	ProductBooster
)

// ProductTypeFromByte maps unrecognised values to ProductUnknown.
func ProductTypeFromByte(b byte) ProductType {
	if ProductType(b) > ProductBooster {
		return ProductUnknown
	}
	return ProductType(b)
}

func (p ProductType) String() string {
	switch p {
	case ProductPredictiveProbe:
		return "Predictive Probe"
	case ProductMeatNetRepeater:
		return "MeatNet Repeater"
	case ProductGiantGrillGauge:
		return "Giant Grill Gauge"
	case ProductDisplay:
		return "Display"
	case ProductBooster:
		return "Booster"
	default:
		return "Unknown"
	}
}

// ProbeMode is the probe's reporting mode.
type ProbeMode uint8

const (
	ModeNormal ProbeMode = iota
	ModeInstantRead
	ModeReserved
	ModeError
)

func (m ProbeMode) String() string {
	switch m {
	case ModeNormal:
		return "Normal"
	case ModeInstantRead:
		return "Instant Read"
	case ModeReserved:
		return "Reserved"
	case ModeError:
		return "Error"
	default:
		return fmt.Sprintf("ProbeMode(%d)", uint8(m))
	}
}

// ProbeColor is the silicone ring colour set on the probe.
type ProbeColor uint8

const (
	ColorYellow ProbeColor = iota
	ColorGrey
	ColorRed
	ColorOrange
	ColorBlue
	ColorGreen
	ColorPurple
	ColorPink
)

var colorNames = [...]string{"Yellow", "Grey", "Red", "Orange", "Blue", "Green", "Purple", "Pink"}

func (c ProbeColor) String() string {
	if int(c) < len(colorNames) {
		return colorNames[c]
	}
	return fmt.Sprintf("ProbeColor(%d)", uint8(c))
}

// ParseProbeColor resolves a colour name, ignoring case.
func ParseProbeColor(s string) (ProbeColor, error) {
	for i, name := range colorNames {
		if strings.EqualFold(s, name) {
			return ProbeColor(i), nil
		}
	}
	return 0, fmt.Errorf("unknown probe color %q", s)
}

// ProbeID is the user-assigned probe number, 1 through 8.
type ProbeID uint8

const (
	MinProbeID ProbeID = 1
	MaxProbeID ProbeID = 8
)

// ProbeIDFromRaw converts the 3-bit wire value (0-7) to an ID (1-8).
func ProbeIDFromRaw(raw uint8) ProbeID {
	return ProbeID(raw&0x07) + 1
}

// Raw returns the 3-bit wire value.
func (id ProbeID) Raw() uint8 {
	return uint8(id-1) & 0x07
}

// Valid reports whether id is within 1..8.
func (id ProbeID) Valid() bool {
	return id >= MinProbeID && id <= MaxProbeID
}

// ModeColorID is the packed mode/colour/id byte shared by advertising and
// status payloads: mode in bits 0-1, colour in bits 2-4, id in bits 5-7.
type ModeColorID struct {
	Mode  ProbeMode
	Color ProbeColor
	ID    ProbeID
}

// ModeColorIDFromByte unpacks the byte.
func ModeColorIDFromByte(b byte) ModeColorID {
	return ModeColorID{
		Mode:  ProbeMode(b & 0x03),
		Color: ProbeColor((b >> 2) & 0x07),
		ID:    ProbeIDFromRaw(b >> 5),
	}
}

// Byte packs the fields.
func (m ModeColorID) Byte() byte {
	return byte(m.Mode)&0x03 | (byte(m.Color)&0x07)<<2 | m.ID.Raw()<<5
}

// BatteryStatus is the probe's battery flag.
type BatteryStatus uint8

const (
	BatteryOK BatteryStatus = iota
	BatteryLow
)

func (b BatteryStatus) String() string {
	if b == BatteryLow {
		return "Low"
	}
	return "OK"
}

// BatteryVirtualFromByte unpacks the battery flag (bit 0) and virtual sensor
// selection (bits 1-7).
func BatteryVirtualFromByte(b byte) (BatteryStatus, VirtualSelection) {
	return BatteryStatus(b & 0x01), VirtualSelectionFromRaw(b >> 1)
}

// BatteryVirtualByte packs the battery flag and virtual sensor selection.
func BatteryVirtualByte(battery BatteryStatus, sel VirtualSelection) byte {
	return byte(battery)&0x01 | sel.Raw()<<1
}

// Overheat is a bitmask of sensors that have exceeded their rated
// temperature; bit 0 is T1.
type Overheat uint8

// Any reports whether any sensor is overheating.
func (o Overheat) Any() bool {
	return o != 0
}

// Sensor reports whether sensor i (0-based) is overheating.
func (o Overheat) Sensor(i int) bool {
	if i < 0 || i >= SensorCount {
		return false
	}
	return o&(1<<i) != 0
}

// Sensors returns the 0-based indices of overheating sensors.
func (o Overheat) Sensors() []int {
	out := make([]int, 0, bits.OnesCount8(uint8(o)))
	for i := 0; i < SensorCount; i++ {
		if o.Sensor(i) {
			out = append(out, i)
		}
	}
	return out
}
