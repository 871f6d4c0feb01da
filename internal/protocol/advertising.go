package protocol

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/muurk/probekit/internal/probedata"
)

// Advertising payload layout.
const (
	// ManufacturerID is the Bluetooth SIG company identifier carried in
	// front of every advertising payload. The BLE stack strips it.
	ManufacturerID = 0x09C7

	AdvertisingMinSize = 20
	advOverheatOffset  = 21
	advSensorsOffset   = 5
)

// Advertising is one decoded broadcast observation.
type Advertising struct {
	ProductType probedata.ProductType     `json:"product_type"`
	Serial      uint32                    `json:"serial"`
	Sensors     probedata.SensorArray     `json:"sensors"`
	Mode        probedata.ProbeMode       `json:"mode"`
	Color       probedata.ProbeColor      `json:"color"`
	ID          probedata.ProbeID         `json:"id"`
	Battery     probedata.BatteryStatus   `json:"battery"`
	Virtual     probedata.VirtualReadings `json:"virtual"`
	Overheat    probedata.Overheat        `json:"overheat"`
}

// ParseAdvertising decodes a manufacturer-data payload with the company
// identifier already removed. Short payloads are the only failure.
func ParseAdvertising(data []byte) (*Advertising, error) {
	if len(data) < AdvertisingMinSize {
		return nil, lengthError("advertising payload", AdvertisingMinSize, len(data))
	}

	sensors := probedata.UnpackSensors([probedata.PackedSensorsSize]byte(data[advSensorsOffset : advSensorsOffset+probedata.PackedSensorsSize]))
	mci := probedata.ModeColorIDFromByte(data[18])
	battery, sel := probedata.BatteryVirtualFromByte(data[19])

	adv := &Advertising{
		ProductType: probedata.ProductTypeFromByte(data[0]),
		Serial:      binary.LittleEndian.Uint32(data[1:5]),
		Sensors:     sensors,
		Mode:        mci.Mode,
		Color:       mci.Color,
		ID:          mci.ID,
		Battery:     battery,
		Virtual:     probedata.ComputeVirtual(sel, sensors),
	}
	if len(data) > advOverheatOffset {
		adv.Overheat = probedata.Overheat(data[advOverheatOffset])
	}
	return adv, nil
}

// IsProbe reports whether the advertisement comes from a predictive probe.
func (a *Advertising) IsProbe() bool {
	return a.ProductType == probedata.ProductPredictiveProbe
}

// SerialString formats the serial the way it is printed on the probe.
func (a *Advertising) SerialString() string {
	return FormatSerial(a.Serial)
}

// Bytes encodes the advertisement in its 22-byte form. Byte 20 is reserved.
func (a *Advertising) Bytes() []byte {
	b := make([]byte, advOverheatOffset+1)
	b[0] = byte(a.ProductType)
	binary.LittleEndian.PutUint32(b[1:5], a.Serial)
	packed := a.Sensors.Pack()
	copy(b[advSensorsOffset:], packed[:])
	b[18] = probedata.ModeColorID{Mode: a.Mode, Color: a.Color, ID: a.ID}.Byte()
	b[19] = probedata.BatteryVirtualByte(a.Battery, a.Virtual.Selection)
	b[advOverheatOffset] = byte(a.Overheat)
	return b
}

func (a *Advertising) String() string {
	return fmt.Sprintf("Advertising{%s serial=%s id=%d color=%s mode=%s}",
		a.ProductType, a.SerialString(), a.ID, a.Color, a.Mode)
}

// FormatSerial renders a probe serial number.
func FormatSerial(serial uint32) string {
	return fmt.Sprintf("%08X", serial)
}

// ParseSerial parses a serial in the form FormatSerial produces. Lowercase
// and a 0x prefix are accepted.
func ParseSerial(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if s == "" {
		return 0, NewError(ErrTypeParameterOutOfRange, "empty serial")
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, NewError(ErrTypeParameterOutOfRange, "invalid serial %q", s)
	}
	return uint32(v), nil
}
