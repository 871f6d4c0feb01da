package probedata

import "fmt"

// Virtual sensor index ranges (0-based sensor indices).
const (
	maxCoreIndex   = 5
	surfaceBase    = 3
	ambientBase    = 4
	coreFieldMask  = 0x07
	offsetFieldMsk = 0x03
)

// VirtualSelection records which physical sensors feed the virtual core,
// surface and ambient channels. Fields hold the raw wire values: a 3-bit
// core index and 2-bit surface and ambient offsets.
type VirtualSelection struct {
	Core    uint8
	Surface uint8
	Ambient uint8
}

// VirtualSelectionFromRaw decodes the 7-bit selection field.
func VirtualSelectionFromRaw(raw uint8) VirtualSelection {
	return VirtualSelection{
		Core:    raw & coreFieldMask,
		Surface: (raw >> 3) & offsetFieldMsk,
		Ambient: (raw >> 5) & offsetFieldMsk,
	}
}

// Raw encodes the selection into its 7-bit wire form.
func (v VirtualSelection) Raw() uint8 {
	return v.Core&coreFieldMask | (v.Surface&offsetFieldMsk)<<3 | (v.Ambient&offsetFieldMsk)<<5
}

// CoreIndex returns the 0-based sensor used for the core value. Core may
// only select T1..T6; any other value has no core sensor.
func (v VirtualSelection) CoreIndex() (int, bool) {
	if v.Core > maxCoreIndex {
		return 0, false
	}
	return int(v.Core), true
}

// SurfaceIndex returns the 0-based sensor used for the surface value (T4..T7).
func (v VirtualSelection) SurfaceIndex() (int, bool) {
	return checkedIndex(int(v.Surface&offsetFieldMsk) + surfaceBase)
}

// AmbientIndex returns the 0-based sensor used for the ambient value (T5..T8).
func (v VirtualSelection) AmbientIndex() (int, bool) {
	return checkedIndex(int(v.Ambient&offsetFieldMsk) + ambientBase)
}

func checkedIndex(i int) (int, bool) {
	if i < 0 || i >= SensorCount {
		return 0, false
	}
	return i, true
}

func (v VirtualSelection) String() string {
	name := func(i int, ok bool) string {
		if !ok {
			return "--"
		}
		return fmt.Sprintf("T%d", i+1)
	}
	return fmt.Sprintf("core=%s surface=%s ambient=%s",
		name(v.CoreIndex()), name(v.SurfaceIndex()), name(v.AmbientIndex()))
}

// VirtualReadings are the derived core, surface and ambient temperatures.
// A value is nil when its selected sensor is invalid or out of range.
type VirtualReadings struct {
	Selection VirtualSelection `json:"selection"`
	Core      *float64         `json:"core,omitempty"`
	Surface   *float64         `json:"surface,omitempty"`
	Ambient   *float64         `json:"ambient,omitempty"`
}

// ComputeVirtual resolves the selection against the sensor array.
func ComputeVirtual(sel VirtualSelection, sensors SensorArray) VirtualReadings {
	pick := func(i int, ok bool) *float64 {
		if !ok {
			return nil
		}
		c, valid := sensors.Celsius(i)
		if !valid {
			return nil
		}
		return &c
	}
	return VirtualReadings{
		Selection: sel,
		Core:      pick(sel.CoreIndex()),
		Surface:   pick(sel.SurfaceIndex()),
		Ambient:   pick(sel.AmbientIndex()),
	}
}

// Clone returns a copy that shares no pointers with v.
func (v VirtualReadings) Clone() VirtualReadings {
	out := VirtualReadings{Selection: v.Selection}
	out.Core = cloneFloat(v.Core)
	out.Surface = cloneFloat(v.Surface)
	out.Ambient = cloneFloat(v.Ambient)
	return out
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
