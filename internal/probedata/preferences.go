package probedata

// PowerMode controls whether the probe sleeps in its charger.
type PowerMode uint8

const (
	PowerNormal PowerMode = iota
	PowerAlwaysOn
)

func (m PowerMode) String() string {
	if m == PowerAlwaysOn {
		return "Always On"
	}
	return "Normal"
}

// Preferences is the 1-byte thermometer preferences block: power mode in
// bits 0-1, bits 2-7 reserved.
type Preferences struct {
	PowerMode PowerMode `json:"power_mode"`
}

// PreferencesFromByte decodes the block. Reserved power modes map to Normal.
func PreferencesFromByte(b byte) Preferences {
	mode := PowerMode(b & 0x03)
	if mode > PowerAlwaysOn {
		mode = PowerNormal
	}
	return Preferences{PowerMode: mode}
}

// Byte encodes the block with reserved bits cleared.
func (p Preferences) Byte() byte {
	return byte(p.PowerMode) & 0x03
}
