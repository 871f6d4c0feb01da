package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/muurk/probekit/internal/probedata"
)

// Session-status payload layout. Sections after the prediction block are
// present only when the payload reaches their end offset.
const (
	StatusMinSize = 30

	statusSensorsOffset    = 8
	statusModeOffset       = 21
	statusBatteryOffset    = 22
	statusPredictionOffset = 23
	statusFoodSafeConfig   = 30
	statusFoodSafeStatus   = statusFoodSafeConfig + probedata.FoodSafeConfigSize
	statusOverheatOffset   = statusFoodSafeStatus + probedata.FoodSafeStatusSize
	statusPrefsOffset      = statusOverheatOffset + 1
	statusAlarmsOffset     = statusPrefsOffset + 1

	// StatusFullSize is a payload with every optional section.
	StatusFullSize = statusAlarmsOffset + probedata.AlarmTableSize
)

// Status is one decoded session notification. Optional sections are nil
// when the payload was too short to carry them.
type Status struct {
	MinSequence    uint32                    `json:"min_sequence"`
	MaxSequence    uint32                    `json:"max_sequence"`
	Sensors        probedata.SensorArray     `json:"sensors"`
	Mode           probedata.ProbeMode       `json:"mode"`
	Color          probedata.ProbeColor      `json:"color"`
	ID             probedata.ProbeID         `json:"id"`
	Battery        probedata.BatteryStatus   `json:"battery"`
	Virtual        probedata.VirtualReadings `json:"virtual"`
	Prediction     probedata.Prediction      `json:"prediction"`
	FoodSafeConfig *probedata.FoodSafeConfig `json:"food_safe_config,omitempty"`
	FoodSafeStatus *probedata.FoodSafeStatus `json:"food_safe_status,omitempty"`
	Overheat       *probedata.Overheat       `json:"overheat,omitempty"`
	Preferences    *probedata.Preferences    `json:"preferences,omitempty"`
	Alarms         *probedata.AlarmTable     `json:"alarms,omitempty"`
}

// ParseStatus decodes a probe status notification.
func ParseStatus(data []byte) (*Status, error) {
	if len(data) < StatusMinSize {
		return nil, lengthError("status payload", StatusMinSize, len(data))
	}

	sensors := probedata.UnpackSensors([probedata.PackedSensorsSize]byte(data[statusSensorsOffset:statusModeOffset]))
	mci := probedata.ModeColorIDFromByte(data[statusModeOffset])
	battery, sel := probedata.BatteryVirtualFromByte(data[statusBatteryOffset])

	s := &Status{
		MinSequence: binary.LittleEndian.Uint32(data[0:4]),
		MaxSequence: binary.LittleEndian.Uint32(data[4:8]),
		Sensors:     sensors,
		Mode:        mci.Mode,
		Color:       mci.Color,
		ID:          mci.ID,
		Battery:     battery,
		Virtual:     probedata.ComputeVirtual(sel, sensors),
		Prediction:  probedata.PredictionFromBytes([probedata.PredictionSize]byte(data[statusPredictionOffset:statusFoodSafeConfig])),
	}

	if len(data) >= statusFoodSafeStatus {
		cfg := probedata.FoodSafeConfigFromBytes([probedata.FoodSafeConfigSize]byte(data[statusFoodSafeConfig:statusFoodSafeStatus]))
		s.FoodSafeConfig = &cfg
	}
	if len(data) >= statusOverheatOffset {
		st := probedata.FoodSafeStatusFromBytes([probedata.FoodSafeStatusSize]byte(data[statusFoodSafeStatus:statusOverheatOffset]))
		s.FoodSafeStatus = &st
	}
	if len(data) > statusOverheatOffset {
		o := probedata.Overheat(data[statusOverheatOffset])
		s.Overheat = &o
	}
	if len(data) > statusPrefsOffset {
		p := probedata.PreferencesFromByte(data[statusPrefsOffset])
		s.Preferences = &p
	}
	if len(data) >= StatusFullSize {
		t := probedata.AlarmTableFromBytes([probedata.AlarmTableSize]byte(data[statusAlarmsOffset:StatusFullSize]))
		s.Alarms = &t
	}
	return s, nil
}

// LogCount is the number of records the probe holds, or 0 when the range
// is empty.
func (s *Status) LogCount() uint32 {
	if s.MaxSequence < s.MinSequence {
		return 0
	}
	return s.MaxSequence - s.MinSequence + 1
}

// Bytes encodes the status, truncated after the last present section.
func (s *Status) Bytes() []byte {
	size := StatusMinSize
	switch {
	case s.Alarms != nil:
		size = StatusFullSize
	case s.Preferences != nil:
		size = statusAlarmsOffset
	case s.Overheat != nil:
		size = statusPrefsOffset
	case s.FoodSafeStatus != nil:
		size = statusOverheatOffset
	case s.FoodSafeConfig != nil:
		size = statusFoodSafeStatus
	}

	b := make([]byte, size)
	binary.LittleEndian.PutUint32(b[0:4], s.MinSequence)
	binary.LittleEndian.PutUint32(b[4:8], s.MaxSequence)
	packed := s.Sensors.Pack()
	copy(b[statusSensorsOffset:], packed[:])
	b[statusModeOffset] = probedata.ModeColorID{Mode: s.Mode, Color: s.Color, ID: s.ID}.Byte()
	b[statusBatteryOffset] = probedata.BatteryVirtualByte(s.Battery, s.Virtual.Selection)
	pred := s.Prediction.Bytes()
	copy(b[statusPredictionOffset:], pred[:])

	if s.FoodSafeConfig != nil && size >= statusFoodSafeStatus {
		cfg := s.FoodSafeConfig.Bytes()
		copy(b[statusFoodSafeConfig:], cfg[:])
	}
	if s.FoodSafeStatus != nil && size >= statusOverheatOffset {
		st := s.FoodSafeStatus.Bytes()
		copy(b[statusFoodSafeStatus:], st[:])
	}
	if s.Overheat != nil && size > statusOverheatOffset {
		b[statusOverheatOffset] = byte(*s.Overheat)
	}
	if s.Preferences != nil && size > statusPrefsOffset {
		b[statusPrefsOffset] = s.Preferences.Byte()
	}
	if s.Alarms != nil {
		t := s.Alarms.Bytes()
		copy(b[statusAlarmsOffset:], t[:])
	}
	return b
}

func (s *Status) String() string {
	return fmt.Sprintf("Status{seq=%d..%d id=%d color=%s prediction=%s}",
		s.MinSequence, s.MaxSequence, s.ID, s.Color, s.Prediction.State)
}
