package probe

import (
	"time"

	"github.com/muurk/probekit/internal/probedata"
)

// State is the reconciled view of one probe. Values returned by Snapshot
// share no memory with the live state.
type State struct {
	Serial       string                          `json:"serial"`
	Identity     string                          `json:"identity,omitempty"`
	ProductType  probedata.ProductType           `json:"product_type"`
	RSSI         int16                           `json:"rssi"`
	Sensors      probedata.SensorArray           `json:"-"`
	Temperatures [probedata.SensorCount]*float64 `json:"temperatures"`
	Virtual      probedata.VirtualReadings       `json:"virtual"`
	Mode         probedata.ProbeMode             `json:"mode"`
	Color        probedata.ProbeColor            `json:"color"`
	ID           probedata.ProbeID               `json:"id"`
	Battery      probedata.BatteryStatus         `json:"battery"`
	Overheat     probedata.Overheat              `json:"overheat"`

	MinSequence uint32                  `json:"min_sequence"`
	MaxSequence uint32                  `json:"max_sequence"`
	Prediction  *probedata.Prediction   `json:"prediction,omitempty"`
	FoodSafe    *probedata.FoodSafeData `json:"food_safe,omitempty"`
	Alarms      *probedata.AlarmTable   `json:"alarms,omitempty"`
	Preferences *probedata.Preferences  `json:"preferences,omitempty"`

	LastAdvertising time.Time `json:"last_advertising"`
	LastStatus      time.Time `json:"last_status"`
	LastUpdate      time.Time `json:"last_update"`
	IDSetAt         time.Time `json:"-"`
	ColorSetAt      time.Time `json:"-"`
	Stale           bool      `json:"stale"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	for i, t := range s.Temperatures {
		if t != nil {
			v := *t
			out.Temperatures[i] = &v
		}
	}
	out.Virtual = s.Virtual.Clone()
	if s.Prediction != nil {
		p := *s.Prediction
		out.Prediction = &p
	}
	if s.FoodSafe != nil {
		fs := s.FoodSafe.Clone()
		out.FoodSafe = &fs
	}
	if s.Alarms != nil {
		a := *s.Alarms
		out.Alarms = &a
	}
	if s.Preferences != nil {
		p := *s.Preferences
		out.Preferences = &p
	}
	return out
}

// PredictionProgress is the prediction progress percentage, if a prediction
// with distinct endpoints is known.
func (s State) PredictionProgress() (float64, bool) {
	if s.Prediction == nil {
		return 0, false
	}
	return probedata.PredictionProgress(*s.Prediction)
}

// FoodSafeProgress is the food-safe progress percentage, if a status has
// been reported.
func (s State) FoodSafeProgress() (float64, bool) {
	if s.FoodSafe == nil || s.FoodSafe.Status == nil {
		return 0, false
	}
	return s.FoodSafe.Progress(), true
}

// LogCount is the number of records the probe reports holding.
func (s State) LogCount() uint32 {
	if s.MaxSequence < s.MinSequence || s.LastStatus.IsZero() {
		return 0
	}
	return s.MaxSequence - s.MinSequence + 1
}
