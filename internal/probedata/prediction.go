package probedata

import (
	"fmt"
	"time"

	"github.com/muurk/probekit/internal/bitpack"
)

// PredictionSize is the wire size of the prediction status block.
const PredictionSize = 7

// PredictionState is the stage of the prediction engine.
type PredictionState uint8

const (
	PredictionProbeNotInserted PredictionState = iota
	PredictionProbeInserted
	PredictionWarming
	PredictionPredicting
	PredictionRemovalDone
	PredictionReserved5
	PredictionReserved6
	PredictionUnknown
)

// PredictionStateFromRaw maps any value above the defined range to
// PredictionUnknown.
func PredictionStateFromRaw(raw uint8) PredictionState {
	if raw >= uint8(PredictionUnknown) {
		return PredictionUnknown
	}
	return PredictionState(raw)
}

func (s PredictionState) String() string {
	switch s {
	case PredictionProbeNotInserted:
		return "Probe Not Inserted"
	case PredictionProbeInserted:
		return "Probe Inserted"
	case PredictionWarming:
		return "Warming"
	case PredictionPredicting:
		return "Predicting"
	case PredictionRemovalDone:
		return "Removal Prediction Done"
	case PredictionReserved5, PredictionReserved6:
		return "Reserved"
	default:
		return "Unknown"
	}
}

// PredictionMode selects what the probe predicts.
type PredictionMode uint8

const (
	PredictionModeNone PredictionMode = iota
	PredictionModeTimeToRemoval
	PredictionModeRemovalAndResting
	PredictionModeReserved
)

func (m PredictionMode) String() string {
	switch m {
	case PredictionModeNone:
		return "None"
	case PredictionModeTimeToRemoval:
		return "Time To Removal"
	case PredictionModeRemovalAndResting:
		return "Removal And Resting"
	default:
		return "Reserved"
	}
}

// PredictionType is the kind of prediction currently reported.
type PredictionType uint8

const (
	PredictionTypeNone PredictionType = iota
	PredictionTypeRemoval
	PredictionTypeResting
	PredictionTypeReserved
)

func (t PredictionType) String() string {
	switch t {
	case PredictionTypeNone:
		return "None"
	case PredictionTypeRemoval:
		return "Removal"
	case PredictionTypeResting:
		return "Resting"
	default:
		return "Reserved"
	}
}

// Prediction is the decoded prediction status block.
type Prediction struct {
	State         PredictionState `json:"state"`
	Mode          PredictionMode  `json:"mode"`
	Type          PredictionType  `json:"type"`
	SetPoint      float64         `json:"set_point"`
	HeatStart     float64         `json:"heat_start"`
	Seconds       uint32          `json:"seconds"`
	EstimatedCore float64         `json:"estimated_core"`
}

const predictionSecondsBits = 17

func readPrediction(c *bitpack.Cursor) Prediction {
	var p Prediction
	p.State = PredictionStateFromRaw(uint8(c.Read(4)))
	p.Mode = PredictionMode(c.Read(2))
	p.Type = PredictionType(c.Read(2))
	p.SetPoint = bitpack.PredictionTemperature.Decode(c.Read(10))
	p.HeatStart = bitpack.PredictionTemperature.Decode(c.Read(10))
	p.Seconds = c.Read(predictionSecondsBits)
	p.EstimatedCore = bitpack.EstimatedCore.Decode(c.Read(11))
	return p
}

func writePrediction(c *bitpack.Cursor, p Prediction) {
	c.Write(4, uint32(p.State))
	c.Write(2, uint32(p.Mode))
	c.Write(2, uint32(p.Type))
	c.Write(10, bitpack.PredictionTemperature.Encode(p.SetPoint))
	c.Write(10, bitpack.PredictionTemperature.Encode(p.HeatStart))
	c.Write(predictionSecondsBits, clampSeconds(p.Seconds))
	c.Write(11, bitpack.EstimatedCore.Encode(p.EstimatedCore))
}

// PredictionFromBytes decodes the 7-byte prediction status block.
func PredictionFromBytes(b [PredictionSize]byte) Prediction {
	return readPrediction(bitpack.NewCursor(b[:]))
}

// Bytes encodes the prediction status block.
func (p Prediction) Bytes() [PredictionSize]byte {
	var b [PredictionSize]byte
	writePrediction(bitpack.NewCursor(b[:]), p)
	return b
}

// Remaining is the predicted time until the set point is reached.
func (p Prediction) Remaining() time.Duration {
	return time.Duration(p.Seconds) * time.Second
}

// Active reports whether the engine is producing a live estimate.
func (p Prediction) Active() bool {
	return p.State == PredictionPredicting && p.Mode != PredictionModeNone
}

func (p Prediction) String() string {
	return fmt.Sprintf("%s (%s) set=%.1f°C core=%.1f°C remaining=%s",
		p.State, p.Mode, p.SetPoint, p.EstimatedCore, p.Remaining())
}

// PredictionLogSize is the wire size of the prediction log attached to each
// logged data point.
const PredictionLogSize = 7

// PredictionLog is the prediction snapshot stored alongside each logged
// temperature record. It carries no heat-start temperature.
type PredictionLog struct {
	Virtual       VirtualSelection `json:"virtual"`
	State         PredictionState  `json:"state"`
	Mode          PredictionMode   `json:"mode"`
	Type          PredictionType   `json:"type"`
	SetPoint      float64          `json:"set_point"`
	Seconds       uint32           `json:"seconds"`
	EstimatedCore float64          `json:"estimated_core"`
}

// PredictionLogFromBytes decodes the 7-byte prediction log: virtual
// selection (7 bits), state (4), mode (2), type (2), set point (10),
// seconds (17) and estimated core (11).
func PredictionLogFromBytes(b [PredictionLogSize]byte) PredictionLog {
	c := bitpack.NewCursor(b[:])
	return PredictionLog{
		Virtual:       VirtualSelectionFromRaw(uint8(c.Read(7))),
		State:         PredictionStateFromRaw(uint8(c.Read(4))),
		Mode:          PredictionMode(c.Read(2)),
		Type:          PredictionType(c.Read(2)),
		SetPoint:      bitpack.PredictionTemperature.Decode(c.Read(10)),
		Seconds:       c.Read(predictionSecondsBits),
		EstimatedCore: bitpack.EstimatedCore.Decode(c.Read(11)),
	}
}

// Bytes encodes the prediction log.
func (l PredictionLog) Bytes() [PredictionLogSize]byte {
	var b [PredictionLogSize]byte
	c := bitpack.NewCursor(b[:])
	c.Write(7, uint32(l.Virtual.Raw()))
	c.Write(4, uint32(l.State))
	c.Write(2, uint32(l.Mode))
	c.Write(2, uint32(l.Type))
	c.Write(10, bitpack.PredictionTemperature.Encode(l.SetPoint))
	c.Write(predictionSecondsBits, clampSeconds(l.Seconds))
	c.Write(11, bitpack.EstimatedCore.Encode(l.EstimatedCore))
	return b
}

func clampSeconds(s uint32) uint32 {
	const limit = 1<<predictionSecondsBits - 1
	if s > limit {
		return limit
	}
	return s
}
