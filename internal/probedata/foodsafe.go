package probedata

import (
	"encoding/json"
	"fmt"

	"github.com/muurk/probekit/internal/bitpack"
)

const (
	// FoodSafeConfigSize is the wire size of the food-safe configuration.
	FoodSafeConfigSize = 10
	// FoodSafeStatusSize is the wire size of the food-safe status.
	FoodSafeStatusSize = 8
)

// FoodSafeMode selects how the probe judges a cook safe.
type FoodSafeMode uint8

const (
	// FoodSafeSimplified uses an instant temperature threshold.
	FoodSafeSimplified FoodSafeMode = iota
	// FoodSafeIntegrated integrates lethality over time toward a log reduction.
	FoodSafeIntegrated
)

func (m FoodSafeMode) String() string {
	if m == FoodSafeIntegrated {
		return "Integrated"
	}
	return "Simplified"
}

// SimplifiedProduct is a product for simplified food-safe mode.
type SimplifiedProduct uint16

const (
	SimplifiedDefault SimplifiedProduct = iota
	SimplifiedAnyPoultry
	SimplifiedBeefPorkVealLambCuts
	SimplifiedGroundMeats
	SimplifiedHamFreshOrSmoked
	SimplifiedHamCookedAndReheated
	SimplifiedEggs
	SimplifiedFishShellfish
	SimplifiedLeftovers
	SimplifiedCasseroles
)

var simplifiedNames = [...]string{
	"Default",
	"Any Poultry",
	"Beef, Pork, Veal & Lamb Cuts",
	"Ground Meats",
	"Ham, Fresh or Smoked",
	"Ham, Cooked and Reheated",
	"Eggs",
	"Fish & Shellfish",
	"Leftovers",
	"Casseroles",
}

func (p SimplifiedProduct) String() string {
	if int(p) < len(simplifiedNames) {
		return simplifiedNames[p]
	}
	return fmt.Sprintf("SimplifiedProduct(%d)", uint16(p))
}

// simplifiedThresholds are the instant-safe core temperatures in °C.
var simplifiedThresholds = [...]float64{
	SimplifiedDefault:              74.0,
	SimplifiedAnyPoultry:           74.0,
	SimplifiedBeefPorkVealLambCuts: 63.0,
	SimplifiedGroundMeats:          71.0,
	SimplifiedHamFreshOrSmoked:     63.0,
	SimplifiedHamCookedAndReheated: 60.0,
	SimplifiedEggs:                 71.0,
	SimplifiedFishShellfish:        63.0,
	SimplifiedLeftovers:            74.0,
	SimplifiedCasseroles:           74.0,
}

// IntegratedProduct is a product for integrated food-safe mode.
type IntegratedProduct uint16

const (
	IntegratedPoultry IntegratedProduct = iota
	IntegratedMeats
	IntegratedMeatsGround
	IntegratedSeafood
	IntegratedDairy
	IntegratedEggs

	// IntegratedCustom carries caller-supplied parameters.
	IntegratedCustom IntegratedProduct = 0x3FF
)

func (p IntegratedProduct) String() string {
	switch p {
	case IntegratedPoultry:
		return "Poultry"
	case IntegratedMeats:
		return "Meats"
	case IntegratedMeatsGround:
		return "Meats (Ground)"
	case IntegratedSeafood:
		return "Seafood"
	case IntegratedDairy:
		return "Dairy"
	case IntegratedEggs:
		return "Eggs"
	case IntegratedCustom:
		return "Custom"
	default:
		return fmt.Sprintf("IntegratedProduct(%d)", uint16(p))
	}
}

// FoodSafeParams are the thermal-death-time parameters of integrated mode.
type FoodSafeParams struct {
	ThresholdTemperature float64 `json:"threshold_temperature"`
	ZValue               float64 `json:"z_value"`
	ReferenceTemperature float64 `json:"reference_temperature"`
	DValue               float64 `json:"d_value"`
	TargetLogReduction   float64 `json:"target_log_reduction"`
}

var integratedDefaults = map[IntegratedProduct]FoodSafeParams{
	IntegratedPoultry:     {ThresholdTemperature: 54.4, ZValue: 5.5, ReferenceTemperature: 70.0, DValue: 1.0, TargetLogReduction: 7.0},
	IntegratedMeats:       {ThresholdTemperature: 54.4, ZValue: 5.0, ReferenceTemperature: 70.0, DValue: 0.5, TargetLogReduction: 5.0},
	IntegratedMeatsGround: {ThresholdTemperature: 54.4, ZValue: 5.5, ReferenceTemperature: 70.0, DValue: 1.0, TargetLogReduction: 6.5},
	IntegratedSeafood:     {ThresholdTemperature: 54.4, ZValue: 5.0, ReferenceTemperature: 63.0, DValue: 0.5, TargetLogReduction: 6.0},
	IntegratedDairy:       {ThresholdTemperature: 60.0, ZValue: 6.0, ReferenceTemperature: 72.0, DValue: 0.25, TargetLogReduction: 5.0},
	IntegratedEggs:        {ThresholdTemperature: 54.4, ZValue: 5.0, ReferenceTemperature: 60.0, DValue: 1.0, TargetLogReduction: 5.0},
}

// DefaultParams returns the built-in parameters for p. IntegratedCustom and
// unknown products have none.
func (p IntegratedProduct) DefaultParams() (FoodSafeParams, bool) {
	params, ok := integratedDefaults[p]
	return params, ok
}

// FoodSafeProduct is a tagged union over the simplified and integrated
// product sets. The zero value is Simplified Default. The raw code is kept
// even when it names no known product, so a decoded config re-encodes
// unchanged.
type FoodSafeProduct struct {
	mode FoodSafeMode
	code uint16
}

// Simplified wraps a simplified-mode product.
func Simplified(p SimplifiedProduct) FoodSafeProduct {
	return FoodSafeProduct{mode: FoodSafeSimplified, code: uint16(p)}
}

// Integrated wraps an integrated-mode product.
func Integrated(p IntegratedProduct) FoodSafeProduct {
	return FoodSafeProduct{mode: FoodSafeIntegrated, code: uint16(p)}
}

// Mode returns which product set p belongs to.
func (p FoodSafeProduct) Mode() FoodSafeMode {
	return p.mode
}

// Code returns the raw 10-bit product code.
func (p FoodSafeProduct) Code() uint16 {
	return p.code
}

// Known reports whether the code names a product of its mode.
func (p FoodSafeProduct) Known() bool {
	if p.mode == FoodSafeIntegrated {
		ip := IntegratedProduct(p.code)
		_, ok := integratedDefaults[ip]
		return ok || ip == IntegratedCustom
	}
	return int(p.code) < len(simplifiedNames)
}

// Simplified returns the simplified product when p is one. Unknown codes
// resolve to SimplifiedDefault.
func (p FoodSafeProduct) Simplified() (SimplifiedProduct, bool) {
	if p.mode != FoodSafeSimplified {
		return 0, false
	}
	if !p.Known() {
		return SimplifiedDefault, true
	}
	return SimplifiedProduct(p.code), true
}

// Integrated returns the integrated product when p is one. Unknown codes
// resolve to IntegratedCustom.
func (p FoodSafeProduct) Integrated() (IntegratedProduct, bool) {
	if p.mode != FoodSafeIntegrated {
		return 0, false
	}
	if !p.Known() {
		return IntegratedCustom, true
	}
	return IntegratedProduct(p.code), true
}

func (p FoodSafeProduct) String() string {
	if sp, ok := p.Simplified(); ok {
		return "Simplified/" + sp.String()
	}
	ip, _ := p.Integrated()
	return "Integrated/" + ip.String()
}

// MarshalJSON renders the product as its mode, code and display name.
func (p FoodSafeProduct) MarshalJSON() ([]byte, error) {
	name := p.String()
	return json.Marshal(struct {
		Mode string `json:"mode"`
		Code uint16 `json:"code"`
		Name string `json:"name"`
	}{Mode: p.mode.String(), Code: p.code, Name: name})
}

// productFromWire wraps a raw mode and code. Reserved modes fall back to
// simplified; the code is kept as sent.
func productFromWire(mode, code uint32) FoodSafeProduct {
	if FoodSafeMode(mode) == FoodSafeIntegrated {
		return Integrated(IntegratedProduct(code))
	}
	return Simplified(SimplifiedProduct(code))
}

// Serving describes how the food will be served.
type Serving uint8

const (
	ServedImmediately Serving = iota
	CookedAndChilled
)

func (s Serving) String() string {
	if s == CookedAndChilled {
		return "Cooked and Chilled"
	}
	return "Served Immediately"
}

// FoodSafeConfig is the food-safe program loaded onto a probe.
type FoodSafeConfig struct {
	Product FoodSafeProduct `json:"product"`
	Serving Serving         `json:"serving"`
	FoodSafeParams
}

// NewSimplifiedConfig returns a simplified-mode configuration whose
// threshold is the product's instant-safe temperature.
func NewSimplifiedConfig(p SimplifiedProduct, serving Serving) FoodSafeConfig {
	cfg := FoodSafeConfig{Product: Simplified(p), Serving: serving}
	if int(p) < len(simplifiedThresholds) {
		cfg.ThresholdTemperature = simplifiedThresholds[p]
	}
	return cfg
}

// NewIntegratedConfig returns an integrated-mode configuration with the
// product's default parameters.
func NewIntegratedConfig(p IntegratedProduct, serving Serving) FoodSafeConfig {
	params, _ := p.DefaultParams()
	return FoodSafeConfig{Product: Integrated(p), Serving: serving, FoodSafeParams: params}
}

// NewCustomConfig returns an integrated-mode configuration with explicit
// parameters.
func NewCustomConfig(params FoodSafeParams, serving Serving) FoodSafeConfig {
	return FoodSafeConfig{Product: Integrated(IntegratedCustom), Serving: serving, FoodSafeParams: params}
}

// Mode is shorthand for c.Product.Mode().
func (c FoodSafeConfig) Mode() FoodSafeMode {
	return c.Product.Mode()
}

// FoodSafeConfigFromBytes decodes the 10-byte configuration. Bit offsets:
// mode 0 (3), product 3 (10), serving 13 (3), threshold 16 (13), z-value 29
// (13), reference 42 (13), d-value 55 (13), log reduction 68 (8).
func FoodSafeConfigFromBytes(b [FoodSafeConfigSize]byte) FoodSafeConfig {
	c := bitpack.NewCursor(b[:])
	mode := c.Read(3)
	code := c.Read(10)
	serving := Serving(c.Read(3))
	if serving > CookedAndChilled {
		serving = ServedImmediately
	}
	return FoodSafeConfig{
		Product: productFromWire(mode, code),
		Serving: serving,
		FoodSafeParams: FoodSafeParams{
			ThresholdTemperature: bitpack.FoodSafeTemperature.Decode(c.Read(13)),
			ZValue:               bitpack.FoodSafeTemperature.Decode(c.Read(13)),
			ReferenceTemperature: bitpack.FoodSafeTemperature.Decode(c.Read(13)),
			DValue:               bitpack.FoodSafeTemperature.Decode(c.Read(13)),
			TargetLogReduction:   bitpack.LogReduction.Decode(c.Read(8)),
		},
	}
}

// Bytes encodes the configuration.
func (cfg FoodSafeConfig) Bytes() [FoodSafeConfigSize]byte {
	var b [FoodSafeConfigSize]byte
	c := bitpack.NewCursor(b[:])
	c.Write(3, uint32(cfg.Product.Mode()))
	c.Write(10, uint32(cfg.Product.Code()))
	c.Write(3, uint32(cfg.Serving))
	c.Write(13, bitpack.FoodSafeTemperature.Encode(cfg.ThresholdTemperature))
	c.Write(13, bitpack.FoodSafeTemperature.Encode(cfg.ZValue))
	c.Write(13, bitpack.FoodSafeTemperature.Encode(cfg.ReferenceTemperature))
	c.Write(13, bitpack.FoodSafeTemperature.Encode(cfg.DValue))
	c.Write(8, bitpack.LogReduction.Encode(cfg.TargetLogReduction))
	return b
}

// FoodSafeState is the probe's verdict on the current cook.
type FoodSafeState uint8

const (
	FoodSafeNotSafe FoodSafeState = iota
	FoodSafeSafe
	// FoodSafeImpossible is terminal for the session.
	FoodSafeImpossible
)

func (s FoodSafeState) String() string {
	switch s {
	case FoodSafeSafe:
		return "Safe"
	case FoodSafeImpossible:
		return "Safety Impossible"
	default:
		return "Not Safe"
	}
}

// FoodSafeStatus is live food-safe progress.
type FoodSafeStatus struct {
	State                 FoodSafeState `json:"state"`
	LogReduction          float64       `json:"log_reduction"`
	SecondsAboveThreshold uint16        `json:"seconds_above_threshold"`
	SequenceNumber        uint32        `json:"sequence_number"`
}

// FoodSafeStatusFromBytes decodes the 8-byte status: state 0 (3), log
// reduction 3 (8), seconds 11 (16), sequence 27 (32). Reserved states map to
// NotSafe.
func FoodSafeStatusFromBytes(b [FoodSafeStatusSize]byte) FoodSafeStatus {
	c := bitpack.NewCursor(b[:])
	state := FoodSafeState(c.Read(3))
	if state > FoodSafeImpossible {
		state = FoodSafeNotSafe
	}
	return FoodSafeStatus{
		State:                 state,
		LogReduction:          bitpack.LogReduction.Decode(c.Read(8)),
		SecondsAboveThreshold: uint16(c.Read(16)),
		SequenceNumber:        c.Read(32),
	}
}

// Bytes encodes the status.
func (s FoodSafeStatus) Bytes() [FoodSafeStatusSize]byte {
	var b [FoodSafeStatusSize]byte
	c := bitpack.NewCursor(b[:])
	c.Write(3, uint32(s.State))
	c.Write(8, bitpack.LogReduction.Encode(s.LogReduction))
	c.Write(16, uint32(s.SecondsAboveThreshold))
	c.Write(32, s.SequenceNumber)
	return b
}

// FoodSafeData pairs a configuration with its most recent status, which is
// absent until the probe reports one.
type FoodSafeData struct {
	Config FoodSafeConfig  `json:"config"`
	Status *FoodSafeStatus `json:"status,omitempty"`
}

// Clone returns a deep copy.
func (d FoodSafeData) Clone() FoodSafeData {
	out := FoodSafeData{Config: d.Config}
	if d.Status != nil {
		s := *d.Status
		out.Status = &s
	}
	return out
}

// Progress is FoodSafeProgress over the stored status, or 0 without one.
func (d FoodSafeData) Progress() float64 {
	if d.Status == nil {
		return 0
	}
	return FoodSafeProgress(*d.Status, d.Config)
}
