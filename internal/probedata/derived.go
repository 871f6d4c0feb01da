package probedata

import "math"

// progressEpsilon is the smallest set point to heat start span that still
// yields a meaningful prediction progress.
const progressEpsilon = 0.001

func clampPercent(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

// PredictionProgress reports how far the estimated core has travelled from
// the heat-start temperature toward the set point, as 0-100. It is undefined
// when the set point equals the heat start.
func PredictionProgress(p Prediction) (float64, bool) {
	span := p.SetPoint - p.HeatStart
	if math.Abs(span) < progressEpsilon {
		return 0, false
	}
	return clampPercent((p.EstimatedCore - p.HeatStart) / span * 100), true
}

// FoodSafeProgress reports accumulated log reduction as a percentage of the
// configured target, 0-100. A non-positive target counts as complete.
func FoodSafeProgress(status FoodSafeStatus, config FoodSafeConfig) float64 {
	if config.TargetLogReduction <= 0 {
		return 100
	}
	return clampPercent(status.LogReduction / config.TargetLogReduction * 100)
}

// RemainingLogReduction is how much more reduction the cook needs, never
// negative.
func RemainingLogReduction(status FoodSafeStatus, config FoodSafeConfig) float64 {
	return math.Max(0, config.TargetLogReduction-status.LogReduction)
}

// ProductTarget returns the built-in program for a product: the instant-safe
// threshold for simplified products, the full parameter set for integrated
// ones. Custom and unrecognised products have none.
func ProductTarget(p FoodSafeProduct) (FoodSafeParams, bool) {
	if sp, ok := p.Simplified(); ok {
		if int(sp) >= len(simplifiedThresholds) {
			return FoodSafeParams{}, false
		}
		return FoodSafeParams{ThresholdTemperature: simplifiedThresholds[sp]}, true
	}
	ip, _ := p.Integrated()
	return ip.DefaultParams()
}
