package models

// WarningLevel is the tri-state outcome of a threshold evaluation.
type WarningLevel string

const (
	WarningNormal WarningLevel = "normal"
	WarningHigh   WarningLevel = "high"
	WarningLow    WarningLevel = "low"
)

// Bounds is the High/Low pair guarding one channel. High >= Low is
// expected but never validated; an inverted pair still evaluates without
// panicking (the high check wins).
type Bounds struct {
	High float64 `json:"high"`
	Low  float64 `json:"low"`
}

// Evaluate classifies value against the bounds. Equality with either
// bound counts as normal: only value > High or value < Low warn.
func (b Bounds) Evaluate(value float64) WarningLevel {
	switch {
	case value > b.High:
		return WarningHigh
	case value < b.Low:
		return WarningLow
	default:
		return WarningNormal
	}
}

// WarningThresholds holds the eight warning bounds. The server is the
// source of truth; DefaultWarningThresholds is the fallback.
type WarningThresholds struct {
	TempHigh     float64 `json:"tempHigh"`
	TempLow      float64 `json:"tempLow"`
	HumidHigh    float64 `json:"humidHigh"`
	HumidLow     float64 `json:"humidLow"`
	CO2High      float64 `json:"co2High"`
	CO2Low       float64 `json:"co2Low"`
	MoistureHigh float64 `json:"moistureHigh"`
	MoistureLow  float64 `json:"moistureLow"`
}

// DefaultWarningThresholds returns the hardcoded fallback set, which is
// also the initial value before the first successful fetch.
func DefaultWarningThresholds() WarningThresholds {
	return WarningThresholds{
		TempHigh:     23.0,
		TempLow:      20.0,
		HumidHigh:    75.0,
		HumidLow:     62.0,
		CO2High:      620.0,
		CO2Low:       580.0,
		MoistureHigh: 34.0,
		MoistureLow:  30.0,
	}
}

// BoundsFor returns the bounds guarding ch. The EC and pressure channels
// carry no thresholds; ok is false for those.
func (w WarningThresholds) BoundsFor(ch Channel) (Bounds, bool) {
	switch ch {
	case ChannelTemperature:
		return Bounds{High: w.TempHigh, Low: w.TempLow}, true
	case ChannelHumidity:
		return Bounds{High: w.HumidHigh, Low: w.HumidLow}, true
	case ChannelCO2:
		return Bounds{High: w.CO2High, Low: w.CO2Low}, true
	case ChannelMoisture:
		return Bounds{High: w.MoistureHigh, Low: w.MoistureLow}, true
	}
	return Bounds{}, false
}
