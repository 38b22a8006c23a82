package model

import (
	"math"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

// ThresholdDirection tells which side of the bounds is bad
type ThresholdDirection string

const (
	AboveIsBad ThresholdDirection = "ABOVE_IS_BAD"
	BelowIsBad ThresholdDirection = "BELOW_IS_BAD"
	Between    ThresholdDirection = "BETWEEN"
)

// WarningBand is the optional inner band of a Between threshold. Values
// inside the outer bounds but outside the band are Yellow.
type WarningBand struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// IndicatorThreshold is the direction-aware threshold an indicator
// measurement is judged against
type IndicatorThreshold struct {
	Direction ThresholdDirection `json:"direction"`
	Lower     float64            `json:"lower"`
	Upper     float64            `json:"upper"`
	Band      *WarningBand       `json:"band,omitempty"`
}

// Validate requires finite bounds with Lower < Upper, and a band strictly
// inside them when present
func (t IndicatorThreshold) Validate() error {
	for _, v := range []float64{t.Lower, t.Upper} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalidThreshold("threshold bounds must be finite", goerr.V("value", v))
		}
	}
	if t.Lower >= t.Upper {
		return invalidThreshold("lower bound must be below upper bound",
			goerr.V("lower", t.Lower), goerr.V("upper", t.Upper))
	}
	switch t.Direction {
	case AboveIsBad, BelowIsBad:
		if t.Band != nil {
			return invalidThreshold("warning band is only allowed for between thresholds")
		}
	case Between:
		if t.Band != nil && !(t.Lower < t.Band.Lower && t.Band.Lower < t.Band.Upper && t.Band.Upper < t.Upper) {
			return invalidThreshold("warning band must lie strictly inside the bounds",
				goerr.V("band_lower", t.Band.Lower), goerr.V("band_upper", t.Band.Upper))
		}
	default:
		return invalidThreshold("unknown threshold direction", goerr.V("direction", t.Direction))
	}
	return nil
}

// EvaluateIndicator judges a value against an indicator threshold
func EvaluateIndicator(value float64, t IndicatorThreshold) (types.AlertStatus, error) {
	if err := ValidateValue(value); err != nil {
		return "", err
	}
	if err := t.Validate(); err != nil {
		return "", err
	}

	switch t.Direction {
	case AboveIsBad:
		switch {
		case value > t.Upper:
			return types.AlertStatusRed, nil
		case value > t.Lower:
			return types.AlertStatusYellow, nil
		}
	case BelowIsBad:
		switch {
		case value < t.Lower:
			return types.AlertStatusRed, nil
		case value < t.Upper:
			return types.AlertStatusYellow, nil
		}
	case Between:
		if value < t.Lower || value > t.Upper {
			return types.AlertStatusRed, nil
		}
		if t.Band != nil && (value < t.Band.Lower || value > t.Band.Upper) {
			return types.AlertStatusYellow, nil
		}
	}
	return types.AlertStatusGreen, nil
}
