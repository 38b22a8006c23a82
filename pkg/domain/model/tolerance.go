package model

import (
	"math"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

// Thresholds are the ordered boundary values of a tolerance metric.
//
//	MAXIMUM:     [green, red]                               ascending
//	MINIMUM:     [red, green]                               ascending
//	RANGE:       [lower, upper] or
//	             [outer_lower, inner_lower, inner_upper, outer_upper]  ascending
//	DIRECTIONAL: [allowed_change_pct, warning_fraction] with a bad direction
type Thresholds struct {
	Values       []float64             `json:"values"`
	BadDirection types.ChangeDirection `json:"bad_direction,omitempty"`
}

// ValidateThresholds rejects configurations whose zones overlap, leave a
// gap, or cannot be evaluated
func ValidateThresholds(metric types.MetricType, th Thresholds) error {
	for i, v := range th.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalidThreshold("threshold values must be finite", goerr.V("index", i), goerr.V("value", v))
		}
	}

	switch metric {
	case types.MetricTypeMaximum, types.MetricTypeMinimum:
		if len(th.Values) != 2 {
			return invalidThreshold("maximum and minimum metrics need exactly two values",
				goerr.V("metric_type", metric), goerr.V("count", len(th.Values)))
		}
		return ascending(metric, th.Values)

	case types.MetricTypeRange:
		if len(th.Values) != 2 && len(th.Values) != 4 {
			return invalidThreshold("range metrics need two or four values", goerr.V("count", len(th.Values)))
		}
		return ascending(metric, th.Values)

	case types.MetricTypeDirectional:
		if len(th.Values) != 2 {
			return invalidThreshold("directional metrics need an allowed change and a warning fraction",
				goerr.V("count", len(th.Values)))
		}
		if th.Values[0] <= 0 {
			return invalidThreshold("allowed change must be positive", goerr.V("allowed", th.Values[0]))
		}
		if th.Values[1] <= 0 || th.Values[1] >= 1 {
			return invalidThreshold("warning fraction must be between 0 and 1", goerr.V("fraction", th.Values[1]))
		}
		if !th.BadDirection.IsValid() {
			return invalidThreshold("directional metrics need a bad direction", goerr.V("bad_direction", th.BadDirection))
		}
		return nil

	default:
		return invalidThreshold("unknown metric type", goerr.V("metric_type", metric))
	}
}

// ascending requires strictly increasing values so adjacent zones meet at
// exactly one boundary
func ascending(metric types.MetricType, values []float64) error {
	for i := 1; i < len(values); i++ {
		if values[i] <= values[i-1] {
			return invalidThreshold("threshold values must be strictly ascending",
				goerr.V("metric_type", metric),
				goerr.V("index", i),
				goerr.V("values", values))
		}
	}
	return nil
}

// EvaluateTolerance judges value against the thresholds of a metric. For
// DIRECTIONAL metrics value is the percentage change from the prior
// measurement (see PercentChange).
func EvaluateTolerance(value float64, metric types.MetricType, th Thresholds) (types.ToleranceStatus, error) {
	if math.IsNaN(value) {
		return "", invalid("value must be a number")
	}
	if metric != types.MetricTypeDirectional && math.IsInf(value, 0) {
		return "", invalid("value must be finite", goerr.V("value", value))
	}
	if err := ValidateThresholds(metric, th); err != nil {
		return "", err
	}
	v := th.Values

	switch metric {
	case types.MetricTypeMaximum:
		switch {
		case value <= v[0]:
			return types.ToleranceGreen, nil
		case value <= v[1]:
			return types.ToleranceAmber, nil
		default:
			return types.ToleranceRed, nil
		}

	case types.MetricTypeMinimum:
		switch {
		case value >= v[1]:
			return types.ToleranceGreen, nil
		case value >= v[0]:
			return types.ToleranceAmber, nil
		default:
			return types.ToleranceRed, nil
		}

	case types.MetricTypeRange:
		if len(v) == 2 {
			if value >= v[0] && value <= v[1] {
				return types.ToleranceGreen, nil
			}
			return types.ToleranceRed, nil
		}
		switch {
		case value >= v[1] && value <= v[2]:
			return types.ToleranceGreen, nil
		case value >= v[0] && value <= v[3]:
			return types.ToleranceAmber, nil
		default:
			return types.ToleranceRed, nil
		}

	default:
		bad := badChange(value, th.BadDirection)
		switch {
		case bad > v[0]:
			return types.ToleranceRed, nil
		case bad > v[0]*v[1]:
			return types.ToleranceAmber, nil
		default:
			return types.ToleranceGreen, nil
		}
	}
}

// badChange projects a signed change onto the configured bad direction.
// Changes in the good direction count as zero.
func badChange(change float64, dir types.ChangeDirection) float64 {
	switch dir {
	case types.ChangeIncrease:
		return math.Max(change, 0)
	case types.ChangeDecrease:
		return math.Max(-change, 0)
	default:
		return math.Abs(change)
	}
}

// PercentChange is (current - prior) / |prior| * 100. A zero prior yields
// 0 when current is also zero and an infinite change otherwise.
func PercentChange(prior, current float64) float64 {
	if prior == 0 {
		switch {
		case current > 0:
			return math.Inf(1)
		case current < 0:
			return math.Inf(-1)
		default:
			return 0
		}
	}
	return (current - prior) / math.Abs(prior) * 100
}

// ToleranceConfig is a board-governed quantitative limit under an
// AppetiteCategory. IndicatorID optionally names the indicator supplying
// its measurements; otherwise values come from manual readings.
type ToleranceConfig struct {
	ID                 string            `json:"id"`
	OrgID              string            `json:"org_id"`
	AppetiteCategoryID string            `json:"appetite_category_id"`
	Name               string            `json:"name"`
	MetricType         types.MetricType  `json:"metric_type"`
	Thresholds         Thresholds        `json:"thresholds"`
	IndicatorID        string            `json:"indicator_id"`
	Materiality        types.Materiality `json:"materiality"`
	Unit               string            `json:"unit"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// Validate checks the configuration, including its thresholds
func (c *ToleranceConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid("tolerance name is required")
	}
	if c.AppetiteCategoryID == "" {
		return invalid("appetite category is required")
	}
	if !c.MetricType.IsValid() {
		return invalidThreshold("unknown metric type", goerr.V("metric_type", c.MetricType))
	}
	if !c.Materiality.IsValid() {
		return invalid("invalid materiality", goerr.V("materiality", c.Materiality))
	}
	return ValidateThresholds(c.MetricType, c.Thresholds)
}

// Evaluate judges current against the configuration. prior is only used
// by DIRECTIONAL metrics; without it the status is Unknown.
func (c *ToleranceConfig) Evaluate(current float64, prior *float64) (types.ToleranceStatus, error) {
	if c.MetricType != types.MetricTypeDirectional {
		return EvaluateTolerance(current, c.MetricType, c.Thresholds)
	}
	if err := ValidateValue(current); err != nil {
		return "", err
	}
	if prior == nil {
		return types.ToleranceUnknown, nil
	}
	return EvaluateTolerance(PercentChange(*prior, current), c.MetricType, c.Thresholds)
}

// IndicatorThreshold derives the indicator view of a valid non-directional
// configuration. ok is false for DIRECTIONAL metrics, which need the prior
// measurement and are judged through Evaluate.
func (c *ToleranceConfig) IndicatorThreshold() (IndicatorThreshold, bool) {
	if ValidateThresholds(c.MetricType, c.Thresholds) != nil {
		return IndicatorThreshold{}, false
	}
	v := c.Thresholds.Values
	switch c.MetricType {
	case types.MetricTypeMaximum:
		return IndicatorThreshold{Direction: AboveIsBad, Lower: v[0], Upper: v[1]}, true
	case types.MetricTypeMinimum:
		return IndicatorThreshold{Direction: BelowIsBad, Lower: v[0], Upper: v[1]}, true
	case types.MetricTypeRange:
		if len(v) == 4 {
			return IndicatorThreshold{Direction: Between, Lower: v[0], Upper: v[3], Band: &WarningBand{Lower: v[1], Upper: v[2]}}, true
		}
		return IndicatorThreshold{Direction: Between, Lower: v[0], Upper: v[1]}, true
	default:
		return IndicatorThreshold{}, false
	}
}

// ToleranceReading is a manually supplied value for a configuration that
// is not fed by an indicator
type ToleranceReading struct {
	ID          string                `json:"id"`
	OrgID       string                `json:"org_id"`
	ToleranceID string                `json:"tolerance_id"`
	Value       float64               `json:"value"`
	Status      types.ToleranceStatus `json:"status"`
	PeriodLabel string                `json:"period_label"`
	RecordedBy  string                `json:"recorded_by"`
	RecordedAt  time.Time             `json:"recorded_at"`
}

// Clone returns a deep copy
func (c *ToleranceConfig) Clone() *ToleranceConfig {
	cp := *c
	cp.Thresholds.Values = append([]float64(nil), c.Thresholds.Values...)
	return &cp
}
