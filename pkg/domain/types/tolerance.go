package types

import "github.com/m-mizutani/goerr/v2"

// MetricType is the shape of a tolerance threshold
type MetricType string

const (
	MetricTypeMaximum     MetricType = "MAXIMUM"
	MetricTypeMinimum     MetricType = "MINIMUM"
	MetricTypeRange       MetricType = "RANGE"
	MetricTypeDirectional MetricType = "DIRECTIONAL"
)

// AllMetricTypes returns all valid metric types
func AllMetricTypes() []MetricType {
	return []MetricType{MetricTypeMaximum, MetricTypeMinimum, MetricTypeRange, MetricTypeDirectional}
}

// IsValid checks if the metric type is valid
func (m MetricType) IsValid() bool {
	switch m {
	case MetricTypeMaximum, MetricTypeMinimum, MetricTypeRange, MetricTypeDirectional:
		return true
	default:
		return false
	}
}

func (m MetricType) String() string {
	return string(m)
}

// ParseMetricType parses a string into a MetricType
func ParseMetricType(s string) (MetricType, error) {
	m := MetricType(s)
	if !m.IsValid() {
		return "", goerr.New("invalid metric type", goerr.V("metric_type", s))
	}
	return m, nil
}

// ChangeDirection is the direction of change considered bad by a
// directional metric
type ChangeDirection string

const (
	ChangeIncrease ChangeDirection = "INCREASE"
	ChangeDecrease ChangeDirection = "DECREASE"
	ChangeEither   ChangeDirection = "EITHER"
)

// AllChangeDirections returns all valid change directions
func AllChangeDirections() []ChangeDirection {
	return []ChangeDirection{ChangeIncrease, ChangeDecrease, ChangeEither}
}

// IsValid checks if the change direction is valid
func (d ChangeDirection) IsValid() bool {
	switch d {
	case ChangeIncrease, ChangeDecrease, ChangeEither:
		return true
	default:
		return false
	}
}

func (d ChangeDirection) String() string {
	return string(d)
}

// Materiality marks who the tolerance matters to
type Materiality string

const (
	MaterialityInternal Materiality = "INTERNAL"
	MaterialityExternal Materiality = "EXTERNAL"
	MaterialityDual     Materiality = "DUAL"
)

// IsValid checks if the materiality flag is valid
func (m Materiality) IsValid() bool {
	switch m {
	case MaterialityInternal, MaterialityExternal, MaterialityDual:
		return true
	default:
		return false
	}
}

func (m Materiality) String() string {
	return string(m)
}

// ToleranceStatus is the RAG status of a tolerance metric, category or
// the whole enterprise.
type ToleranceStatus string

const (
	ToleranceUnknown ToleranceStatus = "UNKNOWN"
	ToleranceGreen   ToleranceStatus = "GREEN"
	ToleranceAmber   ToleranceStatus = "AMBER"
	ToleranceRed     ToleranceStatus = "RED"
)

// IsValid checks if the tolerance status is valid
func (s ToleranceStatus) IsValid() bool {
	switch s {
	case ToleranceUnknown, ToleranceGreen, ToleranceAmber, ToleranceRed:
		return true
	default:
		return false
	}
}

// Severity orders known statuses Green < Amber < Red. Unknown returns -1
// and must be handled separately by callers.
func (s ToleranceStatus) Severity() int {
	switch s {
	case ToleranceGreen:
		return 0
	case ToleranceAmber:
		return 1
	case ToleranceRed:
		return 2
	default:
		return -1
	}
}

// IsKnown reports whether the status carries data
func (s ToleranceStatus) IsKnown() bool {
	return s.Severity() >= 0
}

// RaisesBreach reports whether the status opens a breach
func (s ToleranceStatus) RaisesBreach() bool {
	return s == ToleranceAmber || s == ToleranceRed
}

// AlertStatus maps the status onto the indicator alert vocabulary
func (s ToleranceStatus) AlertStatus() AlertStatus {
	switch s {
	case ToleranceGreen:
		return AlertStatusGreen
	case ToleranceAmber:
		return AlertStatusYellow
	case ToleranceRed:
		return AlertStatusRed
	default:
		return AlertStatusUnknown
	}
}

func (s ToleranceStatus) String() string {
	return string(s)
}
