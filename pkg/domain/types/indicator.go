package types

import "github.com/m-mizutani/goerr/v2"

// IndicatorType describes when an indicator moves relative to the risk
type IndicatorType string

const (
	IndicatorTypeLeading    IndicatorType = "LEADING"
	IndicatorTypeLagging    IndicatorType = "LAGGING"
	IndicatorTypeConcurrent IndicatorType = "CONCURRENT"
)

// AllIndicatorTypes returns all valid indicator types
func AllIndicatorTypes() []IndicatorType {
	return []IndicatorType{IndicatorTypeLeading, IndicatorTypeLagging, IndicatorTypeConcurrent}
}

// IsValid checks if the indicator type is valid
func (t IndicatorType) IsValid() bool {
	switch t {
	case IndicatorTypeLeading, IndicatorTypeLagging, IndicatorTypeConcurrent:
		return true
	default:
		return false
	}
}

func (t IndicatorType) String() string {
	return string(t)
}

// ParseIndicatorType parses a string into an IndicatorType
func ParseIndicatorType(s string) (IndicatorType, error) {
	t := IndicatorType(s)
	if !t.IsValid() {
		return "", goerr.New("invalid indicator type", goerr.V("type", s))
	}
	return t, nil
}

// DataQuality flags how trustworthy a measurement is
type DataQuality string

const (
	DataQualityVerified   DataQuality = "VERIFIED"
	DataQualityEstimated  DataQuality = "ESTIMATED"
	DataQualityUnverified DataQuality = "UNVERIFIED"
)

// IsValid checks if the data quality flag is valid
func (q DataQuality) IsValid() bool {
	switch q {
	case DataQualityVerified, DataQualityEstimated, DataQualityUnverified:
		return true
	default:
		return false
	}
}

// Normalize treats an empty flag as DataQualityUnverified
func (q DataQuality) Normalize() DataQuality {
	if q == "" {
		return DataQualityUnverified
	}
	return q
}

func (q DataQuality) String() string {
	return string(q)
}

// AlertStatus is the tri-state signal of an indicator measurement.
// AlertStatusUnknown is only stored for a directional baseline that has
// nothing to compare against.
type AlertStatus string

const (
	AlertStatusGreen   AlertStatus = "GREEN"
	AlertStatusYellow  AlertStatus = "YELLOW"
	AlertStatusRed     AlertStatus = "RED"
	AlertStatusUnknown AlertStatus = "UNKNOWN"
)

// IsValid checks if the alert status is valid
func (s AlertStatus) IsValid() bool {
	switch s {
	case AlertStatusGreen, AlertStatusYellow, AlertStatusRed, AlertStatusUnknown:
		return true
	default:
		return false
	}
}

// RaisesAlert reports whether the status requires an alert
func (s AlertStatus) RaisesAlert() bool {
	return s == AlertStatusYellow || s == AlertStatusRed
}

func (s AlertStatus) String() string {
	return string(s)
}

// Frequency is how often an indicator is collected
type Frequency string

const (
	FrequencyDaily     Frequency = "DAILY"
	FrequencyWeekly    Frequency = "WEEKLY"
	FrequencyMonthly   Frequency = "MONTHLY"
	FrequencyQuarterly Frequency = "QUARTERLY"
	FrequencyAnnually  Frequency = "ANNUALLY"
)

// IsValid checks if the frequency is valid
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyAnnually:
		return true
	default:
		return false
	}
}

func (f Frequency) String() string {
	return string(f)
}
