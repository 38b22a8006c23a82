package model

import (
	"math"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

// Indicator is a KRI or KCI definition. It carries no thresholds; the
// ToleranceConfig referencing it governs how measurements are judged.
type Indicator struct {
	ID          string              `json:"id"`
	OrgID       string              `json:"org_id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	RiskID      string              `json:"risk_id"`
	Type        types.IndicatorType `json:"type"`
	Unit        string              `json:"unit"`
	Frequency   types.Frequency     `json:"frequency"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// Validate checks the indicator definition
func (i *Indicator) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return invalid("indicator name is required")
	}
	if !i.Type.IsValid() {
		return invalid("invalid indicator type", goerr.V("type", i.Type))
	}
	if !i.Frequency.IsValid() {
		return invalid("invalid collection frequency", goerr.V("frequency", i.Frequency))
	}
	return nil
}

// Measurement is one recorded value of an indicator. Status is computed
// when the measurement is recorded and is never recalculated.
type Measurement struct {
	ID          string            `json:"id"`
	OrgID       string            `json:"org_id"`
	IndicatorID string            `json:"indicator_id"`
	Value       float64           `json:"value"`
	PeriodLabel string            `json:"period_label"`
	Quality     types.DataQuality `json:"quality"`
	Status      types.AlertStatus `json:"status"`
	RecordedBy  string            `json:"recorded_by"`
	RecordedAt  time.Time         `json:"recorded_at"`
}

// ValidateValue rejects values no threshold can judge
func ValidateValue(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return invalid("measurement value must be a finite number", goerr.V("value", v))
	}
	return nil
}
