package model

import (
	"time"

	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

// MetricStatus is the current status of one tolerance configuration
type MetricStatus struct {
	ToleranceID string                `json:"tolerance_id"`
	Name        string                `json:"name"`
	MetricType  types.MetricType      `json:"metric_type"`
	Status      types.ToleranceStatus `json:"status"`
	Value       *float64              `json:"value,omitempty"`
	MeasuredAt  *time.Time            `json:"measured_at,omitempty"`
}

// CategoryStatus folds the metrics of one appetite category
type CategoryStatus struct {
	AppetiteCategoryID string                `json:"appetite_category_id"`
	CategoryID         types.CategoryID      `json:"category_id"`
	Level              types.AppetiteLevel   `json:"level"`
	Status             types.ToleranceStatus `json:"status"`
	UnknownMetrics     int                   `json:"unknown_metrics"`
	Metrics            []MetricStatus        `json:"metrics"`
}

// EnterpriseStatus folds all categories of an organization
type EnterpriseStatus struct {
	OrgID             string                `json:"org_id"`
	Status            types.ToleranceStatus `json:"status"`
	UnknownCategories int                   `json:"unknown_categories"`
	Categories        []CategoryStatus      `json:"categories"`
}

// WorstStatus returns the most severe known status and how many inputs
// were unknown. With no known input the result is Unknown.
func WorstStatus(statuses ...types.ToleranceStatus) (types.ToleranceStatus, int) {
	worst := types.ToleranceUnknown
	unknown := 0
	for _, s := range statuses {
		if !s.IsKnown() {
			unknown++
			continue
		}
		if s.Severity() > worst.Severity() {
			worst = s
		}
	}
	return worst, unknown
}

// RollupCategory computes a category status from its metrics
func RollupCategory(cat *AppetiteCategory, metrics []MetricStatus) CategoryStatus {
	statuses := make([]types.ToleranceStatus, len(metrics))
	for i, m := range metrics {
		statuses[i] = m.Status
	}
	worst, unknown := WorstStatus(statuses...)
	if metrics == nil {
		metrics = []MetricStatus{}
	}
	return CategoryStatus{
		AppetiteCategoryID: cat.ID,
		CategoryID:         cat.CategoryID,
		Level:              cat.Level,
		Status:             worst,
		UnknownMetrics:     unknown,
		Metrics:            metrics,
	}
}

// RollupEnterprise computes the enterprise status from its categories
func RollupEnterprise(orgID string, categories []CategoryStatus) EnterpriseStatus {
	statuses := make([]types.ToleranceStatus, len(categories))
	for i, c := range categories {
		statuses[i] = c.Status
	}
	worst, unknown := WorstStatus(statuses...)
	if categories == nil {
		categories = []CategoryStatus{}
	}
	return EnterpriseStatus{
		OrgID:             orgID,
		Status:            worst,
		UnknownCategories: unknown,
		Categories:        categories,
	}
}
