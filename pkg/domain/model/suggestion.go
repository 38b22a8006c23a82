package model

import "github.com/secmon-lab/riskregister/pkg/domain/types"

// ThresholdSuggestion is an untrusted tolerance draft from a suggestion
// provider
type ThresholdSuggestion struct {
	Name       string           `json:"name"`
	MetricType types.MetricType `json:"metric_type"`
	Thresholds Thresholds       `json:"thresholds"`
	Rationale  string           `json:"rationale"`
}

// Validate applies the same threshold validation as a manual submission
func (s *ThresholdSuggestion) Validate() error {
	if s.Name == "" {
		return invalid("suggested tolerance has no name")
	}
	return ValidateThresholds(s.MetricType, s.Thresholds)
}

// ControlSuggestion is an untrusted control draft from a suggestion
// provider. Accepting it goes through normal control creation.
type ControlSuggestion struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Type        types.ControlType     `json:"type"`
	Target      types.TargetDimension `json:"target"`
	Score       DIMEScore             `json:"score"`
	Rationale   string                `json:"rationale"`
}

// Control converts the draft into an unsaved control
func (s *ControlSuggestion) Control(orgID string) *Control {
	return &Control{
		OrgID:       orgID,
		Title:       s.Title,
		Description: s.Description,
		Type:        s.Type,
		Target:      s.Target,
		Score:       s.Score,
	}
}
