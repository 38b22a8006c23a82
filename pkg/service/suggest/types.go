package suggest

import (
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

// thresholdResponse is the structured output for tolerance drafts
type thresholdResponse struct {
	Suggestions []thresholdDraft `json:"suggestions"`
}

type thresholdDraft struct {
	Name         string    `json:"name"`
	MetricType   string    `json:"metric_type"`
	Values       []float64 `json:"values"`
	BadDirection string    `json:"bad_direction"`
	Rationale    string    `json:"rationale"`
}

func (d thresholdDraft) suggestion() model.ThresholdSuggestion {
	return model.ThresholdSuggestion{
		Name:       d.Name,
		MetricType: types.MetricType(d.MetricType),
		Thresholds: model.Thresholds{
			Values:       d.Values,
			BadDirection: types.ChangeDirection(d.BadDirection),
		},
		Rationale: d.Rationale,
	}
}

// controlResponse is the structured output for control drafts
type controlResponse struct {
	Suggestions []controlDraft `json:"suggestions"`
}

type controlDraft struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Type           string `json:"type"`
	Target         string `json:"target"`
	Design         int    `json:"design"`
	Implementation int    `json:"implementation"`
	Monitoring     int    `json:"monitoring"`
	Evaluation     int    `json:"evaluation"`
	Rationale      string `json:"rationale"`
}

func (d controlDraft) suggestion() model.ControlSuggestion {
	return model.ControlSuggestion{
		Title:       d.Title,
		Description: d.Description,
		Type:        types.ControlType(d.Type),
		Target:      types.TargetDimension(d.Target),
		Score: model.DIMEScore{
			Design:         d.Design,
			Implementation: d.Implementation,
			Monitoring:     d.Monitoring,
			Evaluation:     d.Evaluation,
		},
		Rationale: d.Rationale,
	}
}
