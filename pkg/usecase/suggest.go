package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/utils/logging"
)

// suggestionHistory is the number of recent measurements shown to the
// provider
const suggestionHistory = 24

// SuggestUseCase asks the suggestion provider for drafts. Drafts are
// validated like manual input and never stored directly.
type SuggestUseCase struct {
	*core
	controls *ControlUseCase
}

// SuggestThresholds returns the tolerance drafts for an indicator that
// pass threshold validation. Invalid drafts are dropped.
func (uc *SuggestUseCase) SuggestThresholds(ctx context.Context, orgID, indicatorID string) ([]model.ThresholdSuggestion, error) {
	if uc.suggester == nil {
		return nil, goerr.Wrap(ErrSuggestionUnavailable, "cannot suggest thresholds")
	}

	indicator, err := uc.repo.Indicator().Get(ctx, orgID, indicatorID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get indicator", goerr.V(model.IndicatorIDKey, indicatorID))
	}
	history, err := uc.repo.Indicator().ListMeasurements(ctx, orgID, indicatorID, suggestionHistory)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list measurements", goerr.V(model.IndicatorIDKey, indicatorID))
	}

	drafts, err := uc.suggester.SuggestThresholds(ctx, indicator, history)
	if err != nil {
		return nil, goerr.Wrap(err, "suggestion provider failed", goerr.V(model.IndicatorIDKey, indicatorID))
	}

	valid := make([]model.ThresholdSuggestion, 0, len(drafts))
	for _, d := range drafts {
		if err := d.Validate(); err != nil {
			logging.From(ctx).Warn("dropping invalid threshold suggestion",
				"indicator_id", indicatorID, "name", d.Name, "error", err.Error())
			continue
		}
		valid = append(valid, d)
	}
	return valid, nil
}

// SuggestControls returns the control drafts for a risk that pass control
// validation. Invalid drafts are dropped.
func (uc *SuggestUseCase) SuggestControls(ctx context.Context, orgID, riskID string) ([]model.ControlSuggestion, error) {
	if uc.suggester == nil {
		return nil, goerr.Wrap(ErrSuggestionUnavailable, "cannot suggest controls")
	}

	risk, err := uc.repo.Risk().Get(ctx, orgID, riskID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get risk", goerr.V(model.RiskIDKey, riskID))
	}
	existing, err := linkedControls(ctx, uc.core, orgID, riskID)
	if err != nil {
		return nil, err
	}

	drafts, err := uc.suggester.SuggestControls(ctx, risk, existing)
	if err != nil {
		return nil, goerr.Wrap(err, "suggestion provider failed", goerr.V(model.RiskIDKey, riskID))
	}

	valid := make([]model.ControlSuggestion, 0, len(drafts))
	for _, d := range drafts {
		if err := d.Control(orgID).Validate(); err != nil {
			logging.From(ctx).Warn("dropping invalid control suggestion",
				"risk_id", riskID, "title", d.Title, "error", err.Error())
			continue
		}
		valid = append(valid, d)
	}
	return valid, nil
}

// AcceptControlSuggestion creates the drafted control through the normal
// creation path and links it to the risk
func (uc *SuggestUseCase) AcceptControlSuggestion(ctx context.Context, orgID, riskID string, s model.ControlSuggestion) (*model.Control, error) {
	control, err := uc.controls.CreateControl(ctx, orgID, ControlInput{
		Title:       s.Title,
		Description: s.Description,
		Type:        s.Type,
		Target:      s.Target,
		Score:       s.Score,
	})
	if err != nil {
		return nil, err
	}
	if riskID != "" {
		if err := uc.controls.LinkControl(ctx, orgID, riskID, control.ID); err != nil {
			return nil, err
		}
	}
	return control, nil
}
