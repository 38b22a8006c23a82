package usecase

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

type ControlUseCase struct {
	*core
	codes *CodeUseCase
}

// ControlInput carries the editable fields of a control
type ControlInput struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Owner       string                `json:"owner"`
	Type        types.ControlType     `json:"type"`
	Target      types.TargetDimension `json:"target"`
	Score       model.DIMEScore       `json:"score"`
}

func (in ControlInput) apply(c *model.Control) {
	c.Title = in.Title
	c.Description = in.Description
	c.Owner = in.Owner
	c.Type = in.Type
	c.Target = in.Target
	c.Score = in.Score
}

func (uc *ControlUseCase) CreateControl(ctx context.Context, orgID string, in ControlInput) (*model.Control, error) {
	if err := uc.authorize(ctx, orgID); err != nil {
		return nil, err
	}

	now := uc.now()
	control := &model.Control{OrgID: orgID, CreatedAt: now, UpdatedAt: now}
	in.apply(control)
	if err := control.Validate(); err != nil {
		return nil, err
	}

	if _, err := uc.codes.createWithCode(ctx, orgID, []types.CodePart{uc.cfg.Codes.Control}, func(code string) error {
		control.ID = code
		return uc.repo.Control().Create(ctx, control)
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to create control", goerr.V(model.OrgIDKey, orgID))
	}
	return control, nil
}

// UpdateControl changes a control. Residual scores of linked risks follow
// automatically because they are never cached.
func (uc *ControlUseCase) UpdateControl(ctx context.Context, orgID, id string, in ControlInput) (*model.Control, error) {
	if err := uc.authorize(ctx, orgID); err != nil {
		return nil, err
	}

	control, err := uc.repo.Control().Get(ctx, orgID, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get control", goerr.V(model.ControlIDKey, id))
	}
	in.apply(control)
	control.UpdatedAt = uc.now()
	if err := control.Validate(); err != nil {
		return nil, err
	}
	if err := uc.repo.Control().Update(ctx, control); err != nil {
		return nil, goerr.Wrap(err, "failed to update control", goerr.V(model.ControlIDKey, id))
	}
	return control, nil
}

func (uc *ControlUseCase) GetControl(ctx context.Context, orgID, id string) (*model.Control, error) {
	control, err := uc.repo.Control().Get(ctx, orgID, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get control", goerr.V(model.ControlIDKey, id))
	}
	return control, nil
}

func (uc *ControlUseCase) ListControls(ctx context.Context, orgID string) ([]*model.Control, error) {
	controls, err := uc.repo.Control().List(ctx, orgID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list controls", goerr.V(model.OrgIDKey, orgID))
	}
	return controls, nil
}

// DeleteControl fails while the control is linked to any risk
func (uc *ControlUseCase) DeleteControl(ctx context.Context, orgID, id string) error {
	if err := uc.authorize(ctx, orgID); err != nil {
		return err
	}
	if err := uc.repo.Control().Delete(ctx, orgID, id); err != nil {
		return goerr.Wrap(err, "failed to delete control", goerr.V(model.ControlIDKey, id))
	}
	return nil
}

// LinkControl associates a control with an active risk
func (uc *ControlUseCase) LinkControl(ctx context.Context, orgID, riskID, controlID string) error {
	if err := uc.authorize(ctx, orgID); err != nil {
		return err
	}
	if strings.TrimSpace(riskID) == "" || strings.TrimSpace(controlID) == "" {
		return goerr.Wrap(model.ErrValidation, "risk and control are required")
	}

	risk, err := uc.repo.Risk().Get(ctx, orgID, riskID)
	if err != nil {
		return goerr.Wrap(err, "failed to get risk", goerr.V(model.RiskIDKey, riskID))
	}
	if !risk.IsActive {
		return goerr.Wrap(model.ErrValidation, "cannot link a control to a closed risk", goerr.V(model.RiskIDKey, riskID))
	}

	link := &model.RiskControlLink{
		OrgID:     orgID,
		RiskID:    riskID,
		ControlID: controlID,
		CreatedAt: uc.now(),
	}
	if err := uc.repo.Risk().Link(ctx, link); err != nil {
		return goerr.Wrap(err, "failed to link control",
			goerr.V(model.RiskIDKey, riskID), goerr.V(model.ControlIDKey, controlID))
	}
	return nil
}

func (uc *ControlUseCase) UnlinkControl(ctx context.Context, orgID, riskID, controlID string) error {
	if err := uc.authorize(ctx, orgID); err != nil {
		return err
	}
	if err := uc.repo.Risk().Unlink(ctx, orgID, riskID, controlID); err != nil {
		return goerr.Wrap(err, "failed to unlink control",
			goerr.V(model.RiskIDKey, riskID), goerr.V(model.ControlIDKey, controlID))
	}
	return nil
}

// ListRiskControls returns the controls linked to a risk
func (uc *ControlUseCase) ListRiskControls(ctx context.Context, orgID, riskID string) ([]*model.Control, error) {
	return linkedControls(ctx, uc.core, orgID, riskID)
}

// ListControlRisks returns the IDs of the risks a control is linked to
func (uc *ControlUseCase) ListControlRisks(ctx context.Context, orgID, controlID string) ([]string, error) {
	links, err := uc.repo.Risk().LinksByControl(ctx, orgID, controlID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list control risks", goerr.V(model.ControlIDKey, controlID))
	}
	ids := make([]string, len(links))
	for i, l := range links {
		ids[i] = l.RiskID
	}
	return ids, nil
}
