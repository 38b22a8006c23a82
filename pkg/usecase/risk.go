package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
	"github.com/secmon-lab/riskregister/pkg/utils/logging"
)

type RiskUseCase struct {
	*core
	codes *CodeUseCase
}

// RiskInput carries the editable fields of a risk
type RiskInput struct {
	Title              string           `json:"title"`
	Description        string           `json:"description"`
	CategoryID         types.CategoryID `json:"category_id"`
	SubcategoryID      types.CategoryID `json:"subcategory_id"`
	Owner              string           `json:"owner"`
	DivisionID         types.DivisionID `json:"division_id"`
	InherentLikelihood int              `json:"inherent_likelihood"`
	InherentImpact     int              `json:"inherent_impact"`
	Status             types.RiskStatus `json:"status"`
	IncidentCount      int              `json:"incident_count"`
}

func (in RiskInput) apply(r *model.Risk) {
	r.Title = in.Title
	r.Description = in.Description
	r.CategoryID = in.CategoryID
	r.SubcategoryID = in.SubcategoryID
	r.Owner = in.Owner
	r.DivisionID = in.DivisionID
	r.InherentLikelihood = in.InherentLikelihood
	r.InherentImpact = in.InherentImpact
	r.Status = in.Status.Normalize()
	r.IncidentCount = in.IncidentCount
}

// CreateRisk validates the input and stores a new risk under a code
// derived from its division and category
func (uc *RiskUseCase) CreateRisk(ctx context.Context, orgID string, in RiskInput) (*model.Risk, error) {
	if err := uc.authorize(ctx, orgID); err != nil {
		return nil, err
	}

	now := uc.now()
	risk := &model.Risk{
		OrgID:     orgID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	in.apply(risk)
	if err := risk.Validate(uc.cfg); err != nil {
		return nil, err
	}

	parts, err := riskParts(uc.cfg, risk)
	if err != nil {
		return nil, err
	}
	if _, err := uc.codes.createWithCode(ctx, orgID, parts, func(code string) error {
		risk.ID = code
		return uc.repo.Risk().Create(ctx, risk)
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to create risk", goerr.V(model.OrgIDKey, orgID))
	}

	logging.From(ctx).Info("risk created", "org_id", orgID, "risk_id", risk.ID)
	return risk, nil
}

// UpdateRisk replaces the editable fields. The code stays the same even
// when the division or category changes.
func (uc *RiskUseCase) UpdateRisk(ctx context.Context, orgID, id string, in RiskInput) (*model.Risk, error) {
	if err := uc.authorize(ctx, orgID); err != nil {
		return nil, err
	}

	risk, err := uc.repo.Risk().Get(ctx, orgID, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get risk", goerr.V(model.RiskIDKey, id))
	}
	if !risk.IsActive {
		return nil, goerr.Wrap(model.ErrValidation, "closed risk cannot be edited", goerr.V(model.RiskIDKey, id))
	}

	in.apply(risk)
	risk.UpdatedAt = uc.now()
	if err := risk.Validate(uc.cfg); err != nil {
		return nil, err
	}
	if err := uc.repo.Risk().Update(ctx, risk); err != nil {
		return nil, goerr.Wrap(err, "failed to update risk", goerr.V(model.RiskIDKey, id))
	}
	return risk, nil
}

func (uc *RiskUseCase) GetRisk(ctx context.Context, orgID, id string) (*model.Risk, error) {
	risk, err := uc.repo.Risk().Get(ctx, orgID, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get risk", goerr.V(model.RiskIDKey, id))
	}
	return risk, nil
}

func (uc *RiskUseCase) ListRisks(ctx context.Context, orgID string) ([]*model.Risk, error) {
	risks, err := uc.repo.Risk().List(ctx, orgID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list risks", goerr.V(model.OrgIDKey, orgID))
	}
	return risks, nil
}

// RiskIssue is a stored risk that no longer satisfies the register
// configuration, typically after a category or division was removed
type RiskIssue struct {
	RiskID  string `json:"risk_id"`
	Message string `json:"message"`
}

// ValidateRisks checks every stored risk of orgID against the current
// register configuration
func (uc *RiskUseCase) ValidateRisks(ctx context.Context, orgID string) ([]RiskIssue, error) {
	risks, err := uc.ListRisks(ctx, orgID)
	if err != nil {
		return nil, err
	}

	var issues []RiskIssue
	for _, risk := range risks {
		if err := risk.Validate(uc.cfg); err != nil {
			issues = append(issues, RiskIssue{RiskID: risk.ID, Message: err.Error()})
		}
	}
	return issues, nil
}

// DeleteRisk removes a risk, or soft-closes it when a committed period
// holds a snapshot of it. Linked controls survive either way.
func (uc *RiskUseCase) DeleteRisk(ctx context.Context, orgID, id string) (bool, error) {
	if err := uc.authorize(ctx, orgID); err != nil {
		return false, err
	}

	softClosed, err := uc.repo.Risk().Delete(ctx, orgID, id)
	if err != nil {
		return false, goerr.Wrap(err, "failed to delete risk", goerr.V(model.RiskIDKey, id))
	}

	logging.From(ctx).Info("risk deleted", "org_id", orgID, "risk_id", id, "soft_closed", softClosed)
	return softClosed, nil
}

// ComputeResidual recomputes the residual scores of a risk from the
// controls linked to it now
func (uc *RiskUseCase) ComputeResidual(ctx context.Context, orgID, riskID string) (*model.Residual, error) {
	risk, err := uc.GetRisk(ctx, orgID, riskID)
	if err != nil {
		return nil, err
	}
	controls, err := linkedControls(ctx, uc.core, orgID, riskID)
	if err != nil {
		return nil, err
	}
	res := model.ComputeResidual(risk, controls)
	return &res, nil
}

func linkedControls(ctx context.Context, c *core, orgID, riskID string) ([]*model.Control, error) {
	links, err := c.repo.Risk().LinksByRisk(ctx, orgID, riskID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list risk controls", goerr.V(model.RiskIDKey, riskID))
	}

	controls := make([]*model.Control, 0, len(links))
	for _, link := range links {
		control, err := c.repo.Control().Get(ctx, orgID, link.ControlID)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to get linked control",
				goerr.V(model.RiskIDKey, riskID), goerr.V(model.ControlIDKey, link.ControlID))
		}
		controls = append(controls, control)
	}
	return controls, nil
}
