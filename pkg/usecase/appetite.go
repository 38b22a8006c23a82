package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
	"github.com/secmon-lab/riskregister/pkg/utils/logging"
)

type AppetiteUseCase struct {
	*core
}

// StatementInput carries the editable fields of an appetite statement
type StatementInput struct {
	Title         string     `json:"title"`
	Body          string     `json:"body"`
	EffectiveFrom *time.Time `json:"effective_from,omitempty"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty"`
}

func (in StatementInput) apply(s *model.AppetiteStatement) {
	s.Title = in.Title
	s.Body = in.Body
	s.EffectiveFrom = in.EffectiveFrom
	s.EffectiveTo = in.EffectiveTo
}

// AppetiteCategoryInput sets the appetite of one top-level category
type AppetiteCategoryInput struct {
	StatementID string              `json:"statement_id"`
	CategoryID  types.CategoryID    `json:"category_id"`
	Level       types.AppetiteLevel `json:"level"`
	Rationale   string              `json:"rationale"`
}

// CreateStatement stores a new DRAFT statement
func (uc *AppetiteUseCase) CreateStatement(ctx context.Context, orgID, actor string, in StatementInput) (*model.AppetiteStatement, error) {
	if err := uc.authorize(ctx, orgID); err != nil {
		return nil, err
	}

	now := uc.now()
	s := &model.AppetiteStatement{
		ID:        uc.newID(),
		OrgID:     orgID,
		Status:    types.StatementDraft,
		CreatedBy: actor,
		CreatedAt: now,
		UpdatedAt: now,
	}
	in.apply(s)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := uc.repo.Appetite().CreateStatement(ctx, s); err != nil {
		return nil, goerr.Wrap(err, "failed to create appetite statement", goerr.V(model.OrgIDKey, orgID))
	}
	return s, nil
}

// UpdateStatement edits a DRAFT statement. Approved statements are
// immutable; a change needs a new draft.
func (uc *AppetiteUseCase) UpdateStatement(ctx context.Context, orgID, id string, in StatementInput) (*model.AppetiteStatement, error) {
	if err := uc.authorize(ctx, orgID); err != nil {
		return nil, err
	}

	s, err := uc.repo.Appetite().GetStatement(ctx, orgID, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get appetite statement", goerr.V(model.StatementIDKey, id))
	}
	if s.Status != types.StatementDraft {
		return nil, goerr.Wrap(model.ErrValidation, "only draft statements can be edited",
			goerr.V(model.StatementIDKey, id), goerr.V(model.CurrentKey, s.Status))
	}

	in.apply(s)
	s.UpdatedAt = uc.now()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := uc.repo.Appetite().UpdateStatement(ctx, s, types.StatementDraft); err != nil {
		return nil, goerr.Wrap(err, "failed to update appetite statement", goerr.V(model.StatementIDKey, id))
	}
	return s, nil
}

// ApproveStatement approves a DRAFT statement and supersedes the one
// approved before it
func (uc *AppetiteUseCase) ApproveStatement(ctx context.Context, orgID, id, approver string) (*model.AppetiteStatement, error) {
	if err := uc.authorize(ctx, orgID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(approver) == "" {
		return nil, goerr.Wrap(model.ErrValidation, "approver is required")
	}

	s, err := uc.repo.Appetite().GetStatement(ctx, orgID, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get appetite statement", goerr.V(model.StatementIDKey, id))
	}
	if !s.Status.CanTransitionTo(types.StatementApproved) {
		return nil, goerr.Wrap(model.ErrValidation, "only draft statements can be approved",
			goerr.V(model.StatementIDKey, id), goerr.V(model.CurrentKey, s.Status))
	}

	approved, err := uc.repo.Appetite().ApproveStatement(ctx, orgID, id, approver, uc.now())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to approve appetite statement", goerr.V(model.StatementIDKey, id))
	}

	logging.From(ctx).Info("appetite statement approved",
		"org_id", orgID, "statement_id", id, "version", approved.Version, "approver", approver)
	return approved, nil
}

// ArchiveStatement retires a DRAFT or SUPERSEDED statement
func (uc *AppetiteUseCase) ArchiveStatement(ctx context.Context, orgID, id string) (*model.AppetiteStatement, error) {
	if err := uc.authorize(ctx, orgID); err != nil {
		return nil, err
	}

	s, err := uc.repo.Appetite().GetStatement(ctx, orgID, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get appetite statement", goerr.V(model.StatementIDKey, id))
	}
	if !s.Status.CanTransitionTo(types.StatementArchived) {
		return nil, goerr.Wrap(model.ErrValidation, "statement cannot be archived",
			goerr.V(model.StatementIDKey, id), goerr.V(model.CurrentKey, s.Status))
	}

	prev := s.Status
	s.Status = types.StatementArchived
	s.UpdatedAt = uc.now()
	if err := uc.repo.Appetite().UpdateStatement(ctx, s, prev); err != nil {
		return nil, goerr.Wrap(err, "failed to archive appetite statement", goerr.V(model.StatementIDKey, id))
	}
	return s, nil
}

func (uc *AppetiteUseCase) GetStatement(ctx context.Context, orgID, id string) (*model.AppetiteStatement, error) {
	s, err := uc.repo.Appetite().GetStatement(ctx, orgID, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get appetite statement", goerr.V(model.StatementIDKey, id))
	}
	return s, nil
}

func (uc *AppetiteUseCase) ListStatements(ctx context.Context, orgID string) ([]*model.AppetiteStatement, error) {
	list, err := uc.repo.Appetite().ListStatements(ctx, orgID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list appetite statements", goerr.V(model.OrgIDKey, orgID))
	}
	return list, nil
}

// CreateCategory sets the appetite of a top-level category under an
// approved statement
func (uc *AppetiteUseCase) CreateCategory(ctx context.Context, orgID string, in AppetiteCategoryInput) (*model.AppetiteCategory, error) {
	if err := uc.authorize(ctx, orgID); err != nil {
		return nil, err
	}

	now := uc.now()
	cat := &model.AppetiteCategory{
		ID:          uc.newID(),
		OrgID:       orgID,
		StatementID: in.StatementID,
		CategoryID:  in.CategoryID,
		Level:       in.Level,
		Rationale:   in.Rationale,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	if uc.cfg.FindCategory(cat.CategoryID) == nil {
		return nil, goerr.Wrap(model.ErrValidation, "appetite is set on top-level categories only",
			goerr.V("category_id", cat.CategoryID))
	}

	s, err := uc.repo.Appetite().GetStatement(ctx, orgID, cat.StatementID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get appetite statement", goerr.V(model.StatementIDKey, cat.StatementID))
	}
	if s.Status != types.StatementApproved {
		return nil, goerr.Wrap(model.ErrValidation, "appetite categories need an approved statement",
			goerr.V(model.StatementIDKey, s.ID), goerr.V(model.CurrentKey, s.Status))
	}

	if err := uc.repo.Appetite().CreateCategory(ctx, cat); err != nil {
		return nil, goerr.Wrap(err, "failed to create appetite category", goerr.V(model.StatementIDKey, cat.StatementID))
	}
	return cat, nil
}

// UpdateCategory changes the level and rationale. The statement and
// category of an appetite never change.
func (uc *AppetiteUseCase) UpdateCategory(ctx context.Context, orgID, id string, level types.AppetiteLevel, rationale string) (*model.AppetiteCategory, error) {
	if err := uc.authorize(ctx, orgID); err != nil {
		return nil, err
	}

	cat, err := uc.repo.Appetite().GetCategory(ctx, orgID, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get appetite category", goerr.V("appetite_category_id", id))
	}
	cat.Level = level
	cat.Rationale = rationale
	cat.UpdatedAt = uc.now()
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	if err := uc.repo.Appetite().UpdateCategory(ctx, cat); err != nil {
		return nil, goerr.Wrap(err, "failed to update appetite category", goerr.V("appetite_category_id", id))
	}
	return cat, nil
}

// DeleteCategory fails while tolerance configurations belong to it
func (uc *AppetiteUseCase) DeleteCategory(ctx context.Context, orgID, id string) error {
	if err := uc.authorize(ctx, orgID); err != nil {
		return err
	}
	if err := uc.repo.Appetite().DeleteCategory(ctx, orgID, id); err != nil {
		return goerr.Wrap(err, "failed to delete appetite category", goerr.V("appetite_category_id", id))
	}
	return nil
}

func (uc *AppetiteUseCase) ListCategories(ctx context.Context, orgID string) ([]*model.AppetiteCategory, error) {
	list, err := uc.repo.Appetite().ListCategories(ctx, orgID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list appetite categories", goerr.V(model.OrgIDKey, orgID))
	}
	return list, nil
}
