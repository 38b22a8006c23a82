package usecase_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
	"github.com/secmon-lab/riskregister/pkg/usecase"
)

func TestAppetiteUseCase_StatementLifecycle(t *testing.T) {
	uc, _ := newTestUseCases(t)
	ctx := context.Background()

	first, err := uc.Appetite.CreateStatement(ctx, testOrgID, "board", usecase.StatementInput{Title: "FY26"})
	gt.NoError(t, err).Required()
	gt.Value(t, first.Status).Equal(types.StatementDraft)

	edited, err := uc.Appetite.UpdateStatement(ctx, testOrgID, first.ID, usecase.StatementInput{Title: "FY26 v1", Body: "Low appetite for outages"})
	gt.NoError(t, err).Required()
	gt.Value(t, edited.Title).Equal("FY26 v1")

	approved, err := uc.Appetite.ApproveStatement(ctx, testOrgID, first.ID, "chair")
	gt.NoError(t, err).Required()
	gt.Value(t, approved.Status).Equal(types.StatementApproved)
	gt.Number(t, approved.Version).Equal(1)
	gt.Value(t, approved.ApprovedBy).Equal("chair")

	t.Run("approved statement is immutable", func(t *testing.T) {
		_, err := uc.Appetite.UpdateStatement(ctx, testOrgID, first.ID, usecase.StatementInput{Title: "changed"})
		gt.Error(t, err).Is(model.ErrValidation)

		_, err = uc.Appetite.ApproveStatement(ctx, testOrgID, first.ID, "chair")
		gt.Error(t, err).Is(model.ErrValidation)

		_, err = uc.Appetite.ArchiveStatement(ctx, testOrgID, first.ID)
		gt.Error(t, err).Is(model.ErrValidation)
	})

	t.Run("approving a new draft supersedes the old one", func(t *testing.T) {
		second, err := uc.Appetite.CreateStatement(ctx, testOrgID, "board", usecase.StatementInput{Title: "FY27"})
		gt.NoError(t, err).Required()
		approved, err := uc.Appetite.ApproveStatement(ctx, testOrgID, second.ID, "chair")
		gt.NoError(t, err).Required()
		gt.Number(t, approved.Version).Equal(2)

		old, err := uc.Appetite.GetStatement(ctx, testOrgID, first.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, old.Status).Equal(types.StatementSuperseded)

		archived, err := uc.Appetite.ArchiveStatement(ctx, testOrgID, first.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, archived.Status).Equal(types.StatementArchived)
	})

	t.Run("approver is required", func(t *testing.T) {
		draft, err := uc.Appetite.CreateStatement(ctx, testOrgID, "board", usecase.StatementInput{Title: "FY28"})
		gt.NoError(t, err).Required()
		_, err = uc.Appetite.ApproveStatement(ctx, testOrgID, draft.ID, " ")
		gt.Error(t, err).Is(model.ErrValidation)
	})
}

func TestAppetiteUseCase_Categories(t *testing.T) {
	uc, _ := newTestUseCases(t)
	ctx := context.Background()

	draft, err := uc.Appetite.CreateStatement(ctx, testOrgID, "board", usecase.StatementInput{Title: "FY26"})
	gt.NoError(t, err).Required()

	t.Run("draft statement cannot carry appetite", func(t *testing.T) {
		_, err := uc.Appetite.CreateCategory(ctx, testOrgID, usecase.AppetiteCategoryInput{
			StatementID: draft.ID,
			CategoryID:  "operational",
			Level:       types.AppetiteLow,
		})
		gt.Error(t, err).Is(model.ErrValidation)
	})

	_, err = uc.Appetite.ApproveStatement(ctx, testOrgID, draft.ID, "chair")
	gt.NoError(t, err).Required()

	t.Run("subcategories cannot carry appetite", func(t *testing.T) {
		_, err := uc.Appetite.CreateCategory(ctx, testOrgID, usecase.AppetiteCategoryInput{
			StatementID: draft.ID,
			CategoryID:  "process-failure",
			Level:       types.AppetiteLow,
		})
		gt.Error(t, err).Is(model.ErrValidation)
	})

	t.Run("one appetite per category and statement", func(t *testing.T) {
		cat, err := uc.Appetite.CreateCategory(ctx, testOrgID, usecase.AppetiteCategoryInput{
			StatementID: draft.ID,
			CategoryID:  "technology",
			Level:       types.AppetiteModerate,
			Rationale:   "growth",
		})
		gt.NoError(t, err).Required()

		_, err = uc.Appetite.CreateCategory(ctx, testOrgID, usecase.AppetiteCategoryInput{
			StatementID: draft.ID,
			CategoryID:  "technology",
			Level:       types.AppetiteHigh,
		})
		gt.Error(t, err).Is(model.ErrConflict)

		updated, err := uc.Appetite.UpdateCategory(ctx, testOrgID, cat.ID, types.AppetiteZero, "after outage")
		gt.NoError(t, err).Required()
		gt.Value(t, updated.Level).Equal(types.AppetiteZero)
	})

	t.Run("category with tolerances cannot be deleted", func(t *testing.T) {
		cat, err := uc.Appetite.CreateCategory(ctx, testOrgID, usecase.AppetiteCategoryInput{
			StatementID: draft.ID,
			CategoryID:  "operational",
			Level:       types.AppetiteLow,
		})
		gt.NoError(t, err).Required()
		tol := createTolerance(t, uc, cat.ID, "", types.MetricTypeMaximum, model.Thresholds{Values: []float64{1, 2}})

		gt.Error(t, uc.Appetite.DeleteCategory(ctx, testOrgID, cat.ID)).Is(model.ErrConflict)

		gt.NoError(t, uc.Tolerance.DeleteTolerance(ctx, testOrgID, tol.ID)).Required()
		gt.NoError(t, uc.Appetite.DeleteCategory(ctx, testOrgID, cat.ID)).Required()
	})
}
