package usecase_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/model/auth"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
	"github.com/secmon-lab/riskregister/pkg/usecase"
)

func TestUseCases_Authorization(t *testing.T) {
	uc, _ := newTestUseCases(t, usecase.WithAuthorizer(auth.TokenAuthorizer{}))
	in := usecase.RiskInput{
		Title:              "Unauthorized",
		CategoryID:         "operational",
		DivisionID:         "finance",
		InherentLikelihood: 1,
		InherentImpact:     1,
	}

	t.Run("anonymous caller is denied", func(t *testing.T) {
		_, err := uc.Risk.CreateRisk(context.Background(), testOrgID, in)
		gt.Error(t, err).Is(model.ErrAccessDenied)
	})

	t.Run("token for another organization is denied", func(t *testing.T) {
		ctx := auth.ContextWithToken(context.Background(), &auth.Token{Subject: "mallory", WriteOrgs: []string{"other-org"}})
		_, err := uc.Period.CommitPeriod(ctx, testOrgID, types.Period{Year: 2026, Quarter: 1}, "mallory", "x")
		gt.Error(t, err).Is(model.ErrAccessDenied)

		commits, err := uc.Period.ListCommits(ctx, testOrgID)
		gt.NoError(t, err).Required()
		gt.Array(t, commits).Length(0)
	})

	t.Run("token for the organization is allowed", func(t *testing.T) {
		ctx := auth.ContextWithToken(context.Background(), &auth.Token{Subject: "alice", WriteOrgs: []string{testOrgID}})
		risk, err := uc.Risk.CreateRisk(ctx, testOrgID, in)
		gt.NoError(t, err).Required()
		gt.Value(t, risk.ID).Equal("FIN-OPS-001")
	})

	t.Run("organization is required", func(t *testing.T) {
		ctx := auth.ContextWithToken(context.Background(), &auth.Token{Subject: "root", WriteOrgs: []string{"*"}})
		_, err := uc.Risk.CreateRisk(ctx, "", in)
		gt.Error(t, err).Is(model.ErrValidation)
	})
}

func TestUseCases_RegisterConfig(t *testing.T) {
	uc, _ := newTestUseCases(t)
	cfg := uc.RegisterConfig()
	gt.Array(t, cfg.Categories).Length(2)
	gt.Number(t, cfg.MaxExceptionDays).Equal(365)
}
