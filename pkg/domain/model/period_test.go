package model_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func TestBuildCommit(t *testing.T) {
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	q1 := types.Period{Year: 2025, Quarter: 1}

	state := &model.RegisterState{
		Risks: []*model.Risk{
			{ID: "FIN-OPS-002", InherentLikelihood: 3, InherentImpact: 3, Status: types.RiskStatusClosed, IsActive: true, IncidentCount: 2},
			{ID: "FIN-OPS-001", InherentLikelihood: 4, InherentImpact: 5, Status: types.RiskStatusOpen, IsActive: true},
			{ID: "FIN-OPS-003", InherentLikelihood: 5, InherentImpact: 5, Status: types.RiskStatusOpen, IsActive: false},
		},
		Controls: map[string]*model.Control{
			"CTL-001": newControl(types.TargetLikelihood, 3, 3, 2, 1),
		},
		Links: map[string][]string{
			"FIN-OPS-001": {"CTL-001", "CTL-404"},
		},
		IndicatorCounts: map[string]int{"FIN-OPS-001": 2},
	}
	req := model.CommitRequest{OrgID: "acme", Period: q1, Actor: "admin", Note: "Q1 close", At: now}

	t.Run("first commit bootstraps the pointer", func(t *testing.T) {
		plan, err := model.BuildCommit(req, state, sequentialIDs())
		gt.NoError(t, err).Required()

		gt.Array(t, plan.Snapshots).Length(2)
		first := plan.Snapshots[0]
		gt.Value(t, first.RiskID).Equal("FIN-OPS-001")
		gt.Value(t, first.ResidualScore).Equal(10)
		gt.Value(t, first.ControlCount).Equal(1)
		gt.Value(t, first.IndicatorCount).Equal(2)
		gt.Value(t, first.CommitID).Equal(plan.Commit.ID)
		gt.Value(t, plan.Snapshots[1].IncidentCount).Equal(2)

		gt.Value(t, plan.Commit.RiskCount).Equal(2)
		gt.Value(t, plan.Commit.OpenCount).Equal(1)
		gt.Value(t, plan.Commit.ClosedCount).Equal(1)
		gt.Value(t, plan.Commit.TotalInherent).Equal(29)
		gt.Value(t, plan.Commit.TotalResidual).Equal(19)

		gt.Value(t, plan.Pointer.Active).Equal(types.Period{Year: 2025, Quarter: 2})
		gt.Value(t, *plan.Pointer.Previous).Equal(q1)
	})

	t.Run("period must be the active one", func(t *testing.T) {
		s := *state
		s.Pointer = &model.PeriodPointer{OrgID: "acme", Active: types.Period{Year: 2025, Quarter: 2}}
		_, err := model.BuildCommit(req, &s, sequentialIDs())
		gt.Error(t, err).Is(model.ErrValidation)
	})

	t.Run("Q4 wraps into next year", func(t *testing.T) {
		s := *state
		q4 := types.Period{Year: 2025, Quarter: 4}
		s.Pointer = &model.PeriodPointer{OrgID: "acme", Active: q4}
		r := req
		r.Period = q4
		plan, err := model.BuildCommit(r, &s, sequentialIDs())
		gt.NoError(t, err).Required()
		gt.Value(t, plan.Pointer.Active).Equal(types.Period{Year: 2026, Quarter: 1})
		gt.Value(t, plan.Commit.NextPeriod).Equal(types.Period{Year: 2026, Quarter: 1})
	})

	t.Run("actor is required", func(t *testing.T) {
		r := req
		r.Actor = ""
		_, err := model.BuildCommit(r, state, sequentialIDs())
		gt.Error(t, err).Is(model.ErrValidation)
	})

	t.Run("live risks are not modified", func(t *testing.T) {
		_, err := model.BuildCommit(req, state, sequentialIDs())
		gt.NoError(t, err).Required()
		gt.Array(t, state.Risks).Length(3)
		gt.Value(t, state.Risks[0].ID).Equal("FIN-OPS-002")
	})
}
