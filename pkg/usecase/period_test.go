package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
	"github.com/secmon-lab/riskregister/pkg/usecase"
)

var (
	q1 = types.Period{Year: 2026, Quarter: 1}
	q2 = types.Period{Year: 2026, Quarter: 2}
	q3 = types.Period{Year: 2026, Quarter: 3}
)

func TestPeriodUseCase_CommitPeriod(t *testing.T) {
	archived := make(chan int, 1)
	archiver := &mockArchiver{
		ArchiveFunc: func(ctx context.Context, commit *model.PeriodCommit, snapshots []*model.RiskSnapshot) error {
			archived <- len(snapshots)
			return nil
		},
	}
	notifier := newMockNotifier()
	uc, _ := newTestUseCases(t, usecase.WithArchiver(archiver), usecase.WithNotifier(notifier))
	ctx := context.Background()

	_, err := uc.Period.InitializePeriod(ctx, testOrgID, q1)
	gt.NoError(t, err).Required()

	controlled := createRisk(t, uc, 4, 5)
	createRisk(t, uc, 4, 5)
	ctl := createControl(t, uc, types.TargetLikelihood, model.DIMEScore{Design: 3, Implementation: 3, Monitoring: 2, Evaluation: 1})
	gt.NoError(t, uc.Control.LinkControl(ctx, testOrgID, controlled.ID, ctl.ID)).Required()

	result, err := uc.Period.CommitPeriod(ctx, testOrgID, q1, "cro", "quarter close")
	gt.NoError(t, err).Required()
	gt.Number(t, result.SnapshotCount).Equal(2)
	gt.Value(t, result.ActivePeriod).Equal(q2)
	gt.Number(t, result.Commit.TotalInherent).Equal(40)
	gt.Number(t, result.Commit.TotalResidual).Equal(30)
	gt.Number(t, result.Commit.OpenCount).Equal(2)

	select {
	case n := <-archived:
		gt.Number(t, n).Equal(2)
	case <-time.After(3 * time.Second):
		t.Fatal("snapshots were not archived")
	}
	notifier.wait(t, 1)

	t.Run("snapshots are frozen", func(t *testing.T) {
		_, err := uc.Risk.UpdateRisk(ctx, testOrgID, controlled.ID, usecase.RiskInput{
			Title:              "changed",
			CategoryID:         "operational",
			DivisionID:         "finance",
			InherentLikelihood: 1,
			InherentImpact:     1,
		})
		gt.NoError(t, err).Required()

		snaps, err := uc.Period.GetHistoricalSnapshot(ctx, testOrgID, q1)
		gt.NoError(t, err).Required()
		gt.Array(t, snaps).Length(2).Required()
		gt.Value(t, snaps[0].RiskID).Equal(controlled.ID)
		gt.Number(t, snaps[0].InherentScore).Equal(20)
		gt.Number(t, snaps[0].ResidualScore).Equal(10)
		gt.Number(t, snaps[0].ControlCount).Equal(1)
	})

	t.Run("committing twice fails without writing", func(t *testing.T) {
		_, err := uc.Period.CommitPeriod(ctx, testOrgID, q1, "cro", "again")
		gt.Error(t, err).Is(model.ErrAlreadyCommitted)

		commits, err := uc.Period.ListCommits(ctx, testOrgID)
		gt.NoError(t, err).Required()
		gt.Array(t, commits).Length(1)

		snaps, err := uc.Period.GetHistoricalSnapshot(ctx, testOrgID, q1)
		gt.NoError(t, err).Required()
		gt.Array(t, snaps).Length(2)
	})

	t.Run("only the active period can be committed", func(t *testing.T) {
		_, err := uc.Period.CommitPeriod(ctx, testOrgID, q3, "cro", "skip")
		gt.Error(t, err).Is(model.ErrValidation)

		active, err := uc.Period.GetActivePeriod(ctx, testOrgID)
		gt.NoError(t, err).Required()
		gt.Value(t, active.Active).Equal(q2)
	})

	t.Run("actor is required", func(t *testing.T) {
		_, err := uc.Period.CommitPeriod(ctx, testOrgID, q2, "", "anonymous")
		gt.Error(t, err).Is(model.ErrValidation)
	})

	t.Run("deleting a snapshotted risk closes it", func(t *testing.T) {
		softClosed, err := uc.Risk.DeleteRisk(ctx, testOrgID, controlled.ID)
		gt.NoError(t, err).Required()
		gt.Bool(t, softClosed).True()

		risk, err := uc.Risk.GetRisk(ctx, testOrgID, controlled.ID)
		gt.NoError(t, err).Required()
		gt.Bool(t, risk.IsActive).False()
		gt.Value(t, risk.Status).Equal(types.RiskStatusClosed)

		_, err = uc.Risk.UpdateRisk(ctx, testOrgID, controlled.ID, usecase.RiskInput{
			Title:              "revive",
			CategoryID:         "operational",
			DivisionID:         "finance",
			InherentLikelihood: 1,
			InherentImpact:     1,
		})
		gt.Error(t, err).Is(model.ErrValidation)
	})
}

func TestPeriodUseCase_ConcurrentCommit(t *testing.T) {
	uc, _ := newTestUseCases(t)
	ctx := context.Background()
	createRisk(t, uc, 2, 2)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = uc.Period.CommitPeriod(ctx, testOrgID, q1, "cro", "race")
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		gt.Error(t, err).Is(model.ErrAlreadyCommitted)
	}
	gt.Number(t, succeeded).Equal(1)
}

func TestPeriodUseCase_InitializePeriod(t *testing.T) {
	uc, _ := newTestUseCases(t)
	ctx := context.Background()

	_, err := uc.Period.GetActivePeriod(ctx, testOrgID)
	gt.Error(t, err).Is(model.ErrNotFound)

	_, err = uc.Period.InitializePeriod(ctx, testOrgID, types.Period{Year: 2026, Quarter: 5})
	gt.Error(t, err).Is(model.ErrValidation)

	p, err := uc.Period.InitializePeriod(ctx, testOrgID, q2)
	gt.NoError(t, err).Required()
	gt.Value(t, p.Active).Equal(q2)

	_, err = uc.Period.InitializePeriod(ctx, testOrgID, q3)
	gt.Error(t, err).Is(model.ErrConflict)
}

func TestPeriodUseCase_CompareSnapshots(t *testing.T) {
	uc, _ := newTestUseCases(t)
	ctx := context.Background()

	kept := createRisk(t, uc, 3, 3)
	dropped := createRisk(t, uc, 2, 2)
	_, err := uc.Period.CommitPeriod(ctx, testOrgID, q1, "cro", "Q1")
	gt.NoError(t, err).Required()

	_, err = uc.Risk.UpdateRisk(ctx, testOrgID, kept.ID, usecase.RiskInput{
		Title:              kept.Title,
		CategoryID:         kept.CategoryID,
		DivisionID:         kept.DivisionID,
		InherentLikelihood: 5,
		InherentImpact:     3,
	})
	gt.NoError(t, err).Required()
	_, err = uc.Risk.DeleteRisk(ctx, testOrgID, dropped.ID)
	gt.NoError(t, err).Required()
	added := createRisk(t, uc, 1, 1)

	_, err = uc.Period.CommitPeriod(ctx, testOrgID, q2, "cro", "Q2")
	gt.NoError(t, err).Required()

	cmp, err := uc.Period.CompareSnapshots(ctx, testOrgID, q1, q2)
	gt.NoError(t, err).Required()
	gt.Value(t, cmp.From).Equal(q1)
	gt.Value(t, cmp.To).Equal(q2)
	gt.Array(t, cmp.New).Length(1).Required()
	gt.Value(t, cmp.New[0].RiskID).Equal(added.ID)
	gt.Array(t, cmp.Closed).Length(1).Required()
	gt.Value(t, cmp.Closed[0].RiskID).Equal(dropped.ID)
	gt.Array(t, cmp.Changed).Length(1).Required()
	gt.Value(t, cmp.Changed[0].RiskID).Equal(kept.ID)

	t.Run("uncommitted period cannot be compared", func(t *testing.T) {
		_, err := uc.Period.CompareSnapshots(ctx, testOrgID, q2, q3)
		gt.Error(t, err).Is(model.ErrNotFound)
	})
}
