package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskregister/pkg/domain/interfaces"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
	"github.com/secmon-lab/riskregister/pkg/repository/firestore"
)

func runPeriodRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	q1 := types.Period{Year: 2025, Quarter: 1}
	q2 := types.Period{Year: 2025, Quarter: 2}

	t.Run("pointer is set once", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		orgID := newOrgID()

		_, err := repo.Period().GetPointer(ctx, orgID)
		gt.Error(t, err).Is(model.ErrNotFound)

		gt.NoError(t, repo.Period().InitPointer(ctx, &model.PeriodPointer{OrgID: orgID, Active: q1, UpdatedAt: now()})).Required()
		gt.Error(t, repo.Period().InitPointer(ctx, &model.PeriodPointer{OrgID: orgID, Active: q2, UpdatedAt: now()})).Is(model.ErrConflict)

		p, err := repo.Period().GetPointer(ctx, orgID)
		gt.NoError(t, err).Required()
		gt.Value(t, p.Active).Equal(q1)
		gt.Value(t, p.Previous).Nil()
	})

	t.Run("Commit writes snapshots and advances the pointer", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		orgID := newOrgID()

		gt.NoError(t, repo.Risk().Create(ctx, newRisk(orgID, "OPS-FIN-001"))).Required()
		gt.NoError(t, repo.Risk().Create(ctx, newRisk(orgID, "OPS-FIN-002"))).Required()
		inactive := newRisk(orgID, "OPS-FIN-003")
		inactive.IsActive = false
		gt.NoError(t, repo.Risk().Create(ctx, inactive)).Required()
		gt.NoError(t, repo.Control().Create(ctx, newControl(orgID, "CTL-001"))).Required()
		gt.NoError(t, repo.Risk().Link(ctx, &model.RiskControlLink{OrgID: orgID, RiskID: "OPS-FIN-001", ControlID: "CTL-001", CreatedAt: now()})).Required()
		gt.NoError(t, repo.Indicator().Create(ctx, newIndicator(orgID, "KRI-001", "OPS-FIN-001"))).Required()
		gt.NoError(t, repo.Period().InitPointer(ctx, &model.PeriodPointer{OrgID: orgID, Active: q1, UpdatedAt: now()})).Required()

		plan, err := commit(ctx, repo, orgID, q1)
		gt.NoError(t, err).Required()
		gt.Value(t, plan.Commit.RiskCount).Equal(2)
		gt.Array(t, plan.Snapshots).Length(2)

		snaps, err := repo.Period().ListSnapshots(ctx, orgID, q1)
		gt.NoError(t, err).Required()
		gt.Array(t, snaps).Length(2).Required()
		gt.Value(t, snaps[0].RiskID).Equal("OPS-FIN-001")
		gt.Value(t, snaps[0].ControlCount).Equal(1)
		gt.Value(t, snaps[0].IndicatorCount).Equal(1)
		gt.Value(t, snaps[0].InherentScore).Equal(20)
		gt.Bool(t, snaps[0].ResidualScore < snaps[0].InherentScore).True()
		gt.Value(t, snaps[1].RiskID).Equal("OPS-FIN-002")
		gt.Value(t, snaps[1].ResidualScore).Equal(20)

		p, err := repo.Period().GetPointer(ctx, orgID)
		gt.NoError(t, err).Required()
		gt.Value(t, p.Active).Equal(q2)
		gt.Value(t, p.Previous).NotNil().Required()
		gt.Value(t, *p.Previous).Equal(q1)

		c, err := repo.Period().GetCommit(ctx, orgID, q1)
		gt.NoError(t, err).Required()
		gt.Value(t, c.ID).Equal(plan.Commit.ID)
		gt.Value(t, c.NextPeriod).Equal(q2)

		_, err = repo.Period().ListSnapshots(ctx, orgID, q2)
		gt.Error(t, err).Is(model.ErrNotFound)
		_, err = repo.Period().GetCommit(ctx, orgID, q2)
		gt.Error(t, err).Is(model.ErrNotFound)
	})

	t.Run("Commit leaves live risk rows untouched", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		orgID := newOrgID()

		gt.NoError(t, repo.Risk().Create(ctx, newRisk(orgID, "OPS-FIN-001"))).Required()
		before, err := repo.Risk().Get(ctx, orgID, "OPS-FIN-001")
		gt.NoError(t, err).Required()

		_, err = commit(ctx, repo, orgID, q1)
		gt.NoError(t, err).Required()

		after, err := repo.Risk().Get(ctx, orgID, "OPS-FIN-001")
		gt.NoError(t, err).Required()
		gt.Value(t, *after).Equal(*before)

		softClosed, err := repo.Risk().Delete(ctx, orgID, "OPS-FIN-001")
		gt.NoError(t, err).Required()
		gt.True(t, softClosed)
	})

	t.Run("committing twice fails and writes nothing", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		orgID := newOrgID()

		gt.NoError(t, repo.Risk().Create(ctx, newRisk(orgID, "OPS-FIN-001"))).Required()
		_, err := commit(ctx, repo, orgID, q1)
		gt.NoError(t, err).Required()

		gt.NoError(t, repo.Risk().Create(ctx, newRisk(orgID, "OPS-FIN-002"))).Required()
		_, err = commit(ctx, repo, orgID, q1)
		gt.Error(t, err).Is(model.ErrAlreadyCommitted)

		snaps, err := repo.Period().ListSnapshots(ctx, orgID, q1)
		gt.NoError(t, err).Required()
		gt.Array(t, snaps).Length(1)
	})

	t.Run("commits are listed in period order", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		orgID := newOrgID()

		gt.NoError(t, repo.Risk().Create(ctx, newRisk(orgID, "OPS-FIN-001"))).Required()
		_, err := commit(ctx, repo, orgID, q1)
		gt.NoError(t, err).Required()
		_, err = commit(ctx, repo, orgID, q2)
		gt.NoError(t, err).Required()

		commits, err := repo.Period().ListCommits(ctx, orgID)
		gt.NoError(t, err).Required()
		gt.Array(t, commits).Length(2).Required()
		gt.Value(t, commits[0].Period).Equal(q1)
		gt.Value(t, commits[1].Period).Equal(q2)
	})

	t.Run("only one of concurrent commits succeeds", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		orgID := newOrgID()

		gt.NoError(t, repo.Risk().Create(ctx, newRisk(orgID, "OPS-FIN-001"))).Required()
		gt.NoError(t, repo.Period().InitPointer(ctx, &model.PeriodPointer{OrgID: orgID, Active: q1, UpdatedAt: now()})).Required()

		const workers = 5
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
			others    []error
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := commit(ctx, repo, orgID, q1)
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					succeeded++
					return
				}
				others = append(others, err)
			}()
		}
		wg.Wait()

		gt.Value(t, succeeded).Equal(1)
		for _, err := range others {
			gt.Error(t, err).Is(model.ErrAlreadyCommitted)
		}

		snaps, err := repo.Period().ListSnapshots(ctx, orgID, q1)
		gt.NoError(t, err).Required()
		gt.Array(t, snaps).Length(1)
	})

	t.Run("builder failure writes nothing", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		orgID := newOrgID()

		gt.NoError(t, repo.Risk().Create(ctx, newRisk(orgID, "OPS-FIN-001"))).Required()
		gt.NoError(t, repo.Period().InitPointer(ctx, &model.PeriodPointer{OrgID: orgID, Active: q1, UpdatedAt: now()})).Required()

		errBuild := errors.New("build failed")
		_, err := repo.Period().Commit(ctx, orgID, q1, func(state *model.RegisterState) (*model.CommitPlan, error) {
			gt.Array(t, state.Risks).Length(1)
			gt.Value(t, state.Pointer).NotNil()
			return nil, errBuild
		})
		gt.Error(t, err).Is(errBuild)

		_, err = repo.Period().GetCommit(ctx, orgID, q1)
		gt.Error(t, err).Is(model.ErrNotFound)
		p, err := repo.Period().GetPointer(ctx, orgID)
		gt.NoError(t, err).Required()
		gt.Value(t, p.Active).Equal(q1)

		// a later valid commit is not blocked
		_, err = commit(ctx, repo, orgID, q1)
		gt.NoError(t, err)
	})

	t.Run("committing a period other than the active one fails", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		orgID := newOrgID()

		gt.NoError(t, repo.Period().InitPointer(ctx, &model.PeriodPointer{OrgID: orgID, Active: q1, UpdatedAt: now()})).Required()
		_, err := commit(ctx, repo, orgID, q2)
		gt.Error(t, err).Is(model.ErrValidation)
	})

	t.Run("code counter hands out distinct values", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		orgID := newOrgID()

		const workers = 20
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			seen = make(map[int64]bool)
			errs []error
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				n, err := repo.CodeCounter().Next(ctx, orgID, "OPS-FIN")
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
					return
				}
				seen[n] = true
			}()
		}
		wg.Wait()

		gt.Array(t, errs).Length(0)
		gt.Value(t, len(seen)).Equal(workers)
		for n := range seen {
			gt.Bool(t, n >= 1 && n <= workers).True()
		}

		n, err := repo.CodeCounter().Next(ctx, orgID, "CTL")
		gt.NoError(t, err).Required()
		gt.Value(t, n).Equal(int64(1))
	})
}

func TestPeriodRepository_Memory(t *testing.T) {
	runPeriodRepositoryTest(t, newMemoryRepository)
}

func TestPeriodRepository_SQLite(t *testing.T) {
	runPeriodRepositoryTest(t, newSQLiteRepository)
}

func TestPeriodRepository_Postgres(t *testing.T) {
	runPeriodRepositoryTest(t, newPostgresRepository)
}

func TestPeriodRepository_Firestore(t *testing.T) {
	runPeriodRepositoryTest(t, newFirestoreRepository)
}

func TestCodeCounter_FirestoreContention(t *testing.T) {
	repo := newFirestoreRepositoryWith(t, firestore.WithCounterAttempts(1))
	ctx := context.Background()
	orgID := newOrgID()

	const workers = 30
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool)
		errs []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := repo.CodeCounter().Next(ctx, orgID, "OPS-FIN")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			gt.False(t, seen[n])
			seen[n] = true
		}()
	}
	wg.Wait()

	gt.Value(t, len(seen)+len(errs)).Equal(workers)
	for _, err := range errs {
		gt.Error(t, err).Is(model.ErrGenerationExhausted)
	}
}
