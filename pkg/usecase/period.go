package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
	"github.com/secmon-lab/riskregister/pkg/utils/async"
	"github.com/secmon-lab/riskregister/pkg/utils/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

type PeriodUseCase struct {
	*core
}

// InitializePeriod sets the first active period of an organization. It
// fails with model.ErrConflict once a period is set.
func (uc *PeriodUseCase) InitializePeriod(ctx context.Context, orgID string, period types.Period) (*model.PeriodPointer, error) {
	if err := uc.authorize(ctx, orgID); err != nil {
		return nil, err
	}
	if err := period.Validate(); err != nil {
		return nil, goerr.Wrap(model.ErrValidation, "invalid period",
			goerr.V(model.PeriodKey, period.String()), goerr.V("reason", err.Error()))
	}

	pointer := &model.PeriodPointer{OrgID: orgID, Active: period, UpdatedAt: uc.now()}
	if err := uc.repo.Period().InitPointer(ctx, pointer); err != nil {
		return nil, goerr.Wrap(err, "failed to initialize period", goerr.V(model.OrgIDKey, orgID))
	}
	return pointer, nil
}

func (uc *PeriodUseCase) GetActivePeriod(ctx context.Context, orgID string) (*model.PeriodPointer, error) {
	p, err := uc.repo.Period().GetPointer(ctx, orgID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get active period", goerr.V(model.OrgIDKey, orgID))
	}
	return p, nil
}

// CommitPeriod freezes every active risk of the organization into an
// immutable snapshot and advances the active period, all in one atomic
// unit. Committing the same period again fails with
// model.ErrAlreadyCommitted and writes nothing.
func (uc *PeriodUseCase) CommitPeriod(ctx context.Context, orgID string, period types.Period, actor, note string) (*model.CommitResult, error) {
	ctx, span := tracer.Start(ctx, "CommitPeriod", trace.WithAttributes(
		attribute.String("org_id", orgID),
		attribute.String("period", period.String()),
	))
	defer span.End()

	if err := uc.authorize(ctx, orgID); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	req := model.CommitRequest{OrgID: orgID, Period: period, Actor: actor, Note: note, At: uc.now()}
	if err := req.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	plan, err := uc.repo.Period().Commit(ctx, orgID, period, func(state *model.RegisterState) (*model.CommitPlan, error) {
		return model.BuildCommit(req, state, uc.newID)
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, goerr.Wrap(err, "failed to commit period",
			goerr.V(model.OrgIDKey, orgID), goerr.V(model.PeriodKey, period.String()))
	}

	logging.From(ctx).Info("period committed",
		"org_id", orgID,
		"period", period.String(),
		"next_period", plan.Pointer.Active.String(),
		"snapshots", len(plan.Snapshots),
		"actor", actor,
	)
	span.SetAttributes(attribute.Int("snapshots", len(plan.Snapshots)))

	if uc.archiver != nil {
		commit, snapshots := plan.Commit, plan.Snapshots
		async.Dispatch(ctx, func(ctx context.Context) error {
			return uc.archiver.Archive(ctx, commit, snapshots)
		})
	}
	if uc.notifier != nil {
		commit := plan.Commit
		async.Dispatch(ctx, func(ctx context.Context) error {
			return uc.notifier.NotifyCommit(ctx, commit)
		})
	}

	return &model.CommitResult{
		Commit:        plan.Commit,
		SnapshotCount: len(plan.Snapshots),
		ActivePeriod:  plan.Pointer.Active,
	}, nil
}

func (uc *PeriodUseCase) GetCommit(ctx context.Context, orgID string, period types.Period) (*model.PeriodCommit, error) {
	c, err := uc.repo.Period().GetCommit(ctx, orgID, period)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get period commit", goerr.V(model.PeriodKey, period.String()))
	}
	return c, nil
}

func (uc *PeriodUseCase) ListCommits(ctx context.Context, orgID string) ([]*model.PeriodCommit, error) {
	list, err := uc.repo.Period().ListCommits(ctx, orgID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list period commits", goerr.V(model.OrgIDKey, orgID))
	}
	return list, nil
}

// GetHistoricalSnapshot returns the frozen risks of a committed period
func (uc *PeriodUseCase) GetHistoricalSnapshot(ctx context.Context, orgID string, period types.Period) ([]*model.RiskSnapshot, error) {
	snaps, err := uc.repo.Period().ListSnapshots(ctx, orgID, period)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get historical snapshot", goerr.V(model.PeriodKey, period.String()))
	}
	return snaps, nil
}

// CompareSnapshots diffs two committed periods
func (uc *PeriodUseCase) CompareSnapshots(ctx context.Context, orgID string, from, to types.Period) (*model.SnapshotComparison, error) {
	var a, b []*model.RiskSnapshot
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		a, err = uc.GetHistoricalSnapshot(egCtx, orgID, from)
		return err
	})
	eg.Go(func() error {
		var err error
		b, err = uc.GetHistoricalSnapshot(egCtx, orgID, to)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return model.CompareSnapshots(from, to, a, b), nil
}
