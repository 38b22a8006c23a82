package interfaces

import (
	"context"

	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

// CommitBuilder turns the live register, read inside the commit
// transaction, into the records the commit writes
type CommitBuilder func(state *model.RegisterState) (*model.CommitPlan, error)

type PeriodRepository interface {
	// GetPointer returns the active period of an organization or
	// model.ErrNotFound before the first period is set
	GetPointer(ctx context.Context, orgID string) (*model.PeriodPointer, error)

	// InitPointer sets the first active period. Returns model.ErrConflict
	// when the organization already has one.
	InitPointer(ctx context.Context, pointer *model.PeriodPointer) error

	// Commit runs one atomic unit: fail with model.ErrAlreadyCommitted if
	// (orgID, period) is committed, load the register state, call build,
	// then write the snapshots, the commit row and the advanced pointer.
	// Nothing is written when any step fails.
	Commit(ctx context.Context, orgID string, period types.Period, build CommitBuilder) (*model.CommitPlan, error)

	GetCommit(ctx context.Context, orgID string, period types.Period) (*model.PeriodCommit, error)

	// ListCommits returns commits in period order
	ListCommits(ctx context.Context, orgID string) ([]*model.PeriodCommit, error)

	// ListSnapshots returns the snapshots of a committed period ordered by
	// risk ID
	ListSnapshots(ctx context.Context, orgID string, period types.Period) ([]*model.RiskSnapshot, error)
}
