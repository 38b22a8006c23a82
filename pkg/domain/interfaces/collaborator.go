package interfaces

import (
	"context"

	"github.com/secmon-lab/riskregister/pkg/domain/model"
)

// Authorizer decides whether the caller in ctx may write to an
// organization's data
type Authorizer interface {
	MayWrite(ctx context.Context, orgID string) bool
}

// Notifier delivers lifecycle events to people. Delivery is best-effort.
type Notifier interface {
	NotifyAlert(ctx context.Context, alert *model.Alert, indicator *model.Indicator) error
	NotifyBreach(ctx context.Context, breach *model.Breach, cfg *model.ToleranceConfig) error
	NotifyCommit(ctx context.Context, commit *model.PeriodCommit) error
}

// SuggestionProvider proposes drafts. Its output is untrusted.
type SuggestionProvider interface {
	SuggestThresholds(ctx context.Context, indicator *model.Indicator, history []*model.Measurement) ([]model.ThresholdSuggestion, error)
	SuggestControls(ctx context.Context, risk *model.Risk, existing []*model.Control) ([]model.ControlSuggestion, error)
}

// SnapshotArchiver exports a committed period outside the register
type SnapshotArchiver interface {
	Archive(ctx context.Context, commit *model.PeriodCommit, snapshots []*model.RiskSnapshot) error
}
