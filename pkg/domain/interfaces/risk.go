package interfaces

import (
	"context"

	"github.com/secmon-lab/riskregister/pkg/domain/model"
)

type RiskRepository interface {
	// Create inserts a risk whose ID is already generated. Returns
	// model.ErrDuplicateCode when the ID is taken.
	Create(ctx context.Context, risk *model.Risk) error

	// Get retrieves a risk by ID
	Get(ctx context.Context, orgID, id string) (*model.Risk, error)

	// List retrieves all risks of an organization, including inactive ones
	List(ctx context.Context, orgID string) ([]*model.Risk, error)

	// Update replaces the mutable fields of an existing risk
	Update(ctx context.Context, risk *model.Risk) error

	// Delete removes the risk and its control links. When a snapshot of
	// the risk exists it is soft-closed instead and softClosed is true.
	// Linked controls are never deleted.
	Delete(ctx context.Context, orgID, id string) (softClosed bool, err error)

	// Link associates a control with a risk. Linking twice is a no-op.
	// Returns model.ErrNotFound when either side does not exist.
	Link(ctx context.Context, link *model.RiskControlLink) error

	// Unlink removes an association
	Unlink(ctx context.Context, orgID, riskID, controlID string) error

	// LinksByRisk lists the controls linked to a risk
	LinksByRisk(ctx context.Context, orgID, riskID string) ([]*model.RiskControlLink, error)

	// LinksByControl lists the risks linked to a control
	LinksByControl(ctx context.Context, orgID, controlID string) ([]*model.RiskControlLink, error)
}

type ControlRepository interface {
	// Create inserts a control whose ID is already generated. Returns
	// model.ErrDuplicateCode when the ID is taken.
	Create(ctx context.Context, control *model.Control) error
	Get(ctx context.Context, orgID, id string) (*model.Control, error)
	List(ctx context.Context, orgID string) ([]*model.Control, error)
	Update(ctx context.Context, control *model.Control) error

	// Delete removes a control. Returns model.ErrConflict while it is
	// still linked to a risk.
	Delete(ctx context.Context, orgID, id string) error
}
