package interfaces

import (
	"context"
	"time"

	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

type AppetiteRepository interface {
	CreateStatement(ctx context.Context, s *model.AppetiteStatement) error
	GetStatement(ctx context.Context, orgID, id string) (*model.AppetiteStatement, error)
	ListStatements(ctx context.Context, orgID string) ([]*model.AppetiteStatement, error)

	// UpdateStatement stores s if the stored status still equals expected,
	// otherwise returns model.ErrConcurrentModification
	UpdateStatement(ctx context.Context, s *model.AppetiteStatement, expected types.StatementStatus) error

	// ApproveStatement atomically moves a DRAFT statement to APPROVED,
	// assigns the next version number and supersedes the statement that
	// was approved before it
	ApproveStatement(ctx context.Context, orgID, id, approver string, at time.Time) (*model.AppetiteStatement, error)

	// CreateCategory returns model.ErrConflict when the statement already
	// has an appetite for the category
	CreateCategory(ctx context.Context, c *model.AppetiteCategory) error
	GetCategory(ctx context.Context, orgID, id string) (*model.AppetiteCategory, error)
	ListCategories(ctx context.Context, orgID string) ([]*model.AppetiteCategory, error)
	UpdateCategory(ctx context.Context, c *model.AppetiteCategory) error
	DeleteCategory(ctx context.Context, orgID, id string) error
}

type ToleranceRepository interface {
	// Create returns model.ErrConflict when the referenced indicator is
	// already governed by another configuration
	Create(ctx context.Context, cfg *model.ToleranceConfig) error
	Get(ctx context.Context, orgID, id string) (*model.ToleranceConfig, error)
	List(ctx context.Context, orgID string) ([]*model.ToleranceConfig, error)

	// Update has the same indicator rule as Create
	Update(ctx context.Context, cfg *model.ToleranceConfig) error
	Delete(ctx context.Context, orgID, id string) error

	// FindByIndicator returns the configuration governing an indicator or
	// model.ErrNotFound
	FindByIndicator(ctx context.Context, orgID, indicatorID string) (*model.ToleranceConfig, error)

	AddReading(ctx context.Context, r *model.ToleranceReading) error

	// ListReadings returns up to limit readings, newest first. limit <= 0
	// returns all.
	ListReadings(ctx context.Context, orgID, toleranceID string, limit int) ([]*model.ToleranceReading, error)
}

type BreachRepository interface {
	// CreateIfNotSuppressed stores breach unless another breach of the
	// same tolerance suppresses it at breach.DetectedAt (see
	// model.Breach.Suppresses). The suppressing breach is returned with
	// created false.
	CreateIfNotSuppressed(ctx context.Context, breach *model.Breach) (stored *model.Breach, created bool, err error)

	Get(ctx context.Context, orgID, id string) (*model.Breach, error)

	// List returns breaches of an organization, newest first
	List(ctx context.Context, orgID string) ([]*model.Breach, error)

	// Update stores a transitioned breach if the stored version still
	// equals expectedVersion, otherwise returns
	// model.ErrConcurrentModification.
	Update(ctx context.Context, breach *model.Breach, expectedVersion int) error
}
