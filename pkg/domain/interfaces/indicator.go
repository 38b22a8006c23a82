package interfaces

import (
	"context"

	"github.com/secmon-lab/riskregister/pkg/domain/model"
)

type IndicatorRepository interface {
	// Create inserts an indicator whose ID is already generated. Returns
	// model.ErrDuplicateCode when the ID is taken.
	Create(ctx context.Context, indicator *model.Indicator) error
	Get(ctx context.Context, orgID, id string) (*model.Indicator, error)
	List(ctx context.Context, orgID string) ([]*model.Indicator, error)
	Update(ctx context.Context, indicator *model.Indicator) error
	Delete(ctx context.Context, orgID, id string) error

	// AddMeasurement appends a measurement. Measurements are never updated.
	AddMeasurement(ctx context.Context, m *model.Measurement) error

	// ListMeasurements returns up to limit measurements, newest first.
	// limit <= 0 returns all.
	ListMeasurements(ctx context.Context, orgID, indicatorID string, limit int) ([]*model.Measurement, error)
}

type AlertRepository interface {
	// CreateIfNoneActive stores alert unless an Open or Acknowledged alert
	// exists for the same indicator, in which case that alert is returned
	// and created is false.
	CreateIfNoneActive(ctx context.Context, alert *model.Alert) (stored *model.Alert, created bool, err error)

	Get(ctx context.Context, orgID, id string) (*model.Alert, error)

	// List returns alerts of an organization, newest first
	List(ctx context.Context, orgID string) ([]*model.Alert, error)

	// Update stores a transitioned alert if the stored version still
	// equals expectedVersion, otherwise returns
	// model.ErrConcurrentModification.
	Update(ctx context.Context, alert *model.Alert, expectedVersion int) error
}
