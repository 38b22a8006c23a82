package firestore

import (
	"context"
	"sort"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

const (
	indicatorsCollection   = "indicators"
	measurementsCollection = "measurements"
	alertsCollection       = "alerts"
)

func sortLinks(links []*model.RiskControlLink) {
	sort.Slice(links, func(i, j int) bool {
		if links[i].RiskID != links[j].RiskID {
			return links[i].RiskID < links[j].RiskID
		}
		return links[i].ControlID < links[j].ControlID
	})
}

type indicatorRepository struct {
	f *Firestore
}

func (r *indicatorRepository) Create(ctx context.Context, indicator *model.Indicator) error {
	_, err := r.f.col(indicator.OrgID, indicatorsCollection).Doc(indicator.ID).Create(ctx, indicator)
	if err != nil {
		if isAlreadyExists(err) {
			return goerr.Wrap(model.ErrDuplicateCode, "indicator code already exists", goerr.V(model.IndicatorIDKey, indicator.ID))
		}
		return goerr.Wrap(err, "failed to create indicator", goerr.V(model.IndicatorIDKey, indicator.ID))
	}
	return nil
}

func (r *indicatorRepository) Get(ctx context.Context, orgID, id string) (*model.Indicator, error) {
	ind, found, err := readOne[model.Indicator](r.f.col(orgID, indicatorsCollection).Doc(id).Get(ctx))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get indicator", goerr.V(model.IndicatorIDKey, id))
	}
	if !found {
		return nil, goerr.Wrap(model.ErrNotFound, "indicator not found", goerr.V(model.IndicatorIDKey, id))
	}
	return ind, nil
}

func (r *indicatorRepository) List(ctx context.Context, orgID string) ([]*model.Indicator, error) {
	list, err := readAll[model.Indicator](r.f.col(orgID, indicatorsCollection).OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list indicators", goerr.V(model.OrgIDKey, orgID))
	}
	return list, nil
}

func (r *indicatorRepository) Update(ctx context.Context, indicator *model.Indicator) error {
	ref := r.f.col(indicator.OrgID, indicatorsCollection).Doc(indicator.ID)
	return r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, found, err := readOne[model.Indicator](tx.Get(ref))
		if err != nil {
			return goerr.Wrap(err, "failed to get indicator", goerr.V(model.IndicatorIDKey, indicator.ID))
		}
		if !found {
			return goerr.Wrap(model.ErrNotFound, "indicator not found", goerr.V(model.IndicatorIDKey, indicator.ID))
		}
		updated := *indicator
		updated.CreatedAt = existing.CreatedAt
		return tx.Set(ref, &updated)
	})
}

func (r *indicatorRepository) Delete(ctx context.Context, orgID, id string) error {
	ref := r.f.col(orgID, indicatorsCollection).Doc(id)
	return r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			if isNotFound(err) {
				return goerr.Wrap(model.ErrNotFound, "indicator not found", goerr.V(model.IndicatorIDKey, id))
			}
			return goerr.Wrap(err, "failed to get indicator", goerr.V(model.IndicatorIDKey, id))
		}
		governing, err := tx.Documents(r.f.col(orgID, tolerancesCollection).Where("IndicatorID", "==", id).Limit(1)).GetAll()
		if err != nil {
			return goerr.Wrap(err, "failed to check tolerance binding", goerr.V(model.IndicatorIDKey, id))
		}
		if len(governing) > 0 {
			return goerr.Wrap(model.ErrConflict, "indicator is governed by a tolerance",
				goerr.V(model.IndicatorIDKey, id), goerr.V(model.ToleranceIDKey, governing[0].Ref.ID))
		}
		return tx.Delete(ref)
	})
}

func (r *indicatorRepository) AddMeasurement(ctx context.Context, m *model.Measurement) error {
	if _, err := r.Get(ctx, m.OrgID, m.IndicatorID); err != nil {
		return err
	}
	if _, err := r.f.col(m.OrgID, measurementsCollection).Doc(m.ID).Set(ctx, m); err != nil {
		return goerr.Wrap(err, "failed to add measurement", goerr.V(model.IndicatorIDKey, m.IndicatorID))
	}
	return nil
}

func (r *indicatorRepository) ListMeasurements(ctx context.Context, orgID, indicatorID string, limit int) ([]*model.Measurement, error) {
	q := r.f.col(orgID, measurementsCollection).
		Where("IndicatorID", "==", indicatorID).
		OrderBy("RecordedAt", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	list, err := readAll[model.Measurement](q.Documents(ctx))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list measurements", goerr.V(model.IndicatorIDKey, indicatorID))
	}
	return list, nil
}

type alertRepository struct {
	f *Firestore
}

var activeStates = []string{string(types.LifecycleOpen), string(types.LifecycleAcknowledged)}

func (r *alertRepository) CreateIfNoneActive(ctx context.Context, alert *model.Alert) (*model.Alert, bool, error) {
	var (
		stored  *model.Alert
		created bool
	)
	col := r.f.col(alert.OrgID, alertsCollection)
	err := r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		active, err := readAll[model.Alert](tx.Documents(col.
			Where("IndicatorID", "==", alert.IndicatorID).
			Where("State", "in", activeStates).
			Limit(1)))
		if err != nil {
			return goerr.Wrap(err, "failed to find active alert", goerr.V(model.IndicatorIDKey, alert.IndicatorID))
		}
		if len(active) > 0 {
			stored, created = active[0], false
			return nil
		}
		stored, created = alert.Clone(), true
		return tx.Create(col.Doc(alert.ID), alert)
	})
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

func (r *alertRepository) Get(ctx context.Context, orgID, id string) (*model.Alert, error) {
	a, found, err := readOne[model.Alert](r.f.col(orgID, alertsCollection).Doc(id).Get(ctx))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get alert", goerr.V(model.AlertIDKey, id))
	}
	if !found {
		return nil, goerr.Wrap(model.ErrNotFound, "alert not found", goerr.V(model.AlertIDKey, id))
	}
	return a, nil
}

func (r *alertRepository) List(ctx context.Context, orgID string) ([]*model.Alert, error) {
	list, err := readAll[model.Alert](r.f.col(orgID, alertsCollection).OrderBy("CreatedAt", firestore.Desc).Documents(ctx))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list alerts", goerr.V(model.OrgIDKey, orgID))
	}
	return list, nil
}

func (r *alertRepository) Update(ctx context.Context, alert *model.Alert, expectedVersion int) error {
	ref := r.f.col(alert.OrgID, alertsCollection).Doc(alert.ID)
	return r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, found, err := readOne[model.Alert](tx.Get(ref))
		if err != nil {
			return goerr.Wrap(err, "failed to get alert", goerr.V(model.AlertIDKey, alert.ID))
		}
		if !found {
			return goerr.Wrap(model.ErrNotFound, "alert not found", goerr.V(model.AlertIDKey, alert.ID))
		}
		if existing.Version != expectedVersion {
			return goerr.Wrap(model.ErrConcurrentModification, "alert was modified concurrently",
				goerr.V(model.AlertIDKey, alert.ID), goerr.V(model.CurrentKey, existing.State))
		}
		return tx.Set(ref, alert)
	})
}
