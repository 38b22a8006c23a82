package memory

import (
	"context"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
)

type indicatorRepository struct {
	s *store
}

func copyIndicator(i *model.Indicator) *model.Indicator {
	c := *i
	return &c
}

func (r *indicatorRepository) Create(ctx context.Context, indicator *model.Indicator) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.org(indicator.OrgID, true)
	if _, exists := d.indicators[indicator.ID]; exists {
		return goerr.Wrap(model.ErrDuplicateCode, "indicator code already exists", goerr.V(model.IndicatorIDKey, indicator.ID))
	}
	d.indicators[indicator.ID] = copyIndicator(indicator)
	return nil
}

func (r *indicatorRepository) Get(ctx context.Context, orgID, id string) (*model.Indicator, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	i, exists := r.s.org(orgID, false).indicators[id]
	if !exists {
		return nil, goerr.Wrap(model.ErrNotFound, "indicator not found", goerr.V(model.IndicatorIDKey, id))
	}
	return copyIndicator(i), nil
}

func (r *indicatorRepository) List(ctx context.Context, orgID string) ([]*model.Indicator, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d := r.s.org(orgID, false)
	indicators := make([]*model.Indicator, 0, len(d.indicators))
	for _, i := range d.indicators {
		indicators = append(indicators, copyIndicator(i))
	}
	sort.Slice(indicators, func(i, j int) bool { return indicators[i].ID < indicators[j].ID })
	return indicators, nil
}

func (r *indicatorRepository) Update(ctx context.Context, indicator *model.Indicator) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.org(indicator.OrgID, false)
	existing, exists := d.indicators[indicator.ID]
	if !exists {
		return goerr.Wrap(model.ErrNotFound, "indicator not found", goerr.V(model.IndicatorIDKey, indicator.ID))
	}
	updated := copyIndicator(indicator)
	updated.CreatedAt = existing.CreatedAt
	d.indicators[indicator.ID] = updated
	return nil
}

func (r *indicatorRepository) Delete(ctx context.Context, orgID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.org(orgID, false)
	if _, exists := d.indicators[id]; !exists {
		return goerr.Wrap(model.ErrNotFound, "indicator not found", goerr.V(model.IndicatorIDKey, id))
	}
	for _, t := range d.tolerances {
		if t.IndicatorID == id {
			return goerr.Wrap(model.ErrConflict, "indicator is governed by a tolerance",
				goerr.V(model.IndicatorIDKey, id), goerr.V(model.ToleranceIDKey, t.ID))
		}
	}
	delete(d.indicators, id)
	return nil
}

func (r *indicatorRepository) AddMeasurement(ctx context.Context, m *model.Measurement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.org(m.OrgID, false)
	if _, exists := d.indicators[m.IndicatorID]; !exists {
		return goerr.Wrap(model.ErrNotFound, "indicator not found", goerr.V(model.IndicatorIDKey, m.IndicatorID))
	}
	c := *m
	d.measurements[m.IndicatorID] = append(d.measurements[m.IndicatorID], &c)
	return nil
}

func (r *indicatorRepository) ListMeasurements(ctx context.Context, orgID, indicatorID string, limit int) ([]*model.Measurement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stored := r.s.org(orgID, false).measurements[indicatorID]
	result := make([]*model.Measurement, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		if limit > 0 && len(result) >= limit {
			break
		}
		c := *stored[i]
		result = append(result, &c)
	}
	return result, nil
}

type alertRepository struct {
	s *store
}

func (r *alertRepository) CreateIfNoneActive(ctx context.Context, alert *model.Alert) (*model.Alert, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.org(alert.OrgID, true)
	for _, a := range d.alerts {
		if a.IndicatorID == alert.IndicatorID && a.State.IsActive() {
			return a.Clone(), false, nil
		}
	}
	d.alerts[alert.ID] = alert.Clone()
	return alert.Clone(), true, nil
}

func (r *alertRepository) Get(ctx context.Context, orgID, id string) (*model.Alert, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, exists := r.s.org(orgID, false).alerts[id]
	if !exists {
		return nil, goerr.Wrap(model.ErrNotFound, "alert not found", goerr.V(model.AlertIDKey, id))
	}
	return a.Clone(), nil
}

func (r *alertRepository) List(ctx context.Context, orgID string) ([]*model.Alert, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d := r.s.org(orgID, false)
	alerts := make([]*model.Alert, 0, len(d.alerts))
	for _, a := range d.alerts {
		alerts = append(alerts, a.Clone())
	}
	sort.Slice(alerts, func(i, j int) bool {
		if !alerts[i].CreatedAt.Equal(alerts[j].CreatedAt) {
			return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
		}
		return alerts[i].ID > alerts[j].ID
	})
	return alerts, nil
}

func (r *alertRepository) Update(ctx context.Context, alert *model.Alert, expectedVersion int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.org(alert.OrgID, false)
	existing, exists := d.alerts[alert.ID]
	if !exists {
		return goerr.Wrap(model.ErrNotFound, "alert not found", goerr.V(model.AlertIDKey, alert.ID))
	}
	if existing.Version != expectedVersion {
		return goerr.Wrap(model.ErrConcurrentModification, "alert was modified concurrently",
			goerr.V(model.AlertIDKey, alert.ID), goerr.V(model.CurrentKey, existing.State))
	}
	d.alerts[alert.ID] = alert.Clone()
	return nil
}
