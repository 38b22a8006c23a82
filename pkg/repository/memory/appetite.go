package memory

import (
	"context"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

type appetiteRepository struct {
	s *store
}

func (r *appetiteRepository) CreateStatement(ctx context.Context, st *model.AppetiteStatement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.org(st.OrgID, true)
	if _, exists := d.statements[st.ID]; exists {
		return goerr.Wrap(model.ErrConflict, "statement already exists", goerr.V(model.StatementIDKey, st.ID))
	}
	d.statements[st.ID] = st.Clone()
	return nil
}

func (r *appetiteRepository) GetStatement(ctx context.Context, orgID, id string) (*model.AppetiteStatement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	st, exists := r.s.org(orgID, false).statements[id]
	if !exists {
		return nil, goerr.Wrap(model.ErrNotFound, "statement not found", goerr.V(model.StatementIDKey, id))
	}
	return st.Clone(), nil
}

func (r *appetiteRepository) ListStatements(ctx context.Context, orgID string) ([]*model.AppetiteStatement, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d := r.s.org(orgID, false)
	list := make([]*model.AppetiteStatement, 0, len(d.statements))
	for _, st := range d.statements {
		list = append(list, st.Clone())
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

func (r *appetiteRepository) UpdateStatement(ctx context.Context, st *model.AppetiteStatement, expected types.StatementStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.org(st.OrgID, false)
	existing, exists := d.statements[st.ID]
	if !exists {
		return goerr.Wrap(model.ErrNotFound, "statement not found", goerr.V(model.StatementIDKey, st.ID))
	}
	if existing.Status != expected {
		return goerr.Wrap(model.ErrConcurrentModification, "statement status changed",
			goerr.V(model.StatementIDKey, st.ID), goerr.V(model.CurrentKey, existing.Status))
	}
	d.statements[st.ID] = st.Clone()
	return nil
}

func (r *appetiteRepository) ApproveStatement(ctx context.Context, orgID, id, approver string, at time.Time) (*model.AppetiteStatement, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.org(orgID, false)
	target, exists := d.statements[id]
	if !exists {
		return nil, goerr.Wrap(model.ErrNotFound, "statement not found", goerr.V(model.StatementIDKey, id))
	}
	if target.Status != types.StatementDraft {
		return nil, goerr.Wrap(model.ErrConcurrentModification, "statement is not a draft",
			goerr.V(model.StatementIDKey, id), goerr.V(model.CurrentKey, target.Status))
	}

	version := 0
	for _, st := range d.statements {
		version = max(version, st.Version)
		if st.Status == types.StatementApproved {
			st.Status = types.StatementSuperseded
			st.UpdatedAt = at
		}
	}

	target.Status = types.StatementApproved
	target.Version = version + 1
	target.ApprovedBy = approver
	approvedAt := at
	target.ApprovedAt = &approvedAt
	target.UpdatedAt = at
	return target.Clone(), nil
}

func copyCategory(c *model.AppetiteCategory) *model.AppetiteCategory {
	cp := *c
	return &cp
}

func (r *appetiteRepository) CreateCategory(ctx context.Context, c *model.AppetiteCategory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.org(c.OrgID, true)
	for _, existing := range d.categories {
		if existing.StatementID == c.StatementID && existing.CategoryID == c.CategoryID {
			return goerr.Wrap(model.ErrConflict, "category already has an appetite under this statement",
				goerr.V(model.StatementIDKey, c.StatementID), goerr.V("category_id", c.CategoryID))
		}
	}
	d.categories[c.ID] = copyCategory(c)
	return nil
}

func (r *appetiteRepository) GetCategory(ctx context.Context, orgID, id string) (*model.AppetiteCategory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, exists := r.s.org(orgID, false).categories[id]
	if !exists {
		return nil, goerr.Wrap(model.ErrNotFound, "appetite category not found", goerr.V("appetite_category_id", id))
	}
	return copyCategory(c), nil
}

func (r *appetiteRepository) ListCategories(ctx context.Context, orgID string) ([]*model.AppetiteCategory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d := r.s.org(orgID, false)
	list := make([]*model.AppetiteCategory, 0, len(d.categories))
	for _, c := range d.categories {
		list = append(list, copyCategory(c))
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CategoryID != list[j].CategoryID {
			return list[i].CategoryID < list[j].CategoryID
		}
		return list[i].ID < list[j].ID
	})
	return list, nil
}

func (r *appetiteRepository) UpdateCategory(ctx context.Context, c *model.AppetiteCategory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.org(c.OrgID, false)
	existing, exists := d.categories[c.ID]
	if !exists {
		return goerr.Wrap(model.ErrNotFound, "appetite category not found", goerr.V("appetite_category_id", c.ID))
	}
	updated := copyCategory(c)
	updated.StatementID = existing.StatementID
	updated.CategoryID = existing.CategoryID
	updated.CreatedAt = existing.CreatedAt
	d.categories[c.ID] = updated
	return nil
}

func (r *appetiteRepository) DeleteCategory(ctx context.Context, orgID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.org(orgID, false)
	if _, exists := d.categories[id]; !exists {
		return goerr.Wrap(model.ErrNotFound, "appetite category not found", goerr.V("appetite_category_id", id))
	}
	for _, t := range d.tolerances {
		if t.AppetiteCategoryID == id {
			return goerr.Wrap(model.ErrConflict, "appetite category still has tolerances",
				goerr.V("appetite_category_id", id), goerr.V(model.ToleranceIDKey, t.ID))
		}
	}
	delete(d.categories, id)
	return nil
}

type toleranceRepository struct {
	s *store
}

// checkBinding enforces at most one configuration per indicator. Callers
// must hold the lock.
func checkBinding(d *orgData, cfg *model.ToleranceConfig) error {
	if cfg.IndicatorID == "" {
		return nil
	}
	if _, ok := d.indicators[cfg.IndicatorID]; !ok {
		return goerr.Wrap(model.ErrNotFound, "indicator not found", goerr.V(model.IndicatorIDKey, cfg.IndicatorID))
	}
	for _, t := range d.tolerances {
		if t.ID != cfg.ID && t.IndicatorID == cfg.IndicatorID {
			return goerr.Wrap(model.ErrConflict, "indicator is already governed by another tolerance",
				goerr.V(model.IndicatorIDKey, cfg.IndicatorID), goerr.V(model.ToleranceIDKey, t.ID))
		}
	}
	return nil
}

func (r *toleranceRepository) Create(ctx context.Context, cfg *model.ToleranceConfig) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.org(cfg.OrgID, true)
	if _, exists := d.tolerances[cfg.ID]; exists {
		return goerr.Wrap(model.ErrConflict, "tolerance already exists", goerr.V(model.ToleranceIDKey, cfg.ID))
	}
	if _, exists := d.categories[cfg.AppetiteCategoryID]; !exists {
		return goerr.Wrap(model.ErrNotFound, "appetite category not found", goerr.V("appetite_category_id", cfg.AppetiteCategoryID))
	}
	if err := checkBinding(d, cfg); err != nil {
		return err
	}
	d.tolerances[cfg.ID] = cfg.Clone()
	return nil
}

func (r *toleranceRepository) Get(ctx context.Context, orgID, id string) (*model.ToleranceConfig, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, exists := r.s.org(orgID, false).tolerances[id]
	if !exists {
		return nil, goerr.Wrap(model.ErrNotFound, "tolerance not found", goerr.V(model.ToleranceIDKey, id))
	}
	return t.Clone(), nil
}

func (r *toleranceRepository) List(ctx context.Context, orgID string) ([]*model.ToleranceConfig, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d := r.s.org(orgID, false)
	list := make([]*model.ToleranceConfig, 0, len(d.tolerances))
	for _, t := range d.tolerances {
		list = append(list, t.Clone())
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (r *toleranceRepository) Update(ctx context.Context, cfg *model.ToleranceConfig) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.org(cfg.OrgID, false)
	existing, exists := d.tolerances[cfg.ID]
	if !exists {
		return goerr.Wrap(model.ErrNotFound, "tolerance not found", goerr.V(model.ToleranceIDKey, cfg.ID))
	}
	if err := checkBinding(d, cfg); err != nil {
		return err
	}
	updated := cfg.Clone()
	updated.AppetiteCategoryID = existing.AppetiteCategoryID
	updated.CreatedAt = existing.CreatedAt
	d.tolerances[cfg.ID] = updated
	return nil
}

func (r *toleranceRepository) Delete(ctx context.Context, orgID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.org(orgID, false)
	if _, exists := d.tolerances[id]; !exists {
		return goerr.Wrap(model.ErrNotFound, "tolerance not found", goerr.V(model.ToleranceIDKey, id))
	}
	delete(d.tolerances, id)
	return nil
}

func (r *toleranceRepository) FindByIndicator(ctx context.Context, orgID, indicatorID string) (*model.ToleranceConfig, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, t := range r.s.org(orgID, false).tolerances {
		if t.IndicatorID == indicatorID {
			return t.Clone(), nil
		}
	}
	return nil, goerr.Wrap(model.ErrNotFound, "no tolerance governs the indicator", goerr.V(model.IndicatorIDKey, indicatorID))
}

func (r *toleranceRepository) AddReading(ctx context.Context, reading *model.ToleranceReading) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.org(reading.OrgID, false)
	if _, exists := d.tolerances[reading.ToleranceID]; !exists {
		return goerr.Wrap(model.ErrNotFound, "tolerance not found", goerr.V(model.ToleranceIDKey, reading.ToleranceID))
	}
	c := *reading
	d.readings[reading.ToleranceID] = append(d.readings[reading.ToleranceID], &c)
	return nil
}

func (r *toleranceRepository) ListReadings(ctx context.Context, orgID, toleranceID string, limit int) ([]*model.ToleranceReading, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stored := r.s.org(orgID, false).readings[toleranceID]
	result := make([]*model.ToleranceReading, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		if limit > 0 && len(result) >= limit {
			break
		}
		c := *stored[i]
		result = append(result, &c)
	}
	return result, nil
}

type breachRepository struct {
	s *store
}

func (r *breachRepository) CreateIfNotSuppressed(ctx context.Context, breach *model.Breach) (*model.Breach, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.org(breach.OrgID, true)
	for _, b := range d.breaches {
		if b.ToleranceID == breach.ToleranceID && b.Suppresses(breach.DetectedAt) {
			return b.Clone(), false, nil
		}
	}
	d.breaches[breach.ID] = breach.Clone()
	return breach.Clone(), true, nil
}

func (r *breachRepository) Get(ctx context.Context, orgID, id string) (*model.Breach, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, exists := r.s.org(orgID, false).breaches[id]
	if !exists {
		return nil, goerr.Wrap(model.ErrNotFound, "breach not found", goerr.V(model.BreachIDKey, id))
	}
	return b.Clone(), nil
}

func (r *breachRepository) List(ctx context.Context, orgID string) ([]*model.Breach, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d := r.s.org(orgID, false)
	list := make([]*model.Breach, 0, len(d.breaches))
	for _, b := range d.breaches {
		list = append(list, b.Clone())
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].DetectedAt.Equal(list[j].DetectedAt) {
			return list[i].DetectedAt.After(list[j].DetectedAt)
		}
		return list[i].ID > list[j].ID
	})
	return list, nil
}

func (r *breachRepository) Update(ctx context.Context, breach *model.Breach, expectedVersion int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.org(breach.OrgID, false)
	existing, exists := d.breaches[breach.ID]
	if !exists {
		return goerr.Wrap(model.ErrNotFound, "breach not found", goerr.V(model.BreachIDKey, breach.ID))
	}
	if existing.Version != expectedVersion {
		return goerr.Wrap(model.ErrConcurrentModification, "breach was modified concurrently",
			goerr.V(model.BreachIDKey, breach.ID), goerr.V(model.CurrentKey, existing.State))
	}
	d.breaches[breach.ID] = breach.Clone()
	return nil
}
