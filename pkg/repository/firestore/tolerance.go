package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

const (
	tolerancesCollection = "tolerances"
	readingsCollection   = "tolerance_readings"
	breachesCollection   = "breaches"
)

type toleranceRepository struct {
	f *Firestore
}

// checkBinding enforces at most one configuration per indicator
func (r *toleranceRepository) checkBinding(tx *firestore.Transaction, cfg *model.ToleranceConfig) error {
	if cfg.IndicatorID == "" {
		return nil
	}
	if _, err := tx.Get(r.f.col(cfg.OrgID, indicatorsCollection).Doc(cfg.IndicatorID)); err != nil {
		if isNotFound(err) {
			return goerr.Wrap(model.ErrNotFound, "indicator not found", goerr.V(model.IndicatorIDKey, cfg.IndicatorID))
		}
		return goerr.Wrap(err, "failed to get indicator", goerr.V(model.IndicatorIDKey, cfg.IndicatorID))
	}
	bound, err := tx.Documents(r.f.col(cfg.OrgID, tolerancesCollection).Where("IndicatorID", "==", cfg.IndicatorID)).GetAll()
	if err != nil {
		return goerr.Wrap(err, "failed to check indicator binding", goerr.V(model.IndicatorIDKey, cfg.IndicatorID))
	}
	for _, doc := range bound {
		if doc.Ref.ID != cfg.ID {
			return goerr.Wrap(model.ErrConflict, "indicator is already governed by another tolerance",
				goerr.V(model.IndicatorIDKey, cfg.IndicatorID), goerr.V(model.ToleranceIDKey, doc.Ref.ID))
		}
	}
	return nil
}

func (r *toleranceRepository) Create(ctx context.Context, cfg *model.ToleranceConfig) error {
	ref := r.f.col(cfg.OrgID, tolerancesCollection).Doc(cfg.ID)
	return r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		categories, err := tx.Documents(r.f.col(cfg.OrgID, categoriesCollection).Where("ID", "==", cfg.AppetiteCategoryID).Limit(1)).GetAll()
		if err != nil {
			return goerr.Wrap(err, "failed to get appetite category", goerr.V("appetite_category_id", cfg.AppetiteCategoryID))
		}
		if len(categories) == 0 {
			return goerr.Wrap(model.ErrNotFound, "appetite category not found", goerr.V("appetite_category_id", cfg.AppetiteCategoryID))
		}
		if err := r.checkBinding(tx, cfg); err != nil {
			return err
		}
		return tx.Create(ref, cfg)
	})
}

func (r *toleranceRepository) Get(ctx context.Context, orgID, id string) (*model.ToleranceConfig, error) {
	cfg, found, err := readOne[model.ToleranceConfig](r.f.col(orgID, tolerancesCollection).Doc(id).Get(ctx))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get tolerance", goerr.V(model.ToleranceIDKey, id))
	}
	if !found {
		return nil, goerr.Wrap(model.ErrNotFound, "tolerance not found", goerr.V(model.ToleranceIDKey, id))
	}
	return cfg, nil
}

func (r *toleranceRepository) List(ctx context.Context, orgID string) ([]*model.ToleranceConfig, error) {
	list, err := readAll[model.ToleranceConfig](r.f.col(orgID, tolerancesCollection).OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list tolerances", goerr.V(model.OrgIDKey, orgID))
	}
	return list, nil
}

func (r *toleranceRepository) Update(ctx context.Context, cfg *model.ToleranceConfig) error {
	ref := r.f.col(cfg.OrgID, tolerancesCollection).Doc(cfg.ID)
	return r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, found, err := readOne[model.ToleranceConfig](tx.Get(ref))
		if err != nil {
			return goerr.Wrap(err, "failed to get tolerance", goerr.V(model.ToleranceIDKey, cfg.ID))
		}
		if !found {
			return goerr.Wrap(model.ErrNotFound, "tolerance not found", goerr.V(model.ToleranceIDKey, cfg.ID))
		}
		if err := r.checkBinding(tx, cfg); err != nil {
			return err
		}
		updated := cfg.Clone()
		updated.AppetiteCategoryID = existing.AppetiteCategoryID
		updated.CreatedAt = existing.CreatedAt
		return tx.Set(ref, updated)
	})
}

func (r *toleranceRepository) Delete(ctx context.Context, orgID, id string) error {
	if _, err := r.f.col(orgID, tolerancesCollection).Doc(id).Delete(ctx, firestore.Exists); err != nil {
		if isNotFound(err) {
			return goerr.Wrap(model.ErrNotFound, "tolerance not found", goerr.V(model.ToleranceIDKey, id))
		}
		return goerr.Wrap(err, "failed to delete tolerance", goerr.V(model.ToleranceIDKey, id))
	}
	return nil
}

func (r *toleranceRepository) FindByIndicator(ctx context.Context, orgID, indicatorID string) (*model.ToleranceConfig, error) {
	list, err := readAll[model.ToleranceConfig](r.f.col(orgID, tolerancesCollection).Where("IndicatorID", "==", indicatorID).Limit(1).Documents(ctx))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to find tolerance", goerr.V(model.IndicatorIDKey, indicatorID))
	}
	if len(list) == 0 {
		return nil, goerr.Wrap(model.ErrNotFound, "no tolerance governs the indicator", goerr.V(model.IndicatorIDKey, indicatorID))
	}
	return list[0], nil
}

func (r *toleranceRepository) AddReading(ctx context.Context, reading *model.ToleranceReading) error {
	if _, err := r.Get(ctx, reading.OrgID, reading.ToleranceID); err != nil {
		return err
	}
	if _, err := r.f.col(reading.OrgID, readingsCollection).Doc(reading.ID).Set(ctx, reading); err != nil {
		return goerr.Wrap(err, "failed to add reading", goerr.V(model.ToleranceIDKey, reading.ToleranceID))
	}
	return nil
}

func (r *toleranceRepository) ListReadings(ctx context.Context, orgID, toleranceID string, limit int) ([]*model.ToleranceReading, error) {
	q := r.f.col(orgID, readingsCollection).
		Where("ToleranceID", "==", toleranceID).
		OrderBy("RecordedAt", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	list, err := readAll[model.ToleranceReading](q.Documents(ctx))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list readings", goerr.V(model.ToleranceIDKey, toleranceID))
	}
	return list, nil
}

type breachRepository struct {
	f *Firestore
}

var suppressingStates = []string{
	string(types.LifecycleOpen),
	string(types.LifecycleAcknowledged),
	string(types.LifecycleAccepted),
}

func (r *breachRepository) CreateIfNotSuppressed(ctx context.Context, breach *model.Breach) (*model.Breach, bool, error) {
	var (
		stored  *model.Breach
		created bool
	)
	col := r.f.col(breach.OrgID, breachesCollection)
	err := r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		candidates, err := readAll[model.Breach](tx.Documents(col.
			Where("ToleranceID", "==", breach.ToleranceID).
			Where("State", "in", suppressingStates)))
		if err != nil {
			return goerr.Wrap(err, "failed to find suppressing breach", goerr.V(model.ToleranceIDKey, breach.ToleranceID))
		}
		for _, b := range candidates {
			if b.Suppresses(breach.DetectedAt) {
				stored, created = b, false
				return nil
			}
		}
		stored, created = breach.Clone(), true
		return tx.Create(col.Doc(breach.ID), breach)
	})
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

func (r *breachRepository) Get(ctx context.Context, orgID, id string) (*model.Breach, error) {
	b, found, err := readOne[model.Breach](r.f.col(orgID, breachesCollection).Doc(id).Get(ctx))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get breach", goerr.V(model.BreachIDKey, id))
	}
	if !found {
		return nil, goerr.Wrap(model.ErrNotFound, "breach not found", goerr.V(model.BreachIDKey, id))
	}
	return b, nil
}

func (r *breachRepository) List(ctx context.Context, orgID string) ([]*model.Breach, error) {
	list, err := readAll[model.Breach](r.f.col(orgID, breachesCollection).OrderBy("DetectedAt", firestore.Desc).Documents(ctx))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list breaches", goerr.V(model.OrgIDKey, orgID))
	}
	return list, nil
}

func (r *breachRepository) Update(ctx context.Context, breach *model.Breach, expectedVersion int) error {
	ref := r.f.col(breach.OrgID, breachesCollection).Doc(breach.ID)
	return r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, found, err := readOne[model.Breach](tx.Get(ref))
		if err != nil {
			return goerr.Wrap(err, "failed to get breach", goerr.V(model.BreachIDKey, breach.ID))
		}
		if !found {
			return goerr.Wrap(model.ErrNotFound, "breach not found", goerr.V(model.BreachIDKey, breach.ID))
		}
		if existing.Version != expectedVersion {
			return goerr.Wrap(model.ErrConcurrentModification, "breach was modified concurrently",
				goerr.V(model.BreachIDKey, breach.ID), goerr.V(model.CurrentKey, existing.State))
		}
		return tx.Set(ref, breach)
	})
}
