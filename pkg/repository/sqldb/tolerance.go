package sqldb

import (
	"context"
	"database/sql"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
)

type toleranceRepository struct {
	d *DB
}

// checkBinding enforces at most one configuration per indicator. The
// partial unique index backs it up against concurrent writers.
func (r *toleranceRepository) checkBinding(ctx context.Context, tx *sql.Tx, cfg *model.ToleranceConfig) error {
	if cfg.IndicatorID == "" {
		return nil
	}
	if _, err := r.d.indicator.get(ctx, tx, cfg.OrgID, cfg.IndicatorID); err != nil {
		return err
	}
	var otherID string
	err := tx.QueryRowContext(ctx,
		r.d.rebind(`SELECT id FROM tolerances WHERE org_id = ? AND indicator_id = ? AND id <> ? LIMIT 1`),
		cfg.OrgID, cfg.IndicatorID, cfg.ID).Scan(&otherID)
	switch {
	case err == nil:
		return goerr.Wrap(model.ErrConflict, "indicator is already governed by another tolerance",
			goerr.V(model.IndicatorIDKey, cfg.IndicatorID), goerr.V(model.ToleranceIDKey, otherID))
	case err != sql.ErrNoRows:
		return goerr.Wrap(err, "failed to check indicator binding", goerr.V(model.IndicatorIDKey, cfg.IndicatorID))
	}
	return nil
}

func (r *toleranceRepository) Create(ctx context.Context, cfg *model.ToleranceConfig) error {
	return r.d.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := r.d.appetite.getCategory(ctx, tx, cfg.OrgID, cfg.AppetiteCategoryID); err != nil {
			return err
		}
		if err := r.checkBinding(ctx, tx, cfg); err != nil {
			return err
		}
		data, err := encode(cfg)
		if err != nil {
			return err
		}
		ok, err := insertIgnore(ctx, tx,
			r.d.rebind(`INSERT INTO tolerances (org_id, id, appetite_category_id, indicator_id, data) VALUES (?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`),
			cfg.OrgID, cfg.ID, cfg.AppetiteCategoryID, cfg.IndicatorID, data)
		if err != nil {
			return goerr.Wrap(err, "failed to create tolerance", goerr.V(model.ToleranceIDKey, cfg.ID))
		}
		if !ok {
			return goerr.Wrap(model.ErrConflict, "tolerance already exists", goerr.V(model.ToleranceIDKey, cfg.ID))
		}
		return nil
	})
}

func (r *toleranceRepository) get(ctx context.Context, q querier, orgID, id string) (*model.ToleranceConfig, error) {
	cfg, found, err := queryOne[model.ToleranceConfig](ctx, q,
		r.d.rebind(`SELECT data FROM tolerances WHERE org_id = ? AND id = ?`), orgID, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get tolerance", goerr.V(model.ToleranceIDKey, id))
	}
	if !found {
		return nil, goerr.Wrap(model.ErrNotFound, "tolerance not found", goerr.V(model.ToleranceIDKey, id))
	}
	return cfg, nil
}

func (r *toleranceRepository) Get(ctx context.Context, orgID, id string) (*model.ToleranceConfig, error) {
	return r.get(ctx, r.d.db, orgID, id)
}

func (r *toleranceRepository) List(ctx context.Context, orgID string) ([]*model.ToleranceConfig, error) {
	return queryAll[model.ToleranceConfig](ctx, r.d.db,
		r.d.rebind(`SELECT data FROM tolerances WHERE org_id = ? ORDER BY id`), orgID)
}

func (r *toleranceRepository) Update(ctx context.Context, cfg *model.ToleranceConfig) error {
	return r.d.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := r.get(ctx, tx, cfg.OrgID, cfg.ID)
		if err != nil {
			return err
		}
		if err := r.checkBinding(ctx, tx, cfg); err != nil {
			return err
		}
		updated := cfg.Clone()
		updated.AppetiteCategoryID = existing.AppetiteCategoryID
		updated.CreatedAt = existing.CreatedAt
		data, err := encode(updated)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			r.d.rebind(`UPDATE tolerances SET indicator_id = ?, data = ? WHERE org_id = ? AND id = ?`),
			updated.IndicatorID, data, updated.OrgID, updated.ID); err != nil {
			if isUniqueViolation(err) {
				return goerr.Wrap(model.ErrConflict, "indicator is already governed by another tolerance",
					goerr.V(model.IndicatorIDKey, updated.IndicatorID))
			}
			return goerr.Wrap(err, "failed to update tolerance", goerr.V(model.ToleranceIDKey, cfg.ID))
		}
		return nil
	})
}

func (r *toleranceRepository) Delete(ctx context.Context, orgID, id string) error {
	res, err := r.d.db.ExecContext(ctx, r.d.rebind(`DELETE FROM tolerances WHERE org_id = ? AND id = ?`), orgID, id)
	if err != nil {
		return goerr.Wrap(err, "failed to delete tolerance", goerr.V(model.ToleranceIDKey, id))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return goerr.Wrap(model.ErrNotFound, "tolerance not found", goerr.V(model.ToleranceIDKey, id))
	}
	return nil
}

func (r *toleranceRepository) FindByIndicator(ctx context.Context, orgID, indicatorID string) (*model.ToleranceConfig, error) {
	cfg, found, err := queryOne[model.ToleranceConfig](ctx, r.d.db,
		r.d.rebind(`SELECT data FROM tolerances WHERE org_id = ? AND indicator_id = ?`), orgID, indicatorID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to find tolerance", goerr.V(model.IndicatorIDKey, indicatorID))
	}
	if !found {
		return nil, goerr.Wrap(model.ErrNotFound, "no tolerance governs the indicator", goerr.V(model.IndicatorIDKey, indicatorID))
	}
	return cfg, nil
}

func (r *toleranceRepository) AddReading(ctx context.Context, reading *model.ToleranceReading) error {
	if _, err := r.get(ctx, r.d.db, reading.OrgID, reading.ToleranceID); err != nil {
		return err
	}
	data, err := encode(reading)
	if err != nil {
		return err
	}
	if _, err := r.d.db.ExecContext(ctx,
		r.d.rebind(`INSERT INTO tolerance_readings (org_id, id, tolerance_id, recorded_ns, data) VALUES (?, ?, ?, ?, ?)`),
		reading.OrgID, reading.ID, reading.ToleranceID, nanos(reading.RecordedAt), data); err != nil {
		return goerr.Wrap(err, "failed to add reading", goerr.V(model.ToleranceIDKey, reading.ToleranceID))
	}
	return nil
}

func (r *toleranceRepository) ListReadings(ctx context.Context, orgID, toleranceID string, limit int) ([]*model.ToleranceReading, error) {
	query := `SELECT data FROM tolerance_readings WHERE org_id = ? AND tolerance_id = ? ORDER BY recorded_ns DESC, id DESC`
	args := []any{orgID, toleranceID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return queryAll[model.ToleranceReading](ctx, r.d.db, r.d.rebind(query), args...)
}

type breachRepository struct {
	d *DB
}

func (r *breachRepository) CreateIfNotSuppressed(ctx context.Context, breach *model.Breach) (*model.Breach, bool, error) {
	var (
		stored  *model.Breach
		created bool
	)
	err := r.d.inTx(ctx, func(tx *sql.Tx) error {
		candidates, err := queryAll[model.Breach](ctx, tx,
			r.d.rebind(`SELECT data FROM breaches WHERE org_id = ? AND tolerance_id = ? AND state IN ('OPEN', 'ACKNOWLEDGED', 'ACCEPTED') ORDER BY detected_ns DESC`),
			breach.OrgID, breach.ToleranceID)
		if err != nil {
			return goerr.Wrap(err, "failed to find suppressing breach", goerr.V(model.ToleranceIDKey, breach.ToleranceID))
		}
		for _, b := range candidates {
			if b.Suppresses(breach.DetectedAt) {
				stored, created = b, false
				return nil
			}
		}

		data, err := encode(breach)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			r.d.rebind(`INSERT INTO breaches (org_id, id, tolerance_id, state, version, detected_ns, data) VALUES (?, ?, ?, ?, ?, ?, ?)`),
			breach.OrgID, breach.ID, breach.ToleranceID, string(breach.State), breach.Version, nanos(breach.DetectedAt), data); err != nil {
			return goerr.Wrap(err, "failed to create breach", goerr.V(model.BreachIDKey, breach.ID))
		}
		stored, created = breach.Clone(), true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

func (r *breachRepository) get(ctx context.Context, q querier, orgID, id string) (*model.Breach, error) {
	b, found, err := queryOne[model.Breach](ctx, q,
		r.d.rebind(`SELECT data FROM breaches WHERE org_id = ? AND id = ?`), orgID, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get breach", goerr.V(model.BreachIDKey, id))
	}
	if !found {
		return nil, goerr.Wrap(model.ErrNotFound, "breach not found", goerr.V(model.BreachIDKey, id))
	}
	return b, nil
}

func (r *breachRepository) Get(ctx context.Context, orgID, id string) (*model.Breach, error) {
	return r.get(ctx, r.d.db, orgID, id)
}

func (r *breachRepository) List(ctx context.Context, orgID string) ([]*model.Breach, error) {
	return queryAll[model.Breach](ctx, r.d.db,
		r.d.rebind(`SELECT data FROM breaches WHERE org_id = ? ORDER BY detected_ns DESC, id DESC`), orgID)
}

func (r *breachRepository) Update(ctx context.Context, breach *model.Breach, expectedVersion int) error {
	data, err := encode(breach)
	if err != nil {
		return err
	}
	res, err := r.d.db.ExecContext(ctx,
		r.d.rebind(`UPDATE breaches SET state = ?, version = ?, data = ? WHERE org_id = ? AND id = ? AND version = ?`),
		string(breach.State), breach.Version, data, breach.OrgID, breach.ID, expectedVersion)
	if err != nil {
		return goerr.Wrap(err, "failed to update breach", goerr.V(model.BreachIDKey, breach.ID))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return goerr.Wrap(err, "failed to read affected rows")
	}
	if n > 0 {
		return nil
	}

	current, err := r.get(ctx, r.d.db, breach.OrgID, breach.ID)
	if err != nil {
		return err
	}
	return goerr.Wrap(model.ErrConcurrentModification, "breach was modified concurrently",
		goerr.V(model.BreachIDKey, breach.ID), goerr.V(model.CurrentKey, current.State))
}
