package sqldb

import (
	"context"
	"database/sql"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
)

type indicatorRepository struct {
	d *DB
}

func (r *indicatorRepository) Create(ctx context.Context, indicator *model.Indicator) error {
	data, err := encode(indicator)
	if err != nil {
		return err
	}
	ok, err := insertIgnore(ctx, r.d.db,
		r.d.rebind(`INSERT INTO indicators (org_id, id, risk_id, data) VALUES (?, ?, ?, ?) ON CONFLICT DO NOTHING`),
		indicator.OrgID, indicator.ID, indicator.RiskID, data)
	if err != nil {
		return goerr.Wrap(err, "failed to create indicator", goerr.V(model.IndicatorIDKey, indicator.ID))
	}
	if !ok {
		return goerr.Wrap(model.ErrDuplicateCode, "indicator code already exists", goerr.V(model.IndicatorIDKey, indicator.ID))
	}
	return nil
}

func (r *indicatorRepository) get(ctx context.Context, q querier, orgID, id string) (*model.Indicator, error) {
	indicator, found, err := queryOne[model.Indicator](ctx, q,
		r.d.rebind(`SELECT data FROM indicators WHERE org_id = ? AND id = ?`), orgID, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get indicator", goerr.V(model.IndicatorIDKey, id))
	}
	if !found {
		return nil, goerr.Wrap(model.ErrNotFound, "indicator not found", goerr.V(model.IndicatorIDKey, id))
	}
	return indicator, nil
}

func (r *indicatorRepository) Get(ctx context.Context, orgID, id string) (*model.Indicator, error) {
	return r.get(ctx, r.d.db, orgID, id)
}

func (r *indicatorRepository) List(ctx context.Context, orgID string) ([]*model.Indicator, error) {
	return queryAll[model.Indicator](ctx, r.d.db,
		r.d.rebind(`SELECT data FROM indicators WHERE org_id = ? ORDER BY id`), orgID)
}

func (r *indicatorRepository) Update(ctx context.Context, indicator *model.Indicator) error {
	return r.d.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := r.get(ctx, tx, indicator.OrgID, indicator.ID)
		if err != nil {
			return err
		}
		updated := *indicator
		updated.CreatedAt = existing.CreatedAt
		data, err := encode(&updated)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, r.d.rebind(`UPDATE indicators SET risk_id = ?, data = ? WHERE org_id = ? AND id = ?`),
			updated.RiskID, data, updated.OrgID, updated.ID); err != nil {
			return goerr.Wrap(err, "failed to update indicator", goerr.V(model.IndicatorIDKey, indicator.ID))
		}
		return nil
	})
}

func (r *indicatorRepository) Delete(ctx context.Context, orgID, id string) error {
	return r.d.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := r.get(ctx, tx, orgID, id); err != nil {
			return err
		}
		var toleranceID string
		err := tx.QueryRowContext(ctx,
			r.d.rebind(`SELECT id FROM tolerances WHERE org_id = ? AND indicator_id = ? LIMIT 1`), orgID, id).Scan(&toleranceID)
		switch {
		case err == nil:
			return goerr.Wrap(model.ErrConflict, "indicator is governed by a tolerance",
				goerr.V(model.IndicatorIDKey, id), goerr.V(model.ToleranceIDKey, toleranceID))
		case err != sql.ErrNoRows:
			return goerr.Wrap(err, "failed to check tolerance binding", goerr.V(model.IndicatorIDKey, id))
		}
		if _, err := tx.ExecContext(ctx, r.d.rebind(`DELETE FROM indicators WHERE org_id = ? AND id = ?`), orgID, id); err != nil {
			return goerr.Wrap(err, "failed to delete indicator", goerr.V(model.IndicatorIDKey, id))
		}
		return nil
	})
}

func (r *indicatorRepository) AddMeasurement(ctx context.Context, m *model.Measurement) error {
	if _, err := r.get(ctx, r.d.db, m.OrgID, m.IndicatorID); err != nil {
		return err
	}
	data, err := encode(m)
	if err != nil {
		return err
	}
	if _, err := r.d.db.ExecContext(ctx,
		r.d.rebind(`INSERT INTO measurements (org_id, id, indicator_id, recorded_ns, data) VALUES (?, ?, ?, ?, ?)`),
		m.OrgID, m.ID, m.IndicatorID, nanos(m.RecordedAt), data); err != nil {
		return goerr.Wrap(err, "failed to add measurement", goerr.V(model.IndicatorIDKey, m.IndicatorID))
	}
	return nil
}

func (r *indicatorRepository) ListMeasurements(ctx context.Context, orgID, indicatorID string, limit int) ([]*model.Measurement, error) {
	query := `SELECT data FROM measurements WHERE org_id = ? AND indicator_id = ? ORDER BY recorded_ns DESC, id DESC`
	args := []any{orgID, indicatorID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return queryAll[model.Measurement](ctx, r.d.db, r.d.rebind(query), args...)
}

type alertRepository struct {
	d *DB
}

const activeAlertQuery = `SELECT data FROM alerts WHERE org_id = ? AND indicator_id = ? AND state IN ('OPEN', 'ACKNOWLEDGED')`

func (r *alertRepository) CreateIfNoneActive(ctx context.Context, alert *model.Alert) (*model.Alert, bool, error) {
	var (
		stored  *model.Alert
		created bool
	)
	err := r.d.inTx(ctx, func(tx *sql.Tx) error {
		active, found, err := queryOne[model.Alert](ctx, tx, r.d.rebind(activeAlertQuery), alert.OrgID, alert.IndicatorID)
		if err != nil {
			return goerr.Wrap(err, "failed to find active alert", goerr.V(model.IndicatorIDKey, alert.IndicatorID))
		}
		if found {
			stored, created = active, false
			return nil
		}

		data, err := encode(alert)
		if err != nil {
			return err
		}
		ok, err := insertIgnore(ctx, tx,
			r.d.rebind(`INSERT INTO alerts (org_id, id, indicator_id, state, version, created_ns, data) VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`),
			alert.OrgID, alert.ID, alert.IndicatorID, string(alert.State), alert.Version, nanos(alert.CreatedAt), data)
		if err != nil {
			return goerr.Wrap(err, "failed to create alert", goerr.V(model.AlertIDKey, alert.ID))
		}
		if !ok {
			return goerr.Wrap(model.ErrConcurrentModification, "an active alert was raised concurrently",
				goerr.V(model.IndicatorIDKey, alert.IndicatorID))
		}
		stored, created = alert.Clone(), true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

func (r *alertRepository) get(ctx context.Context, q querier, orgID, id string) (*model.Alert, error) {
	alert, found, err := queryOne[model.Alert](ctx, q,
		r.d.rebind(`SELECT data FROM alerts WHERE org_id = ? AND id = ?`), orgID, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get alert", goerr.V(model.AlertIDKey, id))
	}
	if !found {
		return nil, goerr.Wrap(model.ErrNotFound, "alert not found", goerr.V(model.AlertIDKey, id))
	}
	return alert, nil
}

func (r *alertRepository) Get(ctx context.Context, orgID, id string) (*model.Alert, error) {
	return r.get(ctx, r.d.db, orgID, id)
}

func (r *alertRepository) List(ctx context.Context, orgID string) ([]*model.Alert, error) {
	return queryAll[model.Alert](ctx, r.d.db,
		r.d.rebind(`SELECT data FROM alerts WHERE org_id = ? ORDER BY created_ns DESC, id DESC`), orgID)
}

func (r *alertRepository) Update(ctx context.Context, alert *model.Alert, expectedVersion int) error {
	data, err := encode(alert)
	if err != nil {
		return err
	}
	res, err := r.d.db.ExecContext(ctx,
		r.d.rebind(`UPDATE alerts SET state = ?, version = ?, data = ? WHERE org_id = ? AND id = ? AND version = ?`),
		string(alert.State), alert.Version, data, alert.OrgID, alert.ID, expectedVersion)
	if err != nil {
		return goerr.Wrap(err, "failed to update alert", goerr.V(model.AlertIDKey, alert.ID))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return goerr.Wrap(err, "failed to read affected rows")
	}
	if n > 0 {
		return nil
	}

	current, err := r.get(ctx, r.d.db, alert.OrgID, alert.ID)
	if err != nil {
		return err
	}
	return goerr.Wrap(model.ErrConcurrentModification, "alert was modified concurrently",
		goerr.V(model.AlertIDKey, alert.ID), goerr.V(model.CurrentKey, current.State))
}
