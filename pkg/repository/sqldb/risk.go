package sqldb

import (
	"context"
	"database/sql"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

type riskRepository struct {
	d *DB
}

func (r *riskRepository) Create(ctx context.Context, risk *model.Risk) error {
	data, err := encode(risk)
	if err != nil {
		return err
	}
	ok, err := insertIgnore(ctx, r.d.db,
		r.d.rebind(`INSERT INTO risks (org_id, id, data) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`),
		risk.OrgID, risk.ID, data)
	if err != nil {
		return goerr.Wrap(err, "failed to create risk", goerr.V(model.RiskIDKey, risk.ID))
	}
	if !ok {
		return goerr.Wrap(model.ErrDuplicateCode, "risk code already exists", goerr.V(model.RiskIDKey, risk.ID))
	}
	return nil
}

func (r *riskRepository) get(ctx context.Context, q querier, orgID, id string) (*model.Risk, error) {
	risk, found, err := queryOne[model.Risk](ctx, q,
		r.d.rebind(`SELECT data FROM risks WHERE org_id = ? AND id = ?`), orgID, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get risk", goerr.V(model.RiskIDKey, id))
	}
	if !found {
		return nil, goerr.Wrap(model.ErrNotFound, "risk not found", goerr.V(model.RiskIDKey, id))
	}
	return risk, nil
}

func (r *riskRepository) Get(ctx context.Context, orgID, id string) (*model.Risk, error) {
	return r.get(ctx, r.d.db, orgID, id)
}

func (r *riskRepository) List(ctx context.Context, orgID string) ([]*model.Risk, error) {
	return queryAll[model.Risk](ctx, r.d.db,
		r.d.rebind(`SELECT data FROM risks WHERE org_id = ? ORDER BY id`), orgID)
}

func (r *riskRepository) Update(ctx context.Context, risk *model.Risk) error {
	return r.d.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := r.get(ctx, tx, risk.OrgID, risk.ID)
		if err != nil {
			return err
		}
		updated := *risk
		updated.CreatedAt = existing.CreatedAt
		return r.put(ctx, tx, &updated)
	})
}

func (r *riskRepository) put(ctx context.Context, q querier, risk *model.Risk) error {
	data, err := encode(risk)
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, r.d.rebind(`UPDATE risks SET data = ? WHERE org_id = ? AND id = ?`),
		data, risk.OrgID, risk.ID); err != nil {
		return goerr.Wrap(err, "failed to update risk", goerr.V(model.RiskIDKey, risk.ID))
	}
	return nil
}

func (r *riskRepository) Delete(ctx context.Context, orgID, id string) (bool, error) {
	var softClosed bool
	err := r.d.inTx(ctx, func(tx *sql.Tx) error {
		softClosed = false
		risk, err := r.get(ctx, tx, orgID, id)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, r.d.rebind(`DELETE FROM risk_controls WHERE org_id = ? AND risk_id = ?`), orgID, id); err != nil {
			return goerr.Wrap(err, "failed to delete risk links", goerr.V(model.RiskIDKey, id))
		}

		var snapshots int
		if err := tx.QueryRowContext(ctx, r.d.rebind(`SELECT COUNT(*) FROM risk_snapshots WHERE org_id = ? AND risk_id = ?`),
			orgID, id).Scan(&snapshots); err != nil {
			return goerr.Wrap(err, "failed to count risk snapshots", goerr.V(model.RiskIDKey, id))
		}

		if snapshots > 0 {
			risk.Status = types.RiskStatusClosed
			risk.IsActive = false
			risk.UpdatedAt = time.Now().UTC()
			softClosed = true
			return r.put(ctx, tx, risk)
		}

		if _, err := tx.ExecContext(ctx, r.d.rebind(`DELETE FROM risks WHERE org_id = ? AND id = ?`), orgID, id); err != nil {
			return goerr.Wrap(err, "failed to delete risk", goerr.V(model.RiskIDKey, id))
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return softClosed, nil
}

func (r *riskRepository) Link(ctx context.Context, link *model.RiskControlLink) error {
	return r.d.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := r.get(ctx, tx, link.OrgID, link.RiskID); err != nil {
			return err
		}
		if _, err := r.d.control.get(ctx, tx, link.OrgID, link.ControlID); err != nil {
			return err
		}
		data, err := encode(link)
		if err != nil {
			return err
		}
		if _, err := insertIgnore(ctx, tx,
			r.d.rebind(`INSERT INTO risk_controls (org_id, risk_id, control_id, data) VALUES (?, ?, ?, ?) ON CONFLICT DO NOTHING`),
			link.OrgID, link.RiskID, link.ControlID, data); err != nil {
			return goerr.Wrap(err, "failed to link control",
				goerr.V(model.RiskIDKey, link.RiskID), goerr.V(model.ControlIDKey, link.ControlID))
		}
		return nil
	})
}

func (r *riskRepository) Unlink(ctx context.Context, orgID, riskID, controlID string) error {
	res, err := r.d.db.ExecContext(ctx,
		r.d.rebind(`DELETE FROM risk_controls WHERE org_id = ? AND risk_id = ? AND control_id = ?`),
		orgID, riskID, controlID)
	if err != nil {
		return goerr.Wrap(err, "failed to unlink control",
			goerr.V(model.RiskIDKey, riskID), goerr.V(model.ControlIDKey, controlID))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return goerr.Wrap(model.ErrNotFound, "link not found",
			goerr.V(model.RiskIDKey, riskID), goerr.V(model.ControlIDKey, controlID))
	}
	return nil
}

func (r *riskRepository) LinksByRisk(ctx context.Context, orgID, riskID string) ([]*model.RiskControlLink, error) {
	return queryAll[model.RiskControlLink](ctx, r.d.db,
		r.d.rebind(`SELECT data FROM risk_controls WHERE org_id = ? AND risk_id = ? ORDER BY control_id`), orgID, riskID)
}

func (r *riskRepository) LinksByControl(ctx context.Context, orgID, controlID string) ([]*model.RiskControlLink, error) {
	return queryAll[model.RiskControlLink](ctx, r.d.db,
		r.d.rebind(`SELECT data FROM risk_controls WHERE org_id = ? AND control_id = ? ORDER BY risk_id`), orgID, controlID)
}

type controlRepository struct {
	d *DB
}

func (r *controlRepository) Create(ctx context.Context, control *model.Control) error {
	data, err := encode(control)
	if err != nil {
		return err
	}
	ok, err := insertIgnore(ctx, r.d.db,
		r.d.rebind(`INSERT INTO controls (org_id, id, data) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`),
		control.OrgID, control.ID, data)
	if err != nil {
		return goerr.Wrap(err, "failed to create control", goerr.V(model.ControlIDKey, control.ID))
	}
	if !ok {
		return goerr.Wrap(model.ErrDuplicateCode, "control code already exists", goerr.V(model.ControlIDKey, control.ID))
	}
	return nil
}

func (r *controlRepository) get(ctx context.Context, q querier, orgID, id string) (*model.Control, error) {
	control, found, err := queryOne[model.Control](ctx, q,
		r.d.rebind(`SELECT data FROM controls WHERE org_id = ? AND id = ?`), orgID, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get control", goerr.V(model.ControlIDKey, id))
	}
	if !found {
		return nil, goerr.Wrap(model.ErrNotFound, "control not found", goerr.V(model.ControlIDKey, id))
	}
	return control, nil
}

func (r *controlRepository) Get(ctx context.Context, orgID, id string) (*model.Control, error) {
	return r.get(ctx, r.d.db, orgID, id)
}

func (r *controlRepository) List(ctx context.Context, orgID string) ([]*model.Control, error) {
	return queryAll[model.Control](ctx, r.d.db,
		r.d.rebind(`SELECT data FROM controls WHERE org_id = ? ORDER BY id`), orgID)
}

func (r *controlRepository) Update(ctx context.Context, control *model.Control) error {
	return r.d.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := r.get(ctx, tx, control.OrgID, control.ID)
		if err != nil {
			return err
		}
		updated := *control
		updated.CreatedAt = existing.CreatedAt
		data, err := encode(&updated)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, r.d.rebind(`UPDATE controls SET data = ? WHERE org_id = ? AND id = ?`),
			data, control.OrgID, control.ID); err != nil {
			return goerr.Wrap(err, "failed to update control", goerr.V(model.ControlIDKey, control.ID))
		}
		return nil
	})
}

func (r *controlRepository) Delete(ctx context.Context, orgID, id string) error {
	return r.d.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := r.get(ctx, tx, orgID, id); err != nil {
			return err
		}
		var riskID string
		err := tx.QueryRowContext(ctx,
			r.d.rebind(`SELECT risk_id FROM risk_controls WHERE org_id = ? AND control_id = ? LIMIT 1`), orgID, id).Scan(&riskID)
		switch {
		case err == nil:
			return goerr.Wrap(model.ErrConflict, "control is linked to a risk",
				goerr.V(model.ControlIDKey, id), goerr.V(model.RiskIDKey, riskID))
		case err != sql.ErrNoRows:
			return goerr.Wrap(err, "failed to check control links", goerr.V(model.ControlIDKey, id))
		}
		if _, err := tx.ExecContext(ctx, r.d.rebind(`DELETE FROM controls WHERE org_id = ? AND id = ?`), orgID, id); err != nil {
			return goerr.Wrap(err, "failed to delete control", goerr.V(model.ControlIDKey, id))
		}
		return nil
	})
}
