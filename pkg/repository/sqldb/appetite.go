package sqldb

import (
	"context"
	"database/sql"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

type appetiteRepository struct {
	d *DB
}

func (r *appetiteRepository) CreateStatement(ctx context.Context, st *model.AppetiteStatement) error {
	data, err := encode(st)
	if err != nil {
		return err
	}
	ok, err := insertIgnore(ctx, r.d.db,
		r.d.rebind(`INSERT INTO appetite_statements (org_id, id, status, version, created_ns, data) VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`),
		st.OrgID, st.ID, string(st.Status), st.Version, nanos(st.CreatedAt), data)
	if err != nil {
		return goerr.Wrap(err, "failed to create statement", goerr.V(model.StatementIDKey, st.ID))
	}
	if !ok {
		return goerr.Wrap(model.ErrConflict, "statement already exists", goerr.V(model.StatementIDKey, st.ID))
	}
	return nil
}

func (r *appetiteRepository) getStatement(ctx context.Context, q querier, orgID, id string) (*model.AppetiteStatement, error) {
	st, found, err := queryOne[model.AppetiteStatement](ctx, q,
		r.d.rebind(`SELECT data FROM appetite_statements WHERE org_id = ? AND id = ?`), orgID, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get statement", goerr.V(model.StatementIDKey, id))
	}
	if !found {
		return nil, goerr.Wrap(model.ErrNotFound, "statement not found", goerr.V(model.StatementIDKey, id))
	}
	return st, nil
}

func (r *appetiteRepository) GetStatement(ctx context.Context, orgID, id string) (*model.AppetiteStatement, error) {
	return r.getStatement(ctx, r.d.db, orgID, id)
}

func (r *appetiteRepository) ListStatements(ctx context.Context, orgID string) ([]*model.AppetiteStatement, error) {
	return queryAll[model.AppetiteStatement](ctx, r.d.db,
		r.d.rebind(`SELECT data FROM appetite_statements WHERE org_id = ? ORDER BY created_ns, id`), orgID)
}

func (r *appetiteRepository) putStatement(ctx context.Context, q querier, st *model.AppetiteStatement) error {
	data, err := encode(st)
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx,
		r.d.rebind(`UPDATE appetite_statements SET status = ?, version = ?, data = ? WHERE org_id = ? AND id = ?`),
		string(st.Status), st.Version, data, st.OrgID, st.ID); err != nil {
		return goerr.Wrap(err, "failed to update statement", goerr.V(model.StatementIDKey, st.ID))
	}
	return nil
}

func (r *appetiteRepository) UpdateStatement(ctx context.Context, st *model.AppetiteStatement, expected types.StatementStatus) error {
	return r.d.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := r.getStatement(ctx, tx, st.OrgID, st.ID)
		if err != nil {
			return err
		}
		if existing.Status != expected {
			return goerr.Wrap(model.ErrConcurrentModification, "statement status changed",
				goerr.V(model.StatementIDKey, st.ID), goerr.V(model.CurrentKey, existing.Status))
		}
		return r.putStatement(ctx, tx, st)
	})
}

func (r *appetiteRepository) ApproveStatement(ctx context.Context, orgID, id, approver string, at time.Time) (*model.AppetiteStatement, error) {
	var approved *model.AppetiteStatement
	err := r.d.inTx(ctx, func(tx *sql.Tx) error {
		target, err := r.getStatement(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if target.Status != types.StatementDraft {
			return goerr.Wrap(model.ErrConcurrentModification, "statement is not a draft",
				goerr.V(model.StatementIDKey, id), goerr.V(model.CurrentKey, target.Status))
		}

		var version int
		if err := tx.QueryRowContext(ctx,
			r.d.rebind(`SELECT COALESCE(MAX(version), 0) FROM appetite_statements WHERE org_id = ?`), orgID).Scan(&version); err != nil {
			return goerr.Wrap(err, "failed to read statement versions")
		}

		current, err := queryAll[model.AppetiteStatement](ctx, tx,
			r.d.rebind(`SELECT data FROM appetite_statements WHERE org_id = ? AND status = ?`), orgID, string(types.StatementApproved))
		if err != nil {
			return err
		}
		for _, st := range current {
			st.Status = types.StatementSuperseded
			st.UpdatedAt = at
			if err := r.putStatement(ctx, tx, st); err != nil {
				return err
			}
		}

		approvedAt := at
		target.Status = types.StatementApproved
		target.Version = version + 1
		target.ApprovedBy = approver
		target.ApprovedAt = &approvedAt
		target.UpdatedAt = at
		if err := r.putStatement(ctx, tx, target); err != nil {
			return err
		}
		approved = target
		return nil
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

func (r *appetiteRepository) CreateCategory(ctx context.Context, c *model.AppetiteCategory) error {
	data, err := encode(c)
	if err != nil {
		return err
	}
	ok, err := insertIgnore(ctx, r.d.db,
		r.d.rebind(`INSERT INTO appetite_categories (org_id, id, statement_id, category_id, data) VALUES (?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`),
		c.OrgID, c.ID, c.StatementID, string(c.CategoryID), data)
	if err != nil {
		return goerr.Wrap(err, "failed to create appetite category", goerr.V("appetite_category_id", c.ID))
	}
	if !ok {
		return goerr.Wrap(model.ErrConflict, "category already has an appetite under this statement",
			goerr.V(model.StatementIDKey, c.StatementID), goerr.V("category_id", c.CategoryID))
	}
	return nil
}

func (r *appetiteRepository) getCategory(ctx context.Context, q querier, orgID, id string) (*model.AppetiteCategory, error) {
	c, found, err := queryOne[model.AppetiteCategory](ctx, q,
		r.d.rebind(`SELECT data FROM appetite_categories WHERE org_id = ? AND id = ?`), orgID, id)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get appetite category", goerr.V("appetite_category_id", id))
	}
	if !found {
		return nil, goerr.Wrap(model.ErrNotFound, "appetite category not found", goerr.V("appetite_category_id", id))
	}
	return c, nil
}

func (r *appetiteRepository) GetCategory(ctx context.Context, orgID, id string) (*model.AppetiteCategory, error) {
	return r.getCategory(ctx, r.d.db, orgID, id)
}

func (r *appetiteRepository) ListCategories(ctx context.Context, orgID string) ([]*model.AppetiteCategory, error) {
	return queryAll[model.AppetiteCategory](ctx, r.d.db,
		r.d.rebind(`SELECT data FROM appetite_categories WHERE org_id = ? ORDER BY category_id, id`), orgID)
}

func (r *appetiteRepository) UpdateCategory(ctx context.Context, c *model.AppetiteCategory) error {
	return r.d.inTx(ctx, func(tx *sql.Tx) error {
		existing, err := r.getCategory(ctx, tx, c.OrgID, c.ID)
		if err != nil {
			return err
		}
		updated := *c
		updated.StatementID = existing.StatementID
		updated.CategoryID = existing.CategoryID
		updated.CreatedAt = existing.CreatedAt
		data, err := encode(&updated)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, r.d.rebind(`UPDATE appetite_categories SET data = ? WHERE org_id = ? AND id = ?`),
			data, c.OrgID, c.ID); err != nil {
			return goerr.Wrap(err, "failed to update appetite category", goerr.V("appetite_category_id", c.ID))
		}
		return nil
	})
}

func (r *appetiteRepository) DeleteCategory(ctx context.Context, orgID, id string) error {
	return r.d.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := r.getCategory(ctx, tx, orgID, id); err != nil {
			return err
		}
		var toleranceID string
		err := tx.QueryRowContext(ctx,
			r.d.rebind(`SELECT id FROM tolerances WHERE org_id = ? AND appetite_category_id = ? LIMIT 1`), orgID, id).Scan(&toleranceID)
		switch {
		case err == nil:
			return goerr.Wrap(model.ErrConflict, "appetite category still has tolerances",
				goerr.V("appetite_category_id", id), goerr.V(model.ToleranceIDKey, toleranceID))
		case err != sql.ErrNoRows:
			return goerr.Wrap(err, "failed to check tolerances", goerr.V("appetite_category_id", id))
		}
		if _, err := tx.ExecContext(ctx, r.d.rebind(`DELETE FROM appetite_categories WHERE org_id = ? AND id = ?`), orgID, id); err != nil {
			return goerr.Wrap(err, "failed to delete appetite category", goerr.V("appetite_category_id", id))
		}
		return nil
	})
}
