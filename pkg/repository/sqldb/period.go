package sqldb

import (
	"context"
	"database/sql"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/interfaces"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
	"github.com/secmon-lab/riskregister/pkg/utils/safe"
)

type periodRepository struct {
	d *DB
}

func (r *periodRepository) getPointer(ctx context.Context, q querier, orgID string) (*model.PeriodPointer, bool, error) {
	p, found, err := queryOne[model.PeriodPointer](ctx, q,
		r.d.rebind(`SELECT data FROM period_pointers WHERE org_id = ?`), orgID)
	if err != nil {
		return nil, false, goerr.Wrap(err, "failed to get period pointer", goerr.V(model.OrgIDKey, orgID))
	}
	return p, found, nil
}

func (r *periodRepository) GetPointer(ctx context.Context, orgID string) (*model.PeriodPointer, error) {
	p, found, err := r.getPointer(ctx, r.d.db, orgID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, goerr.Wrap(model.ErrNotFound, "organization has no active period", goerr.V(model.OrgIDKey, orgID))
	}
	return p, nil
}

func (r *periodRepository) InitPointer(ctx context.Context, pointer *model.PeriodPointer) error {
	data, err := encode(pointer)
	if err != nil {
		return err
	}
	ok, err := insertIgnore(ctx, r.d.db,
		r.d.rebind(`INSERT INTO period_pointers (org_id, data) VALUES (?, ?) ON CONFLICT DO NOTHING`),
		pointer.OrgID, data)
	if err != nil {
		return goerr.Wrap(err, "failed to initialize period pointer", goerr.V(model.OrgIDKey, pointer.OrgID))
	}
	if !ok {
		return goerr.Wrap(model.ErrConflict, "organization already has an active period", goerr.V(model.OrgIDKey, pointer.OrgID))
	}
	return nil
}

// loadState reads the live register inside the commit transaction
func (r *periodRepository) loadState(ctx context.Context, tx *sql.Tx, orgID string) (*model.RegisterState, error) {
	state := &model.RegisterState{
		Controls:        make(map[string]*model.Control),
		Links:           make(map[string][]string),
		IndicatorCounts: make(map[string]int),
	}

	pointer, found, err := r.getPointer(ctx, tx, orgID)
	if err != nil {
		return nil, err
	}
	if found {
		state.Pointer = pointer
	}

	risks, err := queryAll[model.Risk](ctx, tx, r.d.rebind(`SELECT data FROM risks WHERE org_id = ? ORDER BY id`), orgID)
	if err != nil {
		return nil, err
	}
	for _, risk := range risks {
		if risk.IsActive {
			state.Risks = append(state.Risks, risk)
		}
	}

	controls, err := queryAll[model.Control](ctx, tx, r.d.rebind(`SELECT data FROM controls WHERE org_id = ?`), orgID)
	if err != nil {
		return nil, err
	}
	for _, c := range controls {
		state.Controls[c.ID] = c
	}

	links, err := queryAll[model.RiskControlLink](ctx, tx,
		r.d.rebind(`SELECT data FROM risk_controls WHERE org_id = ? ORDER BY risk_id, control_id`), orgID)
	if err != nil {
		return nil, err
	}
	for _, l := range links {
		state.Links[l.RiskID] = append(state.Links[l.RiskID], l.ControlID)
	}

	rows, err := tx.QueryContext(ctx,
		r.d.rebind(`SELECT risk_id, COUNT(*) FROM indicators WHERE org_id = ? AND risk_id <> '' GROUP BY risk_id`), orgID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to count indicators")
	}
	defer safe.Close(ctx, rows)
	for rows.Next() {
		var (
			riskID string
			n      int
		)
		if err := rows.Scan(&riskID, &n); err != nil {
			return nil, goerr.Wrap(err, "failed to scan indicator count")
		}
		state.IndicatorCounts[riskID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate indicator counts")
	}
	return state, nil
}

func (r *periodRepository) alreadyCommitted(orgID string, period types.Period) error {
	return goerr.Wrap(model.ErrAlreadyCommitted, "period is already committed",
		goerr.V(model.OrgIDKey, orgID), goerr.V(model.PeriodKey, period.String()))
}

func (r *periodRepository) Commit(ctx context.Context, orgID string, period types.Period, build interfaces.CommitBuilder) (*model.CommitPlan, error) {
	var plan *model.CommitPlan
	err := r.d.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx,
			r.d.rebind(`SELECT COUNT(*) FROM period_commits WHERE org_id = ? AND period = ?`),
			orgID, period.String()).Scan(&exists); err != nil {
			return goerr.Wrap(err, "failed to check period commit")
		}
		if exists > 0 {
			return r.alreadyCommitted(orgID, period)
		}

		state, err := r.loadState(ctx, tx, orgID)
		if err != nil {
			return err
		}
		built, err := build(state)
		if err != nil {
			return err
		}

		for _, snap := range built.Snapshots {
			data, err := encode(snap)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				r.d.rebind(`INSERT INTO risk_snapshots (org_id, period, risk_id, data) VALUES (?, ?, ?, ?)`),
				orgID, period.String(), snap.RiskID, data); err != nil {
				if isUniqueViolation(err) {
					return r.alreadyCommitted(orgID, period)
				}
				return goerr.Wrap(err, "failed to write snapshot", goerr.V(model.RiskIDKey, snap.RiskID))
			}
		}

		data, err := encode(built.Commit)
		if err != nil {
			return err
		}
		ok, err := insertIgnore(ctx, tx,
			r.d.rebind(`INSERT INTO period_commits (org_id, period, data) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`),
			orgID, period.String(), data)
		if err != nil {
			return goerr.Wrap(err, "failed to write period commit")
		}
		if !ok {
			return r.alreadyCommitted(orgID, period)
		}

		pointer, err := encode(built.Pointer)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			r.d.rebind(`INSERT INTO period_pointers (org_id, data) VALUES (?, ?) ON CONFLICT (org_id) DO UPDATE SET data = excluded.data`),
			orgID, pointer); err != nil {
			return goerr.Wrap(err, "failed to advance period pointer")
		}

		plan = built
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (r *periodRepository) GetCommit(ctx context.Context, orgID string, period types.Period) (*model.PeriodCommit, error) {
	commit, found, err := queryOne[model.PeriodCommit](ctx, r.d.db,
		r.d.rebind(`SELECT data FROM period_commits WHERE org_id = ? AND period = ?`), orgID, period.String())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get period commit")
	}
	if !found {
		return nil, goerr.Wrap(model.ErrNotFound, "period is not committed",
			goerr.V(model.OrgIDKey, orgID), goerr.V(model.PeriodKey, period.String()))
	}
	return commit, nil
}

func (r *periodRepository) ListCommits(ctx context.Context, orgID string) ([]*model.PeriodCommit, error) {
	return queryAll[model.PeriodCommit](ctx, r.d.db,
		r.d.rebind(`SELECT data FROM period_commits WHERE org_id = ? ORDER BY period`), orgID)
}

func (r *periodRepository) ListSnapshots(ctx context.Context, orgID string, period types.Period) ([]*model.RiskSnapshot, error) {
	if _, err := r.GetCommit(ctx, orgID, period); err != nil {
		return nil, err
	}
	return queryAll[model.RiskSnapshot](ctx, r.d.db,
		r.d.rebind(`SELECT data FROM risk_snapshots WHERE org_id = ? AND period = ? ORDER BY risk_id`), orgID, period.String())
}

type codeCounter struct {
	d *DB
}

func (c *codeCounter) Next(ctx context.Context, orgID, prefix string) (int64, error) {
	var value int64
	err := c.d.db.QueryRowContext(ctx, c.d.rebind(`
		INSERT INTO code_counters (org_id, prefix, value) VALUES (?, ?, 1)
		ON CONFLICT (org_id, prefix) DO UPDATE SET value = code_counters.value + 1
		RETURNING value`), orgID, prefix).Scan(&value)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to advance code counter",
			goerr.V(model.OrgIDKey, orgID), goerr.V(model.PrefixKey, prefix))
	}
	return value, nil
}
