package memory

import (
	"context"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/interfaces"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

type periodRepository struct {
	s *store
}

func (r *periodRepository) GetPointer(ctx context.Context, orgID string) (*model.PeriodPointer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d := r.s.org(orgID, false)
	if d.pointer == nil {
		return nil, goerr.Wrap(model.ErrNotFound, "organization has no active period", goerr.V(model.OrgIDKey, orgID))
	}
	return d.pointer.Clone(), nil
}

func (r *periodRepository) InitPointer(ctx context.Context, pointer *model.PeriodPointer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.org(pointer.OrgID, true)
	if d.pointer != nil {
		return goerr.Wrap(model.ErrConflict, "organization already has an active period",
			goerr.V(model.OrgIDKey, pointer.OrgID), goerr.V(model.CurrentKey, d.pointer.Active.String()))
	}
	d.pointer = pointer.Clone()
	return nil
}

// state copies the live register of d. Callers must hold the lock.
func (d *orgData) state() *model.RegisterState {
	state := &model.RegisterState{
		Controls:        make(map[string]*model.Control, len(d.controls)),
		Links:           make(map[string][]string),
		IndicatorCounts: make(map[string]int),
	}
	if d.pointer != nil {
		state.Pointer = d.pointer.Clone()
	}
	for _, risk := range d.risks {
		if risk.IsActive {
			c := *risk
			state.Risks = append(state.Risks, &c)
		}
	}
	for id, ctrl := range d.controls {
		c := *ctrl
		state.Controls[id] = &c
	}
	for key := range d.links {
		state.Links[key.riskID] = append(state.Links[key.riskID], key.controlID)
	}
	for _, ids := range state.Links {
		sort.Strings(ids)
	}
	for _, ind := range d.indicators {
		if ind.RiskID != "" {
			state.IndicatorCounts[ind.RiskID]++
		}
	}
	return state
}

func (r *periodRepository) Commit(ctx context.Context, orgID string, period types.Period, build interfaces.CommitBuilder) (*model.CommitPlan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.org(orgID, false)
	if existing, ok := d.commits[period]; ok {
		return nil, goerr.Wrap(model.ErrAlreadyCommitted, "period is already committed",
			goerr.V(model.OrgIDKey, orgID), goerr.V(model.PeriodKey, period.String()),
			goerr.V("committed_by", existing.CommittedBy))
	}

	plan, err := build(d.state())
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, goerr.Wrap(err, "commit cancelled before write")
	}

	d = r.s.org(orgID, true)
	snaps := make([]*model.RiskSnapshot, len(plan.Snapshots))
	for i, s := range plan.Snapshots {
		c := *s
		snaps[i] = &c
		d.snapshotted[s.RiskID] = true
	}
	commit := *plan.Commit
	d.snapshots[period] = snaps
	d.commits[period] = &commit
	d.pointer = plan.Pointer.Clone()
	return plan, nil
}

func (r *periodRepository) GetCommit(ctx context.Context, orgID string, period types.Period) (*model.PeriodCommit, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	commit, ok := r.s.org(orgID, false).commits[period]
	if !ok {
		return nil, goerr.Wrap(model.ErrNotFound, "period is not committed",
			goerr.V(model.OrgIDKey, orgID), goerr.V(model.PeriodKey, period.String()))
	}
	c := *commit
	return &c, nil
}

func (r *periodRepository) ListCommits(ctx context.Context, orgID string) ([]*model.PeriodCommit, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d := r.s.org(orgID, false)
	list := make([]*model.PeriodCommit, 0, len(d.commits))
	for _, commit := range d.commits {
		c := *commit
		list = append(list, &c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Period.Before(list[j].Period) })
	return list, nil
}

func (r *periodRepository) ListSnapshots(ctx context.Context, orgID string, period types.Period) ([]*model.RiskSnapshot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d := r.s.org(orgID, false)
	if _, ok := d.commits[period]; !ok {
		return nil, goerr.Wrap(model.ErrNotFound, "period is not committed",
			goerr.V(model.OrgIDKey, orgID), goerr.V(model.PeriodKey, period.String()))
	}
	stored := d.snapshots[period]
	list := make([]*model.RiskSnapshot, len(stored))
	for i, s := range stored {
		c := *s
		list[i] = &c
	}
	sort.Slice(list, func(i, j int) bool { return list[i].RiskID < list[j].RiskID })
	return list, nil
}
