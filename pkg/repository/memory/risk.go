package memory

import (
	"context"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

type riskRepository struct {
	s *store
}

func copyRisk(r *model.Risk) *model.Risk {
	c := *r
	return &c
}

func (r *riskRepository) Create(ctx context.Context, risk *model.Risk) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.org(risk.OrgID, true)
	if _, exists := d.risks[risk.ID]; exists {
		return goerr.Wrap(model.ErrDuplicateCode, "risk code already exists", goerr.V(model.RiskIDKey, risk.ID))
	}
	d.risks[risk.ID] = copyRisk(risk)
	return nil
}

func (r *riskRepository) Get(ctx context.Context, orgID, id string) (*model.Risk, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	risk, exists := r.s.org(orgID, false).risks[id]
	if !exists {
		return nil, goerr.Wrap(model.ErrNotFound, "risk not found", goerr.V(model.RiskIDKey, id))
	}
	return copyRisk(risk), nil
}

func (r *riskRepository) List(ctx context.Context, orgID string) ([]*model.Risk, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d := r.s.org(orgID, false)
	risks := make([]*model.Risk, 0, len(d.risks))
	for _, risk := range d.risks {
		risks = append(risks, copyRisk(risk))
	}
	sort.Slice(risks, func(i, j int) bool { return risks[i].ID < risks[j].ID })
	return risks, nil
}

func (r *riskRepository) Update(ctx context.Context, risk *model.Risk) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.org(risk.OrgID, false)
	existing, exists := d.risks[risk.ID]
	if !exists {
		return goerr.Wrap(model.ErrNotFound, "risk not found", goerr.V(model.RiskIDKey, risk.ID))
	}
	updated := copyRisk(risk)
	updated.CreatedAt = existing.CreatedAt
	d.risks[risk.ID] = updated
	return nil
}

func (r *riskRepository) Delete(ctx context.Context, orgID, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.org(orgID, false)
	risk, exists := d.risks[id]
	if !exists {
		return false, goerr.Wrap(model.ErrNotFound, "risk not found", goerr.V(model.RiskIDKey, id))
	}

	for k := range d.links {
		if k.riskID == id {
			delete(d.links, k)
		}
	}

	if d.snapshotted[id] {
		risk.Status = types.RiskStatusClosed
		risk.IsActive = false
		risk.UpdatedAt = time.Now().UTC()
		return true, nil
	}
	delete(d.risks, id)
	return false, nil
}

func (r *riskRepository) Link(ctx context.Context, link *model.RiskControlLink) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.org(link.OrgID, false)
	if _, ok := d.risks[link.RiskID]; !ok {
		return goerr.Wrap(model.ErrNotFound, "risk not found", goerr.V(model.RiskIDKey, link.RiskID))
	}
	if _, ok := d.controls[link.ControlID]; !ok {
		return goerr.Wrap(model.ErrNotFound, "control not found", goerr.V(model.ControlIDKey, link.ControlID))
	}

	key := linkKey{riskID: link.RiskID, controlID: link.ControlID}
	if _, exists := d.links[key]; exists {
		return nil
	}
	c := *link
	d.links[key] = &c
	return nil
}

func (r *riskRepository) Unlink(ctx context.Context, orgID, riskID, controlID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.org(orgID, false)
	key := linkKey{riskID: riskID, controlID: controlID}
	if _, exists := d.links[key]; !exists {
		return goerr.Wrap(model.ErrNotFound, "link not found",
			goerr.V(model.RiskIDKey, riskID), goerr.V(model.ControlIDKey, controlID))
	}
	delete(d.links, key)
	return nil
}

func (r *riskRepository) LinksByRisk(ctx context.Context, orgID, riskID string) ([]*model.RiskControlLink, error) {
	return r.links(orgID, func(k linkKey) bool { return k.riskID == riskID }), nil
}

func (r *riskRepository) LinksByControl(ctx context.Context, orgID, controlID string) ([]*model.RiskControlLink, error) {
	return r.links(orgID, func(k linkKey) bool { return k.controlID == controlID }), nil
}

func (r *riskRepository) links(orgID string, match func(linkKey) bool) []*model.RiskControlLink {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var links []*model.RiskControlLink
	for k, l := range r.s.org(orgID, false).links {
		if match(k) {
			c := *l
			links = append(links, &c)
		}
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].RiskID != links[j].RiskID {
			return links[i].RiskID < links[j].RiskID
		}
		return links[i].ControlID < links[j].ControlID
	})
	return links
}

type controlRepository struct {
	s *store
}

func copyControl(c *model.Control) *model.Control {
	cp := *c
	return &cp
}

func (r *controlRepository) Create(ctx context.Context, control *model.Control) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.org(control.OrgID, true)
	if _, exists := d.controls[control.ID]; exists {
		return goerr.Wrap(model.ErrDuplicateCode, "control code already exists", goerr.V(model.ControlIDKey, control.ID))
	}
	d.controls[control.ID] = copyControl(control)
	return nil
}

func (r *controlRepository) Get(ctx context.Context, orgID, id string) (*model.Control, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, exists := r.s.org(orgID, false).controls[id]
	if !exists {
		return nil, goerr.Wrap(model.ErrNotFound, "control not found", goerr.V(model.ControlIDKey, id))
	}
	return copyControl(c), nil
}

func (r *controlRepository) List(ctx context.Context, orgID string) ([]*model.Control, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d := r.s.org(orgID, false)
	controls := make([]*model.Control, 0, len(d.controls))
	for _, c := range d.controls {
		controls = append(controls, copyControl(c))
	}
	sort.Slice(controls, func(i, j int) bool { return controls[i].ID < controls[j].ID })
	return controls, nil
}

func (r *controlRepository) Update(ctx context.Context, control *model.Control) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.org(control.OrgID, false)
	existing, exists := d.controls[control.ID]
	if !exists {
		return goerr.Wrap(model.ErrNotFound, "control not found", goerr.V(model.ControlIDKey, control.ID))
	}
	updated := copyControl(control)
	updated.CreatedAt = existing.CreatedAt
	d.controls[control.ID] = updated
	return nil
}

func (r *controlRepository) Delete(ctx context.Context, orgID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	d := r.s.org(orgID, false)
	if _, exists := d.controls[id]; !exists {
		return goerr.Wrap(model.ErrNotFound, "control not found", goerr.V(model.ControlIDKey, id))
	}
	for k := range d.links {
		if k.controlID == id {
			return goerr.Wrap(model.ErrConflict, "control is linked to a risk",
				goerr.V(model.ControlIDKey, id), goerr.V(model.RiskIDKey, k.riskID))
		}
	}
	delete(d.controls, id)
	return nil
}
