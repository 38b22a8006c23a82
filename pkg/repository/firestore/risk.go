package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

const (
	risksCollection    = "risks"
	controlsCollection = "controls"
	linksCollection    = "risk_controls"

	// snapshotMarkersCollection holds one document per risk that appears in
	// a committed snapshot. Deleting such a risk soft-closes it.
	snapshotMarkersCollection = "snapshot_markers"
)

// snapshotMarker records the latest period a risk was snapshotted in
type snapshotMarker struct {
	RiskID string `firestore:"risk_id"`
	Period string `firestore:"period"`
}

type riskRepository struct {
	f *Firestore
}

func linkDocID(riskID, controlID string) string {
	return riskID + "__" + controlID
}

func (r *riskRepository) Create(ctx context.Context, risk *model.Risk) error {
	_, err := r.f.col(risk.OrgID, risksCollection).Doc(risk.ID).Create(ctx, risk)
	if err != nil {
		if isAlreadyExists(err) {
			return goerr.Wrap(model.ErrDuplicateCode, "risk code already exists", goerr.V(model.RiskIDKey, risk.ID))
		}
		return goerr.Wrap(err, "failed to create risk", goerr.V(model.RiskIDKey, risk.ID))
	}
	return nil
}

func (r *riskRepository) Get(ctx context.Context, orgID, id string) (*model.Risk, error) {
	risk, found, err := readOne[model.Risk](r.f.col(orgID, risksCollection).Doc(id).Get(ctx))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get risk", goerr.V(model.RiskIDKey, id))
	}
	if !found {
		return nil, goerr.Wrap(model.ErrNotFound, "risk not found", goerr.V(model.RiskIDKey, id))
	}
	return risk, nil
}

func (r *riskRepository) List(ctx context.Context, orgID string) ([]*model.Risk, error) {
	risks, err := readAll[model.Risk](r.f.col(orgID, risksCollection).OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list risks", goerr.V(model.OrgIDKey, orgID))
	}
	return risks, nil
}

func (r *riskRepository) Update(ctx context.Context, risk *model.Risk) error {
	ref := r.f.col(risk.OrgID, risksCollection).Doc(risk.ID)
	return r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, found, err := readOne[model.Risk](tx.Get(ref))
		if err != nil {
			return goerr.Wrap(err, "failed to get risk", goerr.V(model.RiskIDKey, risk.ID))
		}
		if !found {
			return goerr.Wrap(model.ErrNotFound, "risk not found", goerr.V(model.RiskIDKey, risk.ID))
		}
		doc := *risk
		doc.CreatedAt = existing.CreatedAt
		return tx.Set(ref, &doc)
	})
}

func (r *riskRepository) Delete(ctx context.Context, orgID, id string) (bool, error) {
	ref := r.f.col(orgID, risksCollection).Doc(id)
	markerRef := r.f.col(orgID, snapshotMarkersCollection).Doc(id)
	var softClosed bool
	err := r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, found, err := readOne[model.Risk](tx.Get(ref))
		if err != nil {
			return goerr.Wrap(err, "failed to get risk", goerr.V(model.RiskIDKey, id))
		}
		if !found {
			return goerr.Wrap(model.ErrNotFound, "risk not found", goerr.V(model.RiskIDKey, id))
		}
		links, err := tx.Documents(r.f.col(orgID, linksCollection).Where("RiskID", "==", id)).GetAll()
		if err != nil {
			return goerr.Wrap(err, "failed to list risk links", goerr.V(model.RiskIDKey, id))
		}
		_, snapshotted, err := readOne[snapshotMarker](tx.Get(markerRef))
		if err != nil {
			return goerr.Wrap(err, "failed to get snapshot marker", goerr.V(model.RiskIDKey, id))
		}

		for _, l := range links {
			if err := tx.Delete(l.Ref); err != nil {
				return goerr.Wrap(err, "failed to delete risk link", goerr.V(model.RiskIDKey, id))
			}
		}

		softClosed = snapshotted
		if !softClosed {
			return tx.Delete(ref)
		}
		doc.Status = types.RiskStatusClosed
		doc.IsActive = false
		doc.UpdatedAt = time.Now().UTC()
		return tx.Set(ref, doc)
	})
	if err != nil {
		return false, err
	}
	return softClosed, nil
}

func (r *riskRepository) Link(ctx context.Context, link *model.RiskControlLink) error {
	riskRef := r.f.col(link.OrgID, risksCollection).Doc(link.RiskID)
	controlRef := r.f.col(link.OrgID, controlsCollection).Doc(link.ControlID)
	linkRef := r.f.col(link.OrgID, linksCollection).Doc(linkDocID(link.RiskID, link.ControlID))

	return r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(riskRef); err != nil {
			if isNotFound(err) {
				return goerr.Wrap(model.ErrNotFound, "risk not found", goerr.V(model.RiskIDKey, link.RiskID))
			}
			return goerr.Wrap(err, "failed to get risk", goerr.V(model.RiskIDKey, link.RiskID))
		}
		if _, err := tx.Get(controlRef); err != nil {
			if isNotFound(err) {
				return goerr.Wrap(model.ErrNotFound, "control not found", goerr.V(model.ControlIDKey, link.ControlID))
			}
			return goerr.Wrap(err, "failed to get control", goerr.V(model.ControlIDKey, link.ControlID))
		}
		_, err := tx.Get(linkRef)
		if err == nil {
			return nil
		}
		if !isNotFound(err) {
			return goerr.Wrap(err, "failed to get link")
		}
		return tx.Create(linkRef, link)
	})
}

func (r *riskRepository) Unlink(ctx context.Context, orgID, riskID, controlID string) error {
	ref := r.f.col(orgID, linksCollection).Doc(linkDocID(riskID, controlID))
	if _, err := ref.Delete(ctx, firestore.Exists); err != nil {
		if isNotFound(err) {
			return goerr.Wrap(model.ErrNotFound, "link not found",
				goerr.V(model.RiskIDKey, riskID), goerr.V(model.ControlIDKey, controlID))
		}
		return goerr.Wrap(err, "failed to unlink control",
			goerr.V(model.RiskIDKey, riskID), goerr.V(model.ControlIDKey, controlID))
	}
	return nil
}

func (r *riskRepository) LinksByRisk(ctx context.Context, orgID, riskID string) ([]*model.RiskControlLink, error) {
	links, err := readAll[model.RiskControlLink](r.f.col(orgID, linksCollection).Where("RiskID", "==", riskID).Documents(ctx))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list links", goerr.V(model.RiskIDKey, riskID))
	}
	sortLinks(links)
	return links, nil
}

func (r *riskRepository) LinksByControl(ctx context.Context, orgID, controlID string) ([]*model.RiskControlLink, error) {
	links, err := readAll[model.RiskControlLink](r.f.col(orgID, linksCollection).Where("ControlID", "==", controlID).Documents(ctx))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list links", goerr.V(model.ControlIDKey, controlID))
	}
	sortLinks(links)
	return links, nil
}

type controlRepository struct {
	f *Firestore
}

func (r *controlRepository) Create(ctx context.Context, control *model.Control) error {
	_, err := r.f.col(control.OrgID, controlsCollection).Doc(control.ID).Create(ctx, control)
	if err != nil {
		if isAlreadyExists(err) {
			return goerr.Wrap(model.ErrDuplicateCode, "control code already exists", goerr.V(model.ControlIDKey, control.ID))
		}
		return goerr.Wrap(err, "failed to create control", goerr.V(model.ControlIDKey, control.ID))
	}
	return nil
}

func (r *controlRepository) Get(ctx context.Context, orgID, id string) (*model.Control, error) {
	c, found, err := readOne[model.Control](r.f.col(orgID, controlsCollection).Doc(id).Get(ctx))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get control", goerr.V(model.ControlIDKey, id))
	}
	if !found {
		return nil, goerr.Wrap(model.ErrNotFound, "control not found", goerr.V(model.ControlIDKey, id))
	}
	return c, nil
}

func (r *controlRepository) List(ctx context.Context, orgID string) ([]*model.Control, error) {
	controls, err := readAll[model.Control](r.f.col(orgID, controlsCollection).OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list controls", goerr.V(model.OrgIDKey, orgID))
	}
	return controls, nil
}

func (r *controlRepository) Update(ctx context.Context, control *model.Control) error {
	ref := r.f.col(control.OrgID, controlsCollection).Doc(control.ID)
	return r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, found, err := readOne[model.Control](tx.Get(ref))
		if err != nil {
			return goerr.Wrap(err, "failed to get control", goerr.V(model.ControlIDKey, control.ID))
		}
		if !found {
			return goerr.Wrap(model.ErrNotFound, "control not found", goerr.V(model.ControlIDKey, control.ID))
		}
		updated := *control
		updated.CreatedAt = existing.CreatedAt
		return tx.Set(ref, &updated)
	})
}

func (r *controlRepository) Delete(ctx context.Context, orgID, id string) error {
	ref := r.f.col(orgID, controlsCollection).Doc(id)
	return r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			if isNotFound(err) {
				return goerr.Wrap(model.ErrNotFound, "control not found", goerr.V(model.ControlIDKey, id))
			}
			return goerr.Wrap(err, "failed to get control", goerr.V(model.ControlIDKey, id))
		}
		links, err := tx.Documents(r.f.col(orgID, linksCollection).Where("ControlID", "==", id).Limit(1)).GetAll()
		if err != nil {
			return goerr.Wrap(err, "failed to check control links", goerr.V(model.ControlIDKey, id))
		}
		if len(links) > 0 {
			return goerr.Wrap(model.ErrConflict, "control is linked to a risk", goerr.V(model.ControlIDKey, id))
		}
		return tx.Delete(ref)
	})
}
