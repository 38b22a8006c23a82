package firestore

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

const (
	statementsCollection = "appetite_statements"
	categoriesCollection = "appetite_categories"
)

type appetiteRepository struct {
	f *Firestore
}

func (r *appetiteRepository) CreateStatement(ctx context.Context, st *model.AppetiteStatement) error {
	if _, err := r.f.col(st.OrgID, statementsCollection).Doc(st.ID).Create(ctx, st); err != nil {
		if isAlreadyExists(err) {
			return goerr.Wrap(model.ErrConflict, "statement already exists", goerr.V(model.StatementIDKey, st.ID))
		}
		return goerr.Wrap(err, "failed to create statement", goerr.V(model.StatementIDKey, st.ID))
	}
	return nil
}

func (r *appetiteRepository) GetStatement(ctx context.Context, orgID, id string) (*model.AppetiteStatement, error) {
	st, found, err := readOne[model.AppetiteStatement](r.f.col(orgID, statementsCollection).Doc(id).Get(ctx))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get statement", goerr.V(model.StatementIDKey, id))
	}
	if !found {
		return nil, goerr.Wrap(model.ErrNotFound, "statement not found", goerr.V(model.StatementIDKey, id))
	}
	return st, nil
}

func (r *appetiteRepository) ListStatements(ctx context.Context, orgID string) ([]*model.AppetiteStatement, error) {
	list, err := readAll[model.AppetiteStatement](r.f.col(orgID, statementsCollection).Documents(ctx))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list statements", goerr.V(model.OrgIDKey, orgID))
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
	ref := r.f.col(st.OrgID, statementsCollection).Doc(st.ID)
	return r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		existing, found, err := readOne[model.AppetiteStatement](tx.Get(ref))
		if err != nil {
			return goerr.Wrap(err, "failed to get statement", goerr.V(model.StatementIDKey, st.ID))
		}
		if !found {
			return goerr.Wrap(model.ErrNotFound, "statement not found", goerr.V(model.StatementIDKey, st.ID))
		}
		if existing.Status != expected {
			return goerr.Wrap(model.ErrConcurrentModification, "statement status changed",
				goerr.V(model.StatementIDKey, st.ID), goerr.V(model.CurrentKey, existing.Status))
		}
		return tx.Set(ref, st)
	})
}

func (r *appetiteRepository) ApproveStatement(ctx context.Context, orgID, id, approver string, at time.Time) (*model.AppetiteStatement, error) {
	col := r.f.col(orgID, statementsCollection)
	var approved *model.AppetiteStatement
	err := r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		all, err := readAll[model.AppetiteStatement](tx.Documents(col))
		if err != nil {
			return goerr.Wrap(err, "failed to list statements", goerr.V(model.OrgIDKey, orgID))
		}

		var target *model.AppetiteStatement
		version := 0
		for _, st := range all {
			version = max(version, st.Version)
			if st.ID == id {
				target = st
			}
		}
		if target == nil {
			return goerr.Wrap(model.ErrNotFound, "statement not found", goerr.V(model.StatementIDKey, id))
		}
		if target.Status != types.StatementDraft {
			return goerr.Wrap(model.ErrConcurrentModification, "statement is not a draft",
				goerr.V(model.StatementIDKey, id), goerr.V(model.CurrentKey, target.Status))
		}

		for _, st := range all {
			if st.Status != types.StatementApproved {
				continue
			}
			st.Status = types.StatementSuperseded
			st.UpdatedAt = at
			if err := tx.Set(col.Doc(st.ID), st); err != nil {
				return err
			}
		}

		approvedAt := at
		target.Status = types.StatementApproved
		target.Version = version + 1
		target.ApprovedBy = approver
		target.ApprovedAt = &approvedAt
		target.UpdatedAt = at
		approved = target
		return tx.Set(col.Doc(id), target)
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

func categoryDocID(statementID string, categoryID types.CategoryID) string {
	return statementID + "__" + string(categoryID)
}

// Appetite categories are keyed by statement and taxonomy category, which
// makes the uniqueness rule a document existence check. The public ID is
// stored in the record and resolved through a query.
func (r *appetiteRepository) CreateCategory(ctx context.Context, c *model.AppetiteCategory) error {
	ref := r.f.col(c.OrgID, categoriesCollection).Doc(categoryDocID(c.StatementID, c.CategoryID))
	if _, err := ref.Create(ctx, c); err != nil {
		if isAlreadyExists(err) {
			return goerr.Wrap(model.ErrConflict, "category already has an appetite under this statement",
				goerr.V(model.StatementIDKey, c.StatementID), goerr.V("category_id", c.CategoryID))
		}
		return goerr.Wrap(err, "failed to create appetite category", goerr.V("appetite_category_id", c.ID))
	}
	return nil
}

func (r *appetiteRepository) findCategory(ctx context.Context, tx *firestore.Transaction, orgID, id string) (*firestore.DocumentSnapshot, error) {
	q := r.f.col(orgID, categoriesCollection).Where("ID", "==", id).Limit(1)
	var (
		docs []*firestore.DocumentSnapshot
		err  error
	)
	if tx != nil {
		docs, err = tx.Documents(q).GetAll()
	} else {
		docs, err = q.Documents(ctx).GetAll()
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get appetite category", goerr.V("appetite_category_id", id))
	}
	if len(docs) == 0 {
		return nil, goerr.Wrap(model.ErrNotFound, "appetite category not found", goerr.V("appetite_category_id", id))
	}
	return docs[0], nil
}

func (r *appetiteRepository) GetCategory(ctx context.Context, orgID, id string) (*model.AppetiteCategory, error) {
	doc, err := r.findCategory(ctx, nil, orgID, id)
	if err != nil {
		return nil, err
	}
	c, _, err := readOne[model.AppetiteCategory](doc, nil)
	return c, err
}

func (r *appetiteRepository) ListCategories(ctx context.Context, orgID string) ([]*model.AppetiteCategory, error) {
	list, err := readAll[model.AppetiteCategory](r.f.col(orgID, categoriesCollection).Documents(ctx))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list appetite categories", goerr.V(model.OrgIDKey, orgID))
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
	return r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := r.findCategory(ctx, tx, c.OrgID, c.ID)
		if err != nil {
			return err
		}
		existing, _, err := readOne[model.AppetiteCategory](doc, nil)
		if err != nil {
			return err
		}
		updated := *c
		updated.StatementID = existing.StatementID
		updated.CategoryID = existing.CategoryID
		updated.CreatedAt = existing.CreatedAt
		return tx.Set(doc.Ref, &updated)
	})
}

func (r *appetiteRepository) DeleteCategory(ctx context.Context, orgID, id string) error {
	return r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := r.findCategory(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		tolerances, err := tx.Documents(r.f.col(orgID, tolerancesCollection).Where("AppetiteCategoryID", "==", id).Limit(1)).GetAll()
		if err != nil {
			return goerr.Wrap(err, "failed to check tolerances", goerr.V("appetite_category_id", id))
		}
		if len(tolerances) > 0 {
			return goerr.Wrap(model.ErrConflict, "appetite category still has tolerances",
				goerr.V("appetite_category_id", id), goerr.V(model.ToleranceIDKey, tolerances[0].Ref.ID))
		}
		return tx.Delete(doc.Ref)
	})
}
