package firestore

import (
	"context"
	"sort"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/interfaces"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
)

const (
	periodsCollection   = "periods"
	snapshotsCollection = "snapshots"
	stateCollection     = "state"
	countersCollection  = "counters"
	pointerDoc          = "period_pointer"

	// maxTransactionWrites is the Firestore limit of writes in one transaction
	maxTransactionWrites = 500

	defaultCounterAttempts = 5
)

type periodRepository struct {
	f *Firestore
}

func (r *periodRepository) pointerRef(orgID string) *firestore.DocumentRef {
	return r.f.col(orgID, stateCollection).Doc(pointerDoc)
}

// commitRef is organizations/{org}/periods/{period}. The snapshots of a
// period live in its snapshots subcollection.
func (r *periodRepository) commitRef(orgID string, period types.Period) *firestore.DocumentRef {
	return r.f.col(orgID, periodsCollection).Doc(period.String())
}

func (r *periodRepository) GetPointer(ctx context.Context, orgID string) (*model.PeriodPointer, error) {
	p, found, err := readOne[model.PeriodPointer](r.pointerRef(orgID).Get(ctx))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get period pointer", goerr.V(model.OrgIDKey, orgID))
	}
	if !found {
		return nil, goerr.Wrap(model.ErrNotFound, "organization has no active period", goerr.V(model.OrgIDKey, orgID))
	}
	return p, nil
}

func (r *periodRepository) InitPointer(ctx context.Context, pointer *model.PeriodPointer) error {
	if _, err := r.pointerRef(pointer.OrgID).Create(ctx, pointer); err != nil {
		if isAlreadyExists(err) {
			return goerr.Wrap(model.ErrConflict, "organization already has an active period", goerr.V(model.OrgIDKey, pointer.OrgID))
		}
		return goerr.Wrap(err, "failed to initialize period pointer", goerr.V(model.OrgIDKey, pointer.OrgID))
	}
	return nil
}

func (r *periodRepository) Commit(ctx context.Context, orgID string, period types.Period, build interfaces.CommitBuilder) (*model.CommitPlan, error) {
	commitRef := r.commitRef(orgID, period)
	var plan *model.CommitPlan

	err := r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(commitRef); err == nil {
			return goerr.Wrap(model.ErrAlreadyCommitted, "period is already committed",
				goerr.V(model.OrgIDKey, orgID), goerr.V(model.PeriodKey, period.String()))
		} else if !isNotFound(err) {
			return goerr.Wrap(err, "failed to check period commit")
		}

		state := &model.RegisterState{
			Controls:        make(map[string]*model.Control),
			Links:           make(map[string][]string),
			IndicatorCounts: make(map[string]int),
		}
		pointer, found, err := readOne[model.PeriodPointer](tx.Get(r.pointerRef(orgID)))
		if err != nil {
			return goerr.Wrap(err, "failed to get period pointer")
		}
		if found {
			state.Pointer = pointer
		}

		risks, err := readAll[model.Risk](tx.Documents(r.f.col(orgID, risksCollection)))
		if err != nil {
			return goerr.Wrap(err, "failed to load risks")
		}
		for _, risk := range risks {
			if risk.IsActive {
				state.Risks = append(state.Risks, risk)
			}
		}

		controls, err := readAll[model.Control](tx.Documents(r.f.col(orgID, controlsCollection)))
		if err != nil {
			return goerr.Wrap(err, "failed to load controls")
		}
		for _, c := range controls {
			state.Controls[c.ID] = c
		}

		links, err := readAll[model.RiskControlLink](tx.Documents(r.f.col(orgID, linksCollection)))
		if err != nil {
			return goerr.Wrap(err, "failed to load links")
		}
		sortLinks(links)
		for _, l := range links {
			state.Links[l.RiskID] = append(state.Links[l.RiskID], l.ControlID)
		}

		indicators, err := readAll[model.Indicator](tx.Documents(r.f.col(orgID, indicatorsCollection)))
		if err != nil {
			return goerr.Wrap(err, "failed to load indicators")
		}
		for _, ind := range indicators {
			if ind.RiskID != "" {
				state.IndicatorCounts[ind.RiskID]++
			}
		}

		built, err := build(state)
		if err != nil {
			return err
		}

		// two writes per snapshot, plus the commit and the pointer
		if writes := 2*len(built.Snapshots) + 2; writes > maxTransactionWrites {
			return goerr.Wrap(model.ErrValidation, "register is too large to commit in one transaction",
				goerr.V(model.OrgIDKey, orgID), goerr.V("writes", writes))
		}

		snapshots := commitRef.Collection(snapshotsCollection)
		for _, snap := range built.Snapshots {
			if err := tx.Create(snapshots.Doc(snap.RiskID), snap); err != nil {
				return goerr.Wrap(err, "failed to write snapshot", goerr.V(model.RiskIDKey, snap.RiskID))
			}
			markerRef := r.f.col(orgID, snapshotMarkersCollection).Doc(snap.RiskID)
			if err := tx.Set(markerRef, &snapshotMarker{RiskID: snap.RiskID, Period: period.String()}); err != nil {
				return goerr.Wrap(err, "failed to mark risk snapshotted", goerr.V(model.RiskIDKey, snap.RiskID))
			}
		}
		if err := tx.Create(commitRef, built.Commit); err != nil {
			return goerr.Wrap(err, "failed to write period commit")
		}
		if err := tx.Set(r.pointerRef(orgID), built.Pointer); err != nil {
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
	commit, found, err := readOne[model.PeriodCommit](r.commitRef(orgID, period).Get(ctx))
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
	list, err := readAll[model.PeriodCommit](r.f.col(orgID, periodsCollection).Documents(ctx))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list period commits", goerr.V(model.OrgIDKey, orgID))
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Period.Before(list[j].Period) })
	return list, nil
}

func (r *periodRepository) ListSnapshots(ctx context.Context, orgID string, period types.Period) ([]*model.RiskSnapshot, error) {
	if _, err := r.GetCommit(ctx, orgID, period); err != nil {
		return nil, err
	}
	list, err := readAll[model.RiskSnapshot](r.commitRef(orgID, period).Collection(snapshotsCollection).
		OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list snapshots", goerr.V(model.PeriodKey, period.String()))
	}
	return list, nil
}

type codeCounter struct {
	f *Firestore
}

func (c *codeCounter) Next(ctx context.Context, orgID, prefix string) (int64, error) {
	counterRef := c.f.col(orgID, countersCollection).Doc(prefix)

	var next int64
	err := c.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(counterRef)
		if err != nil {
			if isNotFound(err) {
				next = 1
				return tx.Set(counterRef, map[string]any{"value": next})
			}
			return goerr.Wrap(err, "failed to get counter")
		}

		current, err := doc.DataAt("value")
		if err != nil {
			return goerr.Wrap(err, "failed to get counter value")
		}
		val, ok := current.(int64)
		if !ok {
			return goerr.New("counter value is not of type int64", goerr.V("value", current))
		}
		next = val + 1
		return tx.Update(counterRef, []firestore.Update{{Path: "value", Value: next}})
	}, firestore.MaxAttempts(c.f.counterAttempts))
	if err != nil {
		return 0, counterError(err, orgID, prefix, c.f.counterAttempts)
	}
	return next, nil
}

// counterError reports contention that outlasted every attempt as
// model.ErrGenerationExhausted
func counterError(err error, orgID, prefix string, attempts int) error {
	if isAborted(err) {
		return goerr.Wrap(model.ErrGenerationExhausted, "code counter contention outlasted retries",
			goerr.V(model.OrgIDKey, orgID), goerr.V(model.PrefixKey, prefix),
			goerr.V("attempts", attempts), goerr.V("cause", err.Error()))
	}
	return goerr.Wrap(err, "failed to advance code counter",
		goerr.V(model.OrgIDKey, orgID), goerr.V(model.PrefixKey, prefix))
}
