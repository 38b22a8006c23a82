package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/interfaces"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore stores each organization's register under
// organizations/{org_id}/<collection>/{id}
type Firestore struct {
	client           *firestore.Client
	collectionPrefix string
	counterAttempts  int

	risk      *riskRepository
	control   *controlRepository
	indicator *indicatorRepository
	alert     *alertRepository
	appetite  *appetiteRepository
	tolerance *toleranceRepository
	breach    *breachRepository
	period    *periodRepository
	counter   *codeCounter
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.collectionPrefix = prefix
	}
}

// WithCounterAttempts bounds the transaction attempts of one code counter
// increment. Contention beyond the bound is reported as
// model.ErrGenerationExhausted.
func WithCounterAttempts(n int) Option {
	return func(f *Firestore) {
		if n > 0 {
			f.counterAttempts = n
		}
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID), goerr.V("databaseID", databaseID))
	}

	f := &Firestore{client: client, counterAttempts: defaultCounterAttempts}
	for _, opt := range opts {
		opt(f)
	}

	f.risk = &riskRepository{f: f}
	f.control = &controlRepository{f: f}
	f.indicator = &indicatorRepository{f: f}
	f.alert = &alertRepository{f: f}
	f.appetite = &appetiteRepository{f: f}
	f.tolerance = &toleranceRepository{f: f}
	f.breach = &breachRepository{f: f}
	f.period = &periodRepository{f: f}
	f.counter = &codeCounter{f: f}

	return f, nil
}

func (f *Firestore) Risk() interfaces.RiskRepository           { return f.risk }
func (f *Firestore) Control() interfaces.ControlRepository     { return f.control }
func (f *Firestore) Indicator() interfaces.IndicatorRepository { return f.indicator }
func (f *Firestore) Alert() interfaces.AlertRepository         { return f.alert }
func (f *Firestore) Appetite() interfaces.AppetiteRepository   { return f.appetite }
func (f *Firestore) Tolerance() interfaces.ToleranceRepository { return f.tolerance }
func (f *Firestore) Breach() interfaces.BreachRepository       { return f.breach }
func (f *Firestore) Period() interfaces.PeriodRepository       { return f.period }
func (f *Firestore) CodeCounter() interfaces.CodeCounter       { return f.counter }

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *Firestore) orgsCollection() string {
	if f.collectionPrefix != "" {
		return f.collectionPrefix + "_organizations"
	}
	return "organizations"
}

// col returns a collection of one organization
func (f *Firestore) col(orgID, name string) *firestore.CollectionRef {
	return f.client.Collection(f.orgsCollection()).Doc(orgID).Collection(name)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func isAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}

func isAborted(err error) bool {
	return status.Code(err) == codes.Aborted
}

// readAll decodes every document of iter
func readAll[T any](iter *firestore.DocumentIterator) ([]*T, error) {
	defer iter.Stop()

	list := []*T{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate documents")
		}
		v := new(T)
		if err := doc.DataTo(v); err != nil {
			return nil, goerr.Wrap(err, "failed to decode document", goerr.V("doc_id", doc.Ref.ID))
		}
		list = append(list, v)
	}
	return list, nil
}

// readOne decodes a document. found is false when it does not exist.
func readOne[T any](snap *firestore.DocumentSnapshot, err error) (*T, bool, error) {
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, goerr.Wrap(err, "failed to get document")
	}
	v := new(T)
	if err := snap.DataTo(v); err != nil {
		return nil, false, goerr.Wrap(err, "failed to decode document", goerr.V("doc_id", snap.Ref.ID))
	}
	return v, true, nil
}
