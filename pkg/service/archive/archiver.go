package archive

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/utils/logging"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Archiver writes each committed period to Cloud Storage exactly once
type Archiver struct {
	client *storage.Client
	bucket string
	prefix string
}

// Document is the JSON body of an archived period
type Document struct {
	Commit    *model.PeriodCommit   `json:"commit"`
	Snapshots []*model.RiskSnapshot `json:"snapshots"`
}

// New creates an archiver that writes objects under prefix in bucket
func New(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*Archiver, error) {
	if bucket == "" {
		return nil, goerr.New("archive bucket is required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Cloud Storage client")
	}
	return &Archiver{client: client, bucket: bucket, prefix: prefix}, nil
}

// Close releases the underlying client
func (a *Archiver) Close() error {
	return a.client.Close()
}

func objectName(prefix string, commit *model.PeriodCommit) string {
	return path.Join(prefix, commit.OrgID, commit.Period.String()+".json")
}

// Archive stores the commit and its snapshots. An existing object for the
// same period is never overwritten.
func (a *Archiver) Archive(ctx context.Context, commit *model.PeriodCommit, snapshots []*model.RiskSnapshot) error {
	name := objectName(a.prefix, commit)
	obj := a.client.Bucket(a.bucket).Object(name).If(storage.Conditions{DoesNotExist: true})

	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"
	w.Metadata = map[string]string{
		"org_id":       commit.OrgID,
		"period":       commit.Period.String(),
		"committed_by": commit.CommittedBy,
	}

	if err := json.NewEncoder(w).Encode(Document{Commit: commit, Snapshots: snapshots}); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to encode archive", goerr.V("object", name))
	}

	if err := w.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			return goerr.Wrap(model.ErrAlreadyCommitted, "archive object already exists",
				goerr.V("bucket", a.bucket), goerr.V("object", name))
		}
		return goerr.Wrap(err, "failed to write archive", goerr.V("bucket", a.bucket), goerr.V("object", name))
	}

	logging.From(ctx).Info("period archived",
		"org_id", commit.OrgID,
		"period", commit.Period.String(),
		"bucket", a.bucket,
		"object", name,
		"snapshots", len(snapshots),
	)
	return nil
}

// Load reads an archived period back
func (a *Archiver) Load(ctx context.Context, commit *model.PeriodCommit) (*Document, error) {
	name := objectName(a.prefix, commit)
	r, err := a.client.Bucket(a.bucket).Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, goerr.Wrap(model.ErrNotFound, "archive object not found", goerr.V("object", name))
		}
		return nil, goerr.Wrap(err, "failed to open archive", goerr.V("object", name))
	}
	defer func() { _ = r.Close() }()

	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode archive", goerr.V("object", name))
	}
	return &doc, nil
}
