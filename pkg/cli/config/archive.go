package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/service/archive"
	"github.com/urfave/cli/v3"
)

// Archive holds configuration of the Cloud Storage period archive
type Archive struct {
	bucket string
	prefix string
}

func (x *Archive) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "archive-bucket",
			Usage:       "Cloud Storage bucket receiving committed period snapshots",
			Category:    "Archive",
			Destination: &x.bucket,
			Sources:     cli.EnvVars("RISKREGISTER_ARCHIVE_BUCKET"),
		},
		&cli.StringFlag{
			Name:        "archive-prefix",
			Usage:       "Object name prefix inside the archive bucket",
			Value:       "periods",
			Category:    "Archive",
			Destination: &x.prefix,
			Sources:     cli.EnvVars("RISKREGISTER_ARCHIVE_PREFIX"),
		},
	}
}

func (x Archive) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("bucket", x.bucket),
		slog.String("prefix", x.prefix),
	)
}

// Configure creates the archiver, or returns nil when no bucket is set.
// The caller closes the returned archiver.
func (x *Archive) Configure(ctx context.Context) (*archive.Archiver, error) {
	if x.bucket == "" {
		return nil, nil
	}
	archiver, err := archive.New(ctx, x.bucket, x.prefix)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create period archiver", goerr.V("bucket", x.bucket))
	}
	return archiver, nil
}
