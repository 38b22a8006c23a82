package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/interfaces"
	"github.com/secmon-lab/riskregister/pkg/repository/firestore"
	"github.com/secmon-lab/riskregister/pkg/repository/memory"
	"github.com/secmon-lab/riskregister/pkg/repository/redis"
	"github.com/secmon-lab/riskregister/pkg/repository/sqldb"
	"github.com/secmon-lab/riskregister/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const (
	BackendMemory    = "memory"
	BackendFirestore = "firestore"
	BackendSQLite    = "sqlite"
	BackendPostgres  = "postgres"
)

// Repository holds CLI flags for repository backend configuration
type Repository struct {
	backend          string
	projectID        string
	databaseID       string
	collectionPrefix string
	sqlitePath       string
	postgresDSN      string
	maxOpenConns     int
	redisAddr        string
	redisPassword    string
	redisDB          int
	codeRetryLimit   int
}

// Flags returns CLI flags for repository configuration
func (r *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "repository-backend",
			Usage:       "Repository backend type (memory, firestore, sqlite or postgres)",
			Value:       BackendMemory,
			Category:    "Repository",
			Sources:     cli.EnvVars("RISKREGISTER_REPOSITORY_BACKEND"),
			Destination: &r.backend,
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore Project ID (required when using firestore backend)",
			Category:    "Repository",
			Sources:     cli.EnvVars("RISKREGISTER_FIRESTORE_PROJECT_ID"),
			Destination: &r.projectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore Database ID",
			Category:    "Repository",
			Sources:     cli.EnvVars("RISKREGISTER_FIRESTORE_DATABASE_ID"),
			Destination: &r.databaseID,
		},
		&cli.StringFlag{
			Name:        "firestore-collection-prefix",
			Usage:       "Prefix of the top-level Firestore collection",
			Category:    "Repository",
			Sources:     cli.EnvVars("RISKREGISTER_FIRESTORE_COLLECTION_PREFIX"),
			Destination: &r.collectionPrefix,
		},
		&cli.StringFlag{
			Name:        "sqlite-path",
			Usage:       "SQLite database file (required when using sqlite backend)",
			Value:       "riskregister.db",
			Category:    "Repository",
			Sources:     cli.EnvVars("RISKREGISTER_SQLITE_PATH"),
			Destination: &r.sqlitePath,
		},
		&cli.StringFlag{
			Name:        "postgres-dsn",
			Usage:       "PostgreSQL connection string (required when using postgres backend)",
			Category:    "Repository",
			Sources:     cli.EnvVars("RISKREGISTER_POSTGRES_DSN"),
			Destination: &r.postgresDSN,
		},
		&cli.IntFlag{
			Name:        "sql-max-open-conns",
			Usage:       "Maximum open connections of the SQL backends",
			Value:       10,
			Category:    "Repository",
			Sources:     cli.EnvVars("RISKREGISTER_SQL_MAX_OPEN_CONNS"),
			Destination: &r.maxOpenConns,
		},
		&cli.StringFlag{
			Name:        "redis-addr",
			Usage:       "Redis address. When set, entity codes are counted in Redis",
			Category:    "Repository",
			Sources:     cli.EnvVars("RISKREGISTER_REDIS_ADDR"),
			Destination: &r.redisAddr,
		},
		&cli.StringFlag{
			Name:        "redis-password",
			Usage:       "Redis password",
			Category:    "Repository",
			Sources:     cli.EnvVars("RISKREGISTER_REDIS_PASSWORD"),
			Destination: &r.redisPassword,
		},
		&cli.IntFlag{
			Name:        "redis-db",
			Usage:       "Redis logical database",
			Category:    "Repository",
			Sources:     cli.EnvVars("RISKREGISTER_REDIS_DB"),
			Destination: &r.redisDB,
		},
	}
}

func (r Repository) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("backend", r.backend),
		slog.String("project_id", r.projectID),
		slog.String("database_id", r.databaseID),
		slog.String("sqlite_path", r.sqlitePath),
		slog.Int("postgres_dsn.len", len(r.postgresDSN)),
		slog.String("redis_addr", r.redisAddr),
	)
}

// Backend returns the configured backend type
func (r *Repository) Backend() string {
	return r.backend
}

// ProjectID returns the Firestore project ID
func (r *Repository) ProjectID() string {
	return r.projectID
}

// DatabaseID returns the Firestore database ID
func (r *Repository) DatabaseID() string {
	return r.databaseID
}

// SetCodeRetryLimit bounds the retries of a contended code counter
func (r *Repository) SetCodeRetryLimit(n int) {
	r.codeRetryLimit = n
}

// Configure initializes and returns a repository based on the configured
// backend. The caller is responsible for calling Close() on the returned
// repository.
func (r *Repository) Configure(ctx context.Context) (interfaces.Repository, error) {
	repo, err := r.configureBackend(ctx)
	if err != nil {
		return nil, err
	}

	if r.redisAddr == "" {
		return repo, nil
	}

	counter, err := redis.New(ctx, r.redisAddr, r.redisPassword, r.redisDB)
	if err != nil {
		_ = repo.Close()
		return nil, goerr.Wrap(err, "failed to initialize redis code counter")
	}
	logging.Default().Info("Using Redis code counter", "addr", r.redisAddr, "db", r.redisDB)
	return redis.Wrap(repo, counter), nil
}

func (r *Repository) configureBackend(ctx context.Context) (interfaces.Repository, error) {
	switch r.backend {
	case BackendFirestore:
		if r.projectID == "" {
			return nil, goerr.Wrap(ErrMissingRepository, "firestore-project-id is required when using firestore backend",
				goerr.V(BackendKey, r.backend))
		}
		opts := []firestore.Option{firestore.WithCounterAttempts(r.codeRetryLimit)}
		if r.collectionPrefix != "" {
			opts = append(opts, firestore.WithCollectionPrefix(r.collectionPrefix))
		}
		repo, err := firestore.New(ctx, r.projectID, r.databaseID, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize firestore repository")
		}
		logging.Default().Info("Using Firestore repository",
			"project_id", r.projectID,
			"database_id", r.databaseID,
		)
		return repo, nil

	case BackendSQLite:
		if r.sqlitePath == "" {
			return nil, goerr.Wrap(ErrMissingRepository, "sqlite-path is required when using sqlite backend",
				goerr.V(BackendKey, r.backend))
		}
		repo, err := sqldb.New(ctx, sqldb.Config{
			Driver:       sqldb.DriverSQLite,
			Path:         r.sqlitePath,
			MaxOpenConns: r.maxOpenConns,
		})
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize sqlite repository")
		}
		logging.Default().Info("Using SQLite repository", "path", r.sqlitePath)
		return repo, nil

	case BackendPostgres:
		if r.postgresDSN == "" {
			return nil, goerr.Wrap(ErrMissingRepository, "postgres-dsn is required when using postgres backend",
				goerr.V(BackendKey, r.backend))
		}
		repo, err := sqldb.New(ctx, sqldb.Config{
			Driver:       sqldb.DriverPostgres,
			DSN:          r.postgresDSN,
			MaxOpenConns: r.maxOpenConns,
		})
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize postgres repository")
		}
		logging.Default().Info("Using PostgreSQL repository")
		return repo, nil

	case BackendMemory:
		logging.Default().Info("Using in-memory repository (development mode)")
		return memory.New(), nil

	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "invalid repository backend", goerr.V(BackendKey, r.backend))
	}
}
