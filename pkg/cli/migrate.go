package cli

import (
	"context"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/repository/firestore"
	"github.com/secmon-lab/riskregister/pkg/repository/sqldb"
	"github.com/secmon-lab/riskregister/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdMigrate() *cli.Command {
	var projectID string
	var databaseID string
	var sqlitePath string
	var postgresDSN string
	var dryRun bool

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Migrate Firestore indexes or SQL schema",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "firestore-project-id",
				Usage:       "Firestore Project ID (migrates Firestore indexes)",
				Sources:     cli.EnvVars("RISKREGISTER_FIRESTORE_PROJECT_ID"),
				Destination: &projectID,
			},
			&cli.StringFlag{
				Name:        "firestore-database-id",
				Usage:       "Firestore Database ID",
				Sources:     cli.EnvVars("RISKREGISTER_FIRESTORE_DATABASE_ID"),
				Destination: &databaseID,
			},
			&cli.StringFlag{
				Name:        "sqlite-path",
				Usage:       "SQLite database file (creates the schema)",
				Sources:     cli.EnvVars("RISKREGISTER_SQLITE_PATH"),
				Destination: &sqlitePath,
			},
			&cli.StringFlag{
				Name:        "postgres-dsn",
				Usage:       "PostgreSQL connection string (creates the schema)",
				Sources:     cli.EnvVars("RISKREGISTER_POSTGRES_DSN"),
				Destination: &postgresDSN,
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Usage:       "Preview Firestore changes without applying",
				Destination: &dryRun,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			logger.Info("Migrate configuration",
				"projectID", projectID,
				"databaseID", databaseID,
				"sqlitePath", sqlitePath,
				"postgres", postgresDSN != "",
				"dryRun", dryRun)

			if projectID == "" && sqlitePath == "" && postgresDSN == "" {
				return goerr.New("one of --firestore-project-id, --sqlite-path or --postgres-dsn is required")
			}

			if sqlitePath != "" {
				if err := migrateSQL(ctx, sqldb.Config{Driver: sqldb.DriverSQLite, Path: sqlitePath}); err != nil {
					return err
				}
			}
			if postgresDSN != "" {
				if err := migrateSQL(ctx, sqldb.Config{Driver: sqldb.DriverPostgres, DSN: postgresDSN}); err != nil {
					return err
				}
			}
			if projectID != "" {
				return migrateFirestore(ctx, projectID, databaseID, dryRun)
			}
			return nil
		},
	}
}

// migrateSQL opens the database, which creates any missing table
func migrateSQL(ctx context.Context, cfg sqldb.Config) error {
	db, err := sqldb.New(ctx, cfg)
	if err != nil {
		return goerr.Wrap(err, "failed to migrate SQL schema", goerr.V("driver", cfg.Driver))
	}
	if err := db.Close(); err != nil {
		return goerr.Wrap(err, "failed to close SQL database")
	}
	logging.Default().Info("SQL schema is up to date", "driver", cfg.Driver)
	return nil
}

func migrateFirestore(ctx context.Context, projectID, databaseID string, dryRun bool) error {
	logger := logging.Default()
	indexConfig := firestore.Indexes()

	client, err := fireconf.NewClient(ctx, projectID, databaseID)
	if err != nil {
		return goerr.Wrap(err, "failed to create fireconf client")
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close fireconf client", "error", err.Error())
		}
	}()

	if dryRun {
		logger.Info("Dry run mode - previewing changes")
		plan, err := client.GetMigrationPlan(ctx, indexConfig)
		if err != nil {
			return goerr.Wrap(err, "failed to create migration plan")
		}

		if len(plan.Steps) == 0 {
			logger.Info("No changes required")
			return nil
		}

		for _, step := range plan.Steps {
			logger.Info("Migration step",
				"collection", step.Collection,
				"operation", step.Operation,
				"description", step.Description,
				"destructive", step.Destructive)
		}
		return nil
	}

	logger.Info("Applying migrations")
	if err := client.Migrate(ctx, indexConfig); err != nil {
		return goerr.Wrap(err, "failed to apply migrations")
	}
	logger.Info("Migrations applied successfully")
	return nil
}
