package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/cli/config"
	"github.com/secmon-lab/riskregister/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// ErrInconsistentRisks is returned when stored risks no longer satisfy the
// register configuration
var ErrInconsistentRisks = goerr.New("stored risks do not match the register configuration")

func cmdValidate() *cli.Command {
	var checkDB bool
	var orgIDs []string
	var env registerEnv

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "check-db",
			Usage:       "Also check stored risks of the given organizations against the configuration",
			Destination: &checkDB,
		},
		&cli.StringSliceFlag{
			Name:        "org",
			Usage:       "Organization checked with --check-db (repeatable)",
			Destination: &orgIDs,
		},
	}
	flags = append(flags, env.Flags()...)

	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate the register configuration and optionally check DB consistency",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			if env.register.Path() == "" {
				return goerr.Wrap(config.ErrConfigNotFound, "--config is required")
			}
			cfg, err := config.LoadAppConfiguration(env.register.Path())
			if err != nil {
				return goerr.Wrap(err, "configuration validation failed")
			}

			logger.Info("Configuration validation passed",
				"categories", len(cfg.Categories),
				"divisions", len(cfg.Divisions),
			)

			if !checkDB {
				return nil
			}

			uc, closeRepo, err := env.open(ctx)
			if err != nil {
				return err
			}
			defer closeRepo()

			total := 0
			for _, orgID := range orgIDs {
				issues, err := uc.Risk.ValidateRisks(ctx, orgID)
				if err != nil {
					return goerr.Wrap(err, "DB consistency check failed", goerr.V("org_id", orgID))
				}
				for _, issue := range issues {
					logger.Warn("DB consistency issue found",
						"org_id", orgID,
						"risk_id", issue.RiskID,
						"message", issue.Message,
					)
				}
				total += len(issues)
			}

			if total > 0 {
				return goerr.Wrap(ErrInconsistentRisks, "DB consistency check failed", goerr.V("issues", total))
			}

			logger.Info("DB consistency check passed", "orgs", len(orgIDs))
			return nil
		},
	}
}
