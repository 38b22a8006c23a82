package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/cli/config"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/secmon-lab/riskregister/pkg/domain/types"
	"github.com/secmon-lab/riskregister/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdCommit() *cli.Command {
	var orgID string
	var periodLabel string
	var actor string
	var note string
	var asJSON bool
	var env registerEnv
	var slackCfg config.Slack
	var archiveCfg config.Archive

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "org",
			Usage:       "Organization ID",
			Required:    true,
			Sources:     cli.EnvVars("RISKREGISTER_ORG"),
			Destination: &orgID,
		},
		&cli.StringFlag{
			Name:        "period",
			Usage:       "Period to commit (e.g. 2026-Q1)",
			Required:    true,
			Destination: &periodLabel,
		},
		&cli.StringFlag{
			Name:        "actor",
			Usage:       "Recorded committer",
			Value:       "cli",
			Destination: &actor,
		},
		&cli.StringFlag{
			Name:        "note",
			Usage:       "Commit note",
			Destination: &note,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print the result as JSON",
			Destination: &asJSON,
		},
	}
	flags = append(flags, env.Flags()...)
	flags = append(flags, slackCfg.Flags()...)
	flags = append(flags, archiveCfg.Flags()...)

	return &cli.Command{
		Name:  "commit",
		Usage: "Freeze the active risks of a period into immutable snapshots and advance the period",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			period, err := types.ParsePeriod(periodLabel)
			if err != nil {
				return goerr.Wrap(model.ErrValidation, "invalid period",
					goerr.V(model.PeriodKey, periodLabel), goerr.V("reason", err.Error()))
			}

			var ucOpts []usecase.Option
			notifier, err := slackCfg.Configure()
			if err != nil {
				return err
			}
			if notifier != nil {
				ucOpts = append(ucOpts, usecase.WithNotifier(notifier))
			}
			archiver, err := archiveCfg.Configure(ctx)
			if err != nil {
				return err
			}
			if archiver != nil {
				defer func() { _ = archiver.Close() }()
				ucOpts = append(ucOpts, usecase.WithArchiver(archiver))
			}

			uc, closeRepo, err := env.open(ctx, ucOpts...)
			if err != nil {
				return err
			}
			defer closeRepo()

			result, err := uc.Period.CommitPeriod(ctx, orgID, period, actor, note)
			if err != nil {
				return err
			}

			w := output(c)
			if asJSON {
				return printJSON(w, result)
			}
			printCommit(w, result)
			return nil
		},
	}
}
