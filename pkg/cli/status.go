package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

func cmdStatus() *cli.Command {
	var orgID string
	var asJSON bool
	var env registerEnv

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "org",
			Usage:       "Organization ID",
			Required:    true,
			Sources:     cli.EnvVars("RISKREGISTER_ORG"),
			Destination: &orgID,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print the status as JSON",
			Destination: &asJSON,
		},
	}
	flags = append(flags, env.Flags()...)

	return &cli.Command{
		Name:  "status",
		Usage: "Show the enterprise risk appetite status of an organization",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, closeRepo, err := env.open(ctx)
			if err != nil {
				return err
			}
			defer closeRepo()

			status, err := uc.Tolerance.GetEnterpriseAppetiteStatus(ctx, orgID)
			if err != nil {
				return err
			}

			w := output(c)
			if asJSON {
				return printJSON(w, status)
			}
			printStatus(w, status)
			return nil
		},
	}
}
