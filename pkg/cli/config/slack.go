package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/interfaces"
	"github.com/secmon-lab/riskregister/pkg/service/slack"
	"github.com/urfave/cli/v3"
)

// Slack holds configuration of the Slack notifier
type Slack struct {
	botToken string
	channel  string
}

func (x *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-bot-token",
			Usage:       "Slack Bot User OAuth Token (for posting notifications)",
			Category:    "Slack",
			Destination: &x.botToken,
			Sources:     cli.EnvVars("RISKREGISTER_SLACK_BOT_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "slack-channel",
			Usage:       "Slack channel ID receiving alert, breach and commit notifications",
			Category:    "Slack",
			Destination: &x.channel,
			Sources:     cli.EnvVars("RISKREGISTER_SLACK_CHANNEL"),
		},
	}
}

func (x Slack) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("bot-token.len", len(x.botToken)),
		slog.String("channel", x.channel),
	)
}

// IsEnabled reports whether both the token and the channel are set
func (x *Slack) IsEnabled() bool {
	return x.botToken != "" && x.channel != ""
}

// Configure creates the notifier. It returns nil when Slack is not
// configured, and an error when only one of the flags is set.
func (x *Slack) Configure() (interfaces.Notifier, error) {
	if x.botToken == "" && x.channel == "" {
		return nil, nil
	}
	if !x.IsEnabled() {
		return nil, goerr.Wrap(ErrInvalidConfig, "both slack-bot-token and slack-channel are required")
	}

	notifier, err := slack.New(x.botToken, x.channel)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create slack notifier")
	}
	return notifier, nil
}
