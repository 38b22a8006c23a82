package slack

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/domain/model"
	"github.com/slack-go/slack"
)

// Notifier posts alert, breach and commit events to one Slack channel
type Notifier struct {
	api     *slack.Client
	channel string
}

type config struct {
	apiURL string
}

// Option is a functional option for notifier configuration
type Option func(*config)

// WithAPIURL points the client at another Slack API endpoint. The URL must
// end with a slash.
func WithAPIURL(url string) Option {
	return func(c *config) {
		c.apiURL = url
	}
}

// New creates a notifier with the provided bot token and channel ID
func New(token, channel string, opts ...Option) (*Notifier, error) {
	if token == "" {
		return nil, goerr.New("Slack bot token is required")
	}
	if channel == "" {
		return nil, goerr.New("Slack channel is required")
	}

	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	var slackOpts []slack.Option
	if cfg.apiURL != "" {
		slackOpts = append(slackOpts, slack.OptionAPIURL(cfg.apiURL))
	}

	return &Notifier{
		api:     slack.New(token, slackOpts...),
		channel: channel,
	}, nil
}

func (n *Notifier) NotifyAlert(ctx context.Context, alert *model.Alert, indicator *model.Indicator) error {
	blocks, text := alertMessage(alert, indicator)
	if err := n.post(ctx, blocks, text); err != nil {
		return goerr.Wrap(err, "failed to notify alert", goerr.V(model.AlertIDKey, alert.ID))
	}
	return nil
}

func (n *Notifier) NotifyBreach(ctx context.Context, breach *model.Breach, cfg *model.ToleranceConfig) error {
	blocks, text := breachMessage(breach, cfg)
	if err := n.post(ctx, blocks, text); err != nil {
		return goerr.Wrap(err, "failed to notify breach", goerr.V(model.BreachIDKey, breach.ID))
	}
	return nil
}

func (n *Notifier) NotifyCommit(ctx context.Context, commit *model.PeriodCommit) error {
	blocks, text := commitMessage(commit)
	if err := n.post(ctx, blocks, text); err != nil {
		return goerr.Wrap(err, "failed to notify commit", goerr.V(model.PeriodKey, commit.Period.String()))
	}
	return nil
}

// post sends a Block Kit message. The text is the notification fallback.
func (n *Notifier) post(ctx context.Context, blocks []slack.Block, text string) error {
	_, _, err := n.api.PostMessageContext(ctx, n.channel,
		slack.MsgOptionBlocks(blocks...),
		slack.MsgOptionText(text, false),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to post message", goerr.V("channel", n.channel))
	}
	return nil
}
