package config_test

import (
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskregister/pkg/cli/config"
)

func TestSlack_Configure(t *testing.T) {
	t.Run("disabled without token and channel", func(t *testing.T) {
		notifier, err := config.NewSlackForTest("", "").Configure()
		gt.NoError(t, err)
		gt.Value(t, notifier).Nil()
	})

	t.Run("channel without token is rejected", func(t *testing.T) {
		_, err := config.NewSlackForTest("", "C0123456").Configure()
		gt.True(t, errors.Is(err, config.ErrInvalidConfig))
	})

	t.Run("token and channel build a notifier", func(t *testing.T) {
		cfg := config.NewSlackForTest("xoxb-test", "C0123456")
		gt.True(t, cfg.IsEnabled())
		notifier, err := cfg.Configure()
		gt.NoError(t, err).Required()
		gt.Value(t, notifier).NotNil()
	})
}
