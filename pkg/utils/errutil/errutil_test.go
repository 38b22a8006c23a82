package errutil_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/riskregister/pkg/utils/errutil"
	"github.com/secmon-lab/riskregister/pkg/utils/logging"
)

func TestHandle(t *testing.T) {
	t.Run("nil error is ignored", func(t *testing.T) {
		gt.NoError(t, errutil.Handle(context.Background(), nil, "nothing"))
	})

	t.Run("goerr values are logged", func(t *testing.T) {
		var buf bytes.Buffer
		ctx := logging.With(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))

		err := goerr.New("commit failed", goerr.V("org_id", "acme"))
		got := errutil.Handle(ctx, err, "failed to commit period")

		gt.Value(t, got).Equal(error(err))
		gt.String(t, buf.String()).Contains("failed to commit period")
		gt.String(t, buf.String()).Contains("acme")
	})
}

func TestHandle_Sentry(t *testing.T) {
	var events []*sentry.Event
	client, err := sentry.NewClient(sentry.ClientOptions{
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			events = append(events, event)
			return nil
		},
	})
	gt.NoError(t, err).Required()

	hub := sentry.CurrentHub()
	prev := hub.Client()
	hub.BindClient(client)
	t.Cleanup(func() { hub.BindClient(prev) })

	cause := goerr.New("archive failed", goerr.V("period", "2026-Q1"))
	_ = errutil.Handle(context.Background(), cause, "failed to archive period")

	gt.A(t, events).Length(1).Required()
	gt.Value(t, events[0].Tags["message"]).Equal("failed to archive period")
	gt.Value(t, events[0].Contexts["period"]["value"]).Equal(any("2026-Q1"))
}
