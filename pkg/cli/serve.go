package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskregister/pkg/cli/config"
	httpctrl "github.com/secmon-lab/riskregister/pkg/controller/http"
	"github.com/secmon-lab/riskregister/pkg/service/worker"
	"github.com/secmon-lab/riskregister/pkg/usecase"
	"github.com/secmon-lab/riskregister/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var addr string
	var watchOrgs []string
	var watchInterval time.Duration
	var env registerEnv
	var authCfg config.Auth
	var slackCfg config.Slack
	var geminiCfg config.Gemini
	var archiveCfg config.Archive

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("RISKREGISTER_ADDR"),
			Destination: &addr,
		},
		&cli.StringSliceFlag{
			Name:        "watch-org",
			Usage:       "Organization whose enterprise appetite status is recomputed periodically (repeatable)",
			Category:    "Watch",
			Sources:     cli.EnvVars("RISKREGISTER_WATCH_ORGS"),
			Destination: &watchOrgs,
		},
		&cli.DurationFlag{
			Name:        "watch-interval",
			Usage:       "Interval of the enterprise appetite status watch",
			Value:       5 * time.Minute,
			Category:    "Watch",
			Sources:     cli.EnvVars("RISKREGISTER_WATCH_INTERVAL"),
			Destination: &watchInterval,
		},
	}

	flags = append(flags, env.Flags()...)
	flags = append(flags, authCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, archiveCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			verifier, authorizer, err := authCfg.Configure(ctx)
			if err != nil {
				return err
			}
			ucOpts := []usecase.Option{usecase.WithAuthorizer(authorizer)}

			notifier, err := slackCfg.Configure()
			if err != nil {
				return err
			}
			if notifier != nil {
				ucOpts = append(ucOpts, usecase.WithNotifier(notifier))
				logging.Default().Info("Slack notification enabled", "slack", slackCfg)
			}

			provider, err := geminiCfg.Configure(ctx)
			if err != nil {
				return err
			}
			if provider != nil {
				ucOpts = append(ucOpts, usecase.WithSuggestionProvider(provider))
				logging.Default().LogAttrs(ctx, slog.LevelInfo, "Suggestions enabled", geminiCfg.LogAttrs()...)
			} else {
				logging.Default().Info("Gemini project not configured, suggestions are disabled")
			}

			archiver, err := archiveCfg.Configure(ctx)
			if err != nil {
				return err
			}
			if archiver != nil {
				defer func() {
					if err := archiver.Close(); err != nil {
						logging.Default().Error("failed to close archiver", "error", err.Error())
					}
				}()
				ucOpts = append(ucOpts, usecase.WithArchiver(archiver))
				logging.Default().Info("Period archive enabled", "archive", archiveCfg)
			}

			uc, closeRepo, err := env.open(ctx, ucOpts...)
			if err != nil {
				return err
			}
			defer closeRepo()

			var statusWorker *worker.StatusWatchWorker
			if len(watchOrgs) > 0 {
				statusWorker = worker.NewStatusWatchWorker(uc.Tolerance, watchOrgs, watchInterval)
				if err := statusWorker.Start(ctx); err != nil {
					return goerr.Wrap(err, "failed to start status watch worker")
				}
			}

			var httpOpts []httpctrl.Options
			if verifier != nil {
				httpOpts = append(httpOpts, httpctrl.WithTokenVerifier(verifier))
				logging.Default().Info("Token authentication enabled", "auth", authCfg)
			} else {
				logging.Default().Warn("Token authentication disabled, every caller may write")
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(uc, httpOpts...),
				ReadHeaderTimeout: 30 * time.Second,
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				if statusWorker != nil {
					statusWorker.Stop()
				}
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				if statusWorker != nil {
					statusWorker.Stop()
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
