package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/playpack/pkg/cli/config"
	controller "github.com/m-mizutani/playpack/pkg/controller/http"
)

// Builds keep running after the listener closed; they get this long to finish
const buildDrainTimeout = 15 * time.Minute

func cmdServe() *cli.Command {
	var (
		serverCfg config.Server
		build     buildConfig
	)

	flags := append(serverCfg.Flags(), build.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server receiving GitHub webhooks and SNS notifications",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			uc, closeFn, err := build.newUseCase(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			server, err := controller.NewServer(
				ctx,
				uc,
				controller.WithAddr(serverCfg.Addr),
				controller.WithWebhookSecret(serverCfg.WebhookSecret),
				controller.WithSNSTopicARNs(serverCfg.SNSTopicARNs...),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP server")
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("HTTP server starting", slog.String("addr", serverCfg.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "HTTP server error", goerr.V("addr", serverCfg.Addr))
				}
			}()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			select {
			case <-ctx.Done():
				logger.Info("Context cancelled, shutting down...")
			case sig := <-sigChan:
				logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
			case err := <-errCh:
				return err
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			drainCtx, cancelDrain := context.WithTimeout(context.Background(), buildDrainTimeout)
			defer cancelDrain()

			logger.Info("Waiting for running builds")
			if err := server.Wait(drainCtx); err != nil {
				return goerr.Wrap(err, "builds did not finish before shutdown")
			}

			logger.Info("Server shutdown complete")
			return nil
		},
	}
}
