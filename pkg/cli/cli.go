package cli

import (
	"context"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/playpack/pkg/cli/config"
	"github.com/m-mizutani/playpack/pkg/domain/types"
)

const envFileFlag = "env-file"

// Run runs the CLI application
func Run(ctx context.Context, args []string) error {
	var (
		loggerCfg config.Logger
		sentryCfg config.Sentry
		logger    *slog.Logger
		flush     = func() {}
	)

	// Flag values are read from the environment while parsing, so .env files
	// must be loaded before the command runs.
	if err := loadEnvFiles(args); err != nil {
		slog.Default().Error("Failed to load env file", slog.Any("error", err))
		return err
	}

	flags := append(loggerCfg.Flags(), sentryCfg.Flags()...)
	flags = append(flags, &cli.StringSliceFlag{
		Name:  envFileFlag,
		Usage: "Load environment variables from a .env file, repeatable. Existing variables are not overwritten",
	})

	app := &cli.Command{
		Name:    types.ServiceName,
		Usage:   "Build and publish Ansible generated artifacts on git push",
		Version: types.Version,
		Flags:   flags,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			var err error
			logger, err = loggerCfg.Configure()
			if err != nil {
				return nil, err
			}

			flush, err = sentryCfg.Configure()
			if err != nil {
				return nil, err
			}

			slog.SetDefault(logger)
			ctx = ctxlog.With(ctx, logger)
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			flush()
			return nil
		},
		Commands: []*cli.Command{
			cmdLambda(),
			cmdServe(),
			cmdInvoke(),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("CLI execution failed", slog.Any("error", err))
		return err
	}

	return nil
}

// loadEnvFiles loads every file given by --env-file
func loadEnvFiles(args []string) error {
	files := envFilesFromArgs(args)
	if len(files) == 0 {
		return nil
	}

	if err := godotenv.Load(files...); err != nil {
		return goerr.Wrap(err, "failed to load env file", goerr.T(types.ErrTagConfig), goerr.V("files", files))
	}
	return nil
}

// envFilesFromArgs scans args for --env-file values. Scanning stops at "--".
func envFilesFromArgs(args []string) []string {
	var files []string
	for i := 1; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}

		for _, prefix := range []string{"--" + envFileFlag, "-" + envFileFlag} {
			if arg == prefix && i+1 < len(args) {
				files = append(files, args[i+1])
				i++
				break
			}
			if v, ok := strings.CutPrefix(arg, prefix+"="); ok {
				files = append(files, v)
				break
			}
		}
	}
	return files
}
