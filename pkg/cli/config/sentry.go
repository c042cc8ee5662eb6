package config

import (
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/playpack/pkg/domain/types"
)

const sentryFlushTimeout = 2 * time.Second

// Sentry holds error reporting configuration
type Sentry struct {
	DSN string
	Env string
}

// Flags returns CLI flags for Sentry configuration
func (c *Sentry) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sentry-dsn",
			Usage:       "Sentry DSN, error reporting is disabled if empty",
			Destination: &c.DSN,
			Sources:     cli.EnvVars("PLAYPACK_SENTRY_DSN"),
		},
		&cli.StringFlag{
			Name:        "sentry-env",
			Usage:       "Sentry environment",
			Destination: &c.Env,
			Sources:     cli.EnvVars("PLAYPACK_SENTRY_ENV"),
		},
	}
}

// Configure initializes the Sentry client. The returned function flushes
// buffered events and must be called before the process exits.
func (c *Sentry) Configure() (func(), error) {
	if c.DSN == "" {
		return func() {}, nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         c.DSN,
		Environment: c.Env,
		Release:     types.ServiceName + "@" + types.Version,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to initialize sentry", goerr.T(types.ErrTagConfig))
	}

	return func() {
		sentry.Flush(sentryFlushTimeout)
	}, nil
}
