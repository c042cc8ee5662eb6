package config

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/m-mizutani/clog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/masq"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/playpack/pkg/domain/types"
)

// Log formats
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// Logger holds logger configuration
type Logger struct {
	Level  string
	Format string

	// Output defaults to os.Stdout
	Output io.Writer
}

// Flags returns CLI flags for logger configuration
func (c *Logger) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &c.Level,
			Sources:     cli.EnvVars("PLAYPACK_LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       LogFormatConsole,
			Destination: &c.Format,
			Sources:     cli.EnvVars("PLAYPACK_LOG_FORMAT"),
		},
	}
}

// Configure configures and returns a logger
func (c *Logger) Configure() (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, goerr.New("invalid log level", goerr.T(types.ErrTagConfig), goerr.V("level", c.Level))
	}

	w := c.Output
	if w == nil {
		w = os.Stdout
	}

	redact := masq.New(
		masq.WithTag("secret"),
		masq.WithFieldName("Password"),
		masq.WithFieldName("Token"),
		masq.WithFieldName("PrivateKey"),
	)

	var handler slog.Handler
	switch strings.ToLower(c.Format) {
	case LogFormatJSON:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: redact,
		})
	case LogFormatConsole, "":
		handler = clog.New(
			clog.WithWriter(w),
			clog.WithLevel(level),
			clog.WithColor(w == os.Stdout),
			clog.WithReplaceAttr(redact),
		)
	default:
		return nil, goerr.New("invalid log format", goerr.T(types.ErrTagConfig), goerr.V("format", c.Format))
	}

	return slog.New(handler), nil
}
