package cli

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/playpack/pkg/controller/event"
	"github.com/m-mizutani/playpack/pkg/domain/model"
	"github.com/m-mizutani/playpack/pkg/domain/types"
	"github.com/m-mizutani/playpack/pkg/utils/errutil"
)

func cmdInvoke() *cli.Command {
	var (
		eventFile string
		build     buildConfig
	)

	flags := append([]cli.Flag{
		&cli.StringFlag{
			Name:        "event",
			Aliases:     []string{"e"},
			Usage:       "SNS event or push payload JSON file, - for stdin",
			Required:    true,
			Destination: &eventFile,
		},
	}, build.Flags()...)

	return &cli.Command{
		Name:  "invoke",
		Usage: "Build once from an event file and print the build report",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			payload, err := readEventFile(eventFile, c.Root().Reader)
			if err != nil {
				return err
			}

			pushes, err := event.FromPayload(payload, model.EventSourceInvoke)
			if err != nil {
				return err
			}

			uc, closeFn, err := build.newUseCase(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			reports, err := event.NewProcessor(uc).ProcessAll(ctx, pushes)
			if err != nil {
				errutil.Handle(ctx, "Build failed", err)
				return err
			}

			enc := json.NewEncoder(c.Root().Writer)
			enc.SetIndent("", "  ")
			if err := enc.Encode(reports); err != nil {
				return goerr.Wrap(err, "failed to write build report")
			}
			return nil
		},
	}
}

func readEventFile(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		if stdin == nil {
			stdin = os.Stdin
		}
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read event from stdin", goerr.T(types.ErrTagInvalidEvent))
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read event file", goerr.T(types.ErrTagInvalidEvent), goerr.V("path", path))
	}
	return data, nil
}
