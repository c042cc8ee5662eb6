package cli

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/playpack/pkg/controller/lambda"
)

func cmdLambda() *cli.Command {
	var build buildConfig

	return &cli.Command{
		Name:  "lambda",
		Usage: "Run as an AWS Lambda function subscribed to an SNS topic",
		Flags: build.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, closeFn, err := build.newUseCase(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			ctxlog.From(ctx).Info("Starting Lambda handler",
				"branch", build.git.Branch,
				"bucket", build.storage.Bucket,
				"storage_backend", build.storage.Backend,
			)

			lambda.New(uc).Start(ctx)
			return nil
		},
	}
}
