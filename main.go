package main

import (
	"context"
	"os"

	"github.com/m-mizutani/playpack/pkg/cli"
)

func main() {
	if err := cli.Run(context.Background(), lambdaArgs(os.Args)); err != nil {
		os.Exit(1)
	}
}

// lambdaArgs selects the lambda command when the binary is started by the
// Lambda runtime without arguments. Logs default to JSON there.
func lambdaArgs(args []string) []string {
	if len(args) > 1 || os.Getenv("AWS_LAMBDA_RUNTIME_API") == "" {
		return args
	}

	out := []string{args[0]}
	if os.Getenv("PLAYPACK_LOG_FORMAT") == "" {
		out = append(out, "--log-format", "json")
	}
	return append(out, "lambda")
}
