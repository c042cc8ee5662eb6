package config

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/urfave/cli/v3"

	awsinfra "github.com/m-mizutani/playpack/pkg/infra/aws"
)

// AWS holds AWS SDK configuration
type AWS struct {
	Region string

	once   sync.Once
	config aws.Config
	err    error
}

// Flags returns CLI flags for AWS configuration
func (c *AWS) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "aws-region",
			Usage:       "AWS region, the SDK default chain is used if empty",
			Destination: &c.Region,
			Sources:     cli.EnvVars("AWS_REGION"),
		},
	}
}

// Load loads the SDK configuration on first use. Setups that need neither
// KMS nor S3 never touch the AWS credential chain.
func (c *AWS) Load(ctx context.Context) (aws.Config, error) {
	c.once.Do(func() {
		c.config, c.err = awsinfra.LoadConfig(ctx, c.Region)
	})
	return c.config, c.err
}
