package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/playpack/pkg/domain/types"
)

// LoadConfig loads the default AWS configuration chain (environment, shared
// config, Lambda execution role). An empty region keeps the chain's choice.
func LoadConfig(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, goerr.Wrap(err, "failed to load AWS config", goerr.T(types.ErrTagConfig), goerr.V("region", region))
	}
	return cfg, nil
}
