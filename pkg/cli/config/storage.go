package config

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/playpack/pkg/domain/interfaces"
	"github.com/m-mizutani/playpack/pkg/domain/types"
	"github.com/m-mizutani/playpack/pkg/infra/storage"
)

// Storage backends
const (
	StorageBackendS3  = "s3"
	StorageBackendGCS = "gcs"
)

// Storage holds archive destination configuration
type Storage struct {
	Backend    string
	Bucket     string
	ObjectKey  string
	S3Endpoint string
}

// Flags returns CLI flags for storage configuration
func (c *Storage) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "storage-backend",
			Usage:       "Object storage backend (s3, gcs)",
			Value:       StorageBackendS3,
			Destination: &c.Backend,
			Sources:     cli.EnvVars("PLAYPACK_STORAGE_BACKEND"),
		},
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Destination bucket of the archive",
			Destination: &c.Bucket,
			Sources:     cli.EnvVars("S3_BUCKET"),
		},
		&cli.StringFlag{
			Name:        "object-key",
			Usage:       "Destination key of the archive, <repository name>.zip if empty",
			Destination: &c.ObjectKey,
			Sources:     cli.EnvVars("S3_OBJECT"),
		},
		&cli.StringFlag{
			Name:        "s3-endpoint",
			Usage:       "Custom S3 endpoint for S3 compatible storage",
			Destination: &c.S3Endpoint,
			Sources:     cli.EnvVars("PLAYPACK_S3_ENDPOINT"),
		},
	}
}

// NewPublisher creates the publisher of the configured backend. The returned
// function releases backend resources.
func (c *Storage) NewPublisher(ctx context.Context, awsCfg *AWS) (interfaces.Publisher, func(), error) {
	switch c.Backend {
	case StorageBackendS3, "":
		cfg, err := awsCfg.Load(ctx)
		if err != nil {
			return nil, nil, err
		}

		var opts []storage.S3Option
		if c.S3Endpoint != "" {
			opts = append(opts, storage.WithS3Endpoint(c.S3Endpoint))
		}
		return storage.NewS3(cfg, opts...), func() {}, nil

	case StorageBackendGCS:
		client, err := storage.NewGCS(ctx)
		if err != nil {
			return nil, nil, err
		}
		return client, func() { _ = client.Close() }, nil

	default:
		return nil, nil, goerr.New("unknown storage backend", goerr.T(types.ErrTagConfig), goerr.V("backend", c.Backend))
	}
}
