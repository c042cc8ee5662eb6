package storage

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/playpack/pkg/domain/model"
	"github.com/m-mizutani/playpack/pkg/domain/types"
)

const archiveContentType = "application/zip"

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 publishes archives to Amazon S3 or an S3 compatible store
type S3 struct {
	api putObjectAPI
}

// S3Option configures the S3 client
type S3Option func(*s3.Options)

// WithS3Endpoint sends requests to endpoint with path-style addressing, for
// S3 compatible stores such as MinIO
func WithS3Endpoint(endpoint string) S3Option {
	return func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	}
}

// NewS3 creates an S3 publisher from an AWS config
func NewS3(cfg aws.Config, opts ...S3Option) *S3 {
	optFns := make([]func(*s3.Options), 0, len(opts))
	for _, opt := range opts {
		optFns = append(optFns, opt)
	}
	return &S3{api: s3.NewFromConfig(cfg, optFns...)}
}

// Publish uploads the archive with a single PutObject call
func (c *S3) Publish(ctx context.Context, archivePath, bucket, key string) (*model.PublishResult, error) {
	logger := ctxlog.From(ctx)

	f, err := os.Open(archivePath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open archive", goerr.T(types.ErrTagPublish), goerr.V("path", archivePath))
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to stat archive", goerr.T(types.ErrTagPublish), goerr.V("path", archivePath))
	}

	out, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(archiveContentType),
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to put object",
			goerr.T(types.ErrTagPublish),
			goerr.V("bucket", bucket),
			goerr.V("key", key),
		)
	}

	result := &model.PublishResult{
		Backend:   "s3",
		Bucket:    bucket,
		Key:       key,
		Location:  "s3://" + bucket + "/" + key,
		ETag:      aws.ToString(out.ETag),
		VersionID: aws.ToString(out.VersionId),
	}

	logger.Debug("Put object", "location", result.Location, "etag", result.ETag, "version_id", result.VersionID)

	return result, nil
}
