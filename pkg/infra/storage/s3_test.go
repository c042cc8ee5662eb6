package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/playpack/pkg/domain/types"
	awsinfra "github.com/m-mizutani/playpack/pkg/infra/aws"
)

type mockPutObjectAPI struct {
	putObjectFunc func(ctx context.Context, params *s3.PutObjectInput) (*s3.PutObjectOutput, error)
	calls         []*s3.PutObjectInput
	bodies        []string
}

func (m *mockPutObjectAPI) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.calls = append(m.calls, params)
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	m.bodies = append(m.bodies, string(body))
	return m.putObjectFunc(ctx, params)
}

func writeArchive(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "build.zip")
	gt.NoError(t, os.WriteFile(path, []byte(content), 0644)).Required()
	return path
}

func TestS3_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("uploads archive once", func(t *testing.T) {
		api := &mockPutObjectAPI{
			putObjectFunc: func(ctx context.Context, params *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
				return &s3.PutObjectOutput{
					ETag:      aws.String(`"d41d8cd98f00b204e9800998ecf8427e"`),
					VersionId: aws.String("v1"),
				}, nil
			},
		}
		client := &S3{api: api}

		result, err := client.Publish(ctx, writeArchive(t, "zipdata"), "artifacts", "infra-repo.zip")
		gt.NoError(t, err).Required()

		gt.A(t, api.calls).Length(1)
		gt.Equal(t, aws.ToString(api.calls[0].Bucket), "artifacts")
		gt.Equal(t, aws.ToString(api.calls[0].Key), "infra-repo.zip")
		gt.Equal(t, aws.ToString(api.calls[0].ContentType), "application/zip")
		gt.Equal(t, aws.ToInt64(api.calls[0].ContentLength), int64(len("zipdata")))
		gt.Equal(t, api.bodies[0], "zipdata")

		gt.Equal(t, result.Backend, "s3")
		gt.Equal(t, result.Location, "s3://artifacts/infra-repo.zip")
		gt.Equal(t, result.VersionID, "v1")
		gt.String(t, result.ETag).Contains("d41d8cd98f00b204e9800998ecf8427e")
	})

	t.Run("upload failure is not retried", func(t *testing.T) {
		api := &mockPutObjectAPI{
			putObjectFunc: func(ctx context.Context, params *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
				return nil, errors.New("AccessDenied")
			},
		}
		client := &S3{api: api}

		_, err := client.Publish(ctx, writeArchive(t, "zipdata"), "artifacts", "infra-repo.zip")
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagPublish))
		gt.A(t, api.calls).Length(1)
	})

	t.Run("missing archive", func(t *testing.T) {
		api := &mockPutObjectAPI{}
		client := &S3{api: api}

		_, err := client.Publish(ctx, filepath.Join(t.TempDir(), "missing.zip"), "artifacts", "x.zip")
		gt.Error(t, err)
		gt.A(t, api.calls).Length(0)
	})
}

func TestWithS3Endpoint(t *testing.T) {
	var o s3.Options
	WithS3Endpoint("http://localhost:9000")(&o)

	gt.Equal(t, aws.ToString(o.BaseEndpoint), "http://localhost:9000")
	gt.True(t, o.UsePathStyle)
}

func TestS3_Publish_WithRealBucket(t *testing.T) {
	bucket := os.Getenv("TEST_S3_BUCKET")
	if bucket == "" {
		t.Skip("TEST_S3_BUCKET is not set")
	}

	ctx := context.Background()
	cfg, err := awsinfra.LoadConfig(ctx, "")
	gt.NoError(t, err).Required()

	result, err := NewS3(cfg).Publish(ctx, writeArchive(t, "zipdata"), bucket, "playpack-test/build.zip")
	gt.NoError(t, err).Required()
	gt.Equal(t, result.Bucket, bucket)
}
