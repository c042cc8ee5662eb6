package storage

import (
	"context"
	"encoding/hex"
	"io"
	"os"
	"strconv"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/playpack/pkg/domain/model"
	"github.com/m-mizutani/playpack/pkg/domain/types"
)

// GCS publishes archives to Google Cloud Storage
type GCS struct {
	client *storage.Client
}

// NewGCS creates a GCS publisher using application default credentials
func NewGCS(ctx context.Context) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create GCS client", goerr.T(types.ErrTagConfig))
	}
	return &GCS{client: client}, nil
}

// Close releases the underlying client
func (c *GCS) Close() error {
	return c.client.Close()
}

// Publish uploads the archive in a single object write
func (c *GCS) Publish(ctx context.Context, archivePath, bucket, key string) (*model.PublishResult, error) {
	logger := ctxlog.From(ctx)

	f, err := os.Open(archivePath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open archive", goerr.T(types.ErrTagPublish), goerr.V("path", archivePath))
	}
	defer f.Close()

	w := c.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = archiveContentType

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return nil, goerr.Wrap(err, "failed to write object",
			goerr.T(types.ErrTagPublish),
			goerr.V("bucket", bucket),
			goerr.V("key", key),
		)
	}
	if err := w.Close(); err != nil {
		return nil, goerr.Wrap(err, "failed to finish object write",
			goerr.T(types.ErrTagPublish),
			goerr.V("bucket", bucket),
			goerr.V("key", key),
		)
	}

	result := &model.PublishResult{
		Backend:  "gcs",
		Bucket:   bucket,
		Key:      key,
		Location: "gs://" + bucket + "/" + key,
	}
	if attrs := w.Attrs(); attrs != nil {
		result.ETag = hex.EncodeToString(attrs.MD5)
		result.VersionID = strconv.FormatInt(attrs.Generation, 10)
	}

	logger.Debug("Wrote object", "location", result.Location, "generation", result.VersionID)

	return result, nil
}
