package storage

import (
	"context"
	"os"
	"testing"

	"github.com/m-mizutani/gt"
)

func TestGCS_Publish_WithRealBucket(t *testing.T) {
	bucket := os.Getenv("TEST_GCS_BUCKET")
	if bucket == "" {
		t.Skip("TEST_GCS_BUCKET is not set")
	}

	ctx := context.Background()
	client, err := NewGCS(ctx)
	gt.NoError(t, err).Required()
	defer client.Close()

	result, err := client.Publish(ctx, writeArchive(t, "zipdata"), bucket, "playpack-test/build.zip")
	gt.NoError(t, err).Required()
	gt.Equal(t, result.Location, "gs://"+bucket+"/playpack-test/build.zip")
	gt.Value(t, result.VersionID).NotEqual("")
}
