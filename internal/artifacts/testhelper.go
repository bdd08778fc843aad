package artifacts

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
)

// TestStore serves a fresh in-memory bucket through gofakes3 for the
// lifetime of t and returns a Store uploading run's artifacts into it.
func TestStore(t testing.TB, bucket, run string) *Store {
	t.Helper()

	fake := httptest.NewServer(gofakes3.New(s3mem.New()).Server())
	t.Cleanup(fake.Close)

	ctx := context.Background()
	store, err := New(ctx, Config{
		Endpoint:        fake.URL,
		Region:          "us-east-1",
		AccessKeyID:     "fake-key",
		SecretAccessKey: "fake-secret",
		Bucket:          bucket,
		Run:             run,
		PublicURL:       fake.URL + "/" + bucket,
	})
	if err != nil {
		t.Fatalf("artifacts: %v", err)
	}
	if _, err := store.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); err != nil {
		t.Fatalf("create bucket %s: %v", bucket, err)
	}
	return store
}
