// Package artifacts ships files produced by a browser test run (golden
// mismatches, screenshots) to an S3-compatible bucket, one prefix per run,
// so a CI failure can be inspected after the runner is gone.
package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrMissing is returned by Fetch for keys nothing was uploaded to.
var ErrMissing = errors.New("artifacts: no such artifact")

// Config selects the bucket and the run prefix.
type Config struct {
	// Endpoint overrides the S3 endpoint (MinIO, gofakes3). Empty means AWS.
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	// Run prefixes every key, keeping runs apart in a shared bucket.
	Run string
	// PublicURL is where the bucket can be browsed, if anywhere.
	PublicURL string
}

// Artifact is one uploaded file.
type Artifact struct {
	Key string
	// URL is empty unless the store has a PublicURL.
	URL string
}

// Store uploads the artifacts of one run.
type Store struct {
	client    *s3.Client
	bucket    string
	run       string
	publicURL string
}

// New connects to the bucket in cfg. Static credentials are used when both
// halves are set, otherwise the default AWS chain applies. A custom Endpoint
// implies path-style addressing.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("artifacts: bucket is required")
	}
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		loaders = append(loaders, config.WithCredentialsProvider(creds))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("artifacts: aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newStore(client, cfg), nil
}

func newStore(client *s3.Client, cfg Config) *Store {
	return &Store{
		client:    client,
		bucket:    cfg.Bucket,
		run:       cfg.Run,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
	}
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Key lays artifacts out as "<run>/<test>/<file>". Subtests become nested
// prefixes; every other unsafe character becomes "_".
func Key(run, test, file string) string {
	segs := []string{segment(run)}
	for _, part := range strings.Split(test, "/") {
		segs = append(segs, segment(part))
	}
	return path.Join(append(segs, segment(file))...)
}

func segment(s string) string {
	s = unsafeChars.ReplaceAllString(strings.TrimSpace(s), "_")
	switch s {
	case "", ".", "..":
		return "_"
	}
	return s
}

// Upload stores content as file under test's prefix in this run.
func (s *Store) Upload(ctx context.Context, test, file string, content []byte, contentType string) (Artifact, error) {
	key := Key(s.run, test, file)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return Artifact{}, fmt.Errorf("artifacts: upload %s: %w", key, err)
	}
	a := Artifact{Key: key}
	if s.publicURL != "" {
		a.URL = s.publicURL + "/" + key
	}
	return a, nil
}

// Fetch reads back an uploaded artifact.
func (s *Store) Fetch(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	switch {
	case errors.As(err, &noKey), errors.As(err, &notFound):
		return nil, fmt.Errorf("%w: %s", ErrMissing, key)
	case err != nil:
		return nil, fmt.Errorf("artifacts: fetch %s: %w", key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}
