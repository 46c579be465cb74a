// Package objectstore keeps the binary image files in an S3-compatible bucket
// (AWS, Cloudflare R2, MinIO) and maps object keys to public URLs.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// objectAPI is the subset of the S3 client the store needs.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	s3.ListObjectsV2APIClient
}

// Config describes the bucket and how to reach it.
type Config struct {
	Endpoint        string // empty => AWS default endpoint resolution
	Region          string
	Bucket          string
	AccessKeyID     string // empty => default credential chain
	SecretAccessKey string
	PublicURL       string // base URL objects are served from
}

// Object is one entry of a bucket listing.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Store puts, deletes and lists objects in one bucket.
type Store struct {
	api       objectAPI
	bucket    string
	publicURL string
}

// New builds an S3 client from cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(aws.CredentialsProviderFunc(
			func(ctx context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     cfg.AccessKeyID,
					SecretAccessKey: cfg.SecretAccessKey,
				}, nil
			},
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newStore(client, cfg.Bucket, cfg.PublicURL), nil
}

func newStore(api objectAPI, bucket, publicURL string) *Store {
	return &Store{
		api:       api,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// Put uploads body under key and returns its public URL.
func (s *Store) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if size > 0 {
		in.ContentLength = aws.Int64(size)
	}

	if _, err := s.api.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return s.PublicURL(key), nil
}

// Delete removes the object under key.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// DeleteURL removes the object behind a public URL. URLs outside the bucket
// are left alone.
func (s *Store) DeleteURL(ctx context.Context, src string) error {
	key, ok := s.KeyFromURL(src)
	if !ok {
		return fmt.Errorf("%s is not served from %s", src, s.publicURL)
	}
	return s.Delete(ctx, key)
}

// List returns every object in the bucket.
func (s *Store) List(ctx context.Context) ([]Object, error) {
	var out []Object
	p := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list bucket %s: %w", s.bucket, err)
		}
		for _, o := range page.Contents {
			out = append(out, Object{
				Key:          aws.ToString(o.Key),
				Size:         aws.ToInt64(o.Size),
				LastModified: aws.ToTime(o.LastModified),
			})
		}
	}
	return out, nil
}

// PublicURL returns the URL an object is served from.
func (s *Store) PublicURL(key string) string {
	return s.publicURL + "/" + strings.TrimLeft(key, "/")
}

// KeyFromURL is the inverse of PublicURL.
func (s *Store) KeyFromURL(src string) (string, bool) {
	prefix := s.publicURL + "/"
	if !strings.HasPrefix(src, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(src, prefix)
	if i := strings.IndexAny(key, "?#"); i >= 0 {
		key = key[:i]
	}
	return key, key != ""
}

// NewKey builds a collision-free object key that keeps the file extension:
// <unix millis>-<uuid><ext>.
func NewKey(filename string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("%d-%s%s", now.UnixMilli(), uuid.NewString(), ext)
}

// Orphans returns the objects whose public URL is not in srcs and that are
// older than grace. Recent objects may belong to an upload still in flight.
func (s *Store) Orphans(objects []Object, srcs []string, now time.Time, grace time.Duration) []Object {
	referenced := make(map[string]struct{}, len(srcs))
	for _, src := range srcs {
		if key, ok := s.KeyFromURL(src); ok {
			referenced[key] = struct{}{}
		}
	}

	var out []Object
	for _, o := range objects {
		if _, ok := referenced[o.Key]; ok {
			continue
		}
		if now.Sub(o.LastModified) < grace {
			continue
		}
		out = append(out, o)
	}
	return out
}
