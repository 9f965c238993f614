package media

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const defaultMinioRegion = "us-east-1"

// MinioConfig points the relay at an S3-compatible host. PublicEndpoint is
// the host clients fetch assets from when it differs from the API-side
// endpoint (reverse proxy, CDN); it falls back to Endpoint.
type MinioConfig struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
	PublicEndpoint string
	Region         string
}

// Enabled reports whether the configuration names a reachable target.
func (cfg MinioConfig) Enabled() bool {
	return strings.TrimSpace(cfg.Endpoint) != "" && strings.TrimSpace(cfg.Bucket) != ""
}

// MinioRelay stores assets in a single bucket, keyed by namespace prefix.
// The object key doubles as the deletion handle.
type MinioRelay struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinioRelay connects to the object store and creates the bucket when it
// does not exist yet.
func NewMinioRelay(ctx context.Context, cfg MinioConfig) (*MinioRelay, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("minio endpoint and bucket are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object storage: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		region := cfg.Region
		if region == "" {
			region = defaultMinioRegion
		}
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	endpoint := cfg.PublicEndpoint
	if strings.TrimSpace(endpoint) == "" {
		endpoint = cfg.Endpoint
	}
	return &MinioRelay{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: fmt.Sprintf("%s://%s", scheme, strings.TrimSuffix(endpoint, "/")),
	}, nil
}

func (r *MinioRelay) Upload(ctx context.Context, namespace, filename, contentType string, body io.Reader, size int64) (Asset, error) {
	key := objectKey(namespace, filename)
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := r.client.PutObject(ctx, r.bucket, key, body, size, opts); err != nil {
		return Asset{}, fmt.Errorf("upload %s: %w", key, err)
	}
	return Asset{
		URL:    fmt.Sprintf("%s/%s/%s", r.publicURL, r.bucket, key),
		Handle: key,
	}, nil
}

func (r *MinioRelay) Delete(ctx context.Context, handle string) error {
	if strings.TrimSpace(handle) == "" {
		return nil
	}
	if err := r.client.RemoveObject(ctx, r.bucket, handle, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s: %w", handle, err)
	}
	return nil
}

// objectKey builds a collision-free key that keeps the original extension so
// the object store serves a usable content type.
func objectKey(namespace, filename string) string {
	name := primitive.NewObjectID().Hex()
	if ext := strings.ToLower(path.Ext(filename)); ext != "" && len(ext) <= 8 {
		name += ext
	}
	return fmt.Sprintf("%s/%s", namespace, name)
}
