package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/snagtrack/snagtrack/internal/config"
)

// Client wraps MinIO for screenshot and attachment storage. All objects live
// in a single bucket; keys are namespaced by kind ("screenshots/",
// "attachments/", "thumbs/").
type Client struct {
	mc        *minio.Client
	bucket    string
	urlExpiry time.Duration
}

// NewClient creates a storage client from configuration.
func NewClient(cfg config.StorageConfig) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &Client{mc: mc, bucket: cfg.Bucket, urlExpiry: cfg.URLExpiry}, nil
}

// EnsureBucket creates the bucket if it does not exist. Idempotent.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.mc.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := c.mc.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("creating bucket: %w", err)
	}
	return nil
}

// NewKey mints a fresh object key under the given prefix, keeping the
// original filename's extension.
func NewKey(prefix, filename string) string {
	return prefix + "/" + uuid.NewString() + path.Ext(filename)
}

// Upload stores an object and returns nothing beyond the error; the caller
// already holds the key.
func (c *Client) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := c.mc.PutObject(ctx, c.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", key, err)
	}
	return nil
}

// SignedURL returns a presigned GET URL for an object. The URL expires after
// the configured validity.
func (c *Client) SignedURL(ctx context.Context, key string) (string, error) {
	u, err := c.mc.PresignedGetObject(ctx, c.bucket, key, c.urlExpiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presigning %s: %w", key, err)
	}
	return u.String(), nil
}

// Delete removes an object. Missing objects are not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.mc.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// DeleteAll removes a set of objects, continuing past individual failures and
// returning the first error seen.
func (c *Client) DeleteAll(ctx context.Context, keys []string) error {
	var firstErr error
	for _, key := range keys {
		if err := c.Delete(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
