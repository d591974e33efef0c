package objectstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds S3-compatible object storage settings
type Config struct {
	Endpoint        string
	AccessKey       string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	// PublicBaseURL is prefixed to object keys in returned URLs; defaults to the endpoint
	PublicBaseURL string
}

// Client stores uploaded images in a single bucket
type Client struct {
	cfg    *Config
	client *minio.Client
	logger *slog.Logger
}

// NewClient creates a minio client and makes sure the bucket exists
func NewClient(ctx context.Context, cfg *Config, logger *slog.Logger) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}

	exists, err := mc.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := mc.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %q: %w", cfg.Bucket, err)
		}
		logger.Info("Created object storage bucket", slog.String("bucket", cfg.Bucket))
	}

	return &Client{cfg: cfg, client: mc, logger: logger}, nil
}

// Put uploads an object and returns its public URL
func (c *Client) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	info, err := c.client.PutObject(ctx, c.cfg.Bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object %q: %w", key, err)
	}

	c.logger.Debug("Object uploaded",
		slog.String("bucket", c.cfg.Bucket),
		slog.String("key", key),
		slog.Int64("size", info.Size),
	)

	return c.ObjectURL(key), nil
}

// Remove deletes an object; missing objects are not an error
func (c *Client) Remove(ctx context.Context, key string) error {
	if err := c.client.RemoveObject(ctx, c.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object %q: %w", key, err)
	}
	return nil
}

// ObjectURL builds the URL an object is served from
func (c *Client) ObjectURL(key string) string {
	return BuildURL(c.cfg, key)
}

// BuildURL joins the public base (or endpoint), bucket and key
func BuildURL(cfg *Config, key string) string {
	base := cfg.PublicBaseURL
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + cfg.Endpoint
	}

	u, err := url.JoinPath(strings.TrimRight(base, "/"), cfg.Bucket, key)
	if err != nil {
		return strings.TrimRight(base, "/") + "/" + cfg.Bucket + "/" + key
	}
	return u
}
