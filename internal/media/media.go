// Package media turns incident video object keys into time-limited links.
package media

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/grovetools/watchpost/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Linker produces a playable URL for an object key.
type Linker interface {
	Link(ctx context.Context, key string) (string, error)
}

// Presigner signs GET links against an S3-compatible store.
type Presigner struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

// NewPresigner creates a presigner for cfg. Signing happens locally; the
// store is not contacted.
func NewPresigner(cfg config.MediaConfig) (*Presigner, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("media store is not configured")
	}
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create media client: %w", err)
	}
	ttl := cfg.LinkTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Presigner{client: cli, bucket: cfg.Bucket, ttl: ttl}, nil
}

// Link returns a presigned GET URL for key.
func (p *Presigner) Link(ctx context.Context, key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" {
		return "", fmt.Errorf("empty object key")
	}
	u, err := p.client.PresignedGetObject(ctx, p.bucket, key, p.ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}
