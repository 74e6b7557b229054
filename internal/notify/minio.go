package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"mime"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/v1gneshkum4r21/face-clustering/internal/config"
	"github.com/v1gneshkum4r21/face-clustering/internal/constants"
)

var galleryTemplate = template.Must(template.New("gallery").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title>
<style>body{font-family:sans-serif;margin:2rem}img{max-width:320px;margin:.5rem;border-radius:4px}</style>
</head><body><h1>{{.Title}}</h1>
{{range .Images}}<a href="{{.URL}}"><img src="{{.URL}}" alt="{{.Name}}"></a>
{{end}}</body></html>
`))

type galleryImage struct {
	Name string
	URL  string
}

// MinioPublisher uploads cluster images to an S3 compatible bucket and
// shares them through a presigned gallery page.
type MinioPublisher struct {
	client *minio.Client
	bucket string
	title  string
	expiry time.Duration
}

// NewMinIOClient creates a client for the configured endpoint.
func NewMinIOClient(cfg config.StorageConfig) (*minio.Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}
	return client, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func EnsureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("creating bucket %s: %w", bucket, err)
		}
	}
	return nil
}

// NewMinioPublisher connects and makes sure the bucket exists.
func NewMinioPublisher(ctx context.Context, cfg config.StorageConfig, appName string) (*MinioPublisher, error) {
	client, err := NewMinIOClient(cfg)
	if err != nil {
		return nil, err
	}
	if err := EnsureBucket(ctx, client, cfg.Bucket); err != nil {
		return nil, err
	}
	return &MinioPublisher{
		client: client,
		bucket: cfg.Bucket,
		title:  appName,
		expiry: constants.ShareLinkDays * 24 * time.Hour,
	}, nil
}

// objectKey places every image of a cluster under its own prefix.
func objectKey(clusterID, name string) string {
	return clusterID + "/" + name
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// Publish uploads images and returns a presigned link to a gallery page.
func (p *MinioPublisher) Publish(ctx context.Context, clusterID string, images []Image) (string, error) {
	gallery := make([]galleryImage, 0, len(images))
	for _, img := range images {
		key := objectKey(clusterID, img.Name)
		if _, err := p.client.FPutObject(ctx, p.bucket, key, img.Path, minio.PutObjectOptions{
			ContentType: contentType(img.Name),
		}); err != nil {
			return "", fmt.Errorf("uploading %s: %w", key, err)
		}
		u, err := p.client.PresignedGetObject(ctx, p.bucket, key, p.expiry, nil)
		if err != nil {
			return "", fmt.Errorf("signing %s: %w", key, err)
		}
		gallery = append(gallery, galleryImage{Name: img.Name, URL: u.String()})
	}

	var page bytes.Buffer
	err := galleryTemplate.Execute(&page, struct {
		Title  string
		Images []galleryImage
	}{Title: fmt.Sprintf("%s: %s", p.title, clusterID), Images: gallery})
	if err != nil {
		return "", fmt.Errorf("rendering gallery: %w", err)
	}

	indexKey := objectKey(clusterID, "index.html")
	if _, err := p.client.PutObject(ctx, p.bucket, indexKey, bytes.NewReader(page.Bytes()), int64(page.Len()),
		minio.PutObjectOptions{ContentType: "text/html; charset=utf-8"}); err != nil {
		return "", fmt.Errorf("uploading %s: %w", indexKey, err)
	}
	u, err := p.client.PresignedGetObject(ctx, p.bucket, indexKey, p.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("signing %s: %w", indexKey, err)
	}
	return u.String(), nil
}
