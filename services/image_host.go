package services

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"photohunter/models"
)

// Upload is an image received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// ImageHost stores uploaded images and hands back their public reference.
type ImageHost interface {
	UploadImage(ctx context.Context, u Upload) (models.Picture, error)
	DeleteImage(ctx context.Context, id string) error
}

// GCSImageHost keeps images as objects in a Cloud Storage bucket. The
// picture ID is the object name.
type GCSImageHost struct {
	client *storage.Client
	bucket string
}

func NewGCSImageHost(ctx context.Context, bucket string) (*GCSImageHost, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is empty")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("while creating GCS client: %w", err)
	}
	return &GCSImageHost{client: client, bucket: bucket}, nil
}

func (h *GCSImageHost) objectURL(name string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", h.bucket, (&url.URL{Path: name}).EscapedPath())
}

func (h *GCSImageHost) UploadImage(ctx context.Context, u Upload) (models.Picture, error) {
	name := "locations/" + uuid.New().String() + strings.ToLower(path.Ext(u.Filename))

	w := h.client.Bucket(h.bucket).Object(name).NewWriter(ctx)
	w.ContentType = u.ContentType
	if _, err := io.Copy(w, u.Body); err != nil {
		w.Close()
		return models.Picture{}, fmt.Errorf("while writing gs://%s/%s: %w", h.bucket, name, err)
	}
	if err := w.Close(); err != nil {
		return models.Picture{}, fmt.Errorf("while finalizing gs://%s/%s: %w", h.bucket, name, err)
	}

	return models.Picture{ID: name, URL: h.objectURL(name)}, nil
}

func (h *GCSImageHost) DeleteImage(ctx context.Context, id string) error {
	if err := h.client.Bucket(h.bucket).Object(id).Delete(ctx); err != nil {
		return fmt.Errorf("while deleting gs://%s/%s: %w", h.bucket, id, err)
	}
	return nil
}

func (h *GCSImageHost) Close() error {
	return h.client.Close()
}
