package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// GCSStorage implements Storage on top of a Google Cloud Storage bucket.
// Names are object names relative to prefix.
type GCSStorage struct {
	client *gcs.Client
	bucket string
	prefix string
}

// NewGCSStorage creates a client using application default credentials
func NewGCSStorage(ctx context.Context, bucket, prefix string) (*GCSStorage, error) {
	if bucket == "" {
		return nil, errors.New("GCS bucket is required")
	}

	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return NewGCSStorageWithClient(client, bucket, prefix), nil
}

// NewGCSStorageWithClient wraps an existing client
func NewGCSStorageWithClient(client *gcs.Client, bucket, prefix string) *GCSStorage {
	return &GCSStorage{
		client: client,
		bucket: bucket,
		prefix: normalizePrefix(prefix),
	}
}

// Open returns a reader for the named object
func (s *GCSStorage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.objectName(name)).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("open GCS object %s: %w", name, fs.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("open GCS object reader: %w", err)
	}
	return r, nil
}

// Remove deletes the named object
func (s *GCSStorage) Remove(ctx context.Context, name string) error {
	err := s.client.Bucket(s.bucket).Object(s.objectName(name)).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("delete GCS object %s: %w", name, fs.ErrNotExist)
	}
	if err != nil {
		return fmt.Errorf("delete GCS object: %w", err)
	}
	return nil
}

// List returns the objects directly under the prefix
func (s *GCSStorage) List(ctx context.Context) ([]FileInfo, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &gcs.Query{
		Prefix:    s.prefix,
		Delimiter: "/",
	})

	var files []FileInfo
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list GCS objects: %w", err)
		}
		if attrs.Name == "" {
			continue // Synthetic "directory" entry
		}

		name := strings.TrimPrefix(attrs.Name, s.prefix)
		if name == "" || strings.HasPrefix(path.Base(name), ".") {
			continue
		}
		files = append(files, FileInfo{
			Name:    name,
			Size:    attrs.Size,
			ModTime: attrs.Updated,
		})
	}

	return files, nil
}

// Close releases the underlying client
func (s *GCSStorage) Close() error {
	return s.client.Close()
}

func (s *GCSStorage) objectName(name string) string {
	return s.prefix + strings.TrimPrefix(name, "/")
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}
