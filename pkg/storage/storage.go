// Package storage provides the file sources imports are read from, backed by
// the local filesystem or a Google Cloud Storage bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"
)

// FileInfo contains metadata about a stored file
type FileInfo struct {
	Name    string    `json:"name"` // Relative to the storage root
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Storage defines the file operations the importer needs
type Storage interface {
	// Open returns a reader for the named file. Missing files report an
	// error matching fs.ErrNotExist.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Remove deletes the named file
	Remove(ctx context.Context, name string) error

	// List returns the files directly under the storage root
	List(ctx context.Context) ([]FileInfo, error)
}

// StorageType identifies the storage backend
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeGCS   StorageType = "gcs"
)

// Config holds storage configuration
type Config struct {
	Type StorageType

	// Local storage config
	LocalPath string

	// GCS storage config
	GCSBucket string
	GCSPrefix string // Objects outside this prefix are ignored
}

// New creates a new Storage implementation based on configuration
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Type {
	case StorageTypeGCS:
		return NewGCSStorage(ctx, cfg.GCSBucket, cfg.GCSPrefix)
	case StorageTypeLocal, "":
		return NewLocalStorage(cfg.LocalPath)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
