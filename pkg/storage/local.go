package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStorage implements Storage using the local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local filesystem storage. With an empty
// basePath names are used as given, relative to the working directory.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if basePath != "" {
		// Ensure base path exists
		if err := os.MkdirAll(basePath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	return &LocalStorage{basePath: basePath}, nil
}

// Open returns a reader for the named file
func (s *LocalStorage) Open(_ context.Context, name string) (io.ReadCloser, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Remove deletes the named file
func (s *LocalStorage) Remove(_ context.Context, name string) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// List returns the regular files in the base directory, sorted by name.
// Hidden files are skipped.
func (s *LocalStorage) List(_ context.Context) ([]FileInfo, error) {
	dir := s.basePath
	if dir == "" {
		dir = "."
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list directory: %w", err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue // Removed between ReadDir and Info
		}
		files = append(files, FileInfo{
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// resolve maps a name to a filesystem path, refusing names that escape the base directory
func (s *LocalStorage) resolve(name string) (string, error) {
	if s.basePath == "" {
		return name, nil
	}
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return filepath.Join(s.basePath, name), nil
}
