// Package storage persists uploaded documents to local disk until text
// extraction succeeds.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileStore saves uploaded files to disk under a base directory.
type FileStore struct {
	basePath string
}

// NewFileStore creates the base directory if missing.
func NewFileStore(basePath string) (*FileStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// Save writes an uploaded file under a unique name and returns the stored
// path. The original filename is kept as a readable suffix.
func (f *FileStore) Save(filename string, r io.Reader) (string, error) {
	target := filepath.Join(f.basePath, uuid.NewString()+"-"+safeFilename(filename))

	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return target, nil
}

// Remove deletes a stored file. A missing file is not an error.
func (f *FileStore) Remove(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func safeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	name = strings.TrimSpace(name)
	if name == "" {
		return "document"
	}
	return name
}
