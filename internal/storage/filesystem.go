package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ObjectStore receives rendered images and hands out their public URLs.
type ObjectStore interface {
	Upload(ctx context.Context, objectPath string, data []byte, contentType string) error
	PublicURL(objectPath string) string
}

// StorageError wraps a failed object store operation.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// FileSystem stores objects on local disk at {baseDir}/{objectPath} and
// serves them under {publicBaseURL}/{objectPath}.
type FileSystem struct {
	baseDir       string
	publicBaseURL string
}

// NewFileSystem creates a new FileSystem storage, ensuring the base directory exists.
func NewFileSystem(baseDir, publicBaseURL string) (*FileSystem, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating image directory: %w", err)
	}
	return &FileSystem{
		baseDir:       baseDir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// BaseDir is the directory the HTTP server exposes as static files.
func (fs *FileSystem) BaseDir() string {
	return fs.baseDir
}

// ObjectPath maps an object path to its location on disk. Paths that would
// escape the base directory are rejected.
func (fs *FileSystem) ObjectPath(objectPath string) (string, error) {
	clean := path.Clean("/" + objectPath)
	if clean == "/" {
		return "", fmt.Errorf("empty object path")
	}
	return filepath.Join(fs.baseDir, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// Upload writes data to disk, creating parent directories as needed.
// The content type is implied by the file extension when served.
func (fs *FileSystem) Upload(_ context.Context, objectPath string, data []byte, _ string) error {
	full, err := fs.ObjectPath(objectPath)
	if err != nil {
		return &StorageError{Op: "upload", Path: objectPath, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return &StorageError{Op: "upload", Path: objectPath, Err: err}
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return &StorageError{Op: "upload", Path: objectPath, Err: err}
	}
	return nil
}

func (fs *FileSystem) PublicURL(objectPath string) string {
	escaped := (&url.URL{Path: strings.TrimPrefix(path.Clean("/"+objectPath), "/")}).EscapedPath()
	return fs.publicBaseURL + "/" + escaped
}

// Read returns the stored bytes of an object.
func (fs *FileSystem) Read(objectPath string) ([]byte, error) {
	full, err := fs.ObjectPath(objectPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("object %s: %w", objectPath, ErrNotFound)
		}
		return nil, fmt.Errorf("reading object: %w", err)
	}
	return data, nil
}

func (fs *FileSystem) Exists(objectPath string) bool {
	full, err := fs.ObjectPath(objectPath)
	if err != nil {
		return false
	}
	_, err = os.Stat(full)
	return err == nil
}

func (fs *FileSystem) Delete(objectPath string) error {
	full, err := fs.ObjectPath(objectPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return &StorageError{Op: "delete", Path: objectPath, Err: err}
	}
	return nil
}
