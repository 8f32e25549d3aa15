// Package secret persists credential material as files in a private
// directory, one file per key, and watches the directory for edits made
// behind the process's back.
package secret

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// secretFileExt marks secret files inside the directory. Other files are
// ignored by both the store and the watcher.
const secretFileExt = ".secret"

// FileStore stores each secret in its own file under dir. The directory is
// created with mode 0700 and the files with mode 0600.
type FileStore struct {
	dir string
}

// NewFileStore creates the backing directory if needed and returns a store
// over it.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("secret: directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("secret: failed to create directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the backing directory.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("secret: invalid key %q", key)
	}
	return filepath.Join(s.dir, key+secretFileExt), nil
}

// Get reads a secret. The second return value reports whether it exists.
func (s *FileStore) Get(key string) (string, bool, error) {
	path, err := s.path(key)
	if err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("secret: failed to read %s: %w", key, err)
	}
	return string(data), true, nil
}

// Set writes a secret atomically: the value lands in a temp file first and
// is renamed over the target so watchers never observe a partial write.
func (s *FileStore) Set(key, value string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(value), 0o600); err != nil {
		return fmt.Errorf("secret: failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("secret: failed to replace %s: %w", key, err)
	}
	return nil
}

// Delete removes a secret. Deleting an absent key is not an error.
func (s *FileStore) Delete(key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("secret: failed to delete %s: %w", key, err)
	}
	return nil
}
