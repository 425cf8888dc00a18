// Package attachments stores extracted attachment files on disk under
// a single directory, keyed by sanitized filename.
package attachments

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when a requested attachment file does not
// exist in the store.
var ErrNotFound = fmt.Errorf("attachment not found")

// Store is a flat directory of attachment files. Two messages carrying
// attachments with the same filename overwrite each other; callers that
// need isolation should use per-message subdirectories via a dedicated
// Store instance.
type Store struct {
	dir    string
	logger *logrus.Logger
}

func NewStore(dir string, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{dir: dir, logger: logger}
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string {
	return s.dir
}

// Sanitize strips any path components from name, keeping only the last
// segment. It is idempotent and never returns a string containing a
// separator.
func Sanitize(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}

// Save writes content to the store under the sanitized filename,
// creating the directory if needed. An existing file with the same
// name is overwritten. It returns the sanitized name actually used.
func (s *Store) Save(name string, content []byte) (string, error) {
	clean := Sanitize(name)
	if clean == "" {
		return "", fmt.Errorf("empty attachment filename")
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create attachment directory: %w", err)
	}

	path := filepath.Join(s.dir, clean)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write attachment %q: %w", clean, err)
	}

	s.logger.WithFields(logrus.Fields{
		"filename": clean,
		"bytes":    len(content),
	}).Debug("Saved attachment")

	return clean, nil
}

// Read returns the content of a previously saved attachment.
func (s *Store) Read(name string) ([]byte, error) {
	path := filepath.Join(s.dir, Sanitize(name))
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to read attachment %q: %w", name, err)
	}
	return content, nil
}

// Path returns the on-disk path an attachment would be stored at.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, Sanitize(name))
}

// Exists reports whether an attachment with this name is stored.
func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}
