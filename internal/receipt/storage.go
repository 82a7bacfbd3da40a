package receipt

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// imageRefPrefix marks image references that point into Storage
const imageRefPrefix = "upload:"

// Storage defines the interface for receipt image storage
type Storage interface {
	// Save stores data under key and returns the key actually used
	Save(key string, data []byte) (string, error)

	// Get retrieves a stored image
	Get(key string) ([]byte, error)

	// Delete removes a stored image
	Delete(key string) error
}

// LocalStorage implements Storage on the local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// path resolves key inside basePath, refusing anything that escapes it
func (l *LocalStorage) path(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || key == "." || key == ".." {
		return "", NewValidationError("image", fmt.Sprintf("invalid storage key %q", key))
	}
	return filepath.Join(l.basePath, key), nil
}

// Save writes data to local storage
func (l *LocalStorage) Save(key string, data []byte) (string, error) {
	path, err := l.path(key)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return key, nil
}

// Get reads a file from local storage
func (l *LocalStorage) Get(key string) ([]byte, error) {
	path, err := l.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("image %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// Delete removes a file from local storage. Missing files are not an error.
func (l *LocalStorage) Delete(key string) error {
	path, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename trims phone-generated upload names down to something safe to store
func sanitizeFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	ext := strings.ToLower(filepath.Ext(filename))
	if unsafeFilenameChars.MatchString(strings.TrimPrefix(ext, ".")) {
		ext = ""
	}
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(repeatedSpaces.ReplaceAllString(base, " "))
	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}
	return base + ext
}

// uploadKey names an upload so the uploader can be read back from the key
func uploadKey(userID, id, filename string) string {
	return fmt.Sprintf("%s_%s_%s", userID, id, sanitizeFilename(filename))
}

// storageKey extracts the Storage key from an image reference, if it has one
func storageKey(image string) (string, bool) {
	key, ok := strings.CutPrefix(image, imageRefPrefix)
	return key, ok && key != ""
}

// contentTypeFor guesses the MIME type of a stored image
func contentTypeFor(key string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(key)); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
