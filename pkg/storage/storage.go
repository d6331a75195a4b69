package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ErrNotExist is returned when the referenced object is gone from the backend.
var ErrNotExist = errors.New("storage: object does not exist")

// Storage persists uploaded document bytes behind an opaque path handle.
type Storage interface {
	// Save writes the stream and returns the storage path for later retrieval.
	Save(ctx context.Context, fileID, filename string, r io.Reader) (string, error)

	// Open returns a reader for the stored object, or ErrNotExist.
	Open(ctx context.Context, storagePath string) (io.ReadCloser, error)

	// Delete removes the stored object. Deleting a missing object is not an error.
	Delete(ctx context.Context, storagePath string) error
}

// Config selects and parameterizes a backend.
type Config struct {
	Backend      string
	LocalDir     string
	S3Bucket     string
	S3Region     string
	AWSAccessKey string
	AWSSecretKey string
}

// New builds a Storage from configuration.
func New(cfg Config) (Storage, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStorage(cfg.LocalDir)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, errors.New("storage: s3 backend requires a bucket")
		}
		return NewS3Storage(cfg)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}
}

// objectPath derives a collision-free key from the file ID and original name.
func objectPath(fileID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	base = sanitize(base)
	if base == "" {
		base = "file"
	}
	prefix := fileID
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	return fmt.Sprintf("%s/%s_%s%s", prefix, fileID, base, ext)
}

func sanitize(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
