package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("object not found")

// FileInfo represents metadata about a stored object.
type FileInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Storage is the blob store used for archived receipts.
type Storage interface {
	// Write stores r under key. size is -1 when unknown.
	Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Read opens key. The caller closes the returned reader.
	Read(ctx context.Context, key string) (io.ReadCloser, error)

	// List returns the objects whose key starts with prefix.
	List(ctx context.Context, prefix string) ([]FileInfo, error)

	// GetURL returns a URL for key: a server-relative path for local
	// storage, a public or presigned URL for S3.
	GetURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// Config selects the storage driver.
type Config struct {
	Driver string      `mapstructure:"driver"` // "local", "s3", "" (disabled)
	Local  LocalConfig `mapstructure:"local"`
	S3     S3Config    `mapstructure:"s3"`
}

// New creates the configured Storage. A nil Storage with nil error means
// archiving is disabled.
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Driver {
	case "local":
		return NewLocalStorage(cfg.Local)
	case "s3":
		return NewS3Storage(ctx, cfg.S3)
	case "", "none":
		return nil, nil
	default:
		return nil, errors.New("unsupported storage driver: " + cfg.Driver)
	}
}
