// Package objectstore defines the capability interface for blob storage.
// Swap implementations by changing the concrete type injected at startup —
// the MinIO implementation works with any S3-compatible provider, and the
// filesystem implementation backs the local (offline) deployment mode.
package objectstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotExist is returned by read operations when the key has no object.
var ErrNotExist = errors.New("object does not exist")

// PresignedPost is a time-limited capability for a browser-direct upload.
// The end client POSTs the file to URL with Fields as form values.
type PresignedPost struct {
	URL       string            `json:"url"`
	Fields    map[string]string `json:"fields,omitempty"`
	ExpiresAt time.Time         `json:"expiresAt,omitempty"`
}

// ObjectInfo holds the metadata returned by a head request.
type ObjectInfo struct {
	Size         int64
	LastModified time.Time
	ContentType  string
	ETag         string
}

// Client is the interface for object storage operations. All methods return
// errors rather than swallowing them; the caller decides whether a failure is
// fatal to its own operation or soft (log and continue without the artifact).
type Client interface {
	// PresignUploadPost issues an upload capability for key that pins the
	// content type and constrains the payload to [1, maxSize] bytes.
	PresignUploadPost(ctx context.Context, key, contentType string, maxSize int64) (*PresignedPost, error)

	// PresignReadURL issues a time-limited GET URL for key. A non-positive
	// ttl means "no expiry": the returned URL is the permanent unsigned form.
	PresignReadURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	Exists(ctx context.Context, key string) (bool, error)
	Head(ctx context.Context, key string) (*ObjectInfo, error)

	GetBytes(ctx context.Context, key string) ([]byte, error)
	DownloadTo(ctx context.Context, key, localPath string) error

	// Upload streams data to the store under key. size must be the exact
	// byte count (pass -1 only if genuinely unknown).
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType, acl string) error
	Copy(ctx context.Context, srcKey, dstKey string) error
	Delete(ctx context.Context, key string) error

	// PublicURL constructs the unsigned, cache-stable URL for key. It does
	// not check existence and carries no credentials.
	PublicURL(key string) string
}
