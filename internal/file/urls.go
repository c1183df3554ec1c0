package file

import (
	"context"
	"time"

	"github.com/ktg/storage-service/internal/config"
	"github.com/ktg/storage-service/internal/objectstore"
)

// URLService produces read URLs for stored files, switching between signed
// store URLs (remote mode) and same-origin media URLs (local mode).
type URLService struct {
	objects objectstore.Client
	cfg     *config.Config
}

// NewURLService creates a URLService.
func NewURLService(objects objectstore.Client, cfg *config.Config) *URLService {
	return &URLService{objects: objects, cfg: cfg}
}

// ReadURL returns a URL granting read access to the object behind storageKey.
// With expiring set it is bounded by the configured TTL; without it the URL
// has no-expiry semantics. In local mode no signing exists and the
// same-origin media URL is returned either way.
func (u *URLService) ReadURL(ctx context.Context, storageKey string, expiring bool) (string, error) {
	path := UploadPath(storageKey)
	if !u.cfg.IsRemote() {
		return u.objects.PublicURL(path), nil
	}

	var ttl time.Duration
	if expiring {
		ttl = time.Duration(u.cfg.PresignedExpirySec) * time.Second
	}
	return u.objects.PresignReadURL(ctx, path, ttl)
}

// ThumbnailURL returns a read URL for a derived thumbnail key, which is
// already a full store path.
func (u *URLService) ThumbnailURL(ctx context.Context, thumbnailKey string, expiring bool) (string, error) {
	if !u.cfg.IsRemote() {
		return u.objects.PublicURL(thumbnailKey), nil
	}

	var ttl time.Duration
	if expiring {
		ttl = time.Duration(u.cfg.PresignedExpirySec) * time.Second
	}
	return u.objects.PresignReadURL(ctx, thumbnailKey, ttl)
}

// PublicURL returns the unsigned, cache-stable URL for storageKey. Use it
// only where permanent-looking links are acceptable.
func (u *URLService) PublicURL(storageKey string) string {
	return u.objects.PublicURL(UploadPath(storageKey))
}
