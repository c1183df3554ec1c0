package objectstore

import (
	"bytes"
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore implements Client on the local filesystem. It backs the "local"
// deployment mode used in development and offline flows: objects live under
// root, keyed by their storage path, and read URLs are same-origin media URLs
// served by the application itself.
type LocalStore struct {
	root      string
	mediaBase string // e.g. "http://localhost:8080/media"
}

var _ Client = (*LocalStore)(nil)

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root, mediaBase string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create local storage root: %w", err)
	}
	return &LocalStore{
		root:      root,
		mediaBase: strings.TrimRight(mediaBase, "/"),
	}, nil
}

// PresignUploadPost is not available on the filesystem backend; the local
// upload flow posts bytes to the application instead of the store.
func (s *LocalStore) PresignUploadPost(ctx context.Context, key, contentType string, maxSize int64) (*PresignedPost, error) {
	return nil, errors.New("presigned upload is not supported by local storage")
}

// PresignReadURL returns the same-origin media URL; local files need no
// signing, so the ttl is ignored.
func (s *LocalStore) PresignReadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return s.PublicURL(key), nil
}

func (s *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat local object %q: %w", key, err)
	}
	return true, nil
}

func (s *LocalStore) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	fi, err := os.Stat(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("stat local object %q: %w", key, err)
	}

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, fmt.Errorf("read local object %q: %w", key, err)
	}

	return &ObjectInfo{
		Size:         fi.Size(),
		LastModified: fi.ModTime(),
		ContentType:  mime.TypeByExtension(filepath.Ext(key)),
		ETag:         fmt.Sprintf("%x", md5.Sum(data)),
	}, nil
}

func (s *LocalStore) GetBytes(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("read local object %q: %w", key, err)
	}
	return data, nil
}

func (s *LocalStore) DownloadTo(ctx context.Context, key, localPath string) error {
	data, err := s.GetBytes(ctx, key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return fmt.Errorf("write local copy of %q: %w", key, err)
	}
	return nil
}

func (s *LocalStore) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType, acl string) error {
	dst := s.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create dir for %q: %w", key, err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create local object %q: %w", key, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, reader); err != nil {
		return fmt.Errorf("write local object %q: %w", key, err)
	}
	return nil
}

func (s *LocalStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	data, err := s.GetBytes(ctx, srcKey)
	if err != nil {
		return err
	}
	return s.Upload(ctx, dstKey, bytes.NewReader(data), int64(len(data)), "", "")
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove local object %q: %w", key, err)
	}
	return nil
}

// PublicURL returns the same-origin media URL for key.
func (s *LocalStore) PublicURL(key string) string {
	return s.mediaBase + "/" + key
}

// Root returns the directory local objects are stored under, for the media
// file server.
func (s *LocalStore) Root() string {
	return s.root
}

// path maps a storage key onto the filesystem, rejecting traversal segments.
func (s *LocalStore) path(key string) string {
	return filepath.Join(s.root, filepath.Clean("/"+key))
}
