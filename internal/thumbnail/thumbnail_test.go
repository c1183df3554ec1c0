package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ktg/storage-service/internal/objectstore"
)

type fakeStore struct {
	objects map[string][]byte
	getErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (f *fakeStore) PresignUploadPost(ctx context.Context, key, contentType string, maxSize int64) (*objectstore.PresignedPost, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) PresignReadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "", errors.New("not implemented")
}

func (f *fakeStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeStore) Head(ctx context.Context, key string) (*objectstore.ObjectInfo, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, objectstore.ErrNotExist
	}
	return &objectstore.ObjectInfo{Size: int64(len(data))}, nil
}

func (f *fakeStore) GetBytes(ctx context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, objectstore.ErrNotExist
	}
	return data, nil
}

func (f *fakeStore) DownloadTo(ctx context.Context, key, localPath string) error {
	return errors.New("not implemented")
}

func (f *fakeStore) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType, acl string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	data, ok := f.objects[srcKey]
	if !ok {
		return objectstore.ErrNotExist
	}
	f.objects[dstKey] = data
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeStore) PublicURL(key string) string {
	return "https://store.example/bucket/" + key
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, image.White.C)
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, image.White.C)
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))
	return buf.Bytes()
}

func TestGenerate_ResizesPNG(t *testing.T) {
	store := newFakeStore()
	store.objects["files/abc123.png"] = encodePNG(t, 300, 200)
	gen := NewGenerator(store, "private", zerolog.Nop())

	key, err := gen.Generate(context.Background(), "files/abc123.png")
	require.NoError(t, err)
	assert.Equal(t, "thumbnails/abc123.png", key, "png stays png")

	thumb, format, err := image.Decode(bytes.NewReader(store.objects[key]))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	b := thumb.Bounds()
	assert.LessOrEqual(t, b.Dx(), defaultBox)
	assert.LessOrEqual(t, b.Dy(), defaultBox)
	// Fit preserves aspect ratio: 300x200 pinned to the 128 box.
	assert.Equal(t, defaultBox, b.Dx())
}

func TestGenerate_JPEGKeepsFormatFamily(t *testing.T) {
	store := newFakeStore()
	store.objects["files/photo.jpg"] = encodeJPEG(t, 640, 480)
	gen := NewGenerator(store, "private", zerolog.Nop())

	key, err := gen.Generate(context.Background(), "files/photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, "thumbnails/photo.jpg", key)

	_, format, err := image.Decode(bytes.NewReader(store.objects[key]))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestGenerate_SmallImageIsNotUpscaled(t *testing.T) {
	store := newFakeStore()
	store.objects["files/tiny.png"] = encodePNG(t, 16, 16)
	gen := NewGenerator(store, "private", zerolog.Nop())

	key, err := gen.Generate(context.Background(), "files/tiny.png")
	require.NoError(t, err)

	thumb, _, err := image.Decode(bytes.NewReader(store.objects[key]))
	require.NoError(t, err)
	assert.Equal(t, 16, thumb.Bounds().Dx())
	assert.Equal(t, 16, thumb.Bounds().Dy())
}

func TestGenerate_UnsupportedTypeGetsPlaceholder(t *testing.T) {
	store := newFakeStore()
	// Minimal zip local-file header; sniffs as application/zip.
	store.objects["files/archive.zip"] = append([]byte("PK\x03\x04"), make([]byte, 32)...)
	gen := NewGenerator(store, "private", zerolog.Nop())

	key, err := gen.Generate(context.Background(), "files/archive.zip")
	require.NoError(t, err)
	assert.Equal(t, "thumbnails/archive.jpg", key)

	thumb, format, err := image.Decode(bytes.NewReader(store.objects[key]))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, defaultBox, thumb.Bounds().Dx())
	assert.Equal(t, defaultBox, thumb.Bounds().Dy())
}

func TestGenerate_MissingSourceIsSoft(t *testing.T) {
	store := newFakeStore()
	gen := NewGenerator(store, "private", zerolog.Nop())

	key, err := gen.Generate(context.Background(), "files/nope.png")
	assert.NoError(t, err)
	assert.Empty(t, key)
	assert.Empty(t, store.objects, "nothing must be uploaded")
}

func TestGenerate_StoreReadFailureIsSoft(t *testing.T) {
	store := newFakeStore()
	store.objects["files/abc.png"] = encodePNG(t, 10, 10)
	store.getErr = errors.New("store exploded")
	gen := NewGenerator(store, "private", zerolog.Nop())

	key, err := gen.Generate(context.Background(), "files/abc.png")
	assert.NoError(t, err, "pipeline failures surface in logs, not to the caller")
	assert.Empty(t, key)
}

func TestGenerate_CorruptImageIsSoft(t *testing.T) {
	store := newFakeStore()
	// A PNG signature followed by garbage: sniffs as image/png, fails decode.
	corrupt := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0xde, 0xad}, 16)...)
	store.objects["files/broken.png"] = corrupt
	gen := NewGenerator(store, "private", zerolog.Nop())

	key, err := gen.Generate(context.Background(), "files/broken.png")
	assert.NoError(t, err)
	assert.Empty(t, key)
	_, uploaded := store.objects["thumbnails/broken.png"]
	assert.False(t, uploaded)
}

func TestDeriveKey(t *testing.T) {
	tests := []struct {
		source string
		ext    string
		want   string
	}{
		{"files/abc123.png", ".png", "thumbnails/abc123.png"},
		{"files/abc123.mp4", ".jpg", "thumbnails/abc123.jpg"},
		{"files/doc.pdf", ".png", "thumbnails/doc.png"},
		{"files/noext", ".jpg", "thumbnails/noext.jpg"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, deriveKey(tt.source, tt.ext), "source %q", tt.source)
	}
}

func TestPlaceholder_EncodesWithinBox(t *testing.T) {
	gen := NewGenerator(newFakeStore(), "private", zerolog.Nop())

	encoded, ext, contentType, err := gen.placeholder()
	require.NoError(t, err)
	assert.Equal(t, ".jpg", ext)
	assert.Equal(t, "image/jpeg", contentType)
	assert.True(t, strings.HasPrefix(string(encoded[:3]), "\xff\xd8\xff"), "placeholder must be a JPEG")
}
