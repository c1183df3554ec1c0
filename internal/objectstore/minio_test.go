package objectstore

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testMinioClient builds a MinioClient without the bucket-existence probe.
// Presigning is pure local computation when the region is pinned, so these
// tests never talk to a server.
func testMinioClient(t *testing.T, secure bool) *MinioClient {
	t.Helper()
	inner, err := minio.New("store.example:9000", &minio.Options{
		Creds:  credentials.NewStaticV4("test-access", "test-secret", ""),
		Secure: secure,
		Region: "us-east-1",
	})
	require.NoError(t, err)
	return &MinioClient{
		client:        inner,
		bucket:        "uploads",
		secure:        secure,
		presignExpiry: time.Hour,
		log:           zerolog.Nop(),
	}
}

func TestPresignUploadPost_PolicyContents(t *testing.T) {
	c := testMinioClient(t, false)

	post, err := c.PresignUploadPost(context.Background(), "files/abc123.pdf", "application/pdf", 52428800)
	require.NoError(t, err)

	assert.Contains(t, post.URL, "store.example:9000")
	assert.Contains(t, post.URL, "uploads")
	assert.Equal(t, "files/abc123.pdf", post.Fields["key"])
	assert.Equal(t, "application/pdf", post.Fields["Content-Type"])
	assert.NotEmpty(t, post.Fields["x-amz-signature"])
	assert.WithinDuration(t, time.Now().Add(time.Hour), post.ExpiresAt, time.Minute)

	// The size constraint lives inside the signed policy document.
	raw, err := base64.StdEncoding.DecodeString(post.Fields["policy"])
	require.NoError(t, err)
	policy := string(raw)
	assert.Contains(t, policy, "content-length-range")
	assert.Contains(t, policy, fmt.Sprintf("%d", 52428800))
}

func TestPresignUploadPost_RejectsEmptyKey(t *testing.T) {
	c := testMinioClient(t, false)

	_, err := c.PresignUploadPost(context.Background(), "", "text/plain", 1024)
	assert.Error(t, err)
}

func TestPresignReadURL_Expiring(t *testing.T) {
	c := testMinioClient(t, false)

	u, err := c.PresignReadURL(context.Background(), "files/abc.png", 15*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, u, "files/abc.png")
	assert.Contains(t, u, "X-Amz-Expires=900")
	assert.Contains(t, u, "X-Amz-Signature=")
}

func TestPresignReadURL_NonPositiveTTLIsPublic(t *testing.T) {
	c := testMinioClient(t, false)

	u, err := c.PresignReadURL(context.Background(), "files/abc.png", 0)
	require.NoError(t, err)
	assert.Equal(t, "http://store.example:9000/uploads/files/abc.png", u)
	assert.NotContains(t, u, "X-Amz-Signature")
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t,
		"http://store.example:9000/uploads/files/abc.png",
		testMinioClient(t, false).PublicURL("files/abc.png"))
	assert.Equal(t,
		"https://store.example:9000/uploads/files/abc.png",
		testMinioClient(t, true).PublicURL("files/abc.png"))
}
