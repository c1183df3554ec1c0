package objectstore

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// MinioClient implements Client against a MinIO (or any S3-compatible)
// backend. To switch providers, change the endpoint and credentials — no code
// changes are needed.
type MinioClient struct {
	client        *minio.Client
	bucket        string
	secure        bool
	presignExpiry time.Duration
	log           zerolog.Logger
}

var _ Client = (*MinioClient)(nil)

// MinioOptions configures NewMinioClient.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	UseSSL    bool

	// PresignExpiry bounds the validity of signed upload capabilities.
	// Defaults to one hour.
	PresignExpiry time.Duration
}

// NewMinioClient creates a MinIO client and ensures the bucket exists.
func NewMinioClient(opts MinioOptions, log zerolog.Logger) (*MinioClient, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	ctx := context.Background()

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", opts.Bucket, err)
		}
		log.Info().Str("bucket", opts.Bucket).Msg("created bucket")
	}

	expiry := opts.PresignExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}

	return &MinioClient{
		client:        client,
		bucket:        opts.Bucket,
		secure:        opts.UseSSL,
		presignExpiry: expiry,
		log:           log,
	}, nil
}

// PresignUploadPost builds a POST policy pinning the content type and
// constraining the payload to [1, maxSize] bytes, then signs it.
func (c *MinioClient) PresignUploadPost(ctx context.Context, key, contentType string, maxSize int64) (*PresignedPost, error) {
	expiresAt := time.Now().UTC().Add(c.presignExpiry)

	policy := minio.NewPostPolicy()
	if err := policy.SetBucket(c.bucket); err != nil {
		return nil, fmt.Errorf("post policy bucket: %w", err)
	}
	if err := policy.SetKey(key); err != nil {
		return nil, fmt.Errorf("post policy key: %w", err)
	}
	if err := policy.SetContentType(contentType); err != nil {
		return nil, fmt.Errorf("post policy content type: %w", err)
	}
	if err := policy.SetContentLengthRange(1, maxSize); err != nil {
		return nil, fmt.Errorf("post policy length range: %w", err)
	}
	if err := policy.SetExpires(expiresAt); err != nil {
		return nil, fmt.Errorf("post policy expiry: %w", err)
	}

	u, fields, err := c.client.PresignedPostPolicy(ctx, policy)
	if err != nil {
		return nil, fmt.Errorf("presign upload post for %q: %w", key, err)
	}

	return &PresignedPost{
		URL:       u.String(),
		Fields:    fields,
		ExpiresAt: expiresAt,
	}, nil
}

// PresignReadURL signs a GET URL valid for ttl. A non-positive ttl means no
// expiry, for which the unsigned public form is returned instead (S3 cannot
// sign a URL that never expires).
func (c *MinioClient) PresignReadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return c.PublicURL(key), nil
	}

	u, err := c.client.PresignedGetObject(ctx, c.bucket, key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("presign read url for %q: %w", key, err)
	}
	return u.String(), nil
}

// Exists reports whether an object is stored under key.
func (c *MinioClient) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.client.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat object %q: %w", key, err)
	}
	return true, nil
}

// Head returns object metadata, or ErrNotExist when the key has no object.
func (c *MinioClient) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	info, err := c.client.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("stat object %q: %w", key, err)
	}
	return &ObjectInfo{
		Size:         info.Size,
		LastModified: info.LastModified,
		ContentType:  info.ContentType,
		ETag:         info.ETag,
	}, nil
}

// GetBytes reads the whole object into memory.
func (c *MinioClient) GetBytes(ctx context.Context, key string) ([]byte, error) {
	obj, err := c.client.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %q: %w", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("read object %q: %w", key, err)
	}
	return data, nil
}

// DownloadTo writes the object at key to localPath.
func (c *MinioClient) DownloadTo(ctx context.Context, key, localPath string) error {
	if err := c.client.FGetObject(ctx, c.bucket, key, localPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("download object %q: %w", key, err)
	}
	return nil
}

// Upload streams reader to the store under key.
func (c *MinioClient) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType, acl string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if acl != "" {
		opts.UserMetadata = map[string]string{"x-amz-acl": acl}
	}
	if _, err := c.client.PutObject(ctx, c.bucket, key, reader, size, opts); err != nil {
		return fmt.Errorf("put object %q: %w", key, err)
	}
	return nil
}

// Copy duplicates the object at srcKey under dstKey within the bucket.
func (c *MinioClient) Copy(ctx context.Context, srcKey, dstKey string) error {
	_, err := c.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: c.bucket, Object: dstKey},
		minio.CopySrcOptions{Bucket: c.bucket, Object: srcKey},
	)
	if err != nil {
		return fmt.Errorf("copy object %q to %q: %w", srcKey, dstKey, err)
	}
	return nil
}

// Delete removes the object at key. Deleting a missing key is not an error.
func (c *MinioClient) Delete(ctx context.Context, key string) error {
	if err := c.client.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %q: %w", key, err)
	}
	return nil
}

// PublicURL returns the path-style unsigned URL for key.
func (c *MinioClient) PublicURL(key string) string {
	scheme := "http"
	if c.secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, c.client.EndpointURL().Host, c.bucket, key)
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == 404
}
