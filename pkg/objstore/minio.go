package objstore

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/ajitpratap0/seedsync/pkg/errors"
)

// MinioConfig configures the MinIO backend.
type MinioConfig struct {
	// Endpoint is host[:port] or a URL; an https scheme enables TLS
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	UseSSL          bool
}

// Minio is a Client backed by minio-go.
type Minio struct {
	client *minio.Client
}

// NewMinio creates a MinIO client with static credentials.
func NewMinio(cfg MinioConfig) (*Minio, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "minio endpoint is required")
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "minio credentials are required")
	}

	endpoint, useSSL, err := parseEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create minio client")
	}
	return &Minio{client: client}, nil
}

// List implements Client.
func (c *Minio) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	var out []Object
	for obj := range c.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, classifyMinioError(obj.Err, "failed to list objects")
		}
		out = append(out, Object{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
	}
	return out, nil
}

// Get implements Client. The object is stat'ed first so a missing key is
// reported here rather than on the first read.
func (c *Minio) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := c.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyMinioError(err, "failed to get object").WithDetail("key", key)
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, classifyMinioError(err, "failed to get object").WithDetail("key", key)
	}
	return obj, nil
}

// Put implements Client.
func (c *Minio) Put(ctx context.Context, bucket, key string, body io.Reader, opts PutOptions) error {
	size := opts.Size
	if size == 0 {
		size = -1
	}
	_, err := c.client.PutObject(ctx, bucket, key, body, size, minio.PutObjectOptions{
		ContentType:     opts.ContentType,
		ContentEncoding: opts.ContentEncoding,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeUpload, "failed to upload object").WithDetail("key", key)
	}
	return nil
}

func parseEndpoint(raw string, useSSL bool) (string, bool, error) {
	if !strings.Contains(raw, "://") {
		return raw, useSSL, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false, errors.Wrap(err, errors.ErrorTypeConfig, "invalid minio endpoint")
	}
	if u.Host == "" {
		return "", false, errors.Newf(errors.ErrorTypeConfig, "invalid minio endpoint %q", raw)
	}
	return u.Host, u.Scheme == "https", nil
}

func classifyMinioError(err error, msg string) *errors.Error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchBucket", "NoSuchKey":
		return errors.Wrap(err, errors.ErrorTypeNotFound, msg)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return errors.Wrap(err, errors.ErrorTypeAuth, msg)
	case "SlowDown", "SlowDownRead", "SlowDownWrite":
		return errors.Wrap(err, errors.ErrorTypeRateLimit, msg)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, errors.ErrorTypeTimeout, msg)
	}
	if errors.Is(err, context.Canceled) {
		return errors.Wrap(err, errors.ErrorTypeInternal, msg)
	}
	return errors.Wrap(err, errors.ErrorTypeRetrieval, msg)
}
