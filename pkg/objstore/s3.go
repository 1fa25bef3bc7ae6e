package objstore

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/ajitpratap0/seedsync/pkg/errors"
)

const (
	defaultRegion         = "us-east-1"
	defaultUploadPartSize = 5 * 1024 * 1024 // 5MB
	defaultMaxConcurrency = 5
)

// S3Config configures the S3 backend.
type S3Config struct {
	Region string
	// Endpoint overrides the service endpoint for S3 compatible stores
	Endpoint     string
	UsePathStyle bool
	// AccessKeyID and SecretAccessKey, when both set, replace the default
	// credential chain
	AccessKeyID     string
	SecretAccessKey string
	UploadPartSize  int64
	MaxConcurrency  int
}

// S3API is the subset of the S3 client used by the backend.
type S3API interface {
	s3.ListObjectsV2APIClient
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 is a Client backed by aws-sdk-go-v2.
type S3 struct {
	api      S3API
	uploader *manager.Uploader
}

// NewS3 builds an S3 client from the default AWS configuration chain.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load AWS config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewS3FromAPI(client, cfg), nil
}

// NewS3FromAPI wraps an existing S3 API implementation.
func NewS3FromAPI(api S3API, cfg S3Config) *S3 {
	partSize := cfg.UploadPartSize
	if partSize < manager.MinUploadPartSize {
		partSize = defaultUploadPartSize
	}
	concurrency := cfg.MaxConcurrency
	if concurrency <= 0 {
		concurrency = defaultMaxConcurrency
	}

	return &S3{
		api: api,
		uploader: manager.NewUploader(api, func(u *manager.Uploader) {
			u.PartSize = partSize
			u.Concurrency = concurrency
		}),
	}
}

// List implements Client.
func (c *S3) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	var out []Object
	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classifyS3Error(err, "failed to list objects")
		}
		for _, obj := range page.Contents {
			o := Object{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				o.LastModified = *obj.LastModified
			}
			out = append(out, o)
		}
	}
	return out, nil
}

// Get implements Client.
func (c *S3) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, classifyS3Error(err, "failed to get object").WithDetail("key", key)
	}
	return out.Body, nil
}

// Put implements Client. Large bodies are sent as multipart uploads.
func (c *S3) Put(ctx context.Context, bucket, key string, body io.Reader, opts PutOptions) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.ContentEncoding != "" {
		input.ContentEncoding = aws.String(opts.ContentEncoding)
	}

	if _, err := c.uploader.Upload(ctx, input); err != nil {
		return errors.Wrap(err, errors.ErrorTypeUpload, "failed to upload object").WithDetail("key", key)
	}
	return nil
}

func classifyS3Error(err error, msg string) *errors.Error {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return errors.Wrap(err, errors.ErrorTypeNotFound, msg)
	}
	var noBucket *types.NoSuchBucket
	if errors.As(err, &noBucket) {
		return errors.Wrap(err, errors.ErrorTypeNotFound, msg)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return errors.Wrap(err, errors.ErrorTypeNotFound, msg)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return errors.Wrap(err, errors.ErrorTypeAuth, msg)
		case "SlowDown", "Throttling", "RequestLimitExceeded":
			return errors.Wrap(err, errors.ErrorTypeRateLimit, msg)
		}
	}
	if errors.Is(err, context.Canceled) {
		return errors.Wrap(err, errors.ErrorTypeInternal, msg)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, errors.ErrorTypeTimeout, msg)
	}
	return errors.Wrap(err, errors.ErrorTypeRetrieval, msg)
}
