package objstore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/seedsync/pkg/errors"
)

// fakeS3 serves a fixed key set two keys per page.
type fakeS3 struct {
	mu      sync.Mutex
	keys    []string
	data    map[string]string
	getErr  error
	puts    []*s3.PutObjectInput
	bodies  []string
	listReq []string
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listReq = append(f.listReq, aws.ToString(in.ContinuationToken))

	var matched []string
	for _, k := range f.keys {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			matched = append(matched, k)
		}
	}
	start := 0
	if in.ContinuationToken != nil {
		_, err := fmt.Sscanf(*in.ContinuationToken, "%d", &start)
		if err != nil {
			return nil, err
		}
	}
	end := start + 2
	if end > len(matched) {
		end = len(matched)
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(matched))}
	now := time.Now()
	for _, k := range matched[start:end] {
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(f.data[k]))),
			LastModified: &now,
		})
	}
	if end < len(matched) {
		out.NextContinuationToken = aws.String(fmt.Sprintf("%d", end))
	}
	return out, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	body, ok := f.data[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, in)
	f.bodies = append(f.bodies, string(data))
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, fmt.Errorf("multipart not expected")
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, fmt.Errorf("multipart not expected")
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, fmt.Errorf("multipart not expected")
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

func newFakeS3() *fakeS3 {
	keys := []string{
		"seeds/diagnosis_0.csv.gz",
		"seeds/diagnosis_1.csv.gz",
		"seeds/diagnosis_2.csv.gz",
		"seeds/other_0.csv.gz",
	}
	data := make(map[string]string, len(keys))
	for _, k := range keys {
		data[k] = "content of " + k
	}
	return &fakeS3{keys: keys, data: data}
}

func TestS3_ListFollowsPages(t *testing.T) {
	api := newFakeS3()
	client := NewS3FromAPI(api, S3Config{})

	objs, err := client.List(context.Background(), "bucket", "seeds/diagnosis")
	require.NoError(t, err)

	var keys []string
	for _, o := range objs {
		keys = append(keys, o.Key)
	}
	assert.Equal(t, []string{
		"seeds/diagnosis_0.csv.gz",
		"seeds/diagnosis_1.csv.gz",
		"seeds/diagnosis_2.csv.gz",
	}, keys)
	assert.Equal(t, []string{"", "2"}, api.listReq)
	assert.Equal(t, int64(len("content of seeds/diagnosis_0.csv.gz")), objs[0].Size)
}

func TestS3_Get(t *testing.T) {
	client := NewS3FromAPI(newFakeS3(), S3Config{})

	rc, err := client.Get(context.Background(), "bucket", "seeds/other_0.csv.gz")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "content of seeds/other_0.csv.gz", string(data))

	_, err = client.Get(context.Background(), "bucket", "missing")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	assert.False(t, errors.IsRetryable(err))
}

func TestS3_PutSetsMetadata(t *testing.T) {
	api := newFakeS3()
	client := NewS3FromAPI(api, S3Config{})

	err := client.Put(context.Background(), "target", "seeds/diagnosis_0.csv.gz",
		strings.NewReader("gz-bytes"), PutOptions{ContentType: ContentTypeCSV, ContentEncoding: ContentEncodingGzip, Size: -1})
	require.NoError(t, err)

	require.Len(t, api.puts, 1)
	in := api.puts[0]
	assert.Equal(t, "target", aws.ToString(in.Bucket))
	assert.Equal(t, "seeds/diagnosis_0.csv.gz", aws.ToString(in.Key))
	assert.Equal(t, "text/csv", aws.ToString(in.ContentType))
	assert.Equal(t, "gzip", aws.ToString(in.ContentEncoding))
	assert.Equal(t, "gz-bytes", api.bodies[0])
}

func TestClassifyS3Error(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errors.ErrorType
	}{
		{"no such key", &types.NoSuchKey{}, errors.ErrorTypeNotFound},
		{"no such bucket", &types.NoSuchBucket{}, errors.ErrorTypeNotFound},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, errors.ErrorTypeAuth},
		{"throttled", &smithy.GenericAPIError{Code: "SlowDown"}, errors.ErrorTypeRateLimit},
		{"deadline", fmt.Errorf("op: %w", context.DeadlineExceeded), errors.ErrorTypeTimeout},
		{"other", fmt.Errorf("connection reset"), errors.ErrorTypeRetrieval},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyS3Error(tt.err, "op")
			assert.Equal(t, tt.want, err.Type)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
