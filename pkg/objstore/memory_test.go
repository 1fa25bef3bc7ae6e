package objstore

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/seedsync/pkg/errors"
)

func TestMemory_ListGetPut(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.Add("bucket", "seeds/diagnosis_1.csv.gz", []byte("b"))
	m.Add("bucket", "seeds/diagnosis_0.csv.gz", []byte("a"))
	m.Add("bucket", "seeds/other_0.csv.gz", []byte("c"))

	objs, err := m.List(ctx, "bucket", "seeds/diagnosis")
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "seeds/diagnosis_0.csv.gz", objs[0].Key)
	assert.Equal(t, "seeds/diagnosis_1.csv.gz", objs[1].Key)
	assert.Equal(t, int64(1), objs[0].Size)

	rc, err := m.Get(ctx, "bucket", "seeds/diagnosis_0.csv.gz")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "a", string(data))
	assert.Equal(t, 1, m.Gets())

	err = m.Put(ctx, "target", "k.csv.gz", strings.NewReader("payload"), PutOptions{
		ContentType:     ContentTypeCSV,
		ContentEncoding: ContentEncodingGzip,
		Size:            -1,
	})
	require.NoError(t, err)
	obj, ok := m.Object("target", "k.csv.gz")
	require.True(t, ok)
	assert.Equal(t, "payload", string(obj.Data))
	assert.Equal(t, "text/csv", obj.ContentType)
	assert.Equal(t, "gzip", obj.ContentEncoding)
	assert.Equal(t, 1, m.Puts())
	assert.Equal(t, []string{"k.csv.gz"}, m.Keys("target"))
}

func TestMemory_Errors(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.List(ctx, "missing", "")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	m.Add("bucket", "a", nil)
	_, err = m.Get(ctx, "bucket", "b")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	assert.Zero(t, m.Gets())

	m.GetErr = func(_, key string) error {
		return errors.Newf(errors.ErrorTypeRetrieval, "injected for %s", key)
	}
	_, err = m.Get(ctx, "bucket", "a")
	assert.True(t, errors.IsRetryable(err))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = m.List(cancelled, "bucket", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemory_ListEmptyPrefixMatch(t *testing.T) {
	m := NewMemory()
	m.Add("bucket", "x", nil)
	objs, err := m.List(context.Background(), "bucket", "nope/")
	require.NoError(t, err)
	assert.Empty(t, objs)
}
