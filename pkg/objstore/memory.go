package objstore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ajitpratap0/seedsync/pkg/errors"
)

// StoredObject is an object held by Memory.
type StoredObject struct {
	Data            []byte
	ContentType     string
	ContentEncoding string
	LastModified    time.Time
}

// Memory is an in-process Client. Listings are returned in lexical key order,
// as S3 does. It is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]map[string]StoredObject
	gets    int
	puts    int

	// GetErr, when set, is consulted before every Get; a non-nil result is
	// returned instead of the object.
	GetErr func(bucket, key string) error
	// ListErr, when set, is consulted before every List.
	ListErr func(bucket, prefix string) error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{buckets: make(map[string]map[string]StoredObject)}
}

// Add stores data under bucket/key.
func (m *Memory) Add(bucket, key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(bucket, key, StoredObject{Data: append([]byte(nil), data...), LastModified: time.Now()})
}

// Object returns the stored object at bucket/key.
func (m *Memory) Object(bucket, key string) (StoredObject, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.buckets[bucket][key]
	return obj, ok
}

// Keys returns every key in bucket, sorted.
func (m *Memory) Keys(bucket string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedKeys(bucket, "")
}

// Gets returns the number of Get calls that returned an object.
func (m *Memory) Gets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}

// Puts returns the number of successful Put calls.
func (m *Memory) Puts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.puts
}

// List implements Client.
func (m *Memory) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.ListErr != nil {
		if err := m.ListErr(bucket, prefix); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.buckets[bucket]; !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "bucket %s does not exist", bucket)
	}
	keys := m.sortedKeys(bucket, prefix)
	out := make([]Object, 0, len(keys))
	for _, k := range keys {
		obj := m.buckets[bucket][k]
		out = append(out, Object{Key: k, Size: int64(len(obj.Data)), LastModified: obj.LastModified})
	}
	return out, nil
}

// Get implements Client.
func (m *Memory) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.GetErr != nil {
		if err := m.GetErr(bucket, key); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.buckets[bucket][key]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "object %s/%s does not exist", bucket, key)
	}
	m.gets++
	return io.NopCloser(bytes.NewReader(obj.Data)), nil
}

// Put implements Client. The bucket is created on first use.
func (m *Memory) Put(ctx context.Context, bucket, key string, body io.Reader, opts PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeUpload, "failed to read upload body")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(bucket, key, StoredObject{
		Data:            data,
		ContentType:     opts.ContentType,
		ContentEncoding: opts.ContentEncoding,
		LastModified:    time.Now(),
	})
	m.puts++
	return nil
}

func (m *Memory) store(bucket, key string, obj StoredObject) {
	b, ok := m.buckets[bucket]
	if !ok {
		b = make(map[string]StoredObject)
		m.buckets[bucket] = b
	}
	b[key] = obj
}

func (m *Memory) sortedKeys(bucket, prefix string) []string {
	var keys []string
	for k := range m.buckets[bucket] {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
