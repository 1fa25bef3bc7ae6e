package compression

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipBytes(t *testing.T, level Level, parts ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewWriter(&buf, level)
	require.NoError(t, err)
	for _, p := range parts {
		_, err := io.WriteString(w, p)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestStreamRoundTrip(t *testing.T) {
	for _, level := range []Level{Fastest, Default, Better, Best} {
		t.Run(level.String(), func(t *testing.T) {
			data := gzipBytes(t, level, "id,code\n", "1,\"\\N\"\n")

			r, err := NewReader(bytes.NewReader(data))
			require.NoError(t, err)
			out, err := io.ReadAll(r)
			require.NoError(t, err)
			assert.Equal(t, "id,code\n1,\"\\N\"\n", string(out))
		})
	}
}

func TestNewReader_MultiMember(t *testing.T) {
	data := append(gzipBytes(t, Default, "a\n"), gzipBytes(t, Default, "b\n")...)

	r, err := NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(out))
}

func TestNewReader_NotGzip(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte("plain,csv\n")))
	assert.Error(t, err)
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diagnosis_0.csv.gz")
	require.NoError(t, os.WriteFile(path, gzipBytes(t, Best, "1,A00,Cholera\n"), 0o600))

	rc, err := OpenFile(path)
	require.NoError(t, err)
	out, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "1,A00,Cholera\n", string(out))

	_, err = OpenFile(filepath.Join(t.TempDir(), "missing.csv.gz"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{"": Default, "default": Default, "Fastest": Fastest, "better": Better, "BEST": Best}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("ultra")
	assert.Error(t, err)
}
