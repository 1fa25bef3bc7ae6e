// Package compression provides the gzip streaming used for seed payloads.
//
// Seed files are stored as gzip-compressed CSV (*.csv.gz). Payloads are never
// buffered whole: readers decompress on demand while the bulk copy or the
// repackaging writer consumes them.
//
// # Basic Usage
//
//	rc, err := compression.OpenFile("/tmp/diagnosis_0.csv.gz")
//	if err != nil {
//	    return err
//	}
//	defer rc.Close()
//
//	w, err := compression.NewWriter(dst, compression.Default)
//	if err != nil {
//	    return err
//	}
//	if _, err := io.Copy(w, rc); err != nil {
//	    return err
//	}
//	return w.Close()
package compression

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

// ParseLevel maps a configuration string to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return Default, nil
	case "fastest":
		return Fastest, nil
	case "better":
		return Better, nil
	case "best":
		return Best, nil
	default:
		return 0, fmt.Errorf("unknown compression level %q", s)
	}
}

// String returns the configuration name of the level
func (l Level) String() string {
	switch l {
	case Fastest:
		return "fastest"
	case Better:
		return "better"
	case Best:
		return "best"
	default:
		return "default"
	}
}

// NewReader returns a streaming gzip decompressor over r.
// Multi-member streams (concatenated gzip files) are read as one stream.
func NewReader(r io.Reader) (*gzip.Reader, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}
	return zr, nil
}

// NewWriter returns a streaming gzip compressor writing to w.
// The caller must Close the writer to flush the gzip trailer.
func NewWriter(w io.Writer, level Level) (*gzip.Writer, error) {
	zw, err := gzip.NewWriterLevel(w, mapGzipLevel(level))
	if err != nil {
		return nil, fmt.Errorf("create gzip writer: %w", err)
	}
	return zw, nil
}

// OpenFile opens a gzip-compressed file and returns a reader of its
// decompressed content. Closing the reader closes the file.
func OpenFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path) //nolint:gosec // G304: paths come from the local seed cache
	if err != nil {
		return nil, err
	}
	zr, err := NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &fileReader{Reader: zr, file: f}, nil
}

type fileReader struct {
	*gzip.Reader
	file *os.File
}

func (r *fileReader) Close() error {
	zerr := r.Reader.Close()
	ferr := r.file.Close()
	if zerr != nil {
		return zerr
	}
	return ferr
}

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Better:
		return 7
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}
