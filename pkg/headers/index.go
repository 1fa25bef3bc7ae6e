// Package headers indexes the reference column order of every seed dataset.
//
// The reference tree holds one header-only CSV per dataset, laid out as
// {schema}/{table}.csv. The first record of each file is the column order
// used when bulk loading that dataset.
package headers

import (
	"encoding/csv"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ajitpratap0/seedsync/pkg/errors"
	"github.com/ajitpratap0/seedsync/pkg/logger"
	"github.com/ajitpratap0/seedsync/pkg/seed"
)

// Index maps a header key ("{parentDir}__{fileStem}") to its column names.
// It is read-only after Build.
type Index struct {
	columns map[string][]string
}

// Build walks dir and indexes every *.csv file beneath it. Only the first
// record of each file is read. When two files map to the same key the last
// one visited wins.
func Build(dir string) (*Index, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeHeader, "reference header directory is not readable")
	}
	if !info.IsDir() {
		return nil, errors.Newf(errors.ErrorTypeHeader, "reference header path %s is not a directory", dir)
	}

	log := logger.With(zap.String("component", "headers"), zap.String("dir", dir))
	idx := &Index{columns: make(map[string][]string)}

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".csv") {
			return nil
		}

		key := Key(path)
		cols, err := readHeader(path)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeHeader, "failed to read header").
				WithDetail("path", path)
		}
		if len(cols) == 0 {
			log.Warn("header file is empty, skipping", zap.String("path", path))
			return nil
		}
		if _, dup := idx.columns[key]; dup {
			log.Warn("duplicate header key, replacing earlier entry",
				zap.String("key", key),
				zap.String("path", path))
		}
		idx.columns[key] = cols
		return nil
	})
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeHeader) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrorTypeHeader, "failed to walk reference header directory")
	}

	log.Info("indexed reference headers", zap.Int("count", len(idx.columns)))
	return idx, nil
}

// New builds an index from an explicit key to columns mapping.
func New(columns map[string][]string) *Index {
	idx := &Index{columns: make(map[string][]string, len(columns))}
	for k, v := range columns {
		idx.columns[k] = append([]string(nil), v...)
	}
	return idx
}

// Key returns the index key for a header file path.
func Key(path string) string {
	parent := filepath.Base(filepath.Dir(path))
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return parent + seed.LineageSeparator + stem
}

// Lookup returns a copy of the column order stored under key.
func (i *Index) Lookup(key string) ([]string, bool) {
	if i == nil {
		return nil, false
	}
	cols, ok := i.columns[key]
	if !ok {
		return nil, false
	}
	return append([]string(nil), cols...), true
}

// Len returns the number of indexed datasets.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.columns)
}

// Keys returns the indexed keys in sorted order.
func (i *Index) Keys() []string {
	if i == nil {
		return nil
	}
	keys := make([]string, 0, len(i.columns))
	for k := range i.columns {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// strip a leading UTF-8 byte order mark, spreadsheets like to add one
	r := csv.NewReader(transform.NewReader(f, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	r.FieldsPerRecord = -1
	record, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}
