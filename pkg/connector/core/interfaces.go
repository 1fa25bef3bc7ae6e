// Package core defines the types shared by the sync stage and the sinks that
// consume its output.
package core

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/ajitpratap0/seedsync/pkg/seed"
)

// FileSet is the set of local files retrieved for one dataset, in storage
// listing order. Produced by the sync stage and never mutated by sinks.
type FileSet struct {
	Descriptor seed.Descriptor
	Paths      []string
}

// Matching returns the paths whose base name contains the descriptor's base
// filename, in order. Listings by key prefix can return neighbouring
// datasets that share the prefix.
func (s FileSet) Matching() []string {
	base := s.Descriptor.BaseFilename()
	out := make([]string, 0, len(s.Paths))
	for _, p := range s.Paths {
		if strings.Contains(filepath.Base(p), base) {
			out = append(out, p)
		}
	}
	return out
}

// SkipReason explains why a sink did not process a dataset.
type SkipReason string

const (
	// SkipMissingHeaders means no reference column order exists for the dataset
	SkipMissingHeaders SkipReason = "missing_headers"
	// SkipNoFiles means the dataset has no local files to process
	SkipNoFiles SkipReason = "no_files"
)

// DatasetResult is what a sink did with one dataset.
type DatasetResult struct {
	// Dataset is the dotted lineage of the descriptor
	Dataset string
	// Target is the destination table or object key
	Target   string
	Files    int
	Rows     int64
	Skipped  SkipReason
	Duration time.Duration
}

// Report summarizes a sink run.
type Report struct {
	Datasets []DatasetResult
}

// Add appends a result.
func (r *Report) Add(res DatasetResult) {
	r.Datasets = append(r.Datasets, res)
}

// Processed returns the number of datasets that were not skipped.
func (r *Report) Processed() int {
	n := 0
	for _, d := range r.Datasets {
		if d.Skipped == "" {
			n++
		}
	}
	return n
}

// Skipped returns the number of skipped datasets.
func (r *Report) Skipped() int {
	return len(r.Datasets) - r.Processed()
}

// Files returns the total number of files processed.
func (r *Report) Files() int {
	n := 0
	for _, d := range r.Datasets {
		n += d.Files
	}
	return n
}

// Rows returns the total number of rows written, where the sink counts rows.
func (r *Report) Rows() int64 {
	var n int64
	for _, d := range r.Datasets {
		n += d.Rows
	}
	return n
}

// Sink consumes retrieved file sets. Implementations process datasets
// sequentially and stop at the first fatal error, returning the partial
// report alongside it.
type Sink interface {
	// Name identifies the sink in logs
	Name() string
	Write(ctx context.Context, sets []FileSet) (*Report, error)
}
