package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/seedsync/pkg/seed"
)

func TestFileSet_Matching(t *testing.T) {
	d, err := seed.NewDescriptor("terminology", "admit_source", "bucket/terminology", "admit_source.csv", nil)
	require.NoError(t, err)

	set := FileSet{Descriptor: d, Paths: []string{
		"/cache/admit_source_0_0_0.csv.gz",
		"/cache/admit_type_0_0_0.csv.gz",
		"/admit_source/other.csv.gz",
		"/cache/admit_source_0_0_1.csv.gz",
	}}
	assert.Equal(t, []string{
		"/cache/admit_source_0_0_0.csv.gz",
		"/cache/admit_source_0_0_1.csv.gz",
	}, set.Matching())

	assert.Empty(t, FileSet{Descriptor: d}.Matching())
}

func TestReport_Totals(t *testing.T) {
	r := &Report{}
	r.Add(DatasetResult{Dataset: "a.x", Files: 2, Rows: 5})
	r.Add(DatasetResult{Dataset: "a.y", Skipped: SkipMissingHeaders})
	r.Add(DatasetResult{Dataset: "a.z", Files: 1, Rows: 1})

	assert.Equal(t, 2, r.Processed())
	assert.Equal(t, 1, r.Skipped())
	assert.Equal(t, 3, r.Files())
	assert.Equal(t, int64(6), r.Rows())
}
