package seed

import (
	"strings"

	"github.com/ajitpratap0/seedsync/pkg/errors"
)

// LineageSeparator joins lineage segments in dataset identifiers.
const LineageSeparator = "__"

// TargetSuffix is appended to KeyPrefix to form the single consolidated key.
const TargetSuffix = "_0.csv.gz"

// Descriptor identifies one seed dataset. It is immutable once built.
type Descriptor struct {
	// Schema is the destination namespace (first lineage segment)
	Schema string
	// Table is the leaf key of the declaration, e.g. terminology__admit_source
	Table string
	// Bucket is the first "/" segment of the declared storage path
	Bucket string
	// KeyPrefix is "{declaredPrefix}/{filenamePattern}"
	KeyPrefix string
	// FilenamePattern is the second load_seed argument
	FilenamePattern string
	// Lineage is the path from the schema key down to the leaf, for diagnostics
	Lineage []string
}

// NewDescriptor builds a descriptor from the two load_seed arguments.
// declaredPath must look like "bucket/prefix".
func NewDescriptor(schema, table, declaredPath, filenamePattern string, lineage []string) (Descriptor, error) {
	bucket, prefix, ok := strings.Cut(declaredPath, "/")
	if !ok || bucket == "" || prefix == "" {
		return Descriptor{}, errors.Newf(errors.ErrorTypeResolution,
			"storage path %q is not of the form bucket/prefix", declaredPath)
	}
	if filenamePattern == "" {
		return Descriptor{}, errors.New(errors.ErrorTypeResolution, "filename pattern is empty")
	}
	return Descriptor{
		Schema:          schema,
		Table:           table,
		Bucket:          bucket,
		KeyPrefix:       prefix + "/" + filenamePattern,
		FilenamePattern: filenamePattern,
		Lineage:         append([]string(nil), lineage...),
	}, nil
}

// TargetKey is the key of the consolidated single-file snapshot.
func (d Descriptor) TargetKey() string {
	return d.KeyPrefix + TargetSuffix
}

// HeaderKey is the identifier used to look up the reference column order.
func (d Descriptor) HeaderKey() string {
	return d.Schema + LineageSeparator + d.Table
}

// DestinationTable is the part of Table after its first lineage separator,
// or the whole name when it has none.
func (d Descriptor) DestinationTable() string {
	if _, after, ok := strings.Cut(d.Table, LineageSeparator); ok && after != "" {
		return after
	}
	return d.Table
}

// BaseFilename is the filename pattern up to its first ".". Local files for
// the dataset must contain it in their base name.
func (d Descriptor) BaseFilename() string {
	base, _, _ := strings.Cut(d.FilenamePattern, ".")
	return base
}

// String returns the dotted lineage, e.g. terminology.terminology__admit_source.
func (d Descriptor) String() string {
	if len(d.Lineage) > 0 {
		return strings.Join(d.Lineage, ".")
	}
	return d.Schema + "." + d.Table
}
