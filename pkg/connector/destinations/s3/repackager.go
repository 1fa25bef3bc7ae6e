// Package s3 consolidates retrieved seed files into one snapshot object per
// dataset and uploads it to object storage.
package s3

import (
	"bytes"
	"context"
	"io"
	"os"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/seedsync/pkg/compression"
	"github.com/ajitpratap0/seedsync/pkg/connector/core"
	"github.com/ajitpratap0/seedsync/pkg/errors"
	"github.com/ajitpratap0/seedsync/pkg/fixup"
	"github.com/ajitpratap0/seedsync/pkg/logger"
	"github.com/ajitpratap0/seedsync/pkg/metrics"
	"github.com/ajitpratap0/seedsync/pkg/objstore"
	"github.com/ajitpratap0/seedsync/pkg/observability"
)

// Name is the sink name used in logs and reports.
const Name = "s3"

// Config configures a Repackager.
type Config struct {
	// Bucket receives the snapshots
	Bucket string
	// Prefix, when non-empty, is prepended to every key as "{prefix}/"
	Prefix string
	Level  compression.Level
	// TempDir holds the snapshot while it is built. Empty means os.TempDir.
	TempDir string
}

// Repackager is a core.Sink that writes each dataset as a single gzip
// compressed CSV object. Column order is not reconciled.
type Repackager struct {
	client objstore.Client
	cfg    Config
}

// New creates a Repackager.
func New(client objstore.Client, cfg Config) (*Repackager, error) {
	if client == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "object store client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "target bucket is required")
	}
	if cfg.Level == 0 {
		cfg.Level = compression.Default
	}
	return &Repackager{client: client, cfg: cfg}, nil
}

// Name implements core.Sink.
func (r *Repackager) Name() string { return Name }

// Key returns the destination key for a target key.
func (r *Repackager) Key(targetKey string) string {
	prefix := strings.Trim(r.cfg.Prefix, "/")
	if prefix == "" {
		return targetKey
	}
	return path.Join(prefix, targetKey)
}

// Write repackages every file set in order. Datasets without files are
// skipped and no object is written for them. A build or upload failure stops
// the run.
func (r *Repackager) Write(ctx context.Context, sets []core.FileSet) (*core.Report, error) {
	report := &core.Report{}
	for _, set := range sets {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		dctx, span := observability.StartSpan(logger.ContextWithDataset(ctx, set.Descriptor.String()), "repackage",
			"dataset", set.Descriptor.String())
		res, err := r.repackage(dctx, set)
		observability.EndSpan(span, err)
		report.Add(res)
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

func (r *Repackager) repackage(ctx context.Context, set core.FileSet) (core.DatasetResult, error) {
	d := set.Descriptor
	key := r.Key(d.TargetKey())
	res := core.DatasetResult{Dataset: d.String(), Target: r.cfg.Bucket + "/" + key}
	log := logger.WithContext(ctx).With(
		zap.String("component", "repackager"),
		zap.String("key", key))

	files := set.Matching()
	if len(files) == 0 {
		log.Warn("no local files, skipping")
		metrics.DatasetsSkipped.WithLabelValues(string(core.SkipNoFiles)).Inc()
		res.Skipped = core.SkipNoFiles
		return res, nil
	}

	timer := metrics.NewTimer()
	tmp, err := os.CreateTemp(r.cfg.TempDir, "seedsync-*.csv.gz")
	if err != nil {
		return res, errors.Wrap(err, errors.ErrorTypeFile, "failed to create snapshot file")
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	rows, err := r.build(tmp, files)
	if err != nil {
		return res, err
	}
	size, err := tmp.Seek(0, io.SeekCurrent)
	if err != nil {
		return res, errors.Wrap(err, errors.ErrorTypeFile, "failed to size snapshot file")
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return res, errors.Wrap(err, errors.ErrorTypeFile, "failed to rewind snapshot file")
	}

	err = r.client.Put(ctx, r.cfg.Bucket, key, tmp, objstore.PutOptions{
		ContentType:     objstore.ContentTypeCSV,
		ContentEncoding: objstore.ContentEncodingGzip,
		Size:            size,
	})
	if err != nil {
		return res, errors.Wrap(err, errors.ErrorTypeUpload, "failed to upload snapshot").
			WithDetail("bucket", r.cfg.Bucket).
			WithDetail("key", key)
	}
	metrics.ObjectsUploaded.Inc()

	res.Files = len(files)
	res.Rows = rows
	res.Duration = timer.Stop()
	log.Info("uploaded snapshot",
		zap.Int("files", res.Files),
		zap.Int64("rows", rows),
		zap.Int64("bytes", size),
		zap.Duration("duration", res.Duration))
	return res, nil
}

// build writes the fixed-up lines of every file into dst as one gzip stream
// and returns the number of lines written.
func (r *Repackager) build(dst io.Writer, files []string) (int64, error) {
	zw, err := compression.NewWriter(dst, r.cfg.Level)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeInternal, "failed to create compressor")
	}
	lw := &lineWriter{w: zw}
	for _, p := range files {
		if err := appendFile(lw, p); err != nil {
			_ = zw.Close()
			return 0, err
		}
	}
	if err := zw.Close(); err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeFile, "failed to finish snapshot")
	}
	return lw.lines, nil
}

func appendFile(lw *lineWriter, p string) error {
	rc, err := compression.OpenFile(p)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to open seed file").WithDetail("path", p)
	}
	defer rc.Close()

	if _, err := io.Copy(lw, fixup.NewReader(rc)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to read seed file").WithDetail("path", p)
	}
	// the next file must start on its own line
	if lw.open {
		if _, err := lw.Write([]byte{'\n'}); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write snapshot")
		}
	}
	return nil
}

// lineWriter counts newline terminated lines and remembers whether the last
// byte written left a line open.
type lineWriter struct {
	w     io.Writer
	lines int64
	open  bool
}

func (l *lineWriter) Write(p []byte) (int, error) {
	n, err := l.w.Write(p)
	l.lines += int64(bytes.Count(p[:n], []byte{'\n'}))
	if n > 0 {
		l.open = p[n-1] != '\n'
	}
	return n, err
}

var _ core.Sink = (*Repackager)(nil)
