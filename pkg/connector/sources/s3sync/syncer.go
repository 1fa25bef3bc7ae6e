// Package s3sync materializes seed objects from object storage into a local
// cache directory.
//
// For every descriptor the objects under its key prefix are listed and each
// one is mapped to {LocalDir}/{base name of key}. A file already present at
// that path is a cache hit and is not fetched again; there is no checksum or
// staleness check. Missing files are downloaded to a temporary name in the
// same directory and renamed into place, so an interrupted run never leaves a
// truncated file that a later run would mistake for a hit.
package s3sync

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/seedsync/pkg/connector/core"
	"github.com/ajitpratap0/seedsync/pkg/errors"
	"github.com/ajitpratap0/seedsync/pkg/logger"
	"github.com/ajitpratap0/seedsync/pkg/metrics"
	"github.com/ajitpratap0/seedsync/pkg/objstore"
	"github.com/ajitpratap0/seedsync/pkg/retry"
	"github.com/ajitpratap0/seedsync/pkg/seed"
)

// Config configures a Syncer.
type Config struct {
	// LocalDir is the cache directory; created if missing
	LocalDir string
	// Retry wraps every list and get call. Nil means a single attempt.
	Retry *retry.Policy
	// Strict drops a dataset's whole file set when any of its objects fails
	// to list or download. When false the files retrieved so far are kept.
	Strict bool
	// Concurrency bounds parallel downloads within one dataset
	Concurrency int
}

// Failure records a dataset whose sync did not complete.
type Failure struct {
	// Index is the position of the dataset in Result.Sets
	Index      int
	Descriptor seed.Descriptor
	Err        error
}

// Result is the outcome of a sync run.
type Result struct {
	// Sets holds one entry per descriptor, in descriptor order
	Sets       []core.FileSet
	Failed     []Failure
	Downloaded int
	CacheHits  int
}

// Err returns a retrieval error summarizing every failure, or nil.
func (r *Result) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, f.Err)
	}
	return errors.Wrap(errors.Join(errs...), errors.ErrorTypeRetrieval, "seed retrieval failed").
		WithDetail("datasets", len(r.Failed))
}

// Syncer reconciles remote listings against the local cache.
type Syncer struct {
	client objstore.Client
	cfg    Config
}

// New creates a Syncer reading from client.
func New(client objstore.Client, cfg Config) (*Syncer, error) {
	if client == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "object storage client is required")
	}
	if cfg.LocalDir == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "local download directory is required")
	}
	if cfg.Retry == nil {
		cfg.Retry = retry.Once()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Syncer{client: client, cfg: cfg}, nil
}

// Sync retrieves the objects of every descriptor, one descriptor at a time.
// Per-dataset failures are collected in the result; the returned error is
// reserved for conditions that stop the whole run, such as an unusable cache
// directory or a cancelled context.
func (s *Syncer) Sync(ctx context.Context, descriptors []seed.Descriptor) (*Result, error) {
	if err := os.MkdirAll(s.cfg.LocalDir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create download directory").
			WithDetail("dir", s.cfg.LocalDir)
	}

	res := &Result{Sets: make([]core.FileSet, 0, len(descriptors))}
	for _, d := range descriptors {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		dctx := logger.ContextWithDataset(ctx, d.String())
		paths, stats, err := s.syncDataset(dctx, d)
		res.Downloaded += stats.downloaded
		res.CacheHits += stats.hits
		if err != nil {
			metrics.RetrievalFailures.WithLabelValues(d.String()).Inc()
			logger.WithContext(dctx).Error("dataset sync failed",
				zap.String("component", "s3sync"),
				zap.Bool("strict", s.cfg.Strict),
				zap.Int("files_kept", len(paths)),
				zap.Error(err))
			res.Failed = append(res.Failed, Failure{Index: len(res.Sets), Descriptor: d, Err: err})
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
		}
		res.Sets = append(res.Sets, core.FileSet{Descriptor: d, Paths: paths})
	}
	return res, nil
}

type syncStats struct {
	downloaded int
	hits       int
}

type slot struct {
	path       string
	downloaded bool
	err        error
}

func (s *Syncer) syncDataset(ctx context.Context, d seed.Descriptor) ([]string, syncStats, error) {
	log := logger.WithContext(ctx).With(zap.String("component", "s3sync"))

	var objects []objstore.Object
	err := s.cfg.Retry.Do(ctx, "list "+d.Bucket+"/"+d.KeyPrefix, func() error {
		var err error
		objects, err = s.client.List(ctx, d.Bucket, d.KeyPrefix)
		return err
	})
	if err != nil {
		return nil, syncStats{}, errors.Wrap(err, errors.ErrorTypeRetrieval, "failed to list objects").
			WithDetail("bucket", d.Bucket).
			WithDetail("prefix", d.KeyPrefix)
	}
	if len(objects) == 0 {
		log.Warn("no objects found under prefix",
			zap.String("bucket", d.Bucket),
			zap.String("prefix", d.KeyPrefix))
	}

	slots := make([]slot, len(objects))
	seen := make(map[string]string, len(objects))
	for i, obj := range objects {
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		local := filepath.Join(s.cfg.LocalDir, path.Base(obj.Key))
		if prev, dup := seen[local]; dup {
			log.Warn("objects share a local file name, keeping the first",
				zap.String("key", obj.Key),
				zap.String("kept", prev))
			continue
		}
		seen[local] = obj.Key
		slots[i].path = local
	}

	var g *errgroup.Group
	gctx := ctx
	if s.cfg.Strict {
		g, gctx = errgroup.WithContext(ctx)
	} else {
		g = &errgroup.Group{}
	}
	g.SetLimit(s.cfg.Concurrency)

	for i := range slots {
		if slots[i].path == "" {
			continue
		}
		key := objects[i].Key
		g.Go(func() error {
			downloaded, err := s.fetch(gctx, d, key, slots[i].path)
			slots[i].downloaded = downloaded
			slots[i].err = err
			if s.cfg.Strict {
				return err
			}
			return nil
		})
	}
	_ = g.Wait()

	var (
		stats    syncStats
		paths    []string
		firstErr error
	)
	for _, sl := range slots {
		if sl.path == "" {
			continue
		}
		if sl.err != nil {
			if firstErr == nil || errors.Is(firstErr, context.Canceled) {
				firstErr = sl.err
			}
			continue
		}
		if sl.downloaded {
			stats.downloaded++
		} else {
			stats.hits++
		}
		paths = append(paths, sl.path)
	}

	if firstErr != nil && s.cfg.Strict {
		return nil, stats, firstErr
	}
	log.Info("dataset synced",
		zap.Int("objects", len(objects)),
		zap.Int("downloaded", stats.downloaded),
		zap.Int("cache_hits", stats.hits))
	return paths, stats, firstErr
}

// fetch makes key available at local. It reports whether a download
// happened; false with a nil error is a cache hit.
func (s *Syncer) fetch(ctx context.Context, d seed.Descriptor, key, local string) (bool, error) {
	log := logger.WithContext(ctx).With(zap.String("component", "s3sync"), zap.String("key", key))

	if _, err := os.Stat(local); err == nil {
		metrics.CacheHits.WithLabelValues(d.String()).Inc()
		log.Debug("file present locally, skipping download", zap.String("path", local))
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, errors.Wrap(err, errors.ErrorTypeFile, "failed to stat cached file").WithDetail("path", local)
	}

	err := s.cfg.Retry.Do(ctx, "get "+key, func() error {
		return s.download(ctx, d.Bucket, key, local)
	})
	if err != nil {
		return false, errors.Wrap(err, errors.ErrorTypeRetrieval, "failed to download object").
			WithDetail("bucket", d.Bucket).
			WithDetail("key", key)
	}

	metrics.ObjectsDownloaded.WithLabelValues(d.String()).Inc()
	log.Info("downloaded object", zap.String("path", local))
	return true, nil
}

func (s *Syncer) download(ctx context.Context, bucket, key, local string) error {
	body, err := s.client.Get(ctx, bucket, key)
	if err != nil {
		return err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(local), "."+filepath.Base(local)+".*.part")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create temporary file")
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, body); err != nil {
		return errors.Wrap(err, errors.ErrorTypeRetrieval, "failed to read object body")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush temporary file")
	}
	if err := os.Rename(tmpName, local); err != nil {
		_ = os.Remove(tmpName)
		committed = true
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to move download into place")
	}
	committed = true
	return nil
}
