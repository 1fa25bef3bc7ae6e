// Package pipeline runs the seedsync stages in order: resolve the project's
// seed declarations, sync their objects into the local cache, then hand the
// file sets to a sink (the PostgreSQL loader or the S3 repackager).
//
// Stages never overlap. Resolution skips are warnings; listing and retrieval
// failures are collected during sync and reported once the sink has run.
// A sink failure stops the run immediately.
//
// # Basic Usage
//
//	p, err := pipeline.New(pipeline.Config{
//	    Project: project.Source{Repo: "tuva-health/tuva", Version: "v0.8.6"},
//	    Syncer:  syncer,
//	    Sink:    loader,
//	})
//	if err != nil {
//	    return err
//	}
//	summary, err := p.Run(ctx)
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/seedsync/pkg/connector/core"
	"github.com/ajitpratap0/seedsync/pkg/connector/sources/s3sync"
	"github.com/ajitpratap0/seedsync/pkg/errors"
	"github.com/ajitpratap0/seedsync/pkg/logger"
	"github.com/ajitpratap0/seedsync/pkg/metrics"
	"github.com/ajitpratap0/seedsync/pkg/observability"
	"github.com/ajitpratap0/seedsync/pkg/project"
	"github.com/ajitpratap0/seedsync/pkg/seed"
)

// Stage names used in log context.
const (
	StageResolve = "resolve"
	StageSync    = "sync"
	StageSink    = "sink"
)

// ProjectReader reads the project document.
type ProjectReader interface {
	Read(ctx context.Context, src project.Source) ([]byte, error)
}

// Config wires the stages together.
type Config struct {
	Project project.Source
	// Reader defaults to project.NewReader()
	Reader ProjectReader
	Syncer *s3sync.Syncer
	// Sink is optional; without one the run stops after sync
	Sink core.Sink
	// Strict withholds datasets whose sync failed from the sink. Otherwise
	// the files retrieved before the failure are passed on.
	Strict bool
}

// Summary reports what a run did.
type Summary struct {
	Descriptors       int
	Unresolved        []seed.Unresolved
	Downloaded        int
	CacheHits         int
	RetrievalFailures []s3sync.Failure
	// Report is nil when no sink ran
	Report   *core.Report
	Duration time.Duration
}

// Pipeline executes one run.
type Pipeline struct {
	cfg Config
}

// New validates cfg and creates a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Syncer == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "syncer is required")
	}
	if cfg.Reader == nil {
		cfg.Reader = project.NewReader()
	}
	return &Pipeline{cfg: cfg}, nil
}

// Resolve reads the project document and resolves its seed declarations.
func (p *Pipeline) Resolve(ctx context.Context) (seed.Resolution, error) {
	return ResolveProject(ctx, p.cfg.Reader, p.cfg.Project)
}

// ResolveProject reads and resolves a project document without syncing.
func ResolveProject(ctx context.Context, reader ProjectReader, src project.Source) (res seed.Resolution, err error) {
	ctx = logger.ContextWithStage(ctx, StageResolve)
	ctx, span := observability.StartSpan(ctx, StageResolve, "project", src.String())
	defer func() { observability.EndSpan(span, err) }()

	data, err := reader.Read(ctx, src)
	if err != nil {
		return seed.Resolution{}, err
	}
	res, err = seed.ResolveDocument(ctx, data)
	if err != nil {
		return seed.Resolution{}, err
	}
	metrics.DescriptorsResolved.Add(float64(len(res.Descriptors)))
	metrics.DescriptorsUnresolved.Add(float64(len(res.Unresolved)))
	logger.WithContext(ctx).Info("resolved seed declarations",
		zap.String("source", src.String()),
		zap.Int("descriptors", len(res.Descriptors)),
		zap.Int("unresolved", len(res.Unresolved)))
	return res, nil
}

// Run executes every stage. The summary is returned even on error and holds
// whatever completed. Retrieval failures produce an error after the sink has
// processed the remaining datasets.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := &Summary{}
	defer func() { summary.Duration = time.Since(start) }()
	log := logger.WithContext(ctx)

	res, err := p.Resolve(ctx)
	if err != nil {
		return summary, err
	}
	summary.Descriptors = len(res.Descriptors)
	summary.Unresolved = res.Unresolved

	syncCtx, span := observability.StartSpan(logger.ContextWithStage(ctx, StageSync), StageSync)
	synced, err := p.cfg.Syncer.Sync(syncCtx, res.Descriptors)
	observability.EndSpan(span, err)
	if synced != nil {
		summary.Downloaded = synced.Downloaded
		summary.CacheHits = synced.CacheHits
		summary.RetrievalFailures = synced.Failed
	}
	if err != nil {
		return summary, err
	}
	log.Info("sync complete",
		zap.Int("datasets", len(synced.Sets)),
		zap.Int("downloaded", synced.Downloaded),
		zap.Int("cache_hits", synced.CacheHits),
		zap.Int("failed", len(synced.Failed)))

	if p.cfg.Sink != nil {
		sets := sinkInput(synced, p.cfg.Strict)
		sinkCtx, span := observability.StartSpan(logger.ContextWithStage(ctx, StageSink), StageSink,
			"sink", p.cfg.Sink.Name())
		logger.WithContext(sinkCtx).Info("starting sink",
			zap.String("sink", p.cfg.Sink.Name()),
			zap.Int("datasets", len(sets)))
		report, err := p.cfg.Sink.Write(sinkCtx, sets)
		observability.EndSpan(span, err)
		summary.Report = report
		if err != nil {
			return summary, err
		}
		log.Info("sink complete",
			zap.String("sink", p.cfg.Sink.Name()),
			zap.Int("processed", report.Processed()),
			zap.Int("skipped", report.Skipped()),
			zap.Int("files", report.Files()),
			zap.Int64("rows", report.Rows()))
	}

	return summary, synced.Err()
}

// sinkInput drops failed datasets in strict mode so a sink never truncates
// or overwrites a target whose files could not be retrieved.
func sinkInput(res *s3sync.Result, strict bool) []core.FileSet {
	if !strict || len(res.Failed) == 0 {
		return res.Sets
	}
	failed := make(map[int]bool, len(res.Failed))
	for _, f := range res.Failed {
		failed[f.Index] = true
	}
	out := make([]core.FileSet, 0, len(res.Sets))
	for i, s := range res.Sets {
		if !failed[i] {
			out = append(out, s)
		}
	}
	return out
}
