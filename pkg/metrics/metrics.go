// Package metrics provides Prometheus metrics for seedsync runs.
//
// Every stage records what it did so a run can be audited after the fact:
// how many declarations resolved, how many objects were fetched versus served
// from the local cache, how many files and rows reached the warehouse and how
// many datasets were skipped.
//
// # Basic Usage
//
//	metrics.ObjectsDownloaded.WithLabelValues("terminology__admit_source").Inc()
//
//	timer := metrics.NewTimer()
//	n, err := conn.CopyFrom(ctx, r, sql)
//	metrics.LoadDuration.WithLabelValues(table).Observe(timer.Stop().Seconds())
//
// Serve registers nothing itself; it exposes the default registry over HTTP.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "seedsync"

var (
	// DescriptorsResolved counts seed declarations resolved from the project.
	DescriptorsResolved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "descriptors_resolved_total",
		Help:      "Seed declarations resolved into dataset descriptors",
	})

	// DescriptorsUnresolved counts hook leaves that did not match load_seed.
	DescriptorsUnresolved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "descriptors_unresolved_total",
		Help:      "Seed declarations skipped because their hook could not be resolved",
	})

	// ObjectsDownloaded counts objects retrieved into the local cache.
	// Labels: dataset
	ObjectsDownloaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "objects_downloaded_total",
		Help:      "Objects retrieved from object storage",
	}, []string{"dataset"})

	// CacheHits counts listed objects already present in the local cache.
	// Labels: dataset
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_hits_total",
		Help:      "Listed objects served from the local cache without retrieval",
	}, []string{"dataset"})

	// RetrievalFailures counts datasets whose listing or retrieval failed.
	// Labels: dataset
	RetrievalFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retrieval_failures_total",
		Help:      "Listing or retrieval failures per dataset",
	}, []string{"dataset"})

	// FilesLoaded counts files bulk copied into the warehouse.
	// Labels: table
	FilesLoaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "files_loaded_total",
		Help:      "Files bulk copied into the destination table",
	}, []string{"table"})

	// RowsCopied counts rows reported by the destination for each COPY.
	// Labels: table
	RowsCopied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rows_copied_total",
		Help:      "Rows inserted by bulk copy",
	}, []string{"table"})

	// DatasetsSkipped counts datasets skipped by a sink.
	// Labels: reason (missing_headers, no_files)
	DatasetsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "datasets_skipped_total",
		Help:      "Datasets skipped without loading",
	}, []string{"reason"})

	// ObjectsUploaded counts consolidated objects written by the repackager.
	ObjectsUploaded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "objects_uploaded_total",
		Help:      "Consolidated snapshot objects uploaded",
	})

	// LoadDuration tracks the time to stream one file into the warehouse.
	// Labels: table
	LoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "file_load_duration_seconds",
		Help:      "Time to bulk copy one file",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"table"})
)

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed duration since creation. It can be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// Serve exposes the default Prometheus registry on addr at /metrics until ctx
// is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
