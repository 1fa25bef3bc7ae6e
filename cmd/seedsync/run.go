package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/seedsync/internal/pipeline"
	"github.com/ajitpratap0/seedsync/pkg/compression"
	"github.com/ajitpratap0/seedsync/pkg/config"
	"github.com/ajitpratap0/seedsync/pkg/connector/core"
	"github.com/ajitpratap0/seedsync/pkg/connector/destinations/postgresql"
	"github.com/ajitpratap0/seedsync/pkg/connector/destinations/s3"
	"github.com/ajitpratap0/seedsync/pkg/connector/sources/s3sync"
	"github.com/ajitpratap0/seedsync/pkg/headers"
	"github.com/ajitpratap0/seedsync/pkg/logger"
	"github.com/ajitpratap0/seedsync/pkg/metrics"
	"github.com/ajitpratap0/seedsync/pkg/objstore"
	"github.com/ajitpratap0/seedsync/pkg/project"
	"github.com/ajitpratap0/seedsync/pkg/retry"
)

func newResolveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "List the seed datasets declared by the project",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			ctx, cancel := a.runContext()
			defer cancel()

			res, err := pipeline.ResolveProject(ctx, project.NewReader(), a.source())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, d := range res.Descriptors {
				fmt.Fprintf(out, "%s\ts3://%s/%s\n", d, d.Bucket, d.KeyPrefix)
			}
			for _, u := range res.Unresolved {
				fmt.Fprintf(out, "unresolved\t%s\t%s\n", u, u.Reason)
			}
			return nil
		},
	}
}

func newSyncCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Download seed files into the local cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.ValidateSync(); err != nil {
				return err
			}
			ctx, cancel := a.runContext()
			defer cancel()
			return a.run(ctx, cmd.OutOrStdout(), nil)
		},
	}
}

func newLoadCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Download seed files and bulk load them into PostgreSQL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.ValidateLoad(); err != nil {
				return err
			}
			index, err := headers.Build(a.cfg.SeedsDirectory)
			if err != nil {
				return err
			}
			logger.Info("reference headers indexed",
				zap.Int("datasets", index.Len()),
				zap.String("schema_prefix", a.cfg.SchemaPrefixValue()))

			ctx, cancel := a.runContext()
			defer cancel()
			conn, err := postgresql.Connect(ctx, a.cfg.PGConnectionString)
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close(context.Background()) }()

			return a.run(ctx, cmd.OutOrStdout(), postgresql.New(conn, index, postgresql.Options{
				SchemaPrefix:   a.cfg.SchemaPrefix,
				CreateSchema:   a.cfg.CreateSchema,
				CreateTables:   a.cfg.CreateTables,
				TruncateTables: a.cfg.TruncateTables,
			}))
		},
	}
}

func newRepackageCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "repackage",
		Short: "Consolidate each dataset's files into one object in the target bucket",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.ValidateRepackage(); err != nil {
				return err
			}
			level, err := compression.ParseLevel(a.cfg.Target.CompressionLevel)
			if err != nil {
				return err
			}
			ctx, cancel := a.runContext()
			defer cancel()
			client, err := newStore(ctx, a.cfg)
			if err != nil {
				return err
			}
			sink, err := s3.New(client, s3.Config{
				Bucket: a.cfg.Target.Bucket,
				Prefix: a.cfg.Target.Prefix,
				Level:  level,
			})
			if err != nil {
				return err
			}
			return a.runWith(ctx, cmd.OutOrStdout(), client, sink)
		},
	}
}

// runContext returns a context carrying a fresh run id that is cancelled on
// SIGINT or SIGTERM.
func (a *app) runContext() (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if a.cfg.Metrics.ListenAddress != "" {
		go func() {
			if err := metrics.Serve(ctx, a.cfg.Metrics.ListenAddress); err != nil {
				logger.Warn("metrics listener stopped", zap.Error(err))
			}
		}()
	}
	return logger.ContextWithRunID(ctx, uuid.NewString()), cancel
}

func (a *app) source() project.Source {
	return project.Source{
		Path:    a.cfg.DBTProjectYMLPath,
		Repo:    a.cfg.ProjectRepo,
		Version: a.cfg.ProjectVersion,
	}
}

// run syncs from the configured object store and hands the files to sink.
func (a *app) run(ctx context.Context, out io.Writer, sink core.Sink) error {
	client, err := newStore(ctx, a.cfg)
	if err != nil {
		return err
	}
	return a.runWith(ctx, out, client, sink)
}

func (a *app) runWith(ctx context.Context, out io.Writer, client objstore.Client, sink core.Sink) error {
	syncer, err := s3sync.New(client, s3sync.Config{
		LocalDir:    a.cfg.DownloadDirectory,
		Retry:       retry.NewPolicy(a.cfg.Storage.RetryAttempts, a.cfg.Storage.RetryDelay),
		Strict:      a.cfg.Storage.Strict,
		Concurrency: a.cfg.Storage.Concurrency,
	})
	if err != nil {
		return err
	}
	p, err := pipeline.New(pipeline.Config{
		Project: a.source(),
		Syncer:  syncer,
		Sink:    sink,
		Strict:  a.cfg.Storage.Strict,
	})
	if err != nil {
		return err
	}

	summary, err := p.Run(ctx)
	printSummary(out, summary)
	return err
}

func printSummary(out io.Writer, s *pipeline.Summary) {
	if s == nil {
		return
	}
	fmt.Fprintf(out, "datasets: %d resolved, %d unresolved\n", s.Descriptors, len(s.Unresolved))
	fmt.Fprintf(out, "objects: %d downloaded, %d cached, %d datasets failed\n",
		s.Downloaded, s.CacheHits, len(s.RetrievalFailures))
	for _, f := range s.RetrievalFailures {
		fmt.Fprintf(out, "  failed %s: %v\n", f.Descriptor, f.Err)
	}
	if s.Report == nil {
		return
	}
	fmt.Fprintf(out, "sink: %d processed, %d skipped, %d files, %d rows in %s\n",
		s.Report.Processed(), s.Report.Skipped(), s.Report.Files(), s.Report.Rows(), s.Duration)
	for _, d := range s.Report.Datasets {
		if d.Skipped != "" {
			fmt.Fprintf(out, "  skipped %s (%s)\n", d.Dataset, strings.ReplaceAll(string(d.Skipped), "_", " "))
		}
	}
}

// newStore builds the object storage client for the configured backend.
func newStore(ctx context.Context, cfg *config.Config) (objstore.Client, error) {
	switch cfg.Storage.Backend {
	case config.BackendMinio:
		client, err := objstore.NewMinio(objstore.MinioConfig{
			Endpoint:        cfg.Storage.Endpoint,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
			Region:          cfg.Storage.Region,
			UseSSL:          cfg.Storage.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		client, err := objstore.NewS3(ctx, objstore.S3Config{
			Region:          cfg.Storage.Region,
			Endpoint:        cfg.Storage.Endpoint,
			UsePathStyle:    cfg.Storage.UsePathStyle,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}
