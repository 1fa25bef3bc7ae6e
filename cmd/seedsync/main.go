package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/seedsync/pkg/config"
	"github.com/ajitpratap0/seedsync/pkg/logger"
	"github.com/ajitpratap0/seedsync/pkg/observability"
)

var version = "0.1.0"

// flagKeys maps persistent flags to their configuration keys.
var flagKeys = map[string]string{
	"dbt-project-yml":   "dbt_project_yml_path",
	"project-repo":      "project_repo",
	"project-version":   "project_version",
	"download-dir":      "download_directory",
	"seeds-dir":         "seeds_directory",
	"pg-conn":           "pg_connection_string",
	"schema-prefix":     "schema_prefix",
	"create-schema":     "create_schema",
	"create-tables":     "create_tables",
	"truncate-tables":   "truncate_tables",
	"storage-backend":   "storage.backend",
	"region":            "storage.region",
	"endpoint":          "storage.endpoint",
	"strict":            "storage.strict",
	"concurrency":       "storage.concurrency",
	"retry-attempts":    "storage.retry_attempts",
	"target-bucket":     "target.bucket",
	"target-prefix":     "target.prefix",
	"compression-level": "target.compression_level",
	"log-level":         "log.level",
	"log-encoding":      "log.encoding",
	"metrics-addr":      "metrics.listen_address",
	"trace":             "tracing.enabled",
}

// app holds state shared by every command.
type app struct {
	v             *viper.Viper
	configPath    string
	cfg           *config.Config
	shutdownTrace observability.ShutdownFunc
}

func newApp() *app {
	return &app{v: viper.New()}
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	a := newApp()
	err := newRootCommand(a).Execute()
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "seedsync",
		Short: "Sync dbt seed datasets from object storage into PostgreSQL",
		Long: `seedsync resolves the seed declarations of a dbt project, downloads their
compressed CSV files from object storage into a local cache and bulk loads them
into PostgreSQL, or consolidates them into one snapshot object per dataset.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&a.configPath, "config", "c", "", "Path to config file (default config.yml if present)")
	f.String("dbt-project-yml", "", "Local dbt_project.yml; when empty the project is fetched from --project-repo")
	f.String("project-repo", config.DefaultProjectRepo, "GitHub repository holding dbt_project.yml")
	f.String("project-version", config.DefaultProjectVersion, "Tag, branch or commit of --project-repo")
	f.String("download-dir", "/tmp", "Local cache directory for seed files")
	f.String("seeds-dir", "", "Directory of reference header CSVs, one per dataset under its schema")
	f.String("pg-conn", "", "PostgreSQL connection string")
	f.String("schema-prefix", "", "Prefix applied to every destination schema as {prefix}_{schema}")
	f.Bool("create-schema", false, "Create destination schemas if missing")
	f.Bool("create-tables", false, "Create destination tables with TEXT columns if missing")
	f.Bool("truncate-tables", true, "Truncate each table before loading")
	f.String("storage-backend", config.BackendS3, "Object storage backend (s3, minio)")
	f.String("region", "us-east-1", "Object storage region")
	f.String("endpoint", "", "Object storage endpoint override")
	f.Bool("strict", true, "Fail a dataset when any of its objects cannot be retrieved")
	f.Int("concurrency", 1, "Parallel downloads per dataset")
	f.Int("retry-attempts", 3, "Attempts per listing or download")
	f.String("target-bucket", "", "Destination bucket for repackage")
	f.String("target-prefix", "", "Destination key prefix for repackage")
	f.String("compression-level", "default", "Snapshot compression level (fastest, default, better, best)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-encoding", "console", "Log encoding (console, json)")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address while running")
	f.Bool("trace", false, "Export OpenTelemetry spans to stderr")

	root.AddCommand(
		newResolveCommand(a),
		newSyncCommand(a),
		newLoadCommand(a),
		newRepackageCommand(a),
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			// version needs no configuration
			PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
			Run: func(cmd *cobra.Command, _ []string) {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "seedsync v%s\n", version)
				fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
				fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			},
		},
	)
	return root
}

// init merges flags, environment and the config file, then installs the
// configured logger.
func (a *app) init(cmd *cobra.Command) error {
	var bindErr error
	cmd.Flags().VisitAll(func(fl *pflag.Flag) {
		key, ok := flagKeys[fl.Name]
		if !ok || bindErr != nil {
			return
		}
		bindErr = a.v.BindPFlag(key, fl)
	})
	if bindErr != nil {
		return fmt.Errorf("failed to bind flags: %w", bindErr)
	}

	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.Config{
		Level:       cfg.Log.Level,
		Encoding:    cfg.Log.Encoding,
		Development: cfg.Log.Development,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	shutdown, err := observability.InitTracing(observability.TracingConfig{
		Enabled:        cfg.Tracing.Enabled,
		ServiceVersion: version,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.cfg = cfg
	a.shutdownTrace = shutdown
	return nil
}

// close flushes buffered spans and log entries.
func (a *app) close() {
	if a.shutdownTrace != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdownTrace(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "failed to flush traces:", err)
		}
	}
	_ = logger.Sync()
}
