package config

import (
	"fmt"
	"time"
)

// Storage backends understood by objstore.
const (
	BackendS3    = "s3"
	BackendMinio = "minio"
)

// Defaults for the remote project document, matching the upstream Tuva project.
const (
	DefaultProjectRepo    = "tuva-health/tuva"
	DefaultProjectVersion = "v0.8.6"
)

// Config is the single configuration structure for a seedsync run.
// It is organized into sections:
//   - Project: where dbt_project.yml comes from
//   - Directories: local download cache and reference header tree
//   - Postgres: destination warehouse and load options
//   - Storage: object store client and sync policy
//   - Target: destination bucket for repackaging
//   - Log / Metrics / Tracing: observability
type Config struct {
	// DBTProjectYMLPath is a local dbt_project.yml. When empty the project is
	// fetched from ProjectRepo at ProjectVersion.
	DBTProjectYMLPath string `mapstructure:"dbt_project_yml_path" yaml:"dbt_project_yml_path"`
	ProjectRepo       string `mapstructure:"project_repo" yaml:"project_repo"`
	ProjectVersion    string `mapstructure:"project_version" yaml:"project_version"`

	// DownloadDirectory holds retrieved objects, named by key base name
	DownloadDirectory string `mapstructure:"download_directory" yaml:"download_directory"`
	// SeedsDirectory holds one header CSV per dataset under a schema-named directory
	SeedsDirectory string `mapstructure:"seeds_directory" yaml:"seeds_directory"`

	PGConnectionString string `mapstructure:"pg_connection_string" yaml:"pg_connection_string"`
	// SchemaPrefix is nil when unset; an explicit empty string is kept distinct.
	SchemaPrefix   *string `mapstructure:"-" yaml:"schema_prefix,omitempty"`
	CreateSchema   bool    `mapstructure:"create_schema" yaml:"create_schema"`
	CreateTables   bool    `mapstructure:"create_tables" yaml:"create_tables"`
	TruncateTables bool    `mapstructure:"truncate_tables" yaml:"truncate_tables"`

	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Target  TargetConfig  `mapstructure:"target" yaml:"target"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// StorageConfig configures the source object store and the sync policy.
type StorageConfig struct {
	// Backend selects the client implementation (s3, minio)
	Backend string `mapstructure:"backend" yaml:"backend"`
	Region  string `mapstructure:"region" yaml:"region"`
	// Endpoint overrides the service endpoint for S3-compatible stores
	Endpoint     string `mapstructure:"endpoint" yaml:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style" yaml:"use_path_style"`
	UseSSL       bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
	// Static credentials, required by the minio backend. The s3 backend uses
	// the default AWS credential chain when these are empty.
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`

	RetryAttempts int           `mapstructure:"retry_attempts" yaml:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	// Strict fails a dataset's sync on any listing or retrieval error
	Strict bool `mapstructure:"strict" yaml:"strict"`
	// Concurrency bounds parallel retrievals within one dataset
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

// TargetConfig configures the repackaging destination.
type TargetConfig struct {
	Bucket           string `mapstructure:"bucket" yaml:"bucket"`
	Prefix           string `mapstructure:"prefix" yaml:"prefix"`
	CompressionLevel string `mapstructure:"compression_level" yaml:"compression_level"`
}

// LogConfig configures the global zap logger.
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Encoding    string `mapstructure:"encoding" yaml:"encoding"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// MetricsConfig configures the optional Prometheus endpoint.
type MetricsConfig struct {
	// ListenAddress serves /metrics while the command runs when non-empty
	ListenAddress string `mapstructure:"listen_address" yaml:"listen_address"`
}

// TracingConfig configures OpenTelemetry span export.
type TracingConfig struct {
	// Enabled exports spans as JSON to stderr
	Enabled      bool    `mapstructure:"enabled" yaml:"enabled"`
	SamplingRate float64 `mapstructure:"sampling_rate" yaml:"sampling_rate"`
}

// Default returns a Config populated with the values used when neither the
// config file, the environment nor a flag provides one.
func Default() *Config {
	return &Config{
		ProjectRepo:       DefaultProjectRepo,
		ProjectVersion:    DefaultProjectVersion,
		DownloadDirectory: "/tmp",
		TruncateTables:    true,
		Storage: StorageConfig{
			Backend:       BackendS3,
			Region:        "us-east-1",
			UseSSL:        true,
			RetryAttempts: 3,
			RetryDelay:    time.Second,
			Strict:        true,
			Concurrency:   1,
		},
		Target: TargetConfig{
			CompressionLevel: "default",
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "console",
		},
		Tracing: TracingConfig{
			SamplingRate: 1,
		},
	}
}

// SchemaPrefixValue returns the configured prefix, or "" when unset.
func (c *Config) SchemaPrefixValue() string {
	if c.SchemaPrefix == nil {
		return ""
	}
	return *c.SchemaPrefix
}

// Validate checks the settings shared by every command.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendS3:
	case BackendMinio:
		if c.Storage.Endpoint == "" {
			return fmt.Errorf("storage.endpoint is required for the minio backend")
		}
		if c.Storage.AccessKeyID == "" || c.Storage.SecretAccessKey == "" {
			return fmt.Errorf("storage credentials are required for the minio backend")
		}
	default:
		return fmt.Errorf("unsupported storage backend %q", c.Storage.Backend)
	}
	if c.Storage.RetryAttempts < 1 {
		return fmt.Errorf("storage.retry_attempts must be at least 1")
	}
	if c.Storage.RetryDelay < 0 {
		return fmt.Errorf("storage.retry_delay cannot be negative")
	}
	if c.Storage.Concurrency < 1 {
		return fmt.Errorf("storage.concurrency must be at least 1")
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		return fmt.Errorf("tracing.sampling_rate must be between 0 and 1")
	}
	if c.DBTProjectYMLPath == "" && (c.ProjectRepo == "" || c.ProjectVersion == "") {
		return fmt.Errorf("either dbt_project_yml_path or project_repo and project_version are required")
	}
	return nil
}

// ValidateSync checks the settings needed to download seed files.
func (c *Config) ValidateSync() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.DownloadDirectory == "" {
		return fmt.Errorf("download_directory is required")
	}
	return nil
}

// ValidateLoad checks the settings needed to load into PostgreSQL.
func (c *Config) ValidateLoad() error {
	if err := c.ValidateSync(); err != nil {
		return err
	}
	if c.PGConnectionString == "" {
		return fmt.Errorf("pg_connection_string is required")
	}
	if c.SeedsDirectory == "" {
		return fmt.Errorf("seeds_directory is required")
	}
	return nil
}

// ValidateRepackage checks the settings needed to repackage into a bucket.
func (c *Config) ValidateRepackage() error {
	if err := c.ValidateSync(); err != nil {
		return err
	}
	if c.Target.Bucket == "" {
		return fmt.Errorf("target.bucket is required")
	}
	return nil
}
