package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// DefaultPath is the config file read when no path is given. It is optional.
const DefaultPath = "config.yml"

// EnvPrefix namespaces environment overrides, e.g. SEEDSYNC_STORAGE_REGION.
const EnvPrefix = "SEEDSYNC"

// Load merges defaults, the YAML file at path, SEEDSYNC_* environment
// variables and any flags already bound to v, in increasing precedence.
// A missing file is only an error when path is not DefaultPath.
func Load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	switch {
	case err == nil:
		v.SetConfigType("yaml")
		if err := v.ReadConfig(bytes.NewReader([]byte(substituteEnvVars(string(data))))); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && path == DefaultPath:
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	// schema_prefix can be "", which must stay distinct from unset
	if v.IsSet("schema_prefix") {
		prefix := v.GetString("schema_prefix")
		cfg.SchemaPrefix = &prefix
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("dbt_project_yml_path", d.DBTProjectYMLPath)
	v.SetDefault("project_repo", d.ProjectRepo)
	v.SetDefault("project_version", d.ProjectVersion)
	v.SetDefault("download_directory", d.DownloadDirectory)
	v.SetDefault("seeds_directory", d.SeedsDirectory)
	v.SetDefault("pg_connection_string", d.PGConnectionString)
	v.SetDefault("create_schema", d.CreateSchema)
	v.SetDefault("create_tables", d.CreateTables)
	v.SetDefault("truncate_tables", d.TruncateTables)

	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.region", d.Storage.Region)
	v.SetDefault("storage.endpoint", d.Storage.Endpoint)
	v.SetDefault("storage.use_path_style", d.Storage.UsePathStyle)
	v.SetDefault("storage.use_ssl", d.Storage.UseSSL)
	v.SetDefault("storage.access_key_id", d.Storage.AccessKeyID)
	v.SetDefault("storage.secret_access_key", d.Storage.SecretAccessKey)
	v.SetDefault("storage.retry_attempts", d.Storage.RetryAttempts)
	v.SetDefault("storage.retry_delay", d.Storage.RetryDelay)
	v.SetDefault("storage.strict", d.Storage.Strict)
	v.SetDefault("storage.concurrency", d.Storage.Concurrency)

	v.SetDefault("target.bucket", d.Target.Bucket)
	v.SetDefault("target.prefix", d.Target.Prefix)
	v.SetDefault("target.compression_level", d.Target.CompressionLevel)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.encoding", d.Log.Encoding)
	v.SetDefault("log.development", d.Log.Development)

	v.SetDefault("metrics.listen_address", d.Metrics.ListenAddress)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.sampling_rate", d.Tracing.SamplingRate)
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}
