package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileAndEnvSubstitution(t *testing.T) {
	t.Setenv("SEEDSYNC_TEST_DSN", "postgres://db/warehouse")
	path := writeConfig(t, `
dbt_project_yml_path: ./dbt_project.yml
download_directory: /var/cache/seeds
seeds_directory: ./seeds
pg_connection_string: ${SEEDSYNC_TEST_DSN}
create_tables: true
storage:
  region: eu-west-1
  retry_delay: 250ms
`)

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "./dbt_project.yml", cfg.DBTProjectYMLPath)
	assert.Equal(t, "/var/cache/seeds", cfg.DownloadDirectory)
	assert.Equal(t, "postgres://db/warehouse", cfg.PGConnectionString)
	assert.True(t, cfg.CreateTables)
	assert.True(t, cfg.TruncateTables, "default preserved")
	assert.Equal(t, "eu-west-1", cfg.Storage.Region)
	assert.Equal(t, 250*time.Millisecond, cfg.Storage.RetryDelay)
	assert.Equal(t, BackendS3, cfg.Storage.Backend)
	assert.Nil(t, cfg.SchemaPrefix)
	assert.Equal(t, "", cfg.SchemaPrefixValue())
}

func TestLoad_SchemaPrefixEmptyIsDistinctFromUnset(t *testing.T) {
	path := writeConfig(t, "schema_prefix: \"\"\n")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	require.NotNil(t, cfg.SchemaPrefix)
	assert.Equal(t, "", *cfg.SchemaPrefix)
	assert.Equal(t, "", cfg.SchemaPrefixValue())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("SEEDSYNC_STORAGE_REGION", "ap-south-1")
	path := writeConfig(t, "storage:\n  region: eu-west-1\n")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "ap-south-1", cfg.Storage.Region)
}

func TestLoad_FlagOverridesFile(t *testing.T) {
	path := writeConfig(t, "download_directory: /from/file\nschema_prefix: file\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("download-directory", "", "")
	flags.String("schema-prefix", "", "")
	require.NoError(t, flags.Parse([]string{"--download-directory=/from/flag"}))

	v := viper.New()
	require.NoError(t, v.BindPFlag("download_directory", flags.Lookup("download-directory")))
	require.NoError(t, v.BindPFlag("schema_prefix", flags.Lookup("schema-prefix")))

	cfg, err := Load(v, path)
	require.NoError(t, err)
	assert.Equal(t, "/from/flag", cfg.DownloadDirectory)
	require.NotNil(t, cfg.SchemaPrefix)
	assert.Equal(t, "file", *cfg.SchemaPrefix, "unchanged flag must not shadow the file")
	assert.Equal(t, "file", cfg.SchemaPrefixValue())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "absent.yml"))
	assert.Error(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err, "default path is optional")
	assert.Equal(t, DefaultProjectVersion, cfg.ProjectVersion)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "unknown backend", mutate: func(c *Config) { c.Storage.Backend = "gcs" }, wantErr: "unsupported storage backend"},
		{name: "minio without endpoint", mutate: func(c *Config) { c.Storage.Backend = BackendMinio }, wantErr: "endpoint"},
		{name: "minio without credentials", mutate: func(c *Config) {
			c.Storage.Backend = BackendMinio
			c.Storage.Endpoint = "http://localhost:9000"
		}, wantErr: "credentials"},
		{name: "zero attempts", mutate: func(c *Config) { c.Storage.RetryAttempts = 0 }, wantErr: "retry_attempts"},
		{name: "zero concurrency", mutate: func(c *Config) { c.Storage.Concurrency = 0 }, wantErr: "concurrency"},
		{name: "sampling above one", mutate: func(c *Config) { c.Tracing.SamplingRate = 2 }, wantErr: "sampling_rate"},
		{name: "no project", mutate: func(c *Config) { c.ProjectVersion = "" }, wantErr: "dbt_project_yml_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateRepackage(t *testing.T) {
	cfg := Default()
	assert.ErrorContains(t, cfg.ValidateRepackage(), "target.bucket")
	cfg.Target.Bucket = "snapshots"
	assert.NoError(t, cfg.ValidateRepackage())
}
