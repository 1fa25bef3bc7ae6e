// Package config provides configuration management for seedsync.
//
// A single Config structure describes a run. Values are layered by viper in
// increasing precedence:
//
//  1. Default() values
//  2. config.yml (optional; ${VAR_NAME} references are substituted)
//  3. SEEDSYNC_* environment variables (nested keys use "_", e.g. SEEDSYNC_STORAGE_REGION)
//  4. command-line flags bound to the viper instance
//
// # Example config.yml
//
//	dbt_project_yml_path: ./dbt_project.yml
//	download_directory: /var/cache/seeds
//	seeds_directory: ./seeds
//	pg_connection_string: ${PG_DSN}
//	schema_prefix: dev
//	truncate_tables: true
//	storage:
//	  backend: s3
//	  region: us-east-1
//	  strict: true
//
// schema_prefix may be set to the empty string, which is distinct from
// leaving it unset; Config.SchemaPrefix is nil only in the latter case.
package config
