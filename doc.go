// Package seedsync loads dbt seed datasets published as compressed CSV files in
// object storage into PostgreSQL, or consolidates them into one snapshot object
// per dataset.
//
// A run has three stages that never overlap:
//
//  1. Resolve: walk the seeds section of dbt_project.yml and turn every
//     load_seed(...) post-hook into a dataset descriptor (schema, table,
//     bucket, key prefix, filename pattern).
//  2. Sync: list each descriptor's key prefix and download the objects not
//     already present in the local cache directory.
//  3. Sink: either bulk load each dataset into PostgreSQL with COPY, using the
//     column order from a reference header CSV, or repackage its files into a
//     single {keyPrefix}_0.csv.gz object.
//
// # Quick Start
//
//	seedsync load \
//	    --dbt-project-yml ./dbt_project.yml \
//	    --seeds-dir ./seeds \
//	    --download-dir /var/cache/seeds \
//	    --pg-conn postgres://localhost/warehouse \
//	    --create-schema --create-tables
//
// Settings can also come from config.yml and SEEDSYNC_* environment variables;
// see pkg/config.
//
// # Key Packages
//
//	pkg/seed                          - Project document parsing and descriptor resolution
//	pkg/project                       - Local or GitHub hosted dbt_project.yml
//	pkg/objstore                      - Object storage clients (S3, MinIO, memory)
//	pkg/connector/sources/s3sync      - Local cache reconciliation
//	pkg/headers                       - Reference column order per dataset
//	pkg/fixup                         - Quoted NULL marker rewriting
//	pkg/connector/destinations/postgresql - COPY loader
//	pkg/connector/destinations/s3     - Snapshot repackager
//	internal/pipeline                 - Stage orchestration
//	pkg/errors                        - Structured error handling
//	pkg/logger                        - Structured logging
//	pkg/metrics                       - Prometheus metrics
//	pkg/observability                 - OpenTelemetry tracing
package seedsync
