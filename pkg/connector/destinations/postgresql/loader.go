// Package postgresql bulk loads retrieved seed files into PostgreSQL.
//
// For each dataset the loader looks up the reference column order, optionally
// provisions the schema and table, optionally truncates the table, and then
// streams every file through gunzip and the NULL fix-up into COPY. Each
// statement commits on its own: a failed COPY leaves earlier files loaded.
package postgresql

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ajitpratap0/seedsync/pkg/compression"
	"github.com/ajitpratap0/seedsync/pkg/connector/core"
	"github.com/ajitpratap0/seedsync/pkg/errors"
	"github.com/ajitpratap0/seedsync/pkg/fixup"
	"github.com/ajitpratap0/seedsync/pkg/headers"
	"github.com/ajitpratap0/seedsync/pkg/logger"
	"github.com/ajitpratap0/seedsync/pkg/metrics"
	"github.com/ajitpratap0/seedsync/pkg/observability"
)

// Name is the sink name used in logs and reports.
const Name = "postgresql"

// Options controls provisioning and truncation.
type Options struct {
	// SchemaPrefix, when set and non-empty, is prepended to every schema as
	// "{prefix}_{schema}". Nil and "" both mean no prefix.
	SchemaPrefix *string
	// CreateSchema issues CREATE SCHEMA IF NOT EXISTS before loading.
	CreateSchema bool
	// CreateTables issues CREATE TABLE IF NOT EXISTS with every column TEXT.
	// Typing is left to downstream models.
	CreateTables bool
	// TruncateTables empties the table before its files are loaded.
	TruncateTables bool
}

// Loader is a core.Sink writing to PostgreSQL.
type Loader struct {
	conn  Conn
	index *headers.Index
	opts  Options
}

// New creates a Loader. conn is owned by the caller.
func New(conn Conn, index *headers.Index, opts Options) *Loader {
	return &Loader{conn: conn, index: index, opts: opts}
}

// Name implements core.Sink.
func (l *Loader) Name() string { return Name }

// Write loads every file set in order. A dataset without reference headers
// is skipped before any statement is issued. Any statement or COPY failure
// stops the load and is returned with the report so far.
func (l *Loader) Write(ctx context.Context, sets []core.FileSet) (*core.Report, error) {
	report := &core.Report{}
	for _, set := range sets {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		dctx, span := observability.StartSpan(logger.ContextWithDataset(ctx, set.Descriptor.String()), "load",
			"dataset", set.Descriptor.String())
		res, err := l.loadDataset(dctx, set)
		observability.EndSpan(span, err)
		report.Add(res)
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

func (l *Loader) loadDataset(ctx context.Context, set core.FileSet) (core.DatasetResult, error) {
	d := set.Descriptor
	target := Target{Schema: DestinationSchema(d.Schema, l.opts.SchemaPrefix), Table: d.DestinationTable()}
	res := core.DatasetResult{Dataset: d.String(), Target: target.String()}
	log := logger.WithContext(ctx).With(
		zap.String("component", "postgresql"),
		zap.String("table", target.String()))

	columns, ok := l.index.Lookup(d.HeaderKey())
	if !ok || len(columns) == 0 {
		log.Warn("no reference headers found, skipping", zap.String("header_key", d.HeaderKey()))
		metrics.DatasetsSkipped.WithLabelValues(string(core.SkipMissingHeaders)).Inc()
		res.Skipped = core.SkipMissingHeaders
		return res, nil
	}

	files := set.Matching()
	timer := metrics.NewTimer()
	log.Info("starting load", zap.Int("files", len(files)), zap.Int("columns", len(columns)))

	if l.opts.CreateSchema {
		log.Info("creating schema")
		if err := l.conn.Exec(ctx, target.CreateSchemaSQL()); err != nil {
			return res, err
		}
	}
	if l.opts.CreateTables {
		log.Info("creating table")
		if err := l.conn.Exec(ctx, target.CreateTableSQL(columns)); err != nil {
			return res, err
		}
	}
	if l.opts.TruncateTables {
		log.Info("truncating table")
		if err := l.conn.Exec(ctx, target.TruncateSQL()); err != nil {
			return res, err
		}
	}

	copySQL := target.CopySQL(columns)
	for _, path := range files {
		rows, err := l.copyFile(ctx, path, copySQL, target)
		if err != nil {
			return res, err
		}
		res.Files++
		res.Rows += rows
		log.Info("loaded file", zap.String("path", path), zap.Int64("rows", rows))
	}

	res.Duration = timer.Stop()
	log.Info("load complete",
		zap.Int("files", res.Files),
		zap.Int64("rows", res.Rows),
		zap.Duration("duration", res.Duration))
	return res, nil
}

func (l *Loader) copyFile(ctx context.Context, path, sql string, target Target) (int64, error) {
	rc, err := compression.OpenFile(path)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeFile, "failed to open seed file").WithDetail("path", path)
	}
	defer rc.Close()

	timer := metrics.NewTimer()
	rows, err := l.conn.CopyFrom(ctx, fixup.NewReader(rc), sql)
	metrics.LoadDuration.WithLabelValues(target.String()).Observe(timer.Stop().Seconds())
	if err != nil {
		return rows, errors.Wrap(err, errors.ErrorTypeCopy, "failed to load file").
			WithDetail("path", path).
			WithDetail("table", target.String())
	}
	metrics.FilesLoaded.WithLabelValues(target.String()).Inc()
	metrics.RowsCopied.WithLabelValues(target.String()).Add(float64(rows))
	return rows, nil
}

// DestinationSchema applies the optional schema prefix.
func DestinationSchema(schema string, prefix *string) string {
	if prefix == nil || *prefix == "" {
		return schema
	}
	return *prefix + "_" + schema
}

// Target is a destination table.
type Target struct {
	Schema string
	Table  string
}

// String returns schema.table, unquoted.
func (t Target) String() string {
	return t.Schema + "." + t.Table
}

// Ident returns the quoted, qualified table identifier.
func (t Target) Ident() string {
	return pgx.Identifier{t.Schema, t.Table}.Sanitize()
}

// CreateSchemaSQL returns the idempotent schema DDL.
func (t Target) CreateSchemaSQL() string {
	return "CREATE SCHEMA IF NOT EXISTS " + pgx.Identifier{t.Schema}.Sanitize()
}

// CreateTableSQL returns the idempotent table DDL with every column TEXT.
func (t Target) CreateTableSQL(columns []string) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = pgx.Identifier{c}.Sanitize() + " TEXT"
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", t.Ident(), strings.Join(defs, ", "))
}

// TruncateSQL returns the truncate statement.
func (t Target) TruncateSQL() string {
	return "TRUNCATE TABLE " + t.Ident()
}

// CopySQL returns the COPY statement restricted to columns, in order.
func (t Target) CopySQL(columns []string) string {
	return fmt.Sprintf(`COPY %s (%s) FROM STDIN WITH (FORMAT csv, DELIMITER ',', NULL '\N', ENCODING 'UTF8')`,
		t.Ident(), quoteColumns(columns))
}

func quoteColumns(columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}

var _ core.Sink = (*Loader)(nil)
