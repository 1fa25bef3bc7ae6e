package postgresql

import (
	"context"
	"io"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ajitpratap0/seedsync/pkg/errors"
	"github.com/ajitpratap0/seedsync/pkg/logger"
)

// Conn is the destination database capability used by the Loader. Every
// call runs as its own implicit transaction, so a statement that returns
// without error is already committed.
type Conn interface {
	Exec(ctx context.Context, sql string) error
	// CopyFrom streams r to a COPY ... FROM STDIN statement and returns the
	// number of rows copied.
	CopyFrom(ctx context.Context, r io.Reader, sql string) (int64, error)
	Close(ctx context.Context) error
}

// PgxConn is a Conn over a single pgx connection. No pool is used: the load
// stage is sequential and reuses one connection for the whole run.
type PgxConn struct {
	conn *pgx.Conn
	log  *zap.Logger
}

// Connect opens a connection using a libpq style connection string or URL.
func Connect(ctx context.Context, connString string) (*PgxConn, error) {
	cfg, err := pgx.ParseConfig(connString)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse connection string")
	}

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to connect to PostgreSQL")
	}

	log := logger.WithContext(ctx).With(zap.String("component", "postgresql"))

	var version string
	if err := conn.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		_ = conn.Close(ctx)
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to validate connection")
	}

	log.Info("Connected to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database),
		zap.String("version", version))

	return &PgxConn{conn: conn, log: log}, nil
}

// Exec runs a statement without arguments.
func (c *PgxConn) Exec(ctx context.Context, sql string) error {
	if _, err := c.conn.Exec(ctx, sql); err != nil {
		return errors.Wrap(err, errors.ErrorTypeQuery, "statement failed").WithDetail("sql", sql)
	}
	return nil
}

// CopyFrom runs a COPY FROM STDIN statement fed by r.
func (c *PgxConn) CopyFrom(ctx context.Context, r io.Reader, sql string) (int64, error) {
	tag, err := c.conn.PgConn().CopyFrom(ctx, r, sql)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeCopy, "COPY failed").WithDetail("sql", sql)
	}
	return tag.RowsAffected(), nil
}

// Close closes the connection.
func (c *PgxConn) Close(ctx context.Context) error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close(ctx)
	c.conn = nil
	c.log.Info("PostgreSQL connection closed")
	return err
}
