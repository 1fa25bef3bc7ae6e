package testutil

import (
	"context"
	"io"
	"strings"
	"sync"
)

// Statement is one call recorded by FakeConn.
type Statement struct {
	SQL string
	// Payload is the data streamed to a COPY, empty for Exec
	Payload string
}

// FakeConn records the statements a loader issues and keeps a rough model
// of table contents: COPY appends one row per payload line and TRUNCATE
// clears the table. Tables are keyed by the identifier exactly as it appears
// in the SQL.
type FakeConn struct {
	mu         sync.Mutex
	Statements []Statement
	Tables     map[string][]string
	Closed     bool

	// ExecErr and CopyErr, when set, can fail individual statements.
	ExecErr func(sql string) error
	CopyErr func(sql, payload string) error
}

// NewFakeConn returns an empty FakeConn.
func NewFakeConn() *FakeConn {
	return &FakeConn{Tables: make(map[string][]string)}
}

// Exec records sql.
func (c *FakeConn) Exec(_ context.Context, sql string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ExecErr != nil {
		if err := c.ExecErr(sql); err != nil {
			return err
		}
	}
	c.Statements = append(c.Statements, Statement{SQL: sql})
	if ident, ok := strings.CutPrefix(sql, "TRUNCATE TABLE "); ok {
		c.Tables[ident] = nil
	}
	return nil
}

// CopyFrom drains r and records the payload.
func (c *FakeConn) CopyFrom(_ context.Context, r io.Reader, sql string) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	payload := string(data)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.CopyErr != nil {
		if err := c.CopyErr(sql, payload); err != nil {
			return 0, err
		}
	}
	c.Statements = append(c.Statements, Statement{SQL: sql, Payload: payload})

	rows := strings.Split(strings.TrimRight(payload, "\n"), "\n")
	if payload == "" {
		rows = nil
	}
	ident := copyTarget(sql)
	c.Tables[ident] = append(c.Tables[ident], rows...)
	return int64(len(rows)), nil
}

// Close marks the connection closed.
func (c *FakeConn) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Closed = true
	return nil
}

// SQL returns the recorded statements without payloads.
func (c *FakeConn) SQL() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.Statements))
	for i, s := range c.Statements {
		out[i] = s.SQL
	}
	return out
}

// Rows returns the modelled contents of a table.
func (c *FakeConn) Rows(ident string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.Tables[ident]...)
}

func copyTarget(sql string) string {
	rest := strings.TrimPrefix(sql, "COPY ")
	if i := strings.Index(rest, " ("); i >= 0 {
		return rest[:i]
	}
	return rest
}
