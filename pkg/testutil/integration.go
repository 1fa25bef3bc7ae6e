package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// PostgresDSNEnv names the environment variable holding a connection string
// for database-backed tests.
const PostgresDSNEnv = "SEEDSYNC_TEST_PG_DSN"

// IntegrationTest marks a test as an integration test
func IntegrationTest(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// PostgresDSN returns the test database connection string, skipping the test
// when none is configured.
func PostgresDSN(t *testing.T) string {
	t.Helper()
	IntegrationTest(t)
	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}
	return dsn
}

// TestEnvironment is a scratch workspace for pipeline tests: a download
// cache and a reference header tree under one temp dir.
type TestEnvironment struct {
	t           *testing.T
	ctx         context.Context
	DownloadDir string
	SeedsDir    string
}

// NewTestEnvironment creates a new test environment. Directories are removed
// and the context cancelled when the test completes.
func NewTestEnvironment(t *testing.T) *TestEnvironment {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	root := t.TempDir()
	env := &TestEnvironment{
		t:           t,
		ctx:         ctx,
		DownloadDir: filepath.Join(root, "downloads"),
		SeedsDir:    filepath.Join(root, "seeds"),
	}
	require.NoError(t, os.MkdirAll(env.DownloadDir, 0o755))
	require.NoError(t, os.MkdirAll(env.SeedsDir, 0o755))
	return env
}

// Context returns the test context
func (e *TestEnvironment) Context() context.Context {
	return e.ctx
}

// AddHeader writes a reference header file seeds/{schema}/{table}.csv.
func (e *TestEnvironment) AddHeader(schema, table, header string) string {
	e.t.Helper()
	return WriteFile(e.t, filepath.Join(e.SeedsDir, schema), table+".csv", []byte(header+"\n"))
}

// AddCached places a gzip file in the download cache as if a previous sync
// had retrieved it.
func (e *TestEnvironment) AddCached(name, content string) string {
	e.t.Helper()
	return WriteGzipFile(e.t, e.DownloadDir, name, content)
}
