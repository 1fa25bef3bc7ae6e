package project

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/seedsync/pkg/errors"
	"github.com/ajitpratap0/seedsync/pkg/testutil"
)

const doc = "name: tuva\nseeds:\n  tuva: {}\n"

func TestRead_LocalPath(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), FileName, []byte(doc))

	data, err := Read(context.Background(), Source{Path: path, Repo: "ignored/repo", Version: "v1"})
	require.NoError(t, err)
	assert.Equal(t, doc, string(data))
}

func TestRead_MissingLocalPath(t *testing.T) {
	_, err := Read(context.Background(), Source{Path: filepath.Join(t.TempDir(), "nope.yml")})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestReader_Fetch(t *testing.T) {
	testutil.UseTestLogger(t)
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(doc))
	}))
	defer srv.Close()

	r := NewReader()
	r.BaseURL = srv.URL + "/"
	data, err := r.Read(context.Background(), Source{Repo: "tuva-health/tuva", Version: "v0.8.6"})
	require.NoError(t, err)
	assert.Equal(t, doc, string(data))
	assert.Equal(t, "/tuva-health/tuva/v0.8.6/dbt_project.yml", gotPath)
}

func TestReader_FetchNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	}))
	defer srv.Close()

	r := NewReader()
	r.BaseURL = srv.URL
	_, err := r.Read(context.Background(), Source{Repo: "tuva-health/tuva", Version: "missing"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Contains(t, err.Error(), "404")
}

func TestReader_FetchTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(doc))
	}))
	defer srv.Close()

	r := NewReader()
	r.BaseURL = srv.URL
	r.MaxSize = int64(len(doc))
	data, err := r.Read(context.Background(), Source{Repo: "tuva-health/tuva", Version: "v0.8.6"})
	require.NoError(t, err, "a document of exactly MaxSize bytes is accepted")
	assert.Equal(t, doc, string(data))

	r.MaxSize = int64(len(doc)) - 1
	_, err = r.Read(context.Background(), Source{Repo: "tuva-health/tuva", Version: "v0.8.6"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Contains(t, err.Error(), "exceeds")
}

func TestReader_NeedsLocation(t *testing.T) {
	_, err := Read(context.Background(), Source{Repo: "tuva-health/tuva"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestSource_String(t *testing.T) {
	assert.Equal(t, "/x/dbt_project.yml", Source{Path: "/x/dbt_project.yml"}.String())
	assert.Equal(t, "a/b@v1", Source{Repo: "a/b", Version: "v1"}.String())
	assert.Equal(t, "https://raw.githubusercontent.com/a/b/v1/dbt_project.yml",
		NewReader().URL(Source{Repo: "a/b", Version: "v1"}))
}
