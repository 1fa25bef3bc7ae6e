// Package project reads the dbt project document that declares the seeds,
// either from a local file or from a tagged version of a GitHub repository.
package project

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/seedsync/pkg/errors"
	"github.com/ajitpratap0/seedsync/pkg/logger"
)

// FileName is the project document name inside a repository.
const FileName = "dbt_project.yml"

// DefaultBaseURL serves raw repository content.
const DefaultBaseURL = "https://raw.githubusercontent.com"

// MaxDocumentSize bounds a fetched document.
const MaxDocumentSize = 8 << 20

// Source locates a project document. Path wins when set; otherwise the
// document is fetched from Repo at Version.
type Source struct {
	Path string
	// Repo is "owner/name"
	Repo string
	// Version is a tag, branch or commit sha
	Version string
}

// String describes the source for logs.
func (s Source) String() string {
	if s.Path != "" {
		return s.Path
	}
	return s.Repo + "@" + s.Version
}

// Reader fetches project documents.
type Reader struct {
	BaseURL string
	// MaxSize is the largest document accepted, in bytes
	MaxSize int64
	client  *http.Client
}

// NewReader creates a Reader against DefaultBaseURL.
func NewReader() *Reader {
	return &Reader{
		BaseURL: DefaultBaseURL,
		MaxSize: MaxDocumentSize,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Read returns the raw project document.
func Read(ctx context.Context, src Source) ([]byte, error) {
	return NewReader().Read(ctx, src)
}

// URL returns the raw content URL for a remote source.
func (r *Reader) URL(src Source) string {
	return fmt.Sprintf("%s/%s/%s/%s", strings.TrimRight(r.BaseURL, "/"), src.Repo, src.Version, FileName)
}

// Read returns the raw project document.
func (r *Reader) Read(ctx context.Context, src Source) ([]byte, error) {
	if src.Path != "" {
		data, err := os.ReadFile(src.Path) //nolint:gosec // G304: path comes from the operator
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read project document").
				WithDetail("path", src.Path)
		}
		return data, nil
	}
	if src.Repo == "" || src.Version == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "project source needs a path or a repo and version")
	}
	return r.fetch(ctx, src)
}

func (r *Reader) fetch(ctx context.Context, src Source) ([]byte, error) {
	url := r.URL(src)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create request")
	}
	req.Header.Set("User-Agent", "seedsync")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to fetch project document").
			WithDetail("url", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.ErrorTypeConfig, "fetching %s returned status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.MaxSize+1))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to read project document").
			WithDetail("url", url)
	}
	if int64(len(data)) > r.MaxSize {
		return nil, errors.Newf(errors.ErrorTypeConfig, "project document at %s exceeds %d bytes", url, r.MaxSize)
	}
	logger.WithContext(ctx).Info("fetched project document",
		zap.String("component", "project"),
		zap.String("url", url),
		zap.Int("bytes", len(data)))
	return data, nil
}
