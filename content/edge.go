package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

// maxArtifactSize bounds a single artifact read from the edge.
const maxArtifactSize = 8 << 20

// GCSFetcher serves artifacts straight from a Cloud Storage bucket.
type GCSFetcher struct {
	client *storage.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// NewGCSFetcher returns a fetcher reading objects under prefix in bucket.
func NewGCSFetcher(client *storage.Client, bucket, prefix string, logger *slog.Logger) *GCSFetcher {
	return &GCSFetcher{client: client, bucket: bucket, prefix: prefix, logger: logger}
}

// Fetch implements EdgeFetcher. A missing object is a 404 response, not
// an error.
func (f *GCSFetcher) Fetch(ctx context.Context, p string) (*EdgeResponse, error) {
	key := objectName(f.prefix, p)
	r, err := f.client.Bucket(f.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return &EdgeResponse{Status: http.StatusNotFound}, nil
		}
		return nil, fmt.Errorf("open edge object: %w", err)
	}
	defer func() {
		if closeErr := r.Close(); closeErr != nil {
			f.logger.Warn("failed to close storage reader", "error", closeErr)
		}
	}()
	data, err := io.ReadAll(io.LimitReader(r, maxArtifactSize))
	if err != nil {
		return nil, fmt.Errorf("read edge object: %w", err)
	}
	return &EdgeResponse{OK: true, Status: http.StatusOK, Body: data}, nil
}

// HTTPFetcher reads artifacts from a static host, such as a CDN in front
// of the published bucket.
type HTTPFetcher struct {
	base   *url.URL
	client *http.Client
}

// NewHTTPFetcher returns a fetcher resolving paths against baseURL.
func NewHTTPFetcher(baseURL string, client *http.Client) (*HTTPFetcher, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse edge url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("edge url %q: unsupported scheme", baseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPFetcher{base: u, client: client}, nil
}

// Fetch implements EdgeFetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, p string) (*EdgeResponse, error) {
	u := *f.base
	u.Path = path.Join("/", u.Path, p)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", p, err)
	}
	defer resp.Body.Close()

	out := &EdgeResponse{Status: resp.StatusCode}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return out, nil
	}
	out.Body, err = io.ReadAll(io.LimitReader(resp.Body, maxArtifactSize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	out.OK = true
	return out, nil
}

func objectName(prefix, p string) string {
	return strings.TrimPrefix(path.Join(prefix, p), "/")
}
