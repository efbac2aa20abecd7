package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// EdgeResponse is what an edge asset binding returns for one path.
type EdgeResponse struct {
	OK     bool
	Status int
	Body   []byte
}

// EdgeFetcher reads build artifacts from an edge asset store.
type EdgeFetcher interface {
	Fetch(ctx context.Context, path string) (*EdgeResponse, error)
}

// Loader reads artifacts from the edge binding when one is configured
// and from the local output root otherwise, or when the edge answers
// with anything but success.
type Loader struct {
	root   string
	edge   EdgeFetcher
	logger *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithEdge makes the loader try f before the filesystem.
func WithEdge(f EdgeFetcher) LoaderOption {
	return func(l *Loader) { l.edge = f }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader returns a Loader reading from the output root dir.
func NewLoader(root string, opts ...LoaderOption) *Loader {
	l := &Loader{root: root, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadBlogContent returns the HTML of the post named postSlug. Invalid
// slugs are rejected before any I/O. Missing or unreadable artifacts,
// and artifacts without content, yield ok == false.
func (l *Loader) LoadBlogContent(ctx context.Context, postSlug string) (html string, ok bool) {
	if !validSlug(postSlug) {
		return "", false
	}
	post, err := l.LoadPost(ctx, postSlug)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			l.logger.Warn("failed to load blog content", "slug", postSlug, "error", err)
		}
		return "", false
	}
	if post.Content == "" {
		return "", false
	}
	return post.Content, true
}

// LoadPost returns the whole artifact for postSlug.
func (l *Loader) LoadPost(ctx context.Context, postSlug string) (*Post, error) {
	if !validSlug(postSlug) {
		return nil, ErrInvalidSlug
	}
	data, err := l.read(ctx, artifactPath(postSlug))
	if err != nil {
		return nil, err
	}
	var post Post
	if err := json.Unmarshal(data, &post); err != nil {
		return nil, fmt.Errorf("decode %s: %w", postSlug, err)
	}
	if post.Slug == "" {
		post.Slug = postSlug
	}
	return &post, nil
}

// LoadIndex returns the metadata of every published post, newest first.
func (l *Loader) LoadIndex(ctx context.Context) ([]Meta, error) {
	data, err := l.read(ctx, indexPath())
	if err != nil {
		return nil, err
	}
	var metas []Meta
	if err := json.Unmarshal(data, &metas); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	return metas, nil
}

func (l *Loader) read(ctx context.Context, rel string) ([]byte, error) {
	if l.edge != nil {
		resp, err := l.edge.Fetch(ctx, rel)
		switch {
		case err != nil:
			l.logger.Debug("edge fetch failed, using filesystem", "path", rel, "error", err)
		case !resp.OK:
			l.logger.Debug("edge fetch not ok, using filesystem", "path", rel, "status", resp.Status)
		default:
			return resp.Body, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(l.root, filepath.FromSlash(rel)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", rel, err)
	}
	return data, nil
}
