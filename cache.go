package viscalyx

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/viscalyx/viscalyx.se-sub001/content"
)

// IndexLoader loads the post index. *content.Loader implements it.
type IndexLoader interface {
	LoadIndex(ctx context.Context) ([]content.Meta, error)
}

// IndexCache is an in-memory cache of the post index and its tags with TTL.
// A site without an index yet has no posts.
type IndexCache struct {
	mu      sync.RWMutex
	posts   []content.Meta
	tags    []string
	fetched time.Time
	ttl     time.Duration
	loader  IndexLoader
	now     func() time.Time
}

// NewIndexCache creates an IndexCache backed by loader.
func NewIndexCache(loader IndexLoader, ttl time.Duration) *IndexCache {
	return &IndexCache{loader: loader, ttl: ttl, now: time.Now}
}

func (c *IndexCache) valid() bool {
	return c.posts != nil && c.now().Sub(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *IndexCache) Invalidate() {
	c.mu.Lock()
	c.posts = nil
	c.tags = nil
	c.mu.Unlock()
}

func (c *IndexCache) load(ctx context.Context) error {
	if c.valid() {
		return nil
	}
	posts, err := c.loader.LoadIndex(ctx)
	if err != nil && !errors.Is(err, content.ErrNotFound) {
		return err
	}
	if posts == nil {
		posts = []content.Meta{}
	}
	c.posts = posts
	c.tags = collectTags(posts)
	c.fetched = c.now()
	return nil
}

// ensureLoaded returns cached posts and tags after ensuring the cache is fresh.
// It tries a read lock first; only takes a write lock if a reload is needed.
func (c *IndexCache) ensureLoaded(ctx context.Context) ([]content.Meta, []string, error) {
	c.mu.RLock()
	if c.valid() {
		posts, tags := c.posts, c.tags
		c.mu.RUnlock()
		return posts, tags, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return nil, nil, err
	}
	return c.posts, c.tags, nil
}

// ListPosts returns the index, optionally filtered by tag.
func (c *IndexCache) ListPosts(ctx context.Context, tag string) ([]content.Meta, error) {
	posts, _, err := c.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	if tag == "" {
		return posts, nil
	}
	normalized := normalizeTag(tag)
	var filtered []content.Meta
	for _, p := range posts {
		for _, t := range p.Tags {
			if normalizeTag(t) == normalized {
				filtered = append(filtered, p)
				break
			}
		}
	}
	return filtered, nil
}

// ListTags returns all unique tags in the index.
func (c *IndexCache) ListTags(ctx context.Context) ([]string, error) {
	_, tags, err := c.ensureLoaded(ctx)
	return tags, err
}

// GetMeta returns the index entry of one post.
func (c *IndexCache) GetMeta(ctx context.Context, postSlug string) (content.Meta, error) {
	posts, _, err := c.ensureLoaded(ctx)
	if err != nil {
		return content.Meta{}, err
	}
	for _, p := range posts {
		if p.Slug == postSlug {
			return p, nil
		}
	}
	return content.Meta{}, content.ErrNotFound
}

func collectTags(posts []content.Meta) []string {
	set := make(map[string]struct{})
	for _, p := range posts {
		for _, t := range p.Tags {
			if n := normalizeTag(t); n != "" {
				set[n] = struct{}{}
			}
		}
	}
	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

func normalizeTag(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}
