package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/api/iterator"
)

// Publisher uploads built artifacts to the edge bucket and removes
// objects for posts that no longer exist.
type Publisher struct {
	client   *storage.Client
	bucket   string
	prefix   string
	logger   *slog.Logger
	attempts uint
}

// NewPublisher returns a Publisher writing under prefix in bucket.
func NewPublisher(client *storage.Client, bucket, prefix string, logger *slog.Logger) *Publisher {
	return &Publisher{client: client, bucket: bucket, prefix: prefix, logger: logger, attempts: 3}
}

// PublishResult summarizes one publish run.
type PublishResult struct {
	Uploaded []string
	Deleted  []string
}

// Publish uploads every artifact under root/blog-content. The index is
// uploaded last so readers never see it reference a post that is not
// there yet.
func (p *Publisher) Publish(ctx context.Context, root string) (*PublishResult, error) {
	names, err := localArtifacts(root)
	if err != nil {
		return nil, err
	}
	res := &PublishResult{}
	keep := make(map[string]bool, len(names))
	for _, name := range names {
		rel := path.Join(Dir, name)
		data, err := os.ReadFile(filepath.Join(root, Dir, name))
		if err != nil {
			return res, fmt.Errorf("read artifact: %w", err)
		}
		if err := p.upload(ctx, rel, data); err != nil {
			return res, err
		}
		keep[objectName(p.prefix, rel)] = true
		res.Uploaded = append(res.Uploaded, rel)
	}

	stale, err := p.stale(ctx, keep)
	if err != nil {
		return res, err
	}
	for _, key := range stale {
		if err := p.client.Bucket(p.bucket).Object(key).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return res, fmt.Errorf("delete %s: %w", key, err)
		}
		p.logger.Info("removed stale artifact", "key", key)
		res.Deleted = append(res.Deleted, key)
	}
	return res, nil
}

func (p *Publisher) upload(ctx context.Context, rel string, data []byte) error {
	key := objectName(p.prefix, rel)
	err := retry.Do(
		func() error {
			w := p.client.Bucket(p.bucket).Object(key).NewWriter(ctx)
			w.ContentType = "application/json"
			w.CacheControl = "public, max-age=300"
			if _, writeErr := w.Write(data); writeErr != nil {
				if closeErr := w.Close(); closeErr != nil {
					p.logger.Warn("failed to close writer after error", "error", closeErr)
				}
				return fmt.Errorf("write to storage: %w", writeErr)
			}
			if closeErr := w.Close(); closeErr != nil {
				return fmt.Errorf("close storage writer: %w", closeErr)
			}
			return nil
		},
		retry.Attempts(p.attempts),
		retry.Delay(time.Second),
		retry.MaxDelay(time.Minute),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			p.logger.Info("retrying upload after error", "attempt", n, "key", key, "error", retryErr)
		}),
	)
	if err != nil {
		return fmt.Errorf("upload %s after retries: %w", key, err)
	}
	p.logger.Debug("uploaded artifact", "key", key, "bytes", len(data))
	return nil
}

// stale lists bucket artifacts not present in keep.
func (p *Publisher) stale(ctx context.Context, keep map[string]bool) ([]string, error) {
	it := p.client.Bucket(p.bucket).Objects(ctx, &storage.Query{
		Prefix: objectName(p.prefix, Dir) + "/",
	})
	var out []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate storage: %w", err)
		}
		if strings.HasSuffix(attrs.Name, ".json") && !keep[attrs.Name] {
			out = append(out, attrs.Name)
		}
	}
	return out, nil
}

// localArtifacts lists the artifact files under root with the index last.
func localArtifacts(root string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(root, Dir))
	if err != nil {
		return nil, fmt.Errorf("read artifacts: %w", err)
	}
	var names []string
	hasIndex := false
	for _, e := range entries {
		name := e.Name()
		switch {
		case e.IsDir() || !strings.HasSuffix(name, ".json"):
		case name == IndexFile:
			hasIndex = true
		default:
			names = append(names, name)
		}
	}
	if hasIndex {
		names = append(names, IndexFile)
	}
	return names, nil
}
