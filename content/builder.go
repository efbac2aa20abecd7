package content

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/viscalyx/viscalyx.se-sub001/htmltext"
	"github.com/viscalyx/viscalyx.se-sub001/markdown"
	"github.com/viscalyx/viscalyx.se-sub001/sanitize"
	"github.com/viscalyx/viscalyx.se-sub001/slug"
	"github.com/viscalyx/viscalyx.se-sub001/toc"
)

const excerptLength = 160

// FrontMatter is the YAML header of a post source.
type FrontMatter struct {
	Title    string   `yaml:"title"`
	Date     string   `yaml:"date"`
	Author   string   `yaml:"author"`
	Excerpt  string   `yaml:"excerpt"`
	Image    string   `yaml:"image"`
	Tags     []string `yaml:"tags"`
	Category string   `yaml:"category"`
	Slug     string   `yaml:"slug"`
	Draft    bool     `yaml:"draft"`
}

// Builder turns a directory of Markdown posts into artifacts.
type Builder struct {
	src      string
	out      string
	opts     slug.Options
	tr       toc.Translator
	wpm      int
	drafts   bool
	renderer *markdown.Renderer
	logger   *slog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithSlugOptions sets the options used for heading ids.
func WithSlugOptions(o slug.Options) BuilderOption {
	return func(b *Builder) { b.opts = o }
}

// WithTranslator sets the translator for anchor link labels.
func WithTranslator(tr toc.Translator) BuilderOption {
	return func(b *Builder) { b.tr = tr }
}

// WithWordsPerMinute sets the reading speed used for read times.
func WithWordsPerMinute(wpm int) BuilderOption {
	return func(b *Builder) { b.wpm = wpm }
}

// WithDrafts includes posts marked draft.
func WithDrafts(on bool) BuilderOption {
	return func(b *Builder) { b.drafts = on }
}

// WithBuildLogger sets the logger.
func WithBuildLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder reads posts from src and writes artifacts under out.
func NewBuilder(src, out string, opts ...BuilderOption) *Builder {
	b := &Builder{
		src:      src,
		out:      out,
		opts:     slug.DefaultOptions(),
		renderer: markdown.New(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildResult lists what a build produced.
type BuildResult struct {
	Posts   []Meta
	Skipped []string // drafts
	Removed []string // stale artifacts
}

// Build renders every *.md file in the source directory, writes one
// artifact per post plus the index, and removes artifacts of posts that
// are gone.
func (b *Builder) Build(ctx context.Context) (*BuildResult, error) {
	files, err := filepath.Glob(filepath.Join(b.src, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	sort.Strings(files)

	dir := filepath.Join(b.out, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	res := &BuildResult{}
	written := make(map[string]string)
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		post, draft, err := b.BuildPost(ctx, filepath.Base(file), raw)
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", filepath.Base(file), err)
		}
		if draft && !b.drafts {
			res.Skipped = append(res.Skipped, post.Slug)
			continue
		}
		if prev, ok := written[post.Slug]; ok {
			return nil, fmt.Errorf("build %s: slug %q already used by %s", filepath.Base(file), post.Slug, prev)
		}
		if err := writeJSON(filepath.Join(dir, post.Slug+".json"), post); err != nil {
			return nil, err
		}
		written[post.Slug] = filepath.Base(file)
		res.Posts = append(res.Posts, post.Meta)
		b.logger.Debug("built post", "slug", post.Slug, "headings", len(post.TOC), "read_time", post.ReadTime)
	}

	sortMetas(res.Posts)
	if res.Posts == nil {
		res.Posts = []Meta{}
	}
	if err := writeJSON(filepath.Join(dir, IndexFile), res.Posts); err != nil {
		return nil, err
	}

	removed, err := removeStale(dir, written)
	if err != nil {
		return nil, err
	}
	res.Removed = removed

	b.logger.Info("build complete", "posts", len(res.Posts), "drafts", len(res.Skipped), "removed", len(removed))
	return res, nil
}

// BuildPost runs one source through the pipeline: front matter, Markdown,
// sanitizer, heading anchors, table of contents and read time.
func (b *Builder) BuildPost(ctx context.Context, filename string, raw []byte) (*Post, bool, error) {
	var fm FrontMatter
	body, err := markdown.ParseFrontMatter(raw, &fm)
	if err != nil {
		return nil, false, err
	}

	postSlug := fm.Slug
	if postSlug == "" {
		postSlug = strings.TrimSuffix(filename, filepath.Ext(filename))
	}
	if !validSlug(postSlug) {
		return nil, false, fmt.Errorf("%w: %q", ErrInvalidSlug, postSlug)
	}
	if strings.TrimSpace(fm.Title) == "" {
		return nil, false, fmt.Errorf("missing title")
	}
	date, err := parseDate(fm.Date)
	if err != nil {
		return nil, false, err
	}

	rendered, err := b.renderer.Convert(ctx, body)
	if err != nil {
		return nil, false, err
	}
	html := toc.AddHeadingIDs(sanitize.HTML(rendered), b.opts, b.tr)
	items, err := toc.ExtractWith(toc.RegexSource{}, html, b.opts)
	if err != nil {
		return nil, false, err
	}

	excerpt := strings.TrimSpace(fm.Excerpt)
	if excerpt == "" {
		excerpt = truncateWords(htmltext.NormalizeText(htmltext.WordText(html)), excerptLength)
	}

	post := &Post{
		Meta: Meta{
			Slug:     postSlug,
			Title:    strings.TrimSpace(fm.Title),
			Date:     date,
			Author:   fm.Author,
			Excerpt:  excerpt,
			Image:    fm.Image,
			Tags:     cleanTags(fm.Tags),
			ReadTime: htmltext.ReadingTime(html, b.wpm),
			Category: fm.Category,
		},
		Content: html,
		TOC:     items,
	}
	return post, fm.Draft, nil
}

func parseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("missing date")
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("invalid date %q", s)
}

func cleanTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// truncateWords cuts s to at most n runes on a word boundary.
func truncateWords(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:n])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}

func sortMetas(metas []Meta) {
	sort.SliceStable(metas, func(i, j int) bool {
		if metas[i].Date != metas[j].Date {
			return metas[i].Date > metas[j].Date
		}
		return metas[i].Slug < metas[j].Slug
	})
}

// writeJSON writes v to path through a temporary file so readers never
// see a partial artifact.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

func removeStale(dir string, keep map[string]string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read output dir: %w", err)
	}
	var removed []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == IndexFile || !strings.HasSuffix(name, ".json") {
			continue
		}
		if _, ok := keep[strings.TrimSuffix(name, ".json")]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return removed, fmt.Errorf("remove %s: %w", name, err)
		}
		removed = append(removed, name)
	}
	return removed, nil
}
