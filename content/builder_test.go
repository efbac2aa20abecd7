package content

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viscalyx/viscalyx.se-sub001/slug"
	"github.com/viscalyx/viscalyx.se-sub001/toc"
)

const samplePost = `---
title: Getting Started with DSC
date: 2024-03-01
author: Ada
tags: [PowerShell, dsc, powershell]
category: Automation
---
Intro paragraph.

## Setup

Install things.

## Setup

<script>alert(1)</script>

### Config "key=value" pairs

` + "```powershell\nGet-DscResource\n```\n"

func writeSource(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestBuildPost(t *testing.T) {
	b := NewBuilder(t.TempDir(), t.TempDir())
	post, draft, err := b.BuildPost(context.Background(), "getting-started.md", []byte(samplePost))
	require.NoError(t, err)
	assert.False(t, draft)

	assert.Equal(t, "getting-started", post.Slug)
	assert.Equal(t, "Getting Started with DSC", post.Title)
	assert.Equal(t, "2024-03-01", post.Date)
	assert.Equal(t, []string{"powershell", "dsc"}, post.Tags)
	assert.Equal(t, "Automation", post.Category)
	assert.Equal(t, 1, post.ReadTime)
	assert.True(t, strings.HasPrefix(post.Excerpt, `Intro paragraph. Setup Install things. Setup Config "key=value" pairs`), post.Excerpt)

	assert.NotContains(t, post.Content, "<script")
	assert.Contains(t, post.Content, `<h2 id="setup" class="heading-with-anchor">`)
	assert.Contains(t, post.Content, `<h2 id="setup-1" class="heading-with-anchor">`)
	assert.Contains(t, post.Content, `aria-label="Link to section: Config &quot;key=value&quot; pairs"`)
	assert.Contains(t, post.Content, `class="chroma"`)

	assert.Equal(t, []toc.Item{
		{ID: "setup", Text: "Setup", Level: 2},
		{ID: "setup-1", Text: "Setup", Level: 2},
		{ID: `config-"keyvalue"-pairs`, Text: `Config "key=value" pairs`, Level: 3},
	}, post.TOC)
}

func TestBuildPostTOCMatchesDOM(t *testing.T) {
	b := NewBuilder(t.TempDir(), t.TempDir())
	post, _, err := b.BuildPost(context.Background(), "p.md", []byte(samplePost))
	require.NoError(t, err)

	dom, err := toc.ExtractWith(toc.DOMSource{}, post.Content, slug.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, post.TOC, dom)
}

func TestBuildPostErrors(t *testing.T) {
	b := NewBuilder(t.TempDir(), t.TempDir())
	tests := map[string]string{
		"no title":     "---\ndate: 2024-01-01\n---\nbody",
		"no date":      "---\ntitle: T\n---\nbody",
		"bad date":     "---\ntitle: T\ndate: someday\n---\nbody",
		"bad slug":     "---\ntitle: T\ndate: 2024-01-01\nslug: ../etc\n---\nbody",
		"unterminated": "---\ntitle: T\n",
	}
	for name, src := range tests {
		_, _, err := b.BuildPost(context.Background(), "x.md", []byte(src))
		assert.Error(t, err, name)
	}

	_, _, err := b.BuildPost(context.Background(), "bad name.md", []byte("---\ntitle: T\ndate: 2024-01-01\n---\n"))
	assert.ErrorIs(t, err, ErrInvalidSlug)

	_, _, err = b.BuildPost(context.Background(), "index.md", []byte("---\ntitle: T\ndate: 2024-01-01\n---\n"))
	assert.ErrorIs(t, err, ErrInvalidSlug)
	_, _, err = b.BuildPost(context.Background(), "x.md", []byte("---\ntitle: T\ndate: 2024-01-01\nslug: index\n---\n"))
	assert.ErrorIs(t, err, ErrInvalidSlug)
}

func TestBuildRejectsIndexSlug(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	writeSource(t, src, "index.md", "---\ntitle: Index\ndate: 2024-01-01\n---\nbody")

	_, err := NewBuilder(src, out).Build(context.Background())
	require.ErrorIs(t, err, ErrInvalidSlug)
}

func TestBuild(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	writeSource(t, src, "older.md", "---\ntitle: Older\ndate: 2023-05-01\nexcerpt: Custom excerpt\n---\n## One\n")
	writeSource(t, src, "newer.md", "---\ntitle: Newer\ndate: 2024-05-01T10:00:00Z\n---\n## Two\n")
	writeSource(t, src, "wip.md", "---\ntitle: WIP\ndate: 2024-06-01\ndraft: true\n---\nsoon\n")
	writeSource(t, src, "notes.txt", "ignored")
	writeArtifact(t, out, "deleted-post.json", `{"content":"old"}`)

	res, err := NewBuilder(src, out).Build(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Posts, 2)
	assert.Equal(t, "newer", res.Posts[0].Slug)
	assert.Equal(t, "2024-05-01", res.Posts[0].Date)
	assert.Equal(t, "older", res.Posts[1].Slug)
	assert.Equal(t, "Custom excerpt", res.Posts[1].Excerpt)
	assert.Equal(t, []string{"wip"}, res.Skipped)
	assert.Equal(t, []string{"deleted-post.json"}, res.Removed)

	l := NewLoader(out)
	html, ok := l.LoadBlogContent(context.Background(), "older")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(html, `<h2 id="one" class="heading-with-anchor">One<a href="#one"`), html)
	_, ok = l.LoadBlogContent(context.Background(), "wip")
	assert.False(t, ok)
	_, ok = l.LoadBlogContent(context.Background(), "deleted-post")
	assert.False(t, ok)

	index, err := l.LoadIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.Posts, index)

	data, err := os.ReadFile(filepath.Join(out, Dir, "newer.json"))
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"slug", "title", "date", "author", "excerpt", "image", "tags", "readTime", "category", "content"} {
		assert.Contains(t, raw, key)
	}
}

func TestBuildWithDrafts(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	writeSource(t, src, "wip.md", "---\ntitle: WIP\ndate: 2024-06-01\ndraft: true\n---\nsoon\n")
	res, err := NewBuilder(src, out, WithDrafts(true)).Build(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Posts, 1)
	assert.Empty(t, res.Skipped)
}

func TestBuildDuplicateSlug(t *testing.T) {
	src := t.TempDir()
	writeSource(t, src, "a.md", "---\ntitle: A\ndate: 2024-01-01\nslug: same\n---\n")
	writeSource(t, src, "b.md", "---\ntitle: B\ndate: 2024-01-02\nslug: same\n---\n")
	_, err := NewBuilder(src, t.TempDir()).Build(context.Background())
	assert.ErrorContains(t, err, `slug "same" already used`)
}

func TestBuildEmpty(t *testing.T) {
	out := t.TempDir()
	res, err := NewBuilder(t.TempDir(), out).Build(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Posts)

	data, err := os.ReadFile(filepath.Join(out, Dir, IndexFile))
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestBuildTranslatedAnchors(t *testing.T) {
	tr := func(key string, values map[string]string) string {
		if key == "accessibility.anchorLink.ariaLabel" {
			return "Länk till avsnitt: " + values["heading"]
		}
		return ""
	}
	b := NewBuilder(t.TempDir(), t.TempDir(), WithTranslator(tr))
	post, _, err := b.BuildPost(context.Background(), "sv.md", []byte("---\ntitle: Hej\ndate: 2024-01-01\n---\n## Översikt\n"))
	require.NoError(t, err)
	assert.Contains(t, post.Content, `aria-label="Länk till avsnitt: Översikt"`)
	assert.Contains(t, post.Content, `title="Link to this section"`)
	assert.Contains(t, post.Content, `id="översikt"`)
}

func TestTruncateWords(t *testing.T) {
	assert.Equal(t, "short", truncateWords("short", 10))
	assert.Equal(t, "one two…", truncateWords("one two three", 9))
}

func TestWatchRebuilds(t *testing.T) {
	src, out := t.TempDir(), t.TempDir()
	b := NewBuilder(src, out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	built := make(chan *BuildResult, 4)
	done := make(chan error, 1)
	go func() {
		done <- b.Watch(ctx, func(res *BuildResult, err error) {
			if err == nil {
				built <- res
			}
		})
	}()

	// give the watcher time to register
	time.Sleep(200 * time.Millisecond)
	writeSource(t, src, "live.md", "---\ntitle: Live\ndate: 2024-01-01\n---\nhello\n")

	select {
	case res := <-built:
		require.Len(t, res.Posts, 1)
		assert.Equal(t, "live", res.Posts[0].Slug)
	case <-time.After(5 * time.Second):
		t.Fatal("no rebuild after change")
	}

	cancel()
	assert.NoError(t, <-done)
}
