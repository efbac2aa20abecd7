package toc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viscalyx/viscalyx.se-sub001/sanitize"
	"github.com/viscalyx/viscalyx.se-sub001/slug"
)

var sources = map[string]HeadingSource{
	"regex": RegexSource{},
	"dom":   DOMSource{},
}

func TestExtractRepeatedHeadings(t *testing.T) {
	doc := "<h2>Intro</h2><h3>Details</h3><h2>Intro</h2>"
	want := []Item{
		{ID: "intro", Text: "Intro", Level: 2},
		{ID: "details", Text: "Details", Level: 3},
		{ID: "intro-1", Text: "Intro", Level: 2},
	}
	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			got, err := ExtractWith(src, doc, slug.DefaultOptions())
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestExtractCollisionsNumberInOrder(t *testing.T) {
	doc := "<h2>Setup</h2><p>a</p><h2>Setup</h2><p>b</p><h2>Setup</h2>"
	got, err := ExtractWith(RegexSource{}, doc, slug.DefaultOptions())
	require.NoError(t, err)
	ids := make([]string, len(got))
	for i, it := range got {
		ids[i] = it.ID
	}
	assert.Equal(t, []string{"setup", "setup-1", "setup-2"}, ids)
}

func TestSourcesAgree(t *testing.T) {
	docs := []string{
		"",
		"<p>no headings here</p>",
		`<h2 class="x">Getting <em>Started</em></h2><h4>Deep &amp; Nested</h4>`,
		`<h2>Best Practices &amp; Guidelines</h2><h3>What's Next?</h3>`,
		"<h2>  spaced\n\tout  </h2><h3>Setup</h3><h3>setup</h3>",
		`<h2 id="custom">Custom</h2><h2>Custom</h2><h2>custom</h2>`,
		`<h2>Intro</h2><h2 id="intro">Later explicit</h2>`,
		"<h2>!!!</h2><h3></h3><h3>   </h3>",
		`<h1>Title</h1><h5>Too deep</h5><h3>Kept</h3>`,
		`<H2>Upper Case Tag</H2>`,
		`<h2><code>go build</code> flags</h2>`,
		`<h2>Ångström Über</h2>`,
		`<h2>A<h3>B</h3></h2>`,
		`<h2>Outer<h4>Inner</h4>tail</h2><h3>Next</h3>`,
		`<h2>A</h3>B</h2><h3>C</h3>`,
		`<h2>Open ended<p>text</p>`,
		`<h2>A<h5>B</h5></h2>`,
	}
	opts := slug.DefaultOptions()
	for _, doc := range docs {
		regex, err := ExtractWith(RegexSource{}, doc, opts)
		require.NoError(t, err)
		dom, err := ExtractWith(DOMSource{}, doc, opts)
		require.NoError(t, err)
		assert.Equal(t, regex, dom, "doc %q", doc)
	}
}

func TestExtractNestedHeadings(t *testing.T) {
	doc := sanitize.HTML(`<h2>A<h3>B</h3></h2>`)
	want := []Item{{ID: "a", Text: "A", Level: 2}, {ID: "b", Text: "B", Level: 3}}
	for name, src := range sources {
		items, err := ExtractWith(src, doc, slug.DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, want, items, name)
	}
}

func TestExtractHonorsExistingIDs(t *testing.T) {
	doc := `<h2>Intro</h2><h2 id="intro">Later explicit</h2>`
	got, err := ExtractWith(RegexSource{}, doc, slug.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "intro-1", got[0].ID)
	assert.Equal(t, "intro", got[1].ID)
}

func TestExtractFallbackIDs(t *testing.T) {
	got, err := ExtractWith(RegexSource{}, "<h2>!!!</h2><h3></h3>", slug.Options{Lower: true, Strict: true, Trim: true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, slug.GenerateFallbackID(2, "!!!"), got[0].ID)
	assert.Equal(t, slug.GenerateFallbackID(3, ""), got[1].ID)
}

func TestSourceFor(t *testing.T) {
	assert.IsType(t, DOMSource{}, SourceFor(Env{DOM: true}))
	assert.IsType(t, RegexSource{}, SourceFor(Env{}))
}

func TestExtract(t *testing.T) {
	doc := "<h2>One</h2><h3>Two</h3>"
	assert.Equal(t,
		Extract(doc, slug.DefaultOptions(), Env{}),
		Extract(doc, slug.DefaultOptions(), Env{DOM: true}))
}
