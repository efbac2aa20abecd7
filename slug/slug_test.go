package slug

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	opts := DefaultOptions()
	tests := []struct {
		in   string
		want string
	}{
		{"Getting Started", "getting-started"},
		{"Best Practices & Guidelines", "best-practices-&-guidelines"},
		{"What's Next?", "what's-next?"},
		{"Wow!", "wow!"},
		{"  padded   words  ", "padded-words"},
		{"already-hyphen - separated", "already-hyphen-separated"},
		{"Tabs\tand\nnewlines", "tabs-and-newlines"},
		{"Ångström Über", "ångström-über"},
		{"a <b> c / d # e", "a-b-c-d-e"},
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Create(tt.in, opts), "Create(%q)", tt.in)
	}
}

func TestCreateStrict(t *testing.T) {
	opts := DefaultOptions()
	opts.Strict = true
	assert.Equal(t, "best-practices-guidelines", Create("Best Practices & Guidelines", opts))
	assert.Equal(t, "whats-next", Create("What's Next?", opts))
	assert.Equal(t, "", Create("日本語", opts))
}

func TestCreateCaseAndTrim(t *testing.T) {
	opts := DefaultOptions()
	opts.Lower = false
	assert.Equal(t, "Keep-Case", Create("Keep Case", opts))

	opts = DefaultOptions()
	opts.Trim = false
	assert.Equal(t, "-x-", Create(" x ", opts))
}

func TestCreateLocale(t *testing.T) {
	opts := DefaultOptions()
	opts.Locale = "tr"
	assert.Equal(t, "ıi", Create("Iİ", opts))

	opts.Locale = "not a locale"
	assert.Equal(t, "hello", Create("HELLO", opts))
}

func TestCreateIsDeterministic(t *testing.T) {
	opts := DefaultOptions()
	for _, in := range []string{"Setup", "Config \"key=value\" pairs", "Ünïcödé & more?"} {
		assert.Equal(t, Create(in, opts), Create(in, opts))
	}
}

func TestGenerateFallbackID(t *testing.T) {
	a := GenerateFallbackID(2, "x")
	assert.Equal(t, a, GenerateFallbackID(2, "x"))
	assert.NotEqual(t, a, GenerateFallbackID(3, "x"))
	assert.NotEqual(t, a, GenerateFallbackID(2, "y"))
	assert.True(t, strings.HasPrefix(a, "heading-2-"), a)

	// hash of "2-" over UTF-16 units: ((0*31)+'2')*31+'-' = 50*31+45
	assert.Equal(t, "heading-2-18b", GenerateFallbackID(2, ""))
}

func TestCreateID(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, "intro", CreateID("Intro", 2, opts))

	strict := DefaultOptions()
	strict.Strict = true
	first := CreateID("???", 2, strict)
	second := CreateID("!!!", 2, strict)
	assert.True(t, strings.HasPrefix(first, "heading-2-"))
	assert.NotEqual(t, first, second)
}

func TestCreateSlugID(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, "hello-world", CreateSlugID("Hello <em>World</em>", 2, opts))
	assert.Equal(t, GenerateFallbackID(3, "<span></span>"), CreateSlugID("<span></span>", 3, opts))
}

func TestRegistryUnique(t *testing.T) {
	r := NewRegistry()
	got := []string{r.Unique("setup"), r.Unique("setup"), r.Unique("setup")}
	assert.Equal(t, []string{"setup", "setup-1", "setup-2"}, got)

	r.Reserve("intro-1")
	assert.Equal(t, "intro", r.Unique("intro"))
	assert.Equal(t, "intro-2", r.Unique("intro"))
	require.True(t, r.Has("intro-2"))
}

func TestValid(t *testing.T) {
	for _, ok := range []string{"hello", "hello-world", "post_2024", "ABC123"} {
		assert.True(t, Valid(ok), ok)
	}
	for _, bad := range []string{"", "../../etc/passwd", "a/b", "a.b", "a b", "a?b", "a#b", "a\x00b", strings.Repeat("a", 201)} {
		assert.False(t, Valid(bad), bad)
	}
}
