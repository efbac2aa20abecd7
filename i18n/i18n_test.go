package i18n

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viscalyx/viscalyx.se-sub001/consent"
	"github.com/viscalyx/viscalyx.se-sub001/slug"
	"github.com/viscalyx/viscalyx.se-sub001/toc"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	assert.Equal(t, []string{"en", "sv"}, c.Locales())
	assert.Equal(t, "Link to this section", c.T("en", "accessibility.anchorLink.title", nil))
	assert.Equal(t, "Länk till avsnitt: Översikt",
		c.T("sv", "accessibility.anchorLink.ariaLabel", map[string]string{"heading": "Översikt"}))
}

func TestFallbacks(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/en.yaml": {Data: []byte("a:\n  b: Hello {name}\n  n: 3\nonly: english\n")},
		"locales/sv.yaml": {Data: []byte("a:\n  b: Hej {name}\n")},
	}
	c, err := Load(fsys)
	require.NoError(t, err)

	assert.Equal(t, "Hej Ada", c.T("sv", "a.b", map[string]string{"name": "Ada"}))
	assert.Equal(t, "english", c.T("sv", "only", nil))
	assert.Equal(t, "english", c.T("fi", "only", nil))
	assert.Equal(t, "3", c.T("en", "a.n", nil))
	assert.Equal(t, "missing.key", c.T("en", "missing.key", nil))
	assert.Equal(t, "Hello {name}", c.T("en", "a.b", nil))
}

func TestLoadRequiresDefaultLocale(t *testing.T) {
	_, err := Load(fstest.MapFS{"locales/sv.yaml": {Data: []byte("a: b\n")}})
	assert.ErrorIs(t, err, ErrUnknownLocale)

	_, err = Load(fstest.MapFS{"locales/en.yaml": {Data: []byte("a: [1, 2]\n")}})
	assert.Error(t, err)
}

func TestMatch(t *testing.T) {
	c := Default()
	assert.Equal(t, "sv", c.Match("sv-SE,sv;q=0.9,en;q=0.8"))
	assert.Equal(t, "en", c.Match("en-US"))
	assert.Equal(t, "en", c.Match("ja"))
	assert.Equal(t, "en", c.Match(""))
}

func TestInterpolate(t *testing.T) {
	assert.Equal(t, "2 of 3", Interpolate("{a} of {b}", map[string]string{"a": "2", "b": "3"}))
	assert.Equal(t, "{a} left", Interpolate("{a} left", map[string]string{"x": "1"}))
	assert.Equal(t, "plain", Interpolate("plain", nil))
}

func TestTranslatorFeedsAnchors(t *testing.T) {
	var tr toc.Translator = Default().Translator("sv")
	out := toc.AddHeadingIDs(`<h2>Översikt</h2>`, slug.DefaultOptions(), tr)
	assert.Contains(t, out, `aria-label="Länk till avsnitt: Översikt"`)
	assert.Contains(t, out, `title="Länk till detta avsnitt"`)
}

func TestCookieTextsExist(t *testing.T) {
	c := Default()
	for _, locale := range c.Locales() {
		for _, e := range consent.Registry() {
			assert.NotEqual(t, e.PurposeKey, c.T(locale, e.PurposeKey, nil), "%s %s", locale, e.Name)
			assert.NotEqual(t, e.DurationKey, c.T(locale, e.DurationKey, nil), "%s %s", locale, e.Name)
		}
		for _, cat := range consent.Categories {
			key := "cookies.categories." + string(cat)
			assert.NotEqual(t, key, c.T(locale, key, nil))
		}
	}
}
