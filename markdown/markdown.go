// Package markdown turns post sources into HTML. Output is raw and must
// go through the content sanitizer before it is stored or served.
package markdown

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/a-h/templ"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"gopkg.in/yaml.v3"

	"github.com/viscalyx/viscalyx.se-sub001/sanitize"
)

var (
	// ErrConversion indicates goldmark failed to render a document.
	ErrConversion = errors.New("markdown conversion failed")
	// ErrFrontMatter indicates an unterminated or unparsable front matter block.
	ErrFrontMatter = errors.New("invalid front matter")
)

// Renderer converts Markdown to HTML fragments.
type Renderer struct {
	md goldmark.Markdown
}

// New returns a Renderer with GFM and class-based code highlighting.
// Heading ids are not generated here; they are injected after
// sanitizing so they match the table of contents.
func New() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
		),
		goldmark.WithRendererOptions(
			// raw HTML is passed on to the sanitizer
			html.WithUnsafe(),
		),
	)
	return &Renderer{md: md}
}

// Convert renders src. Goldmark does not take a context, so the
// conversion runs in a goroutine and Convert returns early on
// cancellation.
func (r *Renderer) Convert(ctx context.Context, src []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	type result struct {
		html string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		var buf bytes.Buffer
		if err := r.md.Convert(src, &buf); err != nil {
			done <- result{err: fmt.Errorf("%w: %v", ErrConversion, err)}
			return
		}
		done <- result{html: buf.String()}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		return res.html, res.err
	}
}

var fence = []byte("---")

// ParseFrontMatter decodes a leading YAML block delimited by "---" lines
// into v and returns the remaining body. Sources without front matter
// are returned unchanged and v is left untouched.
func ParseFrontMatter(raw []byte, v any) ([]byte, error) {
	raw = bytes.TrimPrefix(raw, []byte("\ufeff"))
	first, rest, ok := cutLine(raw)
	if !ok || !bytes.Equal(bytes.TrimSpace(first), fence) {
		return raw, nil
	}
	var head []byte
	for {
		line, next, more := cutLine(rest)
		if bytes.Equal(bytes.TrimSpace(line), fence) {
			if err := yaml.Unmarshal(head, v); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrFrontMatter, err)
			}
			return next, nil
		}
		if !more {
			return nil, fmt.Errorf("%w: missing closing ---", ErrFrontMatter)
		}
		head = append(head, line...)
		head = append(head, '\n')
		rest = next
	}
}

// cutLine splits b after its first newline. ok is false when b has no
// newline; line then holds all of b.
func cutLine(b []byte) (line, rest []byte, ok bool) {
	i := bytes.IndexByte(b, '\n')
	if i < 0 {
		return b, nil, false
	}
	return bytes.TrimSuffix(b[:i], []byte("\r")), b[i+1:], true
}

// Markdown returns a templ.Component that renders md as sanitized HTML.
// It is meant for short site texts configured by the operator; posts go
// through the build pipeline instead.
func Markdown(md string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		out, err := shared.Convert(ctx, []byte(md))
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, sanitize.HTML(out))
		return err
	})
}

var shared = New()
