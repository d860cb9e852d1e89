// Package render converts markdown into the HTML committed to the child frame
// and the heading outline shown by the parent.
package render

import (
	"bytes"
	"encoding/base64"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/alecthomas/chroma"
	chromahtml "github.com/alecthomas/chroma/formatters/html"
	"github.com/alecthomas/chroma/styles"
	"github.com/microcosm-cc/bluemonday"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
	alertcallouts "github.com/zmtcreative/gm-alert-callouts"

	"go-live-docs/internal/contracts"
)

// AssetPrefix is the route prefix local images are rewritten to.
const AssetPrefix = "/@mdfs/"

// Options configure a Renderer.
type Options struct {
	// Sanitize runs the rendered HTML through a UGC policy that keeps heading
	// ids and highlighting classes.
	Sanitize bool
	// CodeStyle names the chroma style used for CodeCSS.
	CodeStyle string
}

// Document is the result of one render.
type Document struct {
	HTML    string
	Outline []contracts.Heading
}

// Renderer is a wrapper around the Goldmark markdown parser with
// pre-configured extensions
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	style  *chroma.Style

	// assets holds the local files referenced by the last rendered document.
	assetsMu sync.RWMutex
	assets   map[string]struct{}
}

func NewRenderer(opts Options) *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			alertcallouts.AlertCallouts,
			extension.GFM,
			extension.Table,
			extension.Strikethrough,
			extension.TaskList,
			extension.Linkify,
			highlighting.NewHighlighting(
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
		),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	r := &Renderer{md: md, style: styles.Get(opts.CodeStyle)}
	if opts.Sanitize {
		p := bluemonday.UGCPolicy()
		p.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4", "h5", "h6")
		p.AllowAttrs("class").Globally()
		r.policy = p
	}
	return r
}

// Render parses markdown source and returns the HTML fragment and outline.
// Headings carry ids derived from their plain text.
func (r *Renderer) Render(source []byte) (Document, error) {
	return r.RenderWithSourcePath(source, "")
}

// RenderWithSourcePath is Render with local image destinations rewritten to
// the asset route, resolved relative to sourcePath when it is set.
func (r *Renderer) RenderWithSourcePath(source []byte, sourcePath string) (Document, error) {
	doc := r.md.Parser().Parse(text.NewReader(source))
	outline, assets := decorateAST(doc, source, sourcePath)

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, source, doc); err != nil {
		return Document{}, errors.Wrap(err, "rendering markdown")
	}

	out := buf.String()
	if r.policy != nil {
		out = r.policy.Sanitize(out)
	}

	allowed := make(map[string]struct{}, len(assets))
	for _, p := range assets {
		allowed[p] = struct{}{}
	}
	r.assetsMu.Lock()
	r.assets = allowed
	r.assetsMu.Unlock()

	return Document{HTML: out, Outline: outline}, nil
}

// AssetAllowed reports whether the last rendered document references the
// local file at path.
func (r *Renderer) AssetAllowed(path string) bool {
	r.assetsMu.RLock()
	defer r.assetsMu.RUnlock()
	_, ok := r.assets[filepath.Clean(path)]
	return ok
}

// Outline parses source and returns only the heading outline.
func (r *Renderer) Outline(source []byte) []contracts.Heading {
	doc := r.md.Parser().Parse(text.NewReader(source))
	outline, _ := decorateAST(doc, source, "")
	return outline
}

// HeadingAt returns the last heading starting on or before the 1-based line.
func (r *Renderer) HeadingAt(source []byte, line int) (contracts.Heading, bool) {
	doc := r.md.Parser().Parse(text.NewReader(source))

	var found contracts.Heading
	ok := false
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		h, isHeading := n.(*ast.Heading)
		if !entering || !isHeading {
			return ast.WalkContinue, nil
		}
		if h.Lines().Len() == 0 {
			return ast.WalkSkipChildren, nil
		}
		start := h.Lines().At(0).Start
		if bytes.Count(source[:start], []byte("\n"))+1 > line {
			return ast.WalkStop, nil
		}
		raw := plainText(h, source)
		found = contracts.Heading{ID: contracts.HeadingID(raw), Text: displayText(raw), Level: h.Level}
		ok = true
		return ast.WalkSkipChildren, nil
	})
	return found, ok
}

// WriteCodeCSS writes the stylesheet for highlighted code blocks.
func (r *Renderer) WriteCodeCSS(w io.Writer) error {
	return chromahtml.New(chromahtml.WithClasses(true)).WriteCSS(w, r.style)
}

// decorateAST walks the AST once and applies render metadata: heading ids,
// the outline, and asset rewriting of local image destinations. It returns
// the outline and the rewritten asset paths.
func decorateAST(doc ast.Node, source []byte, sourcePath string) ([]contracts.Heading, []string) {
	baseDir := ""
	if sourcePath != "" {
		baseDir = filepath.Dir(sourcePath)
	}

	var outline []contracts.Heading
	var assets []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			raw := plainText(node, source)
			id := contracts.HeadingID(raw)
			node.SetAttributeString("id", []byte(id))
			outline = append(outline, contracts.Heading{ID: id, Text: displayText(raw), Level: node.Level})
		case *ast.Image:
			if p, ok := rewriteImage(node, baseDir); ok {
				assets = append(assets, p)
			}
		}
		return ast.WalkContinue, nil
	})
	return outline, assets
}

// displayText resolves backslash escapes and entity references in the raw
// heading text. Ids are derived from the raw text.
func displayText(raw string) string {
	b := util.UnescapePunctuations([]byte(raw))
	b = util.ResolveNumericReferences(b)
	b = util.ResolveEntityNames(b)
	return string(b)
}

// plainText concatenates the text segments below n, dropping markup.
func plainText(n ast.Node, source []byte) string {
	var b strings.Builder
	var walk func(ast.Node)
	walk = func(n ast.Node) {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.Text:
				b.Write(t.Segment.Value(source))
				if t.SoftLineBreak() || t.HardLineBreak() {
					b.WriteByte(' ')
				}
			case *ast.String:
				b.Write(t.Value)
			case *ast.AutoLink:
				b.Write(t.Label(source))
			case *ast.RawHTML:
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

// rewriteImage points a local image at the asset route and returns the
// resolved file path.
func rewriteImage(img *ast.Image, baseDir string) (string, bool) {
	rawDest := strings.TrimSpace(string(img.Destination))
	if rawDest == "" {
		return "", false
	}

	lowerDest := strings.ToLower(rawDest)
	if strings.HasPrefix(lowerDest, "http://") ||
		strings.HasPrefix(lowerDest, "https://") ||
		strings.HasPrefix(lowerDest, "data:") ||
		strings.HasPrefix(lowerDest, "blob:") ||
		strings.HasPrefix(lowerDest, "file://") ||
		strings.HasPrefix(lowerDest, "//") ||
		strings.HasPrefix(lowerDest, "#") ||
		strings.HasPrefix(lowerDest, AssetPrefix) {
		return "", false
	}

	var resolved string
	switch {
	case filepath.IsAbs(rawDest):
		resolved = filepath.Clean(rawDest)
	case baseDir != "":
		resolved = filepath.Clean(filepath.Join(baseDir, rawDest))
	default:
		return "", false
	}

	img.Destination = []byte(AssetPrefix + base64.RawURLEncoding.EncodeToString([]byte(resolved)))
	img.SetAttributeString("loading", []byte("lazy"))
	img.SetAttributeString("decoding", []byte("async"))
	return resolved, true
}
