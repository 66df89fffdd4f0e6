package application

import (
	"bytes"
	"fmt"
	"path"
	"strconv"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

const maxSnippetLength = 200

// MarkdownProcessingResult contains the results of processing a markdown body
type MarkdownProcessingResult struct {
	Snippet     string
	HTMLContent []byte
}

// Block describes one top-level markdown block, used to inspect how a body is parsed
type Block struct {
	Kind string
	Line int
	Text string
}

// relativeLinkTransformer points links at sibling documents to their published artifact
type relativeLinkTransformer struct{}

func (t *relativeLinkTransformer) Transform(node *ast.Document, reader text.Reader, pc parser.Context) {
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		link, ok := n.(*ast.Link)
		if !ok {
			return ast.WalkContinue, nil
		}

		dest := string(link.Destination)
		if !isRelativeLink(dest) {
			return ast.WalkContinue, nil
		}

		// Keep any fragment so anchors into the artifact still work
		target, fragment, _ := strings.Cut(dest, "#")
		if path.Ext(target) != ".md" {
			return ast.WalkContinue, nil
		}

		target = strings.TrimSuffix(target, ".md") + ".html"
		if fragment != "" {
			target += "#" + fragment
		}
		link.Destination = []byte(target)

		return ast.WalkContinue, nil
	})
}

func isRelativeLink(dest string) bool {
	if dest == "" || strings.HasPrefix(dest, "#") {
		return false
	}

	// Protocol-relative and absolute paths point outside the publish directory
	if strings.HasPrefix(dest, "/") {
		return false
	}

	if strings.HasPrefix(dest, "./") || strings.HasPrefix(dest, "../") {
		return true
	}

	if strings.Contains(dest, ":") {
		return false
	}

	return true
}

// headingIDs generates ids like "h1_title" for headings, unique within one document
type headingIDs struct {
	seen map[string]int
}

func newHeadingIDs() *headingIDs {
	return &headingIDs{seen: make(map[string]int)}
}

func (s *headingIDs) Generate(value []byte, kind ast.NodeKind) []byte {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.TrimSpace(string(value)) {
		switch {
		case unicode.IsSpace(r):
			pendingSep = b.Len() > 0
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-'):
			if pendingSep {
				b.WriteByte('_')
				pendingSep = false
			}
			b.WriteRune(unicode.ToLower(r))
		}
	}

	id := b.String()
	if id == "" {
		id = "heading"
	}

	if n, ok := s.seen[id]; ok {
		s.seen[id] = n + 1
		id = id + "_" + strconv.Itoa(n+1)
	}
	s.Put([]byte(id))

	return []byte(id)
}

func (s *headingIDs) Put(value []byte) {
	if _, ok := s.seen[string(value)]; !ok {
		s.seen[string(value)] = 0
	}
}

// headingRenderer writes headings with a single-quoted id attribute
type headingRenderer struct{}

func (r *headingRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindHeading, r.renderHeading)
}

func (r *headingRenderer) renderHeading(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.Heading)
	level := strconv.Itoa(n.Level)

	if !entering {
		_, _ = w.WriteString("</h" + level + ">\n")
		return ast.WalkContinue, nil
	}

	_, _ = w.WriteString("<h" + level)
	if id, ok := n.AttributeString("id"); ok {
		if value, ok := id.([]byte); ok {
			_, _ = w.WriteString(" id='")
			_, _ = w.Write(util.EscapeHTML(value))
			_ = w.WriteByte('\'')
		}
	}
	_ = w.WriteByte('>')

	return ast.WalkContinue, nil
}

// MarkdownRenderer defines the interface for converting markdown to HTML.
type MarkdownRenderer interface {
	Render(markdown []byte) (*MarkdownProcessingResult, error)
	Blocks(markdown []byte) []Block
}

type MarkdownRendererImpl struct {
	renderer goldmark.Markdown
}

func NewMarkdownRenderer() MarkdownRenderer {
	renderer := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithASTTransformers(
				util.Prioritized(&relativeLinkTransformer{}, 100),
			),
		),
		goldmark.WithRendererOptions(
			html.WithXHTML(),
			html.WithUnsafe(),
			rendererWithHeadings(),
		),
	)

	return &MarkdownRendererImpl{
		renderer: renderer,
	}
}

func rendererWithHeadings() renderer.Option {
	return renderer.WithNodeRenderers(util.Prioritized(&headingRenderer{}, 100))
}

// Render converts a post body to HTML. Heading ids are unique per call.
func (r *MarkdownRendererImpl) Render(markdown []byte) (*MarkdownProcessingResult, error) {
	doc := r.parse(markdown)

	var buf bytes.Buffer
	if err := r.renderer.Renderer().Render(&buf, markdown, doc); err != nil {
		return nil, fmt.Errorf("failed to convert markdown to HTML: %w", err)
	}

	// Published artifacts are never zero bytes long
	if buf.Len() == 0 {
		buf.WriteByte('\n')
	}

	return &MarkdownProcessingResult{
		Snippet:     snippetOf(doc, markdown),
		HTMLContent: buf.Bytes(),
	}, nil
}

func (r *MarkdownRendererImpl) parse(markdown []byte) ast.Node {
	ctx := parser.NewContext(parser.WithIDs(newHeadingIDs()))
	return r.renderer.Parser().Parse(text.NewReader(markdown), parser.WithContext(ctx))
}

// Blocks parses markdown and lists its top-level blocks in document order
func (r *MarkdownRendererImpl) Blocks(markdown []byte) []Block {
	doc := r.parse(markdown)

	var blocks []Block
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		start, raw := blockText(n, markdown)
		blocks = append(blocks, Block{
			Kind: n.Kind().String(),
			Line: bytes.Count(markdown[:start], []byte("\n")) + 1,
			Text: raw,
		})
	}

	return blocks
}

// blockText returns the offset of the first line of a block and its source lines.
// Container blocks (lists, quotes) have no lines of their own, so their descendants are used.
func blockText(n ast.Node, source []byte) (int, string) {
	start := -1
	var lines []string
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || c.Type() != ast.TypeBlock {
			return ast.WalkContinue, nil
		}

		segments := c.Lines()
		for i := 0; i < segments.Len(); i++ {
			seg := segments.At(i)
			if start < 0 || seg.Start < start {
				start = seg.Start
			}
			lines = append(lines, strings.TrimRight(string(seg.Value(source)), "\n"))
		}

		return ast.WalkContinue, nil
	})

	if start < 0 {
		start = 0
	}
	if start > len(source) {
		start = len(source)
	}

	return start, strings.Join(lines, "\n")
}

// snippetOf returns the raw text of the first top-level paragraph, joined into one line
// and cut at a word boundary when longer than maxSnippetLength
func snippetOf(doc ast.Node, source []byte) string {
	var paragraph ast.Node
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if n.Kind() == ast.KindParagraph {
			paragraph = n
			break
		}
	}
	if paragraph == nil {
		return ""
	}

	lines := paragraph.Lines()
	parts := make([]string, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		if line := strings.TrimSpace(string(seg.Value(source))); line != "" {
			parts = append(parts, line)
		}
	}

	snippet := strings.Join(parts, " ")
	if len(snippet) <= maxSnippetLength {
		return snippet
	}

	cut := snippet[:maxSnippetLength]
	if lastSpace := strings.LastIndexAny(cut, " \t"); lastSpace > 0 {
		cut = cut[:lastSpace]
	}
	return cut + "..."
}
