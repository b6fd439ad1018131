// Package doc converts markdown documents into plain text fit for speech
// synthesis: block text in reading order, with code blocks, raw HTML, and
// link targets dropped and image alt text kept.
package doc

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var (
	urlPattern        = regexp.MustCompile(`https?://\S+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Speakable parses markdown and returns its text content as paragraphs
// separated by blank lines, ready for chunking. Code blocks and raw HTML
// are omitted entirely; links keep their label but lose their URL; images
// contribute their alt text in place.
func Speakable(source []byte) (string, error) {
	source = stripFrontmatter(source)

	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(source))

	var blocks []string
	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindHeading, ast.KindParagraph, ast.KindTextBlock:
			// TextBlock covers tight list items; paragraphs cover loose
			// ones and blockquote bodies. Skipping children keeps nested
			// inline nodes from being collected twice.
			if block := cleanBlock(inlineText(n, source)); block != "" {
				blocks = append(blocks, block)
			}
			return ast.WalkSkipChildren, nil
		case ast.KindCodeBlock, ast.KindFencedCodeBlock, ast.KindHTMLBlock, ast.KindThematicBreak:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return strings.Join(blocks, "\n\n"), nil
}

// inlineText flattens a block node's inline content. Link and emphasis
// wrappers contribute their children; images contribute their alt text;
// autolinks and raw HTML contribute nothing.
func inlineText(node ast.Node, source []byte) string {
	var sb strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch c := child.(type) {
		case *ast.Text:
			sb.Write(c.Segment.Value(source))
			if c.SoftLineBreak() || c.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(c.Value)
		case *ast.CodeSpan:
			sb.WriteString(inlineText(c, source))
		case *ast.Image:
			// The image node's children are its alt text.
			sb.WriteString(inlineText(c, source))
		case *ast.AutoLink:
			// A bare URL has no speakable label.
		case *ast.RawHTML:
		default:
			sb.WriteString(inlineText(child, source))
		}
	}
	return sb.String()
}

// cleanBlock drops leftover URLs and collapses whitespace in one block.
func cleanBlock(block string) string {
	block = urlPattern.ReplaceAllString(block, "")
	block = whitespacePattern.ReplaceAllString(block, " ")
	return strings.TrimSpace(block)
}

// stripFrontmatter removes a leading YAML frontmatter fence.
func stripFrontmatter(source []byte) []byte {
	trimmed := bytes.TrimLeft(source, "\r\n\t ")
	if !bytes.HasPrefix(trimmed, []byte("---")) {
		return source
	}
	rest := trimmed[3:]
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return source
	}
	after := rest[end+4:]
	if i := bytes.IndexByte(after, '\n'); i >= 0 {
		return after[i+1:]
	}
	return nil
}

// IsMarkdownPath reports whether path looks like a markdown document.
func IsMarkdownPath(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range []string{".md", ".markdown", ".mdown", ".mkdn"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
