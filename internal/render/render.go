// ABOUTME: Markdown to plain text for terminal display of assistant replies
// ABOUTME: Walks the goldmark AST; keeps list markers, link targets and code blocks

// Package render turns the assistant's markdown into readable plain text.
package render

import (
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// PlainText renders markdown as plain text. Emphasis markers are dropped,
// links become "label (url)" and code blocks are indented by four spaces.
func PlainText(markdown string) string {
	src := []byte(markdown)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))
	r := &plainRenderer{src: src}
	return r.children(doc, "\n\n")
}

type plainRenderer struct {
	src []byte
}

func (r *plainRenderer) children(n ast.Node, sep string) string {
	var parts []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if s := r.block(c); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, sep)
}

func (r *plainRenderer) block(n ast.Node) string {
	switch n := n.(type) {
	case *ast.Paragraph, *ast.TextBlock, *ast.Heading:
		return r.inlines(n)
	case *ast.List:
		return r.list(n)
	case *ast.FencedCodeBlock:
		return r.code(n.Lines())
	case *ast.CodeBlock:
		return r.code(n.Lines())
	case *ast.Blockquote:
		return prefixLines(r.children(n, "\n\n"), "> ")
	case *ast.ThematicBreak:
		return "---"
	case *ast.HTMLBlock:
		return ""
	default:
		return r.children(n, "\n\n")
	}
}

func (r *plainRenderer) list(l *ast.List) string {
	itemSep, bodySep := "\n\n", "\n\n"
	if l.IsTight {
		itemSep, bodySep = "\n", "\n"
	}

	var items []string
	num := l.Start
	for item := l.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "- "
		if l.IsOrdered() {
			marker = strconv.Itoa(num) + ". "
			num++
		}
		body := r.children(item, bodySep)
		pad := strings.Repeat(" ", len(marker))
		items = append(items, marker+strings.ReplaceAll(body, "\n", "\n"+pad))
	}
	return strings.Join(items, itemSep)
}

func (r *plainRenderer) code(lines *text.Segments) string {
	var b strings.Builder
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		line := strings.TrimRight(string(seg.Value(r.src)), "\r\n")
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("    " + line)
	}
	return b.String()
}

func (r *plainRenderer) inlines(n ast.Node) string {
	var b strings.Builder
	r.inlineChildren(&b, n)
	return strings.TrimSpace(b.String())
}

func (r *plainRenderer) inlineChildren(b *strings.Builder, n ast.Node) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		r.inline(b, c)
	}
}

func (r *plainRenderer) inline(b *strings.Builder, n ast.Node) {
	switch n := n.(type) {
	case *ast.Text:
		b.Write(n.Segment.Value(r.src))
		if n.SoftLineBreak() || n.HardLineBreak() {
			b.WriteByte('\n')
		}
	case *ast.String:
		b.Write(n.Value)
	case *ast.Link:
		var label strings.Builder
		r.inlineChildren(&label, n)
		b.WriteString(label.String())
		if dest := string(n.Destination); dest != "" && dest != label.String() {
			b.WriteString(" (" + dest + ")")
		}
	case *ast.AutoLink:
		b.Write(n.URL(r.src))
	case *ast.RawHTML:
	default:
		r.inlineChildren(b, n)
	}
}

func prefixLines(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(prefix+l, " ")
	}
	return strings.Join(lines, "\n")
}
