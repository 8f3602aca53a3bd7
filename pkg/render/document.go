package render

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// BuildDocument turns processed template output into the document sent to
// the browser. A complete document with no extra CSS is returned unchanged.
// Otherwise the markup is parsed, given a doctype and a UTF-8 charset, and
// css is appended to <head> in a <style> element.
func BuildDocument(src, css string) (string, error) {
	if css == "" && isCompleteDocument(src) {
		return src, nil
	}

	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	if doc.FirstChild == nil || doc.FirstChild.Type != html.DoctypeNode {
		doc.InsertBefore(&html.Node{Type: html.DoctypeNode, Data: "html"}, doc.FirstChild)
	}

	head := findElement(doc, atom.Head)
	if head == nil {
		return "", fmt.Errorf("failed to parse html: no head element")
	}
	if !hasCharset(head) {
		meta := &html.Node{
			Type:     html.ElementNode,
			DataAtom: atom.Meta,
			Data:     "meta",
			Attr:     []html.Attribute{{Key: "charset", Val: "utf-8"}},
		}
		head.InsertBefore(meta, head.FirstChild)
	}
	if css != "" {
		style := &html.Node{Type: html.ElementNode, DataAtom: atom.Style, Data: "style"}
		style.AppendChild(&html.Node{Type: html.TextNode, Data: escapeStyle(css)})
		head.AppendChild(style)
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return "", fmt.Errorf("failed to render html: %w", err)
	}
	return buf.String(), nil
}

func isCompleteDocument(src string) bool {
	s := strings.ToLower(strings.TrimSpace(src))
	return strings.HasPrefix(s, "<!doctype html") || strings.HasPrefix(s, "<html")
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func hasCharset(head *html.Node) bool {
	for c := head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.DataAtom != atom.Meta {
			continue
		}
		for _, a := range c.Attr {
			if strings.EqualFold(a.Key, "charset") {
				return true
			}
			if strings.EqualFold(a.Key, "http-equiv") && strings.EqualFold(a.Val, "content-type") {
				return true
			}
		}
	}
	return false
}

// escapeStyle keeps user CSS from closing the <style> element early.
func escapeStyle(css string) string {
	const tag = "</style"
	var b strings.Builder
	for i := 0; i < len(css); i++ {
		if i+len(tag) <= len(css) && strings.EqualFold(css[i:i+len(tag)], tag) {
			b.WriteString(`<\/`)
			i++
			continue
		}
		b.WriteByte(css[i])
	}
	return b.String()
}
