// Package sanitize cleans admin-authored rich text before it is stored.
package sanitize

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// droppedElements are removed together with their content.
var droppedElements = map[atom.Atom]struct{}{
	atom.Script:   {},
	atom.Style:    {},
	atom.Iframe:   {},
	atom.Object:   {},
	atom.Embed:    {},
	atom.Form:     {},
	atom.Input:    {},
	atom.Button:   {},
	atom.Textarea: {},
	atom.Select:   {},
	atom.Link:     {},
	atom.Meta:     {},
	atom.Base:     {},
}

var urlAttributes = map[string]struct{}{
	"href":       {},
	"src":        {},
	"action":     {},
	"formaction": {},
	"xlink:href": {},
	"poster":     {},
}

// HTML parses s as a body fragment and renders it back without executable
// content: dangerous elements, event handler attributes, inline styles and
// javascript:/data: URLs are stripped. Plain text passes through escaped.
func HTML(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(s), body)
	if err != nil {
		return html.EscapeString(s)
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		clean(n)
		if n.Type == html.ElementNode {
			if _, drop := droppedElements[n.DataAtom]; drop {
				continue
			}
		}
		if err := html.Render(&buf, n); err != nil {
			return html.EscapeString(s)
		}
	}
	return strings.TrimSpace(buf.String())
}

// Text strips every tag and returns the text content.
func Text(s string) string {
	nodes, err := html.ParseFragment(strings.NewReader(s), &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body})
	if err != nil {
		return s
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, drop := droppedElements[n.DataAtom]; drop {
				return
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return strings.TrimSpace(b.String())
}

func clean(n *html.Node) {
	if n.Type == html.ElementNode {
		n.Attr = safeAttributes(n.Attr)
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.CommentNode {
			n.RemoveChild(c)
		} else if _, drop := droppedElements[c.DataAtom]; c.Type == html.ElementNode && drop {
			n.RemoveChild(c)
		} else {
			clean(c)
		}
		c = next
	}
}

func safeAttributes(attrs []html.Attribute) []html.Attribute {
	out := attrs[:0]
	for _, a := range attrs {
		key := strings.ToLower(a.Key)
		if strings.HasPrefix(key, "on") || key == "style" || key == "srcdoc" {
			continue
		}
		if _, isURL := urlAttributes[key]; isURL && !SafeURL(a.Val) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// SafeURL reports whether u is a relative, http(s) or mailto URL.
func SafeURL(u string) bool {
	v := strings.ToLower(strings.Map(func(r rune) rune {
		if r <= ' ' {
			return -1
		}
		return r
	}, u))
	if i := strings.IndexByte(v, ':'); i >= 0 {
		// a colon after the first slash, query or fragment belongs to the path
		if j := strings.IndexAny(v, "/?#"); j >= 0 && j < i {
			return true
		}
		scheme := v[:i]
		return scheme == "http" || scheme == "https" || scheme == "mailto"
	}
	return true
}
