package ingest

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// skipElements are containers whose text is boilerplate rather than page
// content: navigation, chrome, scripting.
var skipElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"nav":      true,
	"header":   true,
	"footer":   true,
	"aside":    true,
	"iframe":   true,
	"svg":      true,
	"form":     true,
	"button":   true,
}

// blockElements get paragraph breaks around their text.
var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "main": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "tr": true, "table": true, "blockquote": true, "pre": true,
	"ul": true, "ol": true, "br": true,
}

// Page is the extracted content of one HTML document.
type Page struct {
	Title string
	Lang  string
	Text  string
}

// ExtractPage parses HTML and pulls out the title, document language and
// the visible body text with block boundaries preserved as blank lines.
func ExtractPage(r io.Reader) (*Page, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	page := &Page{}
	var sb strings.Builder
	extractNode(root, page, &sb)
	page.Text = normalizeWhitespace(sb.String())
	page.Title = strings.TrimSpace(page.Title)
	return page, nil
}

func extractNode(n *html.Node, page *Page, sb *strings.Builder) {
	switch n.Type {
	case html.ElementNode:
		if skipElements[n.Data] {
			return
		}
		switch n.Data {
		case "html":
			for _, attr := range n.Attr {
				if attr.Key == "lang" && page.Lang == "" {
					page.Lang = attr.Val
				}
			}
		case "title":
			if page.Title == "" {
				page.Title = textContent(n)
			}
			return
		}
		if blockElements[n.Data] {
			sb.WriteString("\n\n")
		}
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractNode(c, page, sb)
	}

	if n.Type == html.ElementNode && blockElements[n.Data] {
		sb.WriteString("\n\n")
	}
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

// normalizeWhitespace collapses runs of spaces inside lines and runs of
// blank lines into single paragraph breaks.
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := true
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}
