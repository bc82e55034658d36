// Package textconv normalizes HTML and PDF inputs to plain text before they
// are handed to a model, cutting token usage and sparing callers from
// document-format detail.
package textconv

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// skipElements contribute no visible text.
var skipElements = map[string]bool{
	"script":   true,
	"style":    true,
	"head":     true,
	"noscript": true,
	"iframe":   true,
	"img":      true,
}

// HTMLToText converts HTML content to plain text. Input may be raw HTML or
// standard base64 of it; detection is by attempting a strict decode, and an
// undecodable input is treated as raw HTML rather than failing. Markup and
// emphasis are stripped, images dropped, and link targets kept inline after
// the anchor text. Whitespace is collapsed to single spaces.
func HTMLToText(content []byte, logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	trimmed := strings.TrimSpace(string(content))
	if decoded, err := base64.StdEncoding.DecodeString(trimmed); err == nil && utf8.Valid(decoded) {
		content = decoded
	} else if err != nil {
		logger.Debug("html input not base64, treating as raw markup", "reason", err)
	}

	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var b strings.Builder
	renderNode(&b, doc)
	return strings.Join(strings.Fields(b.String()), " "), nil
}

func renderNode(b *strings.Builder, n *html.Node) {
	if n.Type == html.ElementNode {
		if skipElements[n.Data] {
			return
		}
		if n.Data == "a" {
			renderChildren(b, n)
			if href := attrVal(n, "href"); href != "" {
				b.WriteString(" (")
				b.WriteString(href)
				b.WriteString(") ")
			}
			return
		}
	}
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteByte(' ')
	}
	renderChildren(b, n)
	if n.Type == html.ElementNode {
		// Element boundaries separate words even without whitespace in
		// the source markup.
		b.WriteByte(' ')
	}
}

func renderChildren(b *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNode(b, c)
	}
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
