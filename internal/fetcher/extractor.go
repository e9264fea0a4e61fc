package fetcher

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// nonContentSelectors lists elements stripped before extracting body text.
const nonContentSelectors = "script, style, noscript, nav, header, footer, aside"

// extractText parses HTML and returns the page's visible text. The title
// and meta description are prepended so short pages still carry their most
// descriptive signals into analysis.
func extractText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var parts []string

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		parts = append(parts, title)
	}
	if desc, exists := doc.Find("meta[name='description']").Attr("content"); exists {
		if desc = strings.TrimSpace(desc); desc != "" {
			parts = append(parts, desc)
		}
	}
	if text := extractBodyText(doc); text != "" {
		parts = append(parts, text)
	}

	return strings.Join(parts, " "), nil
}

// extractBodyText prefers <main> or <article> content and falls back to
// <body> with non-content elements stripped.
func extractBodyText(doc *goquery.Document) string {
	for _, selector := range []string{"main", "article"} {
		node := doc.Find(selector).First()
		if node.Length() > 0 {
			node.Find(nonContentSelectors).Remove()
			return strings.TrimSpace(node.Text())
		}
	}

	body := doc.Find("body").First()
	if body.Length() > 0 {
		body.Find(nonContentSelectors).Remove()
		return strings.TrimSpace(body.Text())
	}

	return ""
}
