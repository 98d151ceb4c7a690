package keywords

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var tagRE = regexp.MustCompile(`<[a-zA-Z/!][^>]*>`)

// PlainText converts rich-text journal content to plain text. Block elements
// become line breaks; inline markup is dropped. Input without markup is only
// whitespace-normalized.
func PlainText(s string) string {
	if !tagRE.MatchString(s) {
		return normalizeWhitespace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return normalizeWhitespace(tagRE.ReplaceAllString(s, " "))
	}
	doc.Find("script, style").Remove()
	doc.Find("p, div, li, br, h1, h2, h3, h4, h5, h6, blockquote").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml("\n")
	})
	return normalizeWhitespace(doc.Text())
}

// normalizeWhitespace collapses runs of spaces and tabs, trims every line and
// drops empty lines.
func normalizeWhitespace(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r", ""), "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if f := strings.Fields(l); len(f) > 0 {
			out = append(out, strings.Join(f, " "))
		}
	}
	return strings.Join(out, "\n")
}

// Truncate shortens s to at most max runes, appending an ellipsis when cut.
// A max <= 0 disables truncation.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max])) + "…"
}
