package chunk

import (
	"strings"

	"golang.org/x/net/html"
)

// htmlSourceTypes are always reduced to visible text before splitting
var htmlSourceTypes = map[string]bool{
	"web":  true,
	"html": true,
}

var paragraphTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true,
}

var lineTags = map[string]bool{
	"li": true, "br": true, "tr": true, "dt": true, "dd": true,
}

// looksLikeMarkup reports whether text contains at least one HTML start tag
func looksLikeMarkup(text string) bool {
	if !strings.Contains(text, "<") {
		return false
	}
	z := html.NewTokenizer(strings.NewReader(text))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.SelfClosingTagToken:
			return true
		}
	}
}

// visibleText extracts text nodes, skipping scripts and styles.
// Block elements become line or paragraph breaks.
func visibleText(markup string) string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return markup
	}

	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "head":
				return
			}
		}

		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode {
			switch {
			case paragraphTags[n.Data]:
				buf.WriteString("\n\n")
			case lineTags[n.Data]:
				buf.WriteString("\n")
			}
		}
	}

	walk(doc)
	return strings.TrimSpace(buf.String())
}
