package parser

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var excessNewlines = regexp.MustCompile(`\n{3,}`)

// VisibleText returns the human-readable text of an HTML document: script,
// style and noscript subtrees are removed, every non-blank text node is
// trimmed and placed on its own line, and runs of three or more newlines are
// collapsed to two.
func VisibleText(htmlContent []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, noscript").Remove()

	var lines []string
	for _, n := range doc.Nodes {
		collectText(n, &lines)
	}

	text := strings.Join(lines, "\n")
	return excessNewlines.ReplaceAllString(text, "\n\n"), nil
}

func collectText(n *html.Node, lines *[]string) {
	if n.Type == html.TextNode {
		if s := strings.TrimSpace(n.Data); s != "" {
			*lines = append(*lines, s)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, lines)
	}
}
