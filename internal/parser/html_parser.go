// Package parser extracts links and visible text from HTML documents.
package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// HTMLParser resolves anchors of a document against its base URL
type HTMLParser struct {
	baseURL        *url.URL
	allowedSchemes []string
}

// Link represents a parsed anchor
type Link struct {
	URL        string // Absolute URL
	AnchorText string // Whitespace-trimmed text content of the <a> element
}

// NewHTMLParser creates a new HTML parser with default allowed schemes
func NewHTMLParser(baseURL string) (*HTMLParser, error) {
	return NewHTMLParserWithSchemes(baseURL, []string{"https://", "http://"})
}

// NewHTMLParserWithSchemes creates a new HTML parser with custom allowed schemes
func NewHTMLParserWithSchemes(baseURL string, allowedSchemes []string) (*HTMLParser, error) {
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	if len(allowedSchemes) == 0 {
		allowedSchemes = []string{"https://", "http://"}
	}

	return &HTMLParser{
		baseURL:        parsedURL,
		allowedSchemes: allowedSchemes,
	}, nil
}

// Links returns every <a href> of the document in document order, resolved
// to absolute URLs. Fragment-only, javascript: and non-web schemes are
// dropped.
func (p *HTMLParser) Links(htmlContent []byte) ([]Link, error) {
	doc, err := html.Parse(bytes.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	links := []Link{}
	p.traverse(doc, &links)
	return links, nil
}

func (p *HTMLParser) traverse(n *html.Node, links *[]Link) {
	if n.Type == html.ElementNode && n.Data == "a" {
		if link, ok := p.parseAnchor(n); ok {
			*links = append(*links, link)
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.traverse(c, links)
	}
}

func (p *HTMLParser) parseAnchor(n *html.Node) (Link, bool) {
	var href string
	for _, attr := range n.Attr {
		if attr.Key == "href" {
			href = strings.TrimSpace(attr.Val)
			break
		}
	}

	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return Link{}, false
	}

	if !p.isAllowedScheme(href) {
		return Link{}, false
	}

	absURL, err := p.resolveURL(href)
	if err != nil || !p.isAllowedScheme(absURL) {
		return Link{}, false
	}

	return Link{
		URL:        absURL,
		AnchorText: strings.TrimSpace(extractText(n)),
	}, true
}

// resolveURL converts relative URLs to absolute URLs
func (p *HTMLParser) resolveURL(href string) (string, error) {
	u, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return p.baseURL.ResolveReference(u).String(), nil
}

// extractText joins the trimmed text nodes below n with single spaces
func extractText(n *html.Node) string {
	if n.Type == html.TextNode {
		return strings.TrimSpace(n.Data)
	}

	var parts []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if text := extractText(c); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// isAllowedScheme checks if the URL has an allowed scheme
func (p *HTMLParser) isAllowedScheme(href string) bool {
	lower := strings.ToLower(href)
	if strings.Contains(lower, "://") {
		for _, scheme := range p.allowedSchemes {
			if strings.HasPrefix(lower, scheme) {
				return true
			}
		}
		return false
	}

	// tel:, mailto:, data: and friends
	if strings.Contains(lower, ":") && !strings.HasPrefix(lower, "/") && !strings.HasPrefix(lower, "?") {
		colon := strings.Index(lower, ":")
		slash := strings.Index(lower, "/")
		if slash == -1 || colon < slash {
			return false
		}
	}

	return true
}
