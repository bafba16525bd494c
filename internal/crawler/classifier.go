package crawler

import (
	"regexp"
	"strings"

	"github.com/masahif/orgscrape/internal/config"
)

const (
	pageTextWindow  = 4000
	anchorTextLimit = 120
)

// Classifier decides which pages are saved and which PDF links are
// downloaded. It is immutable and safe for concurrent use.
type Classifier struct {
	page *regexp.Regexp // nil matches nothing
	pdf  *regexp.Regexp
}

// NewClassifier compiles the keyword lists into case-insensitive
// alternations. Keywords are matched literally.
func NewClassifier(p *config.Patterns) *Classifier {
	if p == nil {
		return &Classifier{}
	}
	return &Classifier{
		page: compileKeywords(p.PageKeywords),
		pdf:  compileKeywords(p.PDFKeywords),
	}
}

func compileKeywords(keywords []string) *regexp.Regexp {
	if len(keywords) == 0 {
		return nil
	}
	quoted := make([]string, len(keywords))
	for i, k := range keywords {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return regexp.MustCompile("(?i)(?:" + strings.Join(quoted, "|") + ")")
}

// IsPageRelevant reports whether a page keyword occurs in the URL or in the
// first 4000 characters of the page's visible text.
func (c *Classifier) IsPageRelevant(pageURL, visibleText string) bool {
	if c.page == nil {
		return false
	}
	return c.page.MatchString(pageURL) || c.page.MatchString(prefixRunes(visibleText, pageTextWindow))
}

// IsPDFRelevant reports whether a PDF keyword occurs in the link URL joined
// with up to 120 characters of its anchor text.
func (c *Classifier) IsPDFRelevant(pdfURL, anchorText string) bool {
	if c.pdf == nil {
		return false
	}
	return c.pdf.MatchString(pdfURL + " " + prefixRunes(anchorText, anchorTextLimit))
}

// prefixRunes returns the first n characters of s.
func prefixRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
