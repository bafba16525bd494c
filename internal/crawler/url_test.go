package crawler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty path", "https://example.org", "https://example.org/"},
		{"lowercase scheme and host", "HTTPS://Example.ORG/About", "https://example.org/About/"},
		{"fragment removed", "https://example.org/team#board", "https://example.org/team/"},
		{"default http port", "http://example.org:80/x", "http://example.org/x/"},
		{"default https port", "https://example.org:443/", "https://example.org/"},
		{"custom port kept", "https://example.org:8443/x", "https://example.org:8443/x/"},
		{"extension kept", "https://example.org/docs/report.pdf", "https://example.org/docs/report.pdf"},
		{"query preserved", "https://example.org/news?page=2#top", "https://example.org/news/?page=2"},
		{"trailing slash kept", "https://example.org/about/", "https://example.org/about/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	inputs := []string{
		"https://example.org",
		"HTTP://Example.org:80/a/b#c",
		"https://example.org/docs/Annual%20Report.pdf",
		"https://example.org/search?q=a+b&x=1",
		"https://sub.example.org:8080/path/to/page.html#frag",
		"https://example.org/a%2Fb",
	}
	for _, in := range inputs {
		once, err := Canonicalize(in)
		require.NoError(t, err, in)
		twice, err := Canonicalize(once)
		require.NoError(t, err, once)
		assert.Equal(t, once, twice, in)
	}
}

func TestCanonicalizeRejectsRelative(t *testing.T) {
	_, err := Canonicalize("/about")
	assert.ErrorIs(t, err, ErrNotAbsolute)

	_, err = Canonicalize("mailto:info@example.org")
	assert.ErrorIs(t, err, ErrNotAbsolute)
}

func TestNormalizeSeed(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"example.org", "https://example.org/"},
		{"example.org/", "https://example.org/"},
		{"  www.example.org/about  ", "https://www.example.org/about/"},
		{"http://example.org", "http://example.org/"},
		{"HTTPS://Example.org/", "https://example.org/"},
	}
	for _, tt := range tests {
		got, err := NormalizeSeed(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestIsPDFURL(t *testing.T) {
	assert.True(t, IsPDFURL("https://example.org/a/report.pdf"))
	assert.True(t, IsPDFURL("https://example.org/a/REPORT.PDF?dl=1"))
	assert.False(t, IsPDFURL("https://example.org/a/report.pdf.html"))
	assert.False(t, IsPDFURL("https://example.org/?file=report.pdf"))
}

func TestPageFileName(t *testing.T) {
	assert.Equal(t, "index", PageFileName("https://example.org/"))
	assert.Equal(t, "about_team", PageFileName("https://example.org/about/team/"))
	assert.Equal(t, "news_2024_item_html", PageFileName("https://example.org/news/2024/item.html"))

	long := PageFileName("https://example.org/" + strings.Repeat("a", 200) + "/")
	assert.Len(t, long, 80)
}

func TestPDFFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.org/docs/Annual%20Report%202023.pdf", "Annual_Report_2023.pdf"},
		{"https://example.org/docs/report.PDF", "report.pdf"},
		{"https://example.org/docs/.pdf", "file.pdf"},
		{"https://example.org/", "file.pdf"},
		{"https://example.org/dl/(final)-v2.pdf", "final_v2.pdf"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PDFFileName(tt.in), tt.in)
	}

	long := PDFFileName("https://example.org/" + strings.Repeat("b", 200) + ".pdf")
	assert.Len(t, long, 90)
	assert.True(t, strings.HasSuffix(long, ".pdf"))
}
