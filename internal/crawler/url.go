package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// ErrNotAbsolute is returned for URLs without a scheme or host.
var ErrNotAbsolute = errors.New("url is not absolute")

const (
	maxPageNameLen = 80
	maxPDFNameLen  = 90
)

var nonAlnumRun = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// NormalizeSeed prefixes https:// when the seed carries no http(s) scheme
// and canonicalizes the result.
func NormalizeSeed(seed string) (string, error) {
	s := strings.TrimSpace(seed)
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		s = "https://" + strings.Trim(s, "/")
	}
	return Canonicalize(s)
}

// Canonicalize removes the fragment, lowercases scheme and host, drops
// default ports and appends a trailing slash to paths whose last segment has
// no extension. Canonicalize(Canonicalize(u)) == Canonicalize(u).
func Canonicalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrNotAbsolute, rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.RawFragment = ""

	switch {
	case u.Path == "":
		u.Path = "/"
		u.RawPath = ""
	case !strings.HasSuffix(u.Path, "/") && !strings.Contains(path.Base(u.Path), "."):
		u.Path += "/"
		if u.RawPath != "" {
			u.RawPath += "/"
		}
	}

	return u.String(), nil
}

// IsPDFURL reports whether the URL path ends in .pdf, ignoring case.
func IsPDFURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}

// PageFileName derives the artifact base name for a page: the URL path
// without surrounding slashes, non-alphanumeric runs replaced by "_",
// at most 80 characters, "index" for the root.
func PageFileName(rawURL string) string {
	var p string
	if u, err := url.Parse(rawURL); err == nil {
		p = strings.Trim(u.Path, "/")
	}
	if p == "" {
		p = "index"
	}
	return truncate(nonAlnumRun.ReplaceAllString(p, "_"), maxPageNameLen)
}

// PDFFileName derives the file name for a downloaded PDF from the last path
// segment: the stem is sanitized like PageFileName and ".pdf" is appended,
// keeping the whole name within 90 characters. Unusable names become
// "file.pdf".
func PDFFileName(rawURL string) string {
	var base string
	if u, err := url.Parse(rawURL); err == nil {
		base = path.Base(u.Path)
	}
	if strings.HasSuffix(strings.ToLower(base), ".pdf") {
		base = base[:len(base)-len(".pdf")]
	}

	stem := strings.Trim(nonAlnumRun.ReplaceAllString(base, "_"), "_")
	if stem == "" {
		return "file.pdf"
	}
	return truncate(stem, maxPDFNameLen-len(".pdf")) + ".pdf"
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
