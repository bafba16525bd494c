// Package storage persists crawl output: the per-organization artifact
// directory with its append-only event log, and a SQLite index of runs and
// events across organizations.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/masahif/orgscrape/internal/crawler"
)

const (
	htmlDir      = "html"
	pdfDir       = "pdfs"
	eventLogName = "meta.jsonl"
)

var slugRun = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns an organization name into a directory name: lowercase,
// non-alphanumeric runs collapsed to "-", trimmed, "org" when nothing is
// left.
func Slugify(name string) string {
	s := strings.Trim(slugRun.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if s == "" {
		return "org"
	}
	return s
}

// OrgStore is the output directory of one organization. It implements
// crawler.ArtifactStore and crawler.EventSink.
type OrgStore struct {
	dir string

	mu  sync.Mutex
	log *os.File
	enc *json.Encoder
}

// OpenOrgStore prepares root/<slug(org)> with its html and pdfs
// subdirectories and opens meta.jsonl for appending.
func OpenOrgStore(root, org string) (*OrgStore, error) {
	dir := filepath.Join(root, Slugify(org))
	for _, sub := range []string{htmlDir, pdfDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(filepath.Join(dir, eventLogName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}

	return &OrgStore{dir: dir, log: f, enc: json.NewEncoder(f)}, nil
}

// Dir returns the organization directory.
func (s *OrgStore) Dir() string { return s.dir }

// EventLogPath returns the path of meta.jsonl.
func (s *OrgStore) EventLogPath() string { return filepath.Join(s.dir, eventLogName) }

// SavePage writes html/<name>.html and html/<name>.txt, replacing files of
// the same name.
func (s *OrgStore) SavePage(name string, html []byte, text string) (string, string, error) {
	htmlPath := filepath.Join(s.dir, htmlDir, name+".html")
	textPath := filepath.Join(s.dir, htmlDir, name+".txt")

	if err := os.WriteFile(htmlPath, html, 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write page html: %w", err)
	}
	if err := os.WriteFile(textPath, []byte(text), 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write page text: %w", err)
	}
	return htmlPath, textPath, nil
}

// CreatePDF opens a temporary file in pdfs/ that is renamed to name on
// Commit and removed on Discard.
func (s *OrgStore) CreatePDF(name string) (crawler.PDFWriter, error) {
	dir := filepath.Join(s.dir, pdfDir)
	f, err := os.CreateTemp(dir, ".partial-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create pdf file: %w", err)
	}
	return &pendingFile{f: f, final: filepath.Join(dir, name)}, nil
}

// Record appends ev to meta.jsonl as one JSON line.
func (s *OrgStore) Record(_ context.Context, ev crawler.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.log == nil {
		return os.ErrClosed
	}
	if err := s.enc.Encode(ev); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// Close closes the event log.
func (s *OrgStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.log == nil {
		return nil
	}
	err := s.log.Close()
	s.log = nil
	return err
}

// pendingFile is a PDF being downloaded.
type pendingFile struct {
	f     *os.File
	final string
	done  bool
}

func (p *pendingFile) Write(b []byte) (int, error) {
	return p.f.Write(b)
}

func (p *pendingFile) Commit() (string, error) {
	if p.done {
		return "", os.ErrClosed
	}
	p.done = true

	if err := p.f.Close(); err != nil {
		_ = os.Remove(p.f.Name())
		return "", fmt.Errorf("failed to close pdf file: %w", err)
	}
	if err := os.Rename(p.f.Name(), p.final); err != nil {
		_ = os.Remove(p.f.Name())
		return "", fmt.Errorf("failed to move pdf into place: %w", err)
	}
	return p.final, nil
}

func (p *pendingFile) Discard() error {
	if p.done {
		return nil
	}
	p.done = true

	_ = p.f.Close()
	if err := os.Remove(p.f.Name()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove partial pdf: %w", err)
	}
	return nil
}
