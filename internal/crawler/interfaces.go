package crawler

import (
	"context"
	"errors"
	"io"
	"time"
)

// EventSink receives the audit events of a job in emission order.
type EventSink interface {
	Record(ctx context.Context, ev Event) error
}

// ArtifactStore persists the files produced by one organization's crawl.
type ArtifactStore interface {
	// SavePage writes name.html and name.txt and returns both paths.
	SavePage(name string, html []byte, text string) (htmlPath, textPath string, err error)
	// CreatePDF opens a pending PDF file that only becomes visible on Commit.
	CreatePDF(name string) (PDFWriter, error)
}

// PDFWriter receives a streamed attachment. Exactly one of Commit or
// Discard must be called.
type PDFWriter interface {
	io.Writer
	Commit() (path string, err error)
	Discard() error
}

// Pauser blocks the caller for d or until ctx is done.
type Pauser interface {
	Pause(ctx context.Context, d time.Duration) error
}

// MultiSink fans every event out to all of its sinks.
type MultiSink []EventSink

// Record implements EventSink. Every sink is attempted.
func (m MultiSink) Record(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
