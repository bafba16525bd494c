// Package crawler implements the organization crawl engine: a breadth-first
// frontier bounded by page and depth budgets, robots.txt and domain scoping,
// keyword classification of pages and PDF links, and size-capped attachment
// downloads. Every decision is reported as an Event.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/masahif/orgscrape/internal/config"
	"github.com/masahif/orgscrape/internal/parser"
)

// DefaultMaxAttachmentBytes caps PDF downloads when a job sets no limit.
const DefaultMaxAttachmentBytes int64 = 80 * 1024 * 1024

// State is the lifecycle position of a job.
type State string

// Job states
const (
	StateInit    State = "init"
	StateRunning State = "running"
	StateDone    State = "done"
)

// Job describes one organization's crawl. It is not modified by Run.
type Job struct {
	RunID              string // Generated when empty
	Organization       string
	SeedURL            string
	MaxPages           int
	MaxDepth           int
	DelaySeconds       float64
	MaxAttachmentBytes int64
}

// Result summarizes a finished job.
type Result struct {
	RunID           string
	Organization    string
	Seed            string // Canonical seed URL
	State           State
	BlockedByRobots bool
	Visited         int
	PagesSaved      int
	PDFsSaved       int
	Errors          int
	Duration        time.Duration
}

// Crawler runs jobs. It holds only shared, read-only collaborators, so one
// Crawler may run jobs for different organizations concurrently.
type Crawler struct {
	client     *HTTPClient
	classifier *Classifier
	pauser     Pauser
	metrics    *Metrics
	logger     *slog.Logger
	now        func() time.Time
	newRunID   func() (string, error)
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithLogger sets the operational logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) { c.logger = logger }
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *Metrics) Option {
	return func(c *Crawler) { c.metrics = m }
}

// WithPauser replaces the inter-fetch sleeper.
func WithPauser(p Pauser) Option {
	return func(c *Crawler) { c.pauser = p }
}

// WithClock replaces the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Crawler) { c.now = now }
}

// NewCrawler creates a crawler that fetches through client and classifies
// with classifier.
func NewCrawler(client *HTTPClient, classifier *Classifier, opts ...Option) *Crawler {
	c := &Crawler{
		client:     client,
		classifier: classifier,
		pauser:     TimerPauser{},
		now:        func() time.Time { return time.Now().UTC() },
		newRunID: func() (string, error) {
			id, err := uuid.NewV7()
			if err != nil {
				return "", fmt.Errorf("generate run id: %w", err)
			}
			return id.String(), nil
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// run is the mutable state of a single job.
type run struct {
	*Crawler
	job      Job
	id       string
	seed     string
	delay    time.Duration
	maxBytes int64
	store    ArtifactStore
	sink     EventSink
	frontier *Frontier
	robots   *RobotsPolicy
	limiter  *RateLimiter
	pdfSeen  map[string]struct{}
	result   *Result
	logger   *slog.Logger
}

// Run crawls job to completion, writing artifacts to store and events to
// sink. Per-URL failures are recorded as events and never end the job; an
// error is returned only for an unusable seed or a cancelled context, in
// which case the partial result is returned as well.
func (c *Crawler) Run(ctx context.Context, job Job, store ArtifactStore, sink EventSink) (*Result, error) {
	start := time.Now()

	id := job.RunID
	if id == "" {
		var err error
		if id, err = c.newRunID(); err != nil {
			return nil, err
		}
	}

	r := &run{
		Crawler:  c,
		job:      job,
		id:       id,
		delay:    config.DelayFromSeconds(job.DelaySeconds),
		maxBytes: job.MaxAttachmentBytes,
		store:    store,
		sink:     sink,
		frontier: NewFrontier(job.MaxPages, job.MaxDepth),
		robots:   NewRobotsPolicy(c.client, c.logger),
		limiter:  NewRateLimiter(),
		pdfSeen:  make(map[string]struct{}),
		result:   &Result{RunID: id, Organization: job.Organization, State: StateInit},
		logger:   c.logger.With("org", job.Organization, "run_id", id),
	}
	if r.maxBytes <= 0 {
		r.maxBytes = DefaultMaxAttachmentBytes
	}
	defer func() { r.result.Duration = time.Since(start) }()

	seed, err := NormalizeSeed(job.SeedURL)
	if err != nil {
		r.result.State = StateDone
		c.metrics.ObserveJob("failed")
		return r.result, fmt.Errorf("invalid seed %q: %w", job.SeedURL, err)
	}
	r.seed = seed
	r.result.Seed = seed

	if !r.robots.Allowed(ctx, seed) {
		r.emit(ctx, Event{Type: EventBlockedByRobots, URL: seed})
		r.result.BlockedByRobots = true
		r.result.State = StateDone
		c.metrics.ObserveJob("blocked")
		r.logger.Info("Seed blocked by robots.txt", "seed", seed)
		return r.result, nil
	}

	r.frontier.Push(seed, 0)
	r.result.State = StateRunning
	r.logger.Info("Crawl started", "seed", seed, "max_pages", job.MaxPages, "max_depth", job.MaxDepth)

	err = r.loop(ctx)

	r.result.State = StateDone
	r.result.Visited = r.frontier.VisitedCount()
	if err != nil {
		c.metrics.ObserveJob("cancelled")
		return r.result, err
	}
	c.metrics.ObserveJob("done")
	r.logger.Info("Crawl finished",
		"visited", r.result.Visited,
		"pages_saved", r.result.PagesSaved,
		"pdfs_saved", r.result.PDFsSaved,
		"errors", r.result.Errors,
		"duration", time.Since(start))
	return r.result, nil
}

func (r *run) loop(ctx context.Context) error {
	for !r.frontier.Exhausted() {
		if err := ctx.Err(); err != nil {
			return err
		}

		entry, _ := r.frontier.Pop()
		pageURL, err := Canonicalize(entry.URL)
		if err != nil {
			continue
		}
		if r.frontier.Visited(pageURL) || entry.Depth > r.frontier.MaxDepth() || !SameDomain(r.seed, pageURL) {
			continue
		}
		if !r.robots.Allowed(ctx, pageURL) {
			r.emit(ctx, Event{Type: EventDisallowed, URL: pageURL, Depth: entry.Depth})
			continue
		}

		r.frontier.MarkVisited(pageURL)
		r.metrics.observeVisit()
		if err := r.waitTurn(ctx, pageURL); err != nil {
			return err
		}

		out := r.client.FetchPage(ctx, pageURL)
		r.metrics.observeFetch("page", out)
		if !out.OK() {
			r.logger.Warn("Page fetch failed", "url", pageURL, "outcome", out.Kind, "status", out.StatusCode, "error", out.Err)
			ev := Event{Type: EventError, URL: pageURL, Depth: entry.Depth, Status: out.StatusCode}
			if out.Kind == OutcomeTransportError {
				ev.Error = out.Message()
			}
			r.emit(ctx, ev)
			continue
		}

		// PDFs are only collected through links, never as pages.
		if out.IsPDF() || IsPDFURL(pageURL) {
			r.logger.Debug("Skipping PDF reached as page", "url", pageURL, "content_type", out.ContentType())
			continue
		}

		r.processPage(ctx, entry, pageURL, out)
	}
	return nil
}

// waitTurn applies the fixed politeness pause and any robots Crawl-delay
// before a fetch of target.
func (r *run) waitTurn(ctx context.Context, target string) error {
	if err := r.pauser.Pause(ctx, r.delay); err != nil {
		return err
	}
	if d := r.robots.CrawlDelay(target); d > 0 {
		if u, err := url.Parse(target); err == nil {
			r.limiter.SetHostDelay(u.Host, d)
		}
	}
	return r.limiter.Wait(ctx, target)
}

func (r *run) processPage(ctx context.Context, entry Entry, pageURL string, out FetchOutcome) {
	text, err := parser.VisibleText(out.Body)
	if err != nil {
		r.logger.Warn("Failed to extract text", "url", pageURL, "error", err)
	}

	if r.classifier.IsPageRelevant(pageURL, text) {
		r.savePage(ctx, entry, pageURL, out.Body, text)
	}

	htmlParser, err := parser.NewHTMLParser(out.FinalURL)
	if err != nil {
		r.logger.Warn("Invalid base URL", "url", out.FinalURL, "error", err)
		return
	}
	links, err := htmlParser.Links(out.Body)
	if err != nil {
		r.logger.Warn("Failed to parse links", "url", pageURL, "error", err)
		return
	}
	r.logger.Debug("Found links", "url", pageURL, "links", len(links))

	for _, link := range links {
		target, err := Canonicalize(link.URL)
		if err != nil {
			continue
		}
		isPDF := IsPDFURL(target)

		if !isPDF && SameDomain(r.seed, target) && !r.frontier.Visited(target) {
			r.frontier.Push(target, entry.Depth+1)
		}

		if isPDF && r.classifier.IsPDFRelevant(link.URL, link.AnchorText) {
			r.downloadPDF(ctx, entry, target, prefixRunes(link.AnchorText, anchorTextLimit))
		}
	}
}

func (r *run) savePage(ctx context.Context, entry Entry, pageURL string, body []byte, text string) {
	htmlPath, textPath, err := r.store.SavePage(PageFileName(pageURL), body, text)
	if err != nil {
		r.logger.Error("Failed to save page", "url", pageURL, "error", err)
		r.emit(ctx, Event{Type: EventError, URL: pageURL, Depth: entry.Depth, Error: err.Error()})
		return
	}
	r.result.PagesSaved++
	r.emit(ctx, Event{Type: EventSavePage, URL: pageURL, Depth: entry.Depth, HTMLPath: htmlPath, TextPath: textPath})
}

func (r *run) downloadPDF(ctx context.Context, entry Entry, pdfURL, linkText string) {
	if _, ok := r.pdfSeen[pdfURL]; ok {
		return
	}
	r.pdfSeen[pdfURL] = struct{}{}

	if !r.robots.Allowed(ctx, pdfURL) {
		r.logger.Debug("PDF disallowed by robots.txt", "url", pdfURL)
		return
	}
	if err := r.waitTurn(ctx, pdfURL); err != nil {
		return
	}

	w, err := r.store.CreatePDF(PDFFileName(pdfURL))
	if err != nil {
		r.emit(ctx, Event{Type: EventPDFError, URL: pdfURL, Depth: entry.Depth, Error: err.Error()})
		return
	}

	out := r.client.FetchAttachment(ctx, pdfURL, r.maxBytes, w)
	r.metrics.observeFetch("attachment", out)

	if out.Kind != OutcomeSuccess || out.Size == 0 {
		if err := w.Discard(); err != nil {
			r.logger.Warn("Failed to discard partial PDF", "url", pdfURL, "error", err)
		}
	}

	switch out.Kind {
	case OutcomeSuccess:
		if out.Size == 0 {
			r.logger.Debug("Empty PDF not saved", "url", pdfURL)
			return
		}
		path, err := w.Commit()
		if err != nil {
			r.emit(ctx, Event{Type: EventPDFError, URL: pdfURL, Depth: entry.Depth, Error: err.Error()})
			return
		}
		r.result.PDFsSaved++
		r.logger.Info("Saved PDF", "url", pdfURL, "size", humanize.IBytes(uint64(out.Size)))
		r.emit(ctx, Event{Type: EventSavePDF, URL: pdfURL, Depth: entry.Depth, PDFPath: path, LinkText: linkText, SizeBytes: out.Size})
	case OutcomeTooLarge:
		r.logger.Warn("PDF exceeds size cap", "url", pdfURL, "cap", humanize.IBytes(uint64(r.maxBytes)))
		r.emit(ctx, Event{Type: EventPDFTooLarge, URL: pdfURL, Depth: entry.Depth, SizeBytes: out.Size})
	default:
		r.emit(ctx, Event{Type: EventPDFError, URL: pdfURL, Depth: entry.Depth, Status: out.StatusCode, Error: out.Message()})
	}
}

// emit stamps ev with the job identity and records it. Sink failures are
// logged; they never stop the crawl.
func (r *run) emit(ctx context.Context, ev Event) {
	ev.Org = r.job.Organization
	ev.RunID = r.id
	ev.Time = r.now()

	switch ev.Type {
	case EventError, EventPDFError:
		r.result.Errors++
	}
	r.metrics.observeEvent(ev)

	if r.sink == nil {
		return
	}
	if err := r.sink.Record(context.WithoutCancel(ctx), ev); err != nil {
		r.logger.Error("Failed to record event", "event", ev.Type, "url", ev.URL, "error", err)
	}
}
