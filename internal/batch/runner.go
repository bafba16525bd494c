package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/masahif/orgscrape/internal/crawler"
	"github.com/masahif/orgscrape/internal/storage"
)

// RunIndex records runs and their events across organizations.
type RunIndex interface {
	crawler.EventSink
	BeginRun(ctx context.Context, runID, org, seed string, startedAt time.Time) error
	FinishRun(ctx context.Context, runID string, res *crawler.Result, runErr error, finishedAt time.Time) error
}

// Summary totals a batch.
type Summary struct {
	Jobs       int
	Completed  int
	Failed     int
	Blocked    int
	PagesSaved int
	PDFsSaved  int
	Errors     int
	Results    []*crawler.Result // In row order; nil for jobs that could not start
	Duration   time.Duration
}

// Runner crawls every row of a table with one job per organization.
type Runner struct {
	crawler     *crawler.Crawler
	outputRoot  string
	template    crawler.Job
	concurrency int
	index       RunIndex
	logger      *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithConcurrency sets how many organizations are crawled at once.
// Values below one are ignored.
func WithConcurrency(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithIndex adds a cross-run index next to each organization's event log.
func WithIndex(index RunIndex) RunnerOption {
	return func(r *Runner) { r.index = index }
}

// WithLogger sets the batch logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger }
}

// NewRunner creates a runner writing below outputRoot. template carries the
// budgets shared by all jobs; its organization and seed are ignored.
func NewRunner(c *crawler.Crawler, outputRoot string, template crawler.Job, opts ...RunnerOption) *Runner {
	r := &Runner{
		crawler:     c,
		outputRoot:  outputRoot,
		template:    template,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Run crawls rows and waits for every job. A failing job is logged and
// counted; it never stops the others. The returned error is non-nil only
// when ctx was cancelled.
func (r *Runner) Run(ctx context.Context, rows []Row) (Summary, error) {
	start := time.Now()
	r.logger.Info("Starting batch", "organizations", len(rows), "concurrency", r.concurrency)

	results := make([]*crawler.Result, len(rows))
	failed := make([]bool, len(rows))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, row := range rows {
		i, row := i, row
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			r.logger.Info("Crawling organization", "org", row.Organization, "url", row.Website, "index", i+1, "total", len(rows))
			res, err := r.runJob(gctx, row)

			mu.Lock()
			results[i] = res
			failed[i] = err != nil
			mu.Unlock()

			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.logger.Warn("Organization failed", "org", row.Organization, "line", row.Line, "error", err)
			}
			return nil
		})
	}

	err := g.Wait()

	sum := Summary{Jobs: len(rows), Results: results, Duration: time.Since(start)}
	for i, res := range results {
		if failed[i] || res == nil {
			sum.Failed++
			continue
		}
		if res.BlockedByRobots {
			sum.Blocked++
		} else {
			sum.Completed++
		}
		sum.PagesSaved += res.PagesSaved
		sum.PDFsSaved += res.PDFsSaved
		sum.Errors += res.Errors
	}

	r.logger.Info("Batch finished",
		"organizations", sum.Jobs,
		"completed", sum.Completed,
		"blocked", sum.Blocked,
		"failed", sum.Failed,
		"pages_saved", sum.PagesSaved,
		"pdfs_saved", sum.PDFsSaved,
		"duration", sum.Duration)

	return sum, err
}

// RunOne crawls a single organization.
func (r *Runner) RunOne(ctx context.Context, row Row) (*crawler.Result, error) {
	return r.runJob(ctx, row)
}

func (r *Runner) runJob(ctx context.Context, row Row) (*crawler.Result, error) {
	store, err := storage.OpenOrgStore(r.outputRoot, row.Organization)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := store.Close(); err != nil {
			r.logger.Warn("Failed to close event log", "org", row.Organization, "error", err)
		}
	}()

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}

	job := r.template
	job.RunID = id.String()
	job.Organization = row.Organization
	job.SeedURL = row.Website

	sink := crawler.MultiSink{store}
	if r.index != nil {
		if err := r.index.BeginRun(ctx, job.RunID, job.Organization, job.SeedURL, time.Now()); err != nil {
			r.logger.Warn("Run not indexed", "org", row.Organization, "error", err)
		} else {
			sink = append(sink, r.index)
		}
	}

	res, runErr := r.crawler.Run(ctx, job, store, sink)

	if len(sink) > 1 {
		if err := r.index.FinishRun(context.WithoutCancel(ctx), job.RunID, res, runErr, time.Now()); err != nil {
			r.logger.Warn("Failed to finalize indexed run", "org", row.Organization, "error", err)
		}
	}
	return res, runErr
}
