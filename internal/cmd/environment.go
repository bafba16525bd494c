package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/masahif/orgscrape/internal/batch"
	"github.com/masahif/orgscrape/internal/config"
	"github.com/masahif/orgscrape/internal/crawler"
	"github.com/masahif/orgscrape/internal/logging"
	"github.com/masahif/orgscrape/internal/storage"
)

// environment holds everything a crawl command wires together.
type environment struct {
	cfg     *config.CrawlConfig
	logger  *slog.Logger
	client  *crawler.HTTPClient
	metrics *crawler.Metrics
	index   *storage.IndexStore
	runner  *batch.Runner
	closers []io.Closer
}

// newEnvironment builds the logger, loads the keyword patterns and opens the
// index. Any failure here is a configuration failure and nothing has been
// crawled yet.
func newEnvironment(cfg *config.CrawlConfig) (*environment, error) {
	env := &environment{cfg: cfg}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(cfg.LogLevel)
	logCfg.Format = cfg.LogFormat
	logCfg.FilePath = cfg.LogFile
	logger, logCloser, err := logging.NewLogger(*logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	env.logger = logger
	env.closers = append(env.closers, logCloser)

	patterns, err := config.LoadPatterns(cfg.PatternsPath)
	if err != nil {
		env.Close()
		return nil, err
	}
	if len(patterns.PageKeywords) == 0 {
		logger.Warn("No page keywords configured; no page will be saved", "patterns", cfg.PatternsPath)
	}

	maxBytes, err := cfg.MaxPDFBytes()
	if err != nil {
		env.Close()
		return nil, err
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		env.Close()
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	index, err := storage.OpenIndex(cfg.IndexPath())
	if err != nil {
		env.Close()
		return nil, err
	}
	env.index = index
	env.closers = append(env.closers, index)

	env.client = crawler.NewHTTPClient(cfg.UserAgent, cfg.PageTimeout, cfg.AttachmentTimeout)
	env.metrics = crawler.NewMetrics()

	c := crawler.NewCrawler(env.client, crawler.NewClassifier(patterns),
		crawler.WithLogger(logger),
		crawler.WithMetrics(env.metrics),
	)
	env.runner = batch.NewRunner(c, cfg.OutputDir, crawler.Job{
		MaxPages:           cfg.MaxPages,
		MaxDepth:           cfg.MaxDepth,
		DelaySeconds:       cfg.Delay,
		MaxAttachmentBytes: maxBytes,
	},
		batch.WithConcurrency(cfg.Concurrency),
		batch.WithIndex(index),
		batch.WithLogger(logger),
	)
	return env, nil
}

// writeMetrics exports the batch counters; failures are only logged.
func (e *environment) writeMetrics() {
	path := e.cfg.MetricsFile()
	if err := e.metrics.WriteTextfile(path); err != nil {
		e.logger.Warn("Failed to write metrics file", "path", path, "error", err)
		return
	}
	e.logger.Debug("Wrote metrics", "path", path)
}

// Close releases resources in reverse order of acquisition.
func (e *environment) Close() {
	if e.client != nil {
		e.client.Close()
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil && e.logger != nil {
			e.logger.Warn("Failed to close resource", "error", err)
		}
	}
	e.closers = nil
}
