// Package config provides configuration management for the scraper.
// It defines the batch configuration, its defaults and validation, and the
// keyword pattern file loader.
package config

import (
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
)

// MinDelay is the shortest pause allowed between two fetches.
const MinDelay = 100 * time.Millisecond

// FallbackDelay is used when the configured delay is not a usable number.
const FallbackDelay = time.Second

// CrawlConfig holds the settings shared by every organization in a batch
type CrawlConfig struct {
	// Input and output
	InputPath    string `mapstructure:"input" yaml:"input"`                 // CSV with Organization,Website columns
	OutputDir    string `mapstructure:"output_dir" yaml:"output_dir"`       // Root of per-organization output
	PatternsPath string `mapstructure:"patterns" yaml:"patterns"`           // Keyword pattern file (JSON or YAML)
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"` // SQLite event index ("" = <output_dir>/index.db)
	MetricsPath  string `mapstructure:"metrics_path" yaml:"metrics_path"`   // Prometheus textfile ("" = <output_dir>/metrics.prom)

	// Crawl budgets
	MaxPages   int     `mapstructure:"max_pages" yaml:"max_pages"`       // Pages visited per organization
	MaxDepth   int     `mapstructure:"max_depth" yaml:"max_depth"`       // Link depth from the seed
	Delay      float64 `mapstructure:"delay" yaml:"delay"`               // Seconds slept before every fetch
	MaxPDFSize string  `mapstructure:"max_pdf_size" yaml:"max_pdf_size"` // Attachment cap, e.g. "80MiB"

	// HTTP
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	PageTimeout       time.Duration `mapstructure:"page_timeout" yaml:"page_timeout"`
	AttachmentTimeout time.Duration `mapstructure:"attachment_timeout" yaml:"attachment_timeout"` // Idle timeout while streaming

	// Execution
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"` // Organizations crawled in parallel

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFile   string `mapstructure:"log_file" yaml:"log_file"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *CrawlConfig {
	return &CrawlConfig{
		PatternsPath:      "patterns.json",
		MaxPages:          40,
		MaxDepth:          2,
		Delay:             1.5,
		MaxPDFSize:        "80MiB",
		UserAgent:         "OrgScrape/1.0 (+https://github.com/masahif/orgscrape)",
		PageTimeout:       20 * time.Second,
		AttachmentTimeout: 30 * time.Second,
		Concurrency:       1,
		LogLevel:          "info",
		LogFormat:         "json",
	}
}

// Validate checks if the configuration is valid
func (c *CrawlConfig) Validate() error {
	if c.OutputDir == "" {
		return ErrEmptyOutputDir
	}

	if c.PatternsPath == "" {
		return ErrEmptyPatternsPath
	}

	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}

	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.PageTimeout <= 0 || c.AttachmentTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if _, err := c.MaxPDFBytes(); err != nil {
		return err
	}

	return nil
}

// MaxPDFBytes parses MaxPDFSize into a byte count.
func (c *CrawlConfig) MaxPDFBytes() (int64, error) {
	n, err := humanize.ParseBytes(c.MaxPDFSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidPDFSize, c.MaxPDFSize, err)
	}
	if n == 0 || n > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPDFSize, c.MaxPDFSize)
	}
	return int64(n), nil
}

// FetchDelay converts the configured seconds into the pause applied before
// each fetch. Values below MinDelay are raised to it; NaN and infinities fall
// back to FallbackDelay.
func (c *CrawlConfig) FetchDelay() time.Duration {
	return DelayFromSeconds(c.Delay)
}

// DelayFromSeconds is FetchDelay for a bare number of seconds.
func DelayFromSeconds(seconds float64) time.Duration {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return FallbackDelay
	}
	d := time.Duration(seconds * float64(time.Second))
	if d < MinDelay {
		return MinDelay
	}
	return d
}

// IndexPath returns the SQLite index location.
func (c *CrawlConfig) IndexPath() string {
	if c.DatabasePath != "" {
		return c.DatabasePath
	}
	return filepath.Join(c.OutputDir, "index.db")
}

// MetricsFile returns the metrics textfile location.
func (c *CrawlConfig) MetricsFile() string {
	if c.MetricsPath != "" {
		return c.MetricsPath
	}
	return filepath.Join(c.OutputDir, "metrics.prom")
}
