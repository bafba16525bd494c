package config

import "errors"

var (
	// ErrEmptyOutputDir is returned when no output directory is configured
	ErrEmptyOutputDir = errors.New("output_dir cannot be empty")
	// ErrEmptyPatternsPath is returned when no pattern file is configured
	ErrEmptyPatternsPath = errors.New("patterns cannot be empty")
	// ErrInvalidMaxPages is returned when max_pages is not greater than 0
	ErrInvalidMaxPages = errors.New("max_pages must be greater than 0")
	// ErrInvalidMaxDepth is returned when max_depth is negative
	ErrInvalidMaxDepth = errors.New("max_depth cannot be negative")
	// ErrInvalidConcurrency is returned when concurrency is not greater than 0
	ErrInvalidConcurrency = errors.New("concurrency must be greater than 0")
	// ErrInvalidTimeout is returned when a request timeout is not greater than 0
	ErrInvalidTimeout = errors.New("page_timeout and attachment_timeout must be greater than 0")
	// ErrInvalidPDFSize is returned when max_pdf_size is not a positive byte size
	ErrInvalidPDFSize = errors.New("invalid max_pdf_size")
	// ErrPatternsNotFound is returned when the pattern file does not exist
	ErrPatternsNotFound = errors.New("pattern file not found")
)
