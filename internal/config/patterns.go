package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Patterns holds the keyword lists that decide what is worth keeping.
// The file may be JSON or YAML; JSON is read as a YAML subset.
type Patterns struct {
	PageKeywords []string `yaml:"page_keywords" json:"page_keywords"`
	PDFKeywords  []string `yaml:"pdf_keywords" json:"pdf_keywords"`
}

// LoadPatterns reads the keyword pattern file at path. Missing keys yield
// empty lists; blank keywords are dropped.
func LoadPatterns(path string) (*Patterns, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided pattern path is intentional
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrPatternsNotFound, path)
		}
		return nil, fmt.Errorf("failed to read pattern file %s: %w", path, err)
	}

	var p Patterns
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse pattern file %s: %w", path, err)
	}

	p.PageKeywords = compact(p.PageKeywords)
	p.PDFKeywords = compact(p.PDFKeywords)
	return &p, nil
}

func compact(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if strings.TrimSpace(k) == "" {
			continue
		}
		out = append(out, k)
	}
	return out
}
