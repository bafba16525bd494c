package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadPatternsJSON(t *testing.T) {
	path := writeFile(t, "patterns.json", `{
  "page_keywords": ["sustainability", "annual report", " "],
  "pdf_keywords": ["report", "strategy"]
}`)

	p, err := LoadPatterns(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"sustainability", "annual report"}, p.PageKeywords)
	assert.Equal(t, []string{"report", "strategy"}, p.PDFKeywords)
}

func TestLoadPatternsYAML(t *testing.T) {
	path := writeFile(t, "patterns.yml", "pdf_keywords:\n  - budget\n")

	p, err := LoadPatterns(path)
	require.NoError(t, err)
	assert.Empty(t, p.PageKeywords)
	assert.Equal(t, []string{"budget"}, p.PDFKeywords)
}

func TestLoadPatternsErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadPatterns(filepath.Join(t.TempDir(), "nope.json"))
		assert.ErrorIs(t, err, ErrPatternsNotFound)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := writeFile(t, "bad.json", `{"page_keywords": ["a"`)
		_, err := LoadPatterns(path)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrPatternsNotFound)
	})

	t.Run("wrong shape", func(t *testing.T) {
		path := writeFile(t, "shape.json", `{"page_keywords": {"a": 1}}`)
		_, err := LoadPatterns(path)
		assert.Error(t, err)
	})
}
