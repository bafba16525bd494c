package cmd

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masahif/orgscrape/internal/config"
)

// execute runs the root command with args and returns its standard output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSetVersionInfo(t *testing.T) {
	SetVersionInfo("1.2.3", "2023-12-01T10:00:00Z")
	assert.Equal(t, "1.2.3 (built 2023-12-01T10:00:00Z)", rootCmd.Version)
	assert.Equal(t, "OrgScrape/1.2.3 (+https://github.com/masahif/orgscrape)", generateUserAgent())

	SetVersionInfo("dev", "unknown")
	assert.Equal(t, config.DefaultConfig().UserAgent, generateUserAgent())
}

func TestRootCmdFlags(t *testing.T) {
	assert.Equal(t, "orgscrape", rootCmd.Use)
	assert.NotNil(t, rootCmd.Flags().Lookup("csv"))
	for _, name := range []string{"out", "patterns", "database", "metrics-file", "max-pages", "max-depth",
		"delay", "max-pdf-size", "user-agent", "page-timeout", "attachment-timeout", "concurrency",
		"log-level", "log-file", "log-format", "show-config", "config"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}

	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["site"])
	assert.True(t, names["summary"])
}

func TestShowConfig(t *testing.T) {
	t.Setenv("ORGSCRAPE_MAX_PDF_SIZE", "5MiB")
	dir := t.TempDir()

	out, err := execute(t, "--show-config", "--max-pages", "7", "--out", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "# Current OrgScrape Configuration")
	assert.Contains(t, out, "max_pages: 7")
	assert.Contains(t, out, "max_depth: 2")
	assert.Contains(t, out, "max_pdf_size: 5MiB", "environment overrides defaults")
	assert.Contains(t, out, "output_dir: "+dir)
}

func TestBatchRequiresCSV(t *testing.T) {
	_, err := execute(t, "--show-config=false", "--csv=", "--out", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--csv is required")
}

func TestBatchMissingPatternsIsFatal(t *testing.T) {
	dir := t.TempDir()
	csv := writeTestFile(t, dir, "orgs.csv", "Organization,Website\nExample,https://example.invalid\n")
	outDir := filepath.Join(dir, "out")

	_, err := execute(t, "--show-config=false", "--csv", csv, "--out", outDir,
		"--patterns", filepath.Join(dir, "missing.json"))
	require.ErrorIs(t, err, config.ErrPatternsNotFound)
	assert.NoDirExists(t, filepath.Join(outDir, "example"), "nothing is crawled after a configuration failure")
}

func TestBatchAndSummary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><body><h1>Our mission</h1><a href="/annual-report.pdf">Annual report</a></body></html>`))
		case "/annual-report.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.4 test document"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	dir := t.TempDir()
	csv := writeTestFile(t, dir, "orgs.csv", "Organization,Website\nExample Foundation,"+server.URL+"\n")
	patterns := writeTestFile(t, dir, "patterns.json", `{"page_keywords": ["mission"], "pdf_keywords": ["annual"]}`)
	outDir := filepath.Join(dir, "out")

	out, err := execute(t, "--show-config=false", "--csv", csv, "--out", outDir, "--patterns", patterns,
		"--delay", "0", "--max-pages", "3", "--max-depth", "1", "--log-level", "error")
	require.NoError(t, err)

	assert.Contains(t, out, "Organizations: 1 (completed 1, blocked by robots.txt 0, failed 0)")
	assert.Contains(t, out, "PDFs saved:    1")

	orgDir := filepath.Join(outDir, "example-foundation")
	assert.FileExists(t, filepath.Join(orgDir, "meta.jsonl"))
	assert.FileExists(t, filepath.Join(orgDir, "html", "index.html"))
	assert.FileExists(t, filepath.Join(orgDir, "html", "index.txt"))
	assert.FileExists(t, filepath.Join(orgDir, "pdfs", "annual_report.pdf"))
	assert.FileExists(t, filepath.Join(outDir, "index.db"))

	metrics, err := os.ReadFile(filepath.Join(outDir, "metrics.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `orgscrape_jobs_total{result="done"} 1`)

	out, err = execute(t, "summary", "--out", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "ORGANIZATION")
	assert.Contains(t, out, "Example Foundation")
}

func TestSummaryWithoutIndex(t *testing.T) {
	_, err := execute(t, "summary", "--out", t.TempDir())
	assert.Error(t, err)
}
