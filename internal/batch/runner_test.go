package batch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masahif/orgscrape/internal/config"
	"github.com/masahif/orgscrape/internal/crawler"
	"github.com/masahif/orgscrape/internal/storage"
)

type noPause struct{}

func (noPause) Pause(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func newTestCrawler(t *testing.T) *crawler.Crawler {
	t.Helper()
	client := crawler.NewHTTPClient("OrgScrape-Test/1.0", 5*time.Second, 5*time.Second)
	t.Cleanup(client.Close)
	classifier := crawler.NewClassifier(&config.Patterns{
		PageKeywords: []string{"mission"},
		PDFKeywords:  []string{"annual"},
	})
	return crawler.NewCrawler(client, classifier, crawler.WithPauser(noPause{}))
}

func newOrgServer(t *testing.T, robots string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			if robots == "" {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte(robots))
		case "/":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><body><p>Our mission</p><a href="/annual.pdf">Annual</a></body></html>`))
		case "/annual.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.4 test"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRunnerRunsEveryRow(t *testing.T) {
	open := newOrgServer(t, "")
	blocked := newOrgServer(t, "User-agent: *\nDisallow: /\n")
	out := t.TempDir()

	index, err := storage.OpenIndex(filepath.Join(out, "index.db"))
	require.NoError(t, err)
	defer index.Close()

	runner := NewRunner(newTestCrawler(t), out, crawler.Job{MaxPages: 5, MaxDepth: 1, DelaySeconds: 0},
		WithConcurrency(2),
		WithIndex(index),
	)

	rows := []Row{
		{Organization: "Open Org", Website: open.URL, Line: 2},
		{Organization: "Blocked Org", Website: blocked.URL, Line: 3},
		{Organization: "Broken Org", Website: "http://[::1", Line: 4},
	}
	sum, err := runner.Run(context.Background(), rows)
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Jobs)
	assert.Equal(t, 1, sum.Completed)
	assert.Equal(t, 1, sum.Blocked)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.PagesSaved)
	assert.Equal(t, 1, sum.PDFsSaved)
	require.Len(t, sum.Results, 3)
	assert.Equal(t, "Open Org", sum.Results[0].Organization)

	assert.FileExists(t, filepath.Join(out, "open-org", "pdfs", "annual.pdf"))
	assert.FileExists(t, filepath.Join(out, "open-org", "html", "index.html"))
	assert.FileExists(t, filepath.Join(out, "blocked-org", "meta.jsonl"))
	assert.DirExists(t, filepath.Join(out, "broken-org", "pdfs"))

	sums, err := index.Summaries(context.Background())
	require.NoError(t, err)
	require.Len(t, sums, 3)
	byOrg := make(map[string]storage.OrgSummary)
	for _, s := range sums {
		byOrg[s.Organization] = s
	}
	assert.Equal(t, 1, byOrg["Open Org"].Pages)
	assert.Equal(t, 1, byOrg["Open Org"].PDFs)
	assert.Equal(t, 1, byOrg["Blocked Org"].Blocked)
	assert.Equal(t, 1, byOrg["Broken Org"].Runs)

	events, err := index.RunEvents(context.Background(), sum.Results[0].RunID)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestRunnerWithoutIndex(t *testing.T) {
	site := newOrgServer(t, "")
	out := t.TempDir()

	runner := NewRunner(newTestCrawler(t), out, crawler.Job{MaxPages: 1, MaxDepth: 0})
	res, err := runner.RunOne(context.Background(), Row{Organization: "Solo", Website: site.URL})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Visited)
	assert.Equal(t, 1, res.PDFsSaved, "PDF links are followed at depth zero")

	data, err := os.ReadFile(filepath.Join(out, "solo", "meta.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event":"save_pdf"`)
}

func TestRunnerCancelled(t *testing.T) {
	site := newOrgServer(t, "")
	runner := NewRunner(newTestCrawler(t), t.TempDir(), crawler.Job{MaxPages: 5, MaxDepth: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := runner.Run(ctx, []Row{{Organization: "A", Website: site.URL}, {Organization: "B", Website: site.URL}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, sum.Failed)
}
