package crawler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts crawl activity across all jobs of a batch. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Fetches counts HTTP fetches by mode (page, attachment) and outcome.
	Fetches *prometheus.CounterVec
	// Events counts emitted audit events by type.
	Events *prometheus.CounterVec
	// PDFBytes totals the size of saved PDFs.
	PDFBytes prometheus.Counter
	// PagesVisited totals frontier entries marked visited.
	PagesVisited prometheus.Counter
	// Jobs counts finished jobs by final result (done, blocked, failed, cancelled).
	Jobs *prometheus.CounterVec
}

// NewMetrics registers the crawl collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Fetches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "orgscrape_fetches_total",
			Help: "HTTP fetches by mode and outcome.",
		}, []string{"mode", "outcome"}),
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "orgscrape_events_total",
			Help: "Crawl events written to the event log, by type.",
		}, []string{"event"}),
		PDFBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "orgscrape_pdf_bytes_total",
			Help: "Bytes of PDF documents saved.",
		}),
		PagesVisited: factory.NewCounter(prometheus.CounterOpts{
			Name: "orgscrape_pages_visited_total",
			Help: "Pages taken from the frontier and fetched.",
		}),
		Jobs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "orgscrape_jobs_total",
			Help: "Finished organization crawls by result.",
		}, []string{"result"}),
	}
}

// Gatherer exposes the underlying registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteTextfile writes all metrics to path in the Prometheus text format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) observeFetch(mode string, out FetchOutcome) {
	if m == nil {
		return
	}
	m.Fetches.WithLabelValues(mode, out.Kind.String()).Inc()
}

func (m *Metrics) observeEvent(ev Event) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(string(ev.Type)).Inc()
	if ev.Type == EventSavePDF {
		m.PDFBytes.Add(float64(ev.SizeBytes))
	}
}

func (m *Metrics) observeVisit() {
	if m == nil {
		return
	}
	m.PagesVisited.Inc()
}

// ObserveJob counts a finished job.
func (m *Metrics) ObserveJob(result string) {
	if m == nil {
		return
	}
	m.Jobs.WithLabelValues(result).Inc()
}
