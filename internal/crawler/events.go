package crawler

import "time"

// EventType names a crawl decision or outcome in the event log.
type EventType string

// Event types written to meta.jsonl
const (
	EventBlockedByRobots EventType = "blocked_by_robots" // seed refused by robots.txt
	EventDisallowed      EventType = "disallowed"        // page refused by robots.txt
	EventError           EventType = "error"             // page fetch or persist failure
	EventSavePage        EventType = "save_page"
	EventSavePDF         EventType = "save_pdf"
	EventPDFTooLarge     EventType = "pdf_too_large"
	EventPDFError        EventType = "pdf_error"
)

// Event is one immutable line of an organization's event log.
type Event struct {
	Org       string    `json:"org"`
	Type      EventType `json:"event"`
	URL       string    `json:"url"`
	Depth     int       `json:"depth"`
	Status    int       `json:"status,omitempty"`
	HTMLPath  string    `json:"html,omitempty"`
	TextPath  string    `json:"txt,omitempty"`
	PDFPath   string    `json:"pdf,omitempty"`
	LinkText  string    `json:"link_text,omitempty"`
	SizeBytes int64     `json:"size_bytes,omitempty"`
	Error     string    `json:"error,omitempty"`
	RunID     string    `json:"run_id"`
	Time      time.Time `json:"ts"`
}
