package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

const chunkSize = 8192

// errStalled is reported when an attachment stops delivering bytes.
var errStalled = errors.New("attachment transfer stalled")

// OutcomeKind classifies the result of a fetch.
type OutcomeKind int

// Fetch outcomes
const (
	OutcomeSuccess        OutcomeKind = iota
	OutcomeTransportError             // connection, DNS, timeout or read failure
	OutcomeHTTPError                  // status >= 400
	OutcomeTooLarge                   // attachment exceeded the byte cap
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeTransportError:
		return "transport_error"
	case OutcomeHTTPError:
		return "http_error"
	case OutcomeTooLarge:
		return "too_large"
	default:
		return "unknown"
	}
}

// FetchOutcome is the result of FetchPage or FetchAttachment. Failures are
// values, never Go errors.
type FetchOutcome struct {
	Kind       OutcomeKind
	URL        string
	FinalURL   string // After following redirects
	StatusCode int    // Zero for transport errors
	Header     http.Header
	Body       []byte // Page mode only, decoded to UTF-8
	Size       int64  // Bytes received (attachment mode) or body length
	Err        error  // Cause for transport errors
	Duration   time.Duration
}

// OK reports a successful fetch.
func (o FetchOutcome) OK() bool { return o.Kind == OutcomeSuccess }

// ContentType returns the response Content-Type header.
func (o FetchOutcome) ContentType() string {
	if o.Header == nil {
		return ""
	}
	return o.Header.Get("Content-Type")
}

// IsPDF reports whether the response declared a PDF content type.
func (o FetchOutcome) IsPDF() bool {
	return strings.Contains(strings.ToLower(o.ContentType()), "pdf")
}

// Message describes a failed outcome for the event log.
func (o FetchOutcome) Message() string {
	switch o.Kind {
	case OutcomeTransportError:
		if o.Err != nil {
			return o.Err.Error()
		}
		return "transport error"
	case OutcomeHTTPError:
		return fmt.Sprintf("HTTP %d %s", o.StatusCode, http.StatusText(o.StatusCode))
	case OutcomeTooLarge:
		return fmt.Sprintf("exceeded size cap after %d bytes", o.Size)
	default:
		return ""
	}
}

// HTTPClient performs the crawler's GET requests with a fixed identity. It
// holds no per-job state and may be shared by concurrent jobs.
type HTTPClient struct {
	client            *http.Client
	userAgent         string
	pageTimeout       time.Duration
	attachmentTimeout time.Duration
}

// NewHTTPClient creates a new HTTP client. pageTimeout bounds a whole page
// request; attachmentTimeout bounds the wait for headers and every gap
// between two received chunks of an attachment.
func NewHTTPClient(userAgent string, pageTimeout, attachmentTimeout time.Duration) *HTTPClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}

	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	return &HTTPClient{
		client:            client,
		userAgent:         userAgent,
		pageTimeout:       pageTimeout,
		attachmentTimeout: attachmentTimeout,
	}
}

// UserAgent returns the identifying User-Agent header value.
func (h *HTTPClient) UserAgent() string { return h.userAgent }

func (h *HTTPClient) newRequest(ctx context.Context, url, accept string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", accept)
	return req, nil
}

// FetchPage downloads url in page mode. Bodies of responses declaring a PDF
// content type are not read.
func (h *HTTPClient) FetchPage(ctx context.Context, url string) (out FetchOutcome) {
	out = FetchOutcome{URL: url, FinalURL: url}
	start := time.Now()
	defer func() { out.Duration = time.Since(start) }()

	ctx, cancel := context.WithTimeout(ctx, h.pageTimeout)
	defer cancel()

	req, err := h.newRequest(ctx, url, "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if err != nil {
		out.Kind, out.Err = OutcomeTransportError, err
		return out
	}

	resp, err := h.client.Do(req)
	if err != nil {
		out.Kind, out.Err = OutcomeTransportError, fmt.Errorf("request failed: %w", err)
		return out
	}
	defer func() { _ = resp.Body.Close() }()

	out.StatusCode = resp.StatusCode
	out.Header = resp.Header
	out.FinalURL = resp.Request.URL.String()

	if resp.StatusCode >= http.StatusBadRequest {
		out.Kind = OutcomeHTTPError
		return out
	}
	if out.IsPDF() {
		out.Kind = OutcomeSuccess
		return out
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		out.Kind, out.Err = OutcomeTransportError, fmt.Errorf("failed to read response body: %w", err)
		return out
	}

	out.Kind = OutcomeSuccess
	out.Body = decodeBody(raw, out.ContentType())
	out.Size = int64(len(raw))
	return out
}

// decodeBody converts a text body to UTF-8 using the declared or sniffed
// charset, returning raw unchanged when conversion fails.
func decodeBody(raw []byte, contentType string) []byte {
	r, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return raw
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return raw
	}
	return decoded
}

// FetchAttachment streams url into w in fixed-size chunks. The transfer is
// aborted with OutcomeTooLarge as soon as more than maxBytes have arrived;
// the chunk that crossed the cap is not written. Size always holds the
// number of bytes received.
func (h *HTTPClient) FetchAttachment(ctx context.Context, url string, maxBytes int64, w io.Writer) (out FetchOutcome) {
	out = FetchOutcome{URL: url, FinalURL: url}
	start := time.Now()
	defer func() { out.Duration = time.Since(start) }()

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	watchdog := time.AfterFunc(h.attachmentTimeout, func() { cancel(errStalled) })
	defer watchdog.Stop()

	req, err := h.newRequest(ctx, url, "application/pdf,*/*;q=0.8")
	if err != nil {
		out.Kind, out.Err = OutcomeTransportError, err
		return out
	}

	resp, err := h.client.Do(req)
	if err != nil {
		out.Kind, out.Err = OutcomeTransportError, h.streamError(ctx, "request failed", err)
		return out
	}
	defer func() { _ = resp.Body.Close() }()

	out.StatusCode = resp.StatusCode
	out.Header = resp.Header
	out.FinalURL = resp.Request.URL.String()

	if resp.StatusCode >= http.StatusBadRequest {
		out.Kind = OutcomeHTTPError
		return out
	}

	buf := make([]byte, chunkSize)
	for {
		watchdog.Reset(h.attachmentTimeout)
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			out.Size += int64(n)
			if out.Size > maxBytes {
				out.Kind = OutcomeTooLarge
				return out
			}
			if _, err := w.Write(buf[:n]); err != nil {
				out.Kind, out.Err = OutcomeTransportError, fmt.Errorf("write attachment: %w", err)
				return out
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			out.Kind, out.Err = OutcomeTransportError, h.streamError(ctx, "read attachment", readErr)
			return out
		}
	}

	out.Kind = OutcomeSuccess
	return out
}

func (h *HTTPClient) streamError(ctx context.Context, op string, err error) error {
	if cause := context.Cause(ctx); errors.Is(cause, errStalled) {
		return fmt.Errorf("%s: %w after %s", op, errStalled, h.attachmentTimeout)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Get fetches a small auxiliary document such as robots.txt, reading at most
// limit bytes of the body.
func (h *HTTPClient) Get(ctx context.Context, url string, limit int64) (int, []byte, error) {
	req, err := h.newRequest(ctx, url, "text/plain,*/*;q=0.8")
	if err != nil {
		return 0, nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

// Close releases idle connections
func (h *HTTPClient) Close() {
	h.client.CloseIdleConnections()
}
