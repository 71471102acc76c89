package harvest

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Extractor turns one WorkItem into an Outcome. Implementations should convert
// every internal failure into per-field results; a returned error is treated as
// a failure of every declared field.
type Extractor interface {
	Fields() []string
	Extract(ctx context.Context, item WorkItem) (Outcome, error)
}

// ResultSink persists the full result table. Each Write fully replaces the
// previous one and returns the destination written.
type ResultSink interface {
	Write(ctx context.Context, table *ResultTable) (string, error)
}

// Fetcher retrieves a document and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// BlobStore writes artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time and waits between rate-limited calls.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// IDGenerator produces time-ordered run IDs.
type IDGenerator interface {
	NewRunID() (uuid.UUID, error)
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Method  string
	Headers http.Header
	Body    []byte
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Browser drives an interactive page. Visit opens url in a fresh tab and hands
// it to fn; the tab is closed when fn returns.
type Browser interface {
	Visit(ctx context.Context, url string, fn func(page BrowserPage) error) error
}

// BrowserPage is one open tab. Queries starting with "/" are XPath, anything
// else is a CSS selector. Every wait is bounded by the browser's step timeout.
type BrowserPage interface {
	Click(query string) error
	WaitVisible(query string) error
	OuterHTML(query string) (string, error)
	Location() (string, error)
}
