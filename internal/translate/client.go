// Package translate calls a machine-translation endpoint one chunk at a time.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/JakeFAU/worklist-harvester/internal/harvest"
)

// DefaultEndpoint is the public single-shot translate endpoint.
const DefaultEndpoint = "https://translate.googleapis.com/translate_a/single"

// Config selects the endpoint and language pair.
type Config struct {
	Endpoint   string
	SourceLang string
	TargetLang string
}

// Client translates text through a harvest.Fetcher.
type Client struct {
	fetcher harvest.Fetcher
	cfg     Config
}

// New returns a Client. SourceLang defaults to auto detection.
func New(fetcher harvest.Fetcher, cfg Config) (*Client, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.TargetLang == "" {
		return nil, fmt.Errorf("target language is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.SourceLang == "" {
		cfg.SourceLang = "auto"
	}
	return &Client{fetcher: fetcher, cfg: cfg}, nil
}

// Translate sends one chunk and returns the translated text.
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	endpoint, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse translate endpoint: %w", err)
	}
	q := endpoint.Query()
	q.Set("client", "gtx")
	q.Set("sl", c.cfg.SourceLang)
	q.Set("tl", c.cfg.TargetLang)
	q.Set("dt", "t")
	endpoint.RawQuery = q.Encode()

	resp, err := c.fetcher.Fetch(ctx, harvest.FetchRequest{
		URL:     endpoint.String(),
		Method:  http.MethodPost,
		Headers: http.Header{"Content-Type": {"application/x-www-form-urlencoded;charset=utf-8"}},
		Body:    []byte(url.Values{"q": {text}}.Encode()),
	})
	if err != nil {
		return "", fmt.Errorf("translate request: %w", err)
	}
	return parseResponse(resp.Body)
}

// parseResponse reads the nested array payload: [[["out","in",...],...],...].
func parseResponse(body []byte) (string, error) {
	var payload []json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode translate response: %w", err)
	}
	if len(payload) == 0 {
		return "", fmt.Errorf("empty translate response")
	}
	var sentences [][]any
	if err := json.Unmarshal(payload[0], &sentences); err != nil {
		return "", fmt.Errorf("decode translate sentences: %w", err)
	}
	var b strings.Builder
	for _, sentence := range sentences {
		if len(sentence) == 0 {
			continue
		}
		if s, ok := sentence[0].(string); ok {
			b.WriteString(s)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("translate response carried no text")
	}
	return b.String(), nil
}
