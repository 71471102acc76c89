package extract

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/worklist-harvester/internal/harvest"
)

// ParLinkConfig describes the click-through protocol of the link task.
type ParLinkConfig struct {
	Field       string
	Consent     string
	Agree       string
	Results     string
	Marker      string
	MarkerQuery string
	LinkQuery   string
	Placeholder string
}

// DefaultParLinkConfig returns the protocol of the public assessment report search.
func DefaultParLinkConfig() ParLinkConfig {
	return ParLinkConfig{
		Field:       "PAR Link",
		Consent:     "#agree-checkbox",
		Agree:       "//button[contains(text(), 'Agree')]",
		Results:     "div.search-result",
		Marker:      "PAR",
		MarkerQuery: "p.icon",
		LinkQuery:   "a.doc-type-par",
		Placeholder: "PAR link not found",
	}
}

// ParLinkExtractor opens the row's source page in a browser, accepts the
// disclaimer and returns the link of the first result whose marker matches.
// Any failed or timed-out step yields not_found.
type ParLinkExtractor struct {
	browser harvest.Browser
	cfg     ParLinkConfig
}

// NewParLink builds the extractor. Empty cfg fields take their defaults.
func NewParLink(browser harvest.Browser, cfg ParLinkConfig) (*ParLinkExtractor, error) {
	if browser == nil {
		return nil, fmt.Errorf("browser is required")
	}
	def := DefaultParLinkConfig()
	for _, pair := range []struct {
		dst *string
		def string
	}{
		{&cfg.Field, def.Field},
		{&cfg.Consent, def.Consent},
		{&cfg.Agree, def.Agree},
		{&cfg.Results, def.Results},
		{&cfg.Marker, def.Marker},
		{&cfg.MarkerQuery, def.MarkerQuery},
		{&cfg.LinkQuery, def.LinkQuery},
		{&cfg.Placeholder, def.Placeholder},
	} {
		if *pair.dst == "" {
			*pair.dst = pair.def
		}
	}
	return &ParLinkExtractor{browser: browser, cfg: cfg}, nil
}

// Fields implements harvest.Extractor.
func (e *ParLinkExtractor) Fields() []string {
	return []string{e.cfg.Field}
}

// Extract implements harvest.Extractor.
func (e *ParLinkExtractor) Extract(ctx context.Context, item harvest.WorkItem) (harvest.Outcome, error) {
	if !item.HasSource() {
		return harvest.NoSourceOutcome(item.Key, e.Fields()), nil
	}
	var link string
	err := e.browser.Visit(ctx, strings.TrimSpace(item.Source()), func(page harvest.BrowserPage) error {
		var err error
		link, err = e.run(page)
		return err
	})
	if err != nil {
		return harvest.FailAll(item.Key, e.Fields(), e.notFound(err)), nil
	}
	return harvest.Outcome{Key: item.Key, Fields: []harvest.FieldResult{harvest.Text(e.cfg.Field, link)}}, nil
}

func (e *ParLinkExtractor) run(page harvest.BrowserPage) (string, error) {
	if err := page.Click(e.cfg.Consent); err != nil {
		return "", err
	}
	if err := page.Click(e.cfg.Agree); err != nil {
		return "", err
	}
	if err := page.WaitVisible(e.cfg.Results); err != nil {
		return "", err
	}
	html, err := page.OuterHTML("html")
	if err != nil {
		return "", err
	}
	base, err := page.Location()
	if err != nil {
		return "", err
	}
	return e.scan(html, base)
}

// scan walks the result elements in document order and returns the absolute
// link of the first one whose marker text equals the target.
func (e *ParLinkExtractor) scan(html, base string) (string, error) {
	doc, err := parseHTML([]byte(html))
	if err != nil {
		return "", err
	}
	var href string
	doc.Find(e.cfg.Results).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if normalize(s.Find(e.cfg.MarkerQuery).First().Text()) != e.cfg.Marker {
			return true
		}
		if v, ok := s.Find(e.cfg.LinkQuery).First().Attr("href"); ok && strings.TrimSpace(v) != "" {
			href = strings.TrimSpace(v)
			return false
		}
		return true
	})
	if href == "" {
		return "", errors.New("no result with matching marker")
	}
	return resolve(base, href), nil
}

func (e *ParLinkExtractor) notFound(cause error) error {
	return &harvest.NotFoundError{
		Anchor:      fmt.Sprintf("%s result", e.cfg.Marker),
		Placeholder: e.cfg.Placeholder,
		Cause:       cause,
	}
}

func resolve(base, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return href
	}
	return b.ResolveReference(ref).String()
}
