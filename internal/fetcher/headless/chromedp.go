// Package headless drives a Chrome instance through chromedp for pages that
// need JavaScript or a click-through protocol.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/worklist-harvester/internal/harvest"
)

const (
	defaultNavTimeout  = 45 * time.Second
	defaultStepTimeout = 10 * time.Second
)

// Config controls the behavior of the browser.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	StepTimeout       time.Duration
	ExecPath          string
}

// Browser implements harvest.Browser and harvest.Fetcher on top of chromedp.
type Browser struct {
	cfg         Config
	slots       chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp creates a browser backed by chromedp. Chrome is launched lazily
// on the first Visit or Fetch.
func NewChromedp(cfg Config) (*Browser, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavTimeout
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = defaultStepTimeout
	}
	var slots chan struct{}
	if cfg.MaxParallel > 0 {
		slots = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Browser{
		cfg:         cfg,
		slots:       slots,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close shuts down Chrome.
func (b *Browser) Close() {
	b.allocCancel()
}

// Visit navigates a new tab to url and runs fn against it. The whole visit is
// bounded by the navigation timeout; each page step by the step timeout.
func (b *Browser) Visit(ctx context.Context, url string, fn func(harvest.BrowserPage) error) error {
	if err := b.acquire(ctx); err != nil {
		return err
	}
	defer b.release()

	tabCtx, tabCancel := chromedp.NewContext(b.allocator)
	defer tabCancel()
	tabCtx, cancel := context.WithTimeout(tabCtx, b.cfg.NavigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(tabCtx, b.networkSetupAction(nil), chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return fn(&page{ctx: tabCtx, step: b.cfg.StepTimeout})
}

// Fetch navigates with the browser and returns the fully rendered DOM.
func (b *Browser) Fetch(ctx context.Context, request harvest.FetchRequest) (harvest.FetchResponse, error) {
	if request.URL == "" {
		return harvest.FetchResponse{}, harvest.ErrNoSource
	}
	if err := b.acquire(ctx); err != nil {
		return harvest.FetchResponse{}, &harvest.FetchError{URL: request.URL, Err: err}
	}
	defer b.release()

	taskCtx, taskCancel := chromedp.NewContext(b.allocator)
	defer taskCancel()
	taskCtx, cancel := context.WithTimeout(taskCtx, b.cfg.NavigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	start := time.Now()
	var html, finalURL string
	actions := []chromedp.Action{
		b.networkSetupAction(request.Headers),
		chromedp.Navigate(request.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return harvest.FetchResponse{}, &harvest.FetchError{URL: request.URL, Err: fmt.Errorf("chromedp run: %w", err)}
	}

	status, headers, responseURL := meta.snapshotWithFallbacks(request.URL, finalURL)
	if status >= http.StatusBadRequest {
		return harvest.FetchResponse{}, &harvest.FetchError{URL: request.URL, Err: fmt.Errorf("status %d", status)}
	}
	return harvest.FetchResponse{
		URL:        responseURL,
		StatusCode: status,
		Headers:    headers,
		Body:       []byte(html),
		Duration:   time.Since(start),
	}, nil
}

func (b *Browser) networkSetupAction(headers http.Header) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if b.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(b.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if len(headers) > 0 {
			if err := network.SetExtraHTTPHeaders(toNetworkHeaders(headers)).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return nil
	})
}

func (b *Browser) acquire(ctx context.Context) error {
	if b.slots == nil {
		return nil
	}
	select {
	case b.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("browser slot wait canceled: %w", ctx.Err())
	}
}

func (b *Browser) release() {
	if b.slots == nil {
		return
	}
	select {
	case <-b.slots:
	default:
	}
}

// page is a harvest.BrowserPage bound to one tab context.
type page struct {
	ctx  context.Context
	step time.Duration
}

func (p *page) run(what, query string, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(p.ctx, p.step)
	defer cancel()
	if err := chromedp.Run(ctx, actions...); err != nil {
		return fmt.Errorf("%s %q: %w", what, query, err)
	}
	return nil
}

func (p *page) Click(query string) error {
	steps := clickSteps(query)
	actions := make([]chromedp.Action, 0, len(steps))
	for _, s := range steps {
		actions = append(actions, s.action)
	}
	return p.run("click", query, actions...)
}

type step struct {
	name   string
	action chromedp.Action
}

// clickSteps clicks query once it is visible and enabled. Consent buttons are
// rendered disabled until a script enables them.
func clickSteps(query string) []step {
	by := queryOption(query)
	return []step{
		{name: "wait visible", action: chromedp.WaitVisible(query, by)},
		{name: "wait enabled", action: chromedp.WaitEnabled(query, by)},
		{name: "click", action: chromedp.Click(query, by)},
	}
}

func (p *page) WaitVisible(query string) error {
	return p.run("wait visible", query, chromedp.WaitVisible(query, queryOption(query)))
}

func (p *page) OuterHTML(query string) (string, error) {
	var html string
	err := p.run("outer html", query, chromedp.OuterHTML(query, &html, queryOption(query)))
	return html, err
}

func (p *page) Location() (string, error) {
	var loc string
	err := p.run("location", "", chromedp.Location(&loc))
	return loc, err
}

func queryOption(query string) chromedp.QueryOption {
	if strings.HasPrefix(query, "/") {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

type responseMeta struct {
	mu      sync.RWMutex
	status  int
	headers http.Header
	url     string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{
		headers: http.Header{},
	}
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	headers := http.Header{}
	for key, value := range event.Response.Headers {
		switch v := value.(type) {
		case string:
			headers.Add(key, v)
		case []any:
			for _, entry := range v {
				headers.Add(key, fmt.Sprint(entry))
			}
		default:
			headers.Add(key, fmt.Sprint(v))
		}
	}
	m.mu.Lock()
	m.status = int(event.Response.Status)
	m.headers = headers
	m.url = event.Response.URL
	m.mu.Unlock()
}

func (m *responseMeta) captureEvent(ev any) {
	if resp, ok := ev.(*network.EventResponseReceived); ok {
		m.capture(resp)
	}
}

func (m *responseMeta) snapshotWithFallbacks(requestURL, finalURL string) (int, http.Header, string) {
	m.mu.RLock()
	status, headers, url := m.status, m.headers.Clone(), m.url
	m.mu.RUnlock()
	switch {
	case url != "":
	case finalURL != "":
		url = finalURL
	default:
		url = requestURL
	}
	if status == 0 {
		status = http.StatusOK
	}
	if headers == nil {
		headers = http.Header{}
	}
	return status, headers, url
}

func toNetworkHeaders(h http.Header) network.Headers {
	headers := network.Headers{}
	for key, values := range h {
		switch len(values) {
		case 0:
		case 1:
			headers[key] = values[0]
		default:
			headers[key] = append([]string(nil), values...)
		}
	}
	return headers
}
