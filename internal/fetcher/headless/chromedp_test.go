package headless

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/worklist-harvester/internal/harvest"
)

var (
	_ harvest.Browser = (*Browser)(nil)
	_ harvest.Fetcher = (*Browser)(nil)
)

func TestNewChromedpDefaults(t *testing.T) {
	t.Parallel()

	_, err := NewChromedp(Config{MaxParallel: -1})
	require.Error(t, err)

	b, err := NewChromedp(Config{MaxParallel: 2})
	require.NoError(t, err)
	defer b.Close()
	require.Equal(t, 2, cap(b.slots))
	require.Equal(t, defaultNavTimeout, b.cfg.NavigationTimeout)
	require.Equal(t, defaultStepTimeout, b.cfg.StepTimeout)
}

func TestAcquireHonoursContext(t *testing.T) {
	t.Parallel()

	b := &Browser{slots: make(chan struct{}, 1)}
	require.NoError(t, b.acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.Error(t, b.acquire(ctx))

	b.release()
	require.NoError(t, b.acquire(context.Background()))
}

func TestClickWaitsForEnabledControl(t *testing.T) {
	t.Parallel()

	for _, query := range []string{"#agree", "//button[text()='Agree']"} {
		steps := clickSteps(query)
		names := make([]string, 0, len(steps))
		for _, s := range steps {
			require.NotNil(t, s.action)
			names = append(names, s.name)
		}
		require.Equal(t, []string{"wait visible", "wait enabled", "click"}, names, query)
	}
}

func TestFetchEmptyURL(t *testing.T) {
	t.Parallel()

	b := &Browser{}
	_, err := b.Fetch(context.Background(), harvest.FetchRequest{})
	require.ErrorIs(t, err, harvest.ErrNoSource)
}

func TestToNetworkHeaders(t *testing.T) {
	t.Parallel()

	netHeaders := toNetworkHeaders(http.Header{"X-Test": {"a", "b"}, "X-One": {"1"}, "X-None": {}})
	require.Equal(t, []string{"a", "b"}, netHeaders["X-Test"])
	require.Equal(t, "1", netHeaders["X-One"])
	_, ok := netHeaders["X-None"]
	require.False(t, ok)
}

func TestResponseMetaCaptureAndFallbacks(t *testing.T) {
	t.Parallel()

	meta := newResponseMeta()
	meta.captureEvent(&network.EventResponseReceived{
		Type: network.ResourceTypeDocument,
		Response: &network.Response{
			Status:  204,
			URL:     "https://example.com/rendered",
			Headers: network.Headers{"X-Request-ID": "abc"},
		},
	})
	status, headers, url := meta.snapshotWithFallbacks("https://req", "")
	require.Equal(t, 204, status)
	require.Equal(t, "abc", headers.Get("X-Request-ID"))
	require.Equal(t, "https://example.com/rendered", url)

	meta = newResponseMeta()
	status, _, url = meta.snapshotWithFallbacks("https://req", "https://final")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "https://final", url)

	_, _, url = newResponseMeta().snapshotWithFallbacks("https://req", "")
	require.Equal(t, "https://req", url)
}
