package transform

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/worklist-harvester/internal/harvest"
)

// fakeClock records sleeps instead of waiting and logs them into a shared timeline.
type fakeClock struct {
	mu       sync.Mutex
	sleeps   []time.Duration
	timeline *[]string
	err      error
}

func (c *fakeClock) Now() time.Time { return time.Unix(0, 0) }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	if c.timeline != nil {
		*c.timeline = append(*c.timeline, "sleep")
	}
	return c.err
}

func newChunker(t *testing.T, size int, delay time.Duration, clk harvest.Clock) *Chunker {
	t.Helper()
	c, err := New(Config{MaxChunkSize: size, MinDelay: delay, Clock: clk})
	require.NoError(t, err)
	return c
}

func TestSplit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		size int
		want []string
	}{
		{name: "empty", text: "", size: 3, want: nil},
		{name: "shorter than size", text: "ab", size: 3, want: []string{"ab"}},
		{name: "exact multiple", text: "abcdef", size: 3, want: []string{"abc", "def"}},
		{name: "remainder", text: "abcdefg", size: 3, want: []string{"abc", "def", "g"}},
		{name: "mid word", text: "hello world", size: 4, want: []string{"hell", "o wo", "rld"}},
		{name: "multibyte counted as characters", text: "가나다라마", size: 2, want: []string{"가나", "다라", "마"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Split(tt.text, tt.size))
		})
	}
}

func TestTransformChunkingBoundary(t *testing.T) {
	t.Parallel()

	var timeline []string
	clk := &fakeClock{timeline: &timeline}
	c := newChunker(t, 5000, 500*time.Millisecond, clk)

	var sizes []int
	res, err := c.Transform(context.Background(), strings.Repeat("a", 12000), func(_ context.Context, chunk string) (string, error) {
		sizes = append(sizes, len(chunk))
		timeline = append(timeline, "call")
		return "x", nil
	})
	require.NoError(t, err)
	require.Equal(t, []int{5000, 5000, 2000}, sizes)
	require.Equal(t, 3, res.Calls)
	require.Equal(t, "x x x", res.Text)
	require.Empty(t, res.Warnings)
	require.Equal(t, []string{"call", "sleep", "call", "sleep", "call"}, timeline)
	require.Equal(t, []time.Duration{500 * time.Millisecond, 500 * time.Millisecond}, clk.sleeps)
}

func TestTransformPartialChunkFailure(t *testing.T) {
	t.Parallel()

	c := newChunker(t, 2, 0, &fakeClock{})
	boom := errors.New("429 too many requests")
	res, err := c.Transform(context.Background(), "aabbcc", func(_ context.Context, chunk string) (string, error) {
		if chunk == "bb" {
			return "", boom
		}
		return strings.ToUpper(chunk), nil
	})
	require.NoError(t, err)
	require.Equal(t, "AA CC", res.Text)
	require.Len(t, res.Warnings, 1)

	var te *harvest.TransformError
	require.True(t, errors.As(res.Warnings[0], &te))
	require.Equal(t, 2, te.Chunk)
	require.ErrorIs(t, res.Warnings[0], harvest.ErrTransform)
	require.ErrorIs(t, res.Warnings[0], boom)
}

func TestTransformEmptyInput(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	c := newChunker(t, 10, time.Second, clk)
	res, err := c.Transform(context.Background(), "", func(context.Context, string) (string, error) {
		t.Fatal("transform func must not be called")
		return "", nil
	})
	require.NoError(t, err)
	require.Equal(t, Result{}, res)
	require.Empty(t, clk.sleeps)
}

func TestTransformNoDelayAfterFailure(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	c := newChunker(t, 1, time.Second, clk)
	_, err := c.Transform(context.Background(), "abc", func(_ context.Context, chunk string) (string, error) {
		if chunk == "a" {
			return "", errors.New("fail")
		}
		return chunk, nil
	})
	require.NoError(t, err)
	// "a" failed (no sleep), "b" succeeded (sleep), "c" is last (no sleep).
	require.Len(t, clk.sleeps, 1)
}

func TestTransformCancelledDuringDelay(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{err: context.Canceled}
	c := newChunker(t, 1, time.Second, clk)
	calls := 0
	res, err := c.Transform(context.Background(), "abc", func(_ context.Context, chunk string) (string, error) {
		calls++
		return chunk, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
	require.Equal(t, "a", res.Text)
}

func TestTransformCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := newChunker(t, 1, 0, &fakeClock{})
	res, err := c.Transform(ctx, "abc", func(context.Context, string) (string, error) {
		t.Fatal("transform func must not be called")
		return "", nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, res.Calls)
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(Config{MaxChunkSize: 0, Clock: &fakeClock{}})
	require.Error(t, err)
	_, err = New(Config{MaxChunkSize: 1, MinDelay: -time.Second, Clock: &fakeClock{}})
	require.Error(t, err)
	_, err = New(Config{MaxChunkSize: 1})
	require.Error(t, err)
}
