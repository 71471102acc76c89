// Package transform runs a rate-limited text service over bounded-size chunks
// of a field and reassembles the output.
package transform

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/JakeFAU/worklist-harvester/internal/harvest"
)

// Func transforms one chunk. It is never called concurrently by a Chunker.
type Func func(ctx context.Context, chunk string) (string, error)

// Config sizes chunks and spaces out calls.
type Config struct {
	// MaxChunkSize is the maximum chunk length in characters.
	MaxChunkSize int
	// MinDelay is waited after every successful call that is followed by another chunk.
	MinDelay time.Duration
	Clock    harvest.Clock
	Logger   *zap.Logger
}

// Result is the reassembled text plus one *harvest.TransformError per skipped chunk.
type Result struct {
	Text     string
	Warnings []error
	Calls    int
}

// Chunker applies a Func chunk by chunk.
type Chunker struct {
	cfg    Config
	logger *zap.Logger
}

// New validates cfg and returns a Chunker.
func New(cfg Config) (*Chunker, error) {
	if cfg.MaxChunkSize <= 0 {
		return nil, fmt.Errorf("max chunk size must be > 0")
	}
	if cfg.MinDelay < 0 {
		return nil, fmt.Errorf("min delay must be >= 0")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chunker{cfg: cfg, logger: logger}, nil
}

// Split cuts text into consecutive pieces of at most size characters. It does
// not look for word boundaries, so a word can be split across two chunks.
func Split(text string, size int) []string {
	if text == "" || size <= 0 {
		return nil
	}
	chunks := make([]string, 0, utf8.RuneCountInString(text)/size+1)
	start, n := 0, 0
	for i := range text {
		if n == size {
			chunks = append(chunks, text[start:i])
			start, n = i, 0
		}
		n++
	}
	return append(chunks, text[start:])
}

// Transform calls fn once per chunk, strictly in order. A failed chunk is
// skipped and reported in Result.Warnings; the outputs of the remaining chunks
// are joined by a single space. Cancellation returns the partial result.
func (c *Chunker) Transform(ctx context.Context, text string, fn Func) (Result, error) {
	chunks := Split(text, c.cfg.MaxChunkSize)
	var (
		res  Result
		done = make([]string, 0, len(chunks))
	)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			res.Text = strings.Join(done, " ")
			return res, fmt.Errorf("transform interrupted at chunk %d: %w", i+1, err)
		}
		res.Calls++
		out, err := fn(ctx, chunk)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				res.Text = strings.Join(done, " ")
				return res, fmt.Errorf("transform interrupted at chunk %d: %w", i+1, err)
			}
			c.logger.Warn("chunk transform failed",
				zap.Int("chunk", i+1),
				zap.Int("chunks", len(chunks)),
				zap.Error(err),
			)
			res.Warnings = append(res.Warnings, &harvest.TransformError{Chunk: i + 1, Err: err})
			continue
		}
		done = append(done, out)
		if i == len(chunks)-1 {
			break
		}
		if err := c.cfg.Clock.Sleep(ctx, c.cfg.MinDelay); err != nil {
			res.Text = strings.Join(done, " ")
			return res, fmt.Errorf("transform delay after chunk %d: %w", i+1, err)
		}
	}
	res.Text = strings.Join(done, " ")
	return res, nil
}
