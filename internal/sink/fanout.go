package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JakeFAU/worklist-harvester/internal/harvest"
)

// Fanout writes the table to every sink in order. The write fails if any
// sink fails; because every sink fully overwrites, the next checkpoint
// rewrites all of them.
type Fanout []harvest.ResultSink

// Write implements harvest.ResultSink. The destination lists every written
// target separated by commas.
func (f Fanout) Write(ctx context.Context, table *harvest.ResultTable) (string, error) {
	var (
		dests []string
		errs  []error
	)
	for _, s := range f {
		dest, err := s.Write(ctx, table)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		dests = append(dests, dest)
	}
	joined := strings.Join(dests, ",")
	if err := errors.Join(errs...); err != nil {
		return joined, fmt.Errorf("fanout write: %w", err)
	}
	return joined, nil
}
