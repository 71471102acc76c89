package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/worklist-harvester/internal/harvest"
	"github.com/JakeFAU/worklist-harvester/internal/progress"
)

// coordinator is the only writer of the table. It runs on the Run goroutine.
type coordinator struct {
	p     *Pipeline
	table *harvest.ResultTable
	total int

	processed int
	written   int
	failures  int
}

func (c *coordinator) apply(ctx context.Context, res completion) {
	if err := c.table.Apply(res.outcome); err != nil {
		c.p.logger.Error("discarding outcome", zap.String("key", res.outcome.Key), zap.Error(err))
		return
	}
	c.processed++
	failed := res.outcome.Failures()
	c.failures += failed
	c.p.emit(progress.Event{
		Stage:     progress.StageRowDone,
		Key:       res.outcome.Key,
		Processed: c.processed,
		Total:     c.total,
		Failures:  failed,
		Dur:       res.dur,
	})
	if c.processed%c.p.cfg.CheckpointEvery == 0 {
		// A failed write leaves the table dirty; the next boundary or the
		// final flush retries it.
		_ = c.checkpoint(ctx)
	}
}

func (c *coordinator) checkpoint(ctx context.Context) error {
	start := c.p.clock.Now()
	dest, err := c.p.sink.Write(ctx, c.table)
	dur := c.p.clock.Now().Sub(start)
	if err != nil {
		c.p.logger.Error("checkpoint failed",
			zap.Int("processed", c.processed),
			zap.Int("total", c.total),
			zap.Error(err),
		)
		c.p.emit(progress.Event{
			Stage:     progress.StageCheckpointFailed,
			Processed: c.processed,
			Total:     c.total,
			Dur:       dur,
			Note:      err.Error(),
		})
		return err
	}
	c.written = c.processed
	c.p.logger.Info("checkpoint written",
		zap.Int("processed", c.processed),
		zap.Int("total", c.total),
		zap.String("destination", dest),
		zap.Duration("took", dur),
	)
	c.p.emit(progress.Event{
		Stage:       progress.StageCheckpoint,
		Processed:   c.processed,
		Total:       c.total,
		Destination: dest,
		Dur:         dur,
	})
	return nil
}
