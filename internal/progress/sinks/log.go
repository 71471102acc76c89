package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/worklist-harvester/internal/progress"
)

// LogSink emits structured logs for each progress event. Checkpoints are the
// operator heartbeat during long runs, so they log at info level; row
// completions log at debug.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunUUID().String()),
			zap.String("stage", string(evt.Stage)),
			zap.Int("processed", evt.Processed),
			zap.Int("total", evt.Total),
		}
		switch evt.Stage {
		case progress.StageRowDone:
			s.logger.Debug("row processed", append(fields,
				zap.String("key", evt.Key),
				zap.Int("failed_fields", evt.Failures),
				zap.Duration("dur", evt.Dur),
			)...)
		case progress.StageCheckpoint:
			s.logger.Info("progress saved", append(fields,
				zap.String("destination", evt.Destination),
				zap.Duration("dur", evt.Dur),
			)...)
		case progress.StageCheckpointFailed, progress.StageRunError:
			s.logger.Warn("run problem", append(fields, zap.String("note", evt.Note))...)
		default:
			s.logger.Info("run event", append(fields,
				zap.String("task", evt.Task),
				zap.Duration("dur", evt.Dur),
			)...)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
