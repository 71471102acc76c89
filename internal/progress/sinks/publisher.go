package sinks

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/worklist-harvester/internal/harvest"
	"github.com/JakeFAU/worklist-harvester/internal/progress"
)

// PublisherSink forwards checkpoint and run-level milestones to a topic so
// downstream consumers can pick up each saved table. Row events are skipped.
type PublisherSink struct {
	publisher harvest.Publisher
	topic     string
	logger    *zap.Logger
}

// NewPublisherSink builds a sink publishing to topic.
func NewPublisherSink(publisher harvest.Publisher, topic string, logger *zap.Logger) *PublisherSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublisherSink{publisher: publisher, topic: topic, logger: logger}
}

// Consume publishes one message per relevant event and stops at the first failure.
func (s *PublisherSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.publisher == nil || s.topic == "" {
		return nil
	}
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageCheckpoint, progress.StageRunDone, progress.StageRunError:
		default:
			continue
		}
		id, err := s.publisher.Publish(ctx, s.topic, payloadFor(evt))
		if err != nil {
			return fmt.Errorf("publish %s event: %w", evt.Stage, err)
		}
		s.logger.Debug("progress published", zap.String("stage", string(evt.Stage)), zap.String("message_id", id))
	}
	return nil
}

func payloadFor(evt progress.Event) map[string]any {
	payload := map[string]any{
		"run_id":    evt.RunUUID().String(),
		"stage":     string(evt.Stage),
		"processed": evt.Processed,
		"total":     evt.Total,
		"timestamp": evt.TS.UTC().Format(time.RFC3339),
	}
	if evt.Task != "" {
		payload["task"] = evt.Task
	}
	if evt.Destination != "" {
		payload["destination"] = evt.Destination
	}
	if evt.Note != "" {
		payload["note"] = evt.Note
	}
	return payload
}

// Close implements the Sink interface; it performs no action.
func (s *PublisherSink) Close(context.Context) error {
	return nil
}
