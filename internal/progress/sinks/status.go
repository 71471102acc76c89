package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/worklist-harvester/internal/progress"
)

// Snapshot is the latest known state of a run.
type Snapshot struct {
	RunID           string    `json:"run_id,omitempty"`
	Task            string    `json:"task,omitempty"`
	State           string    `json:"state"`
	Processed       int       `json:"processed"`
	Total           int       `json:"total"`
	FailedFields    int       `json:"failed_fields"`
	Checkpoints     int       `json:"checkpoints"`
	LastDestination string    `json:"last_destination,omitempty"`
	LastCheckpoint  time.Time `json:"last_checkpoint,omitempty"`
	Note            string    `json:"note,omitempty"`
}

// StatusTracker keeps an in-memory Snapshot for the status endpoint.
type StatusTracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewStatusTracker returns a tracker in the idle state.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{snap: Snapshot{State: "idle"}}
}

// Consume folds the batch into the snapshot.
func (s *StatusTracker) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		if evt.Processed > s.snap.Processed {
			s.snap.Processed = evt.Processed
		}
		switch evt.Stage {
		case progress.StageRunStart:
			s.snap = Snapshot{
				RunID: evt.RunUUID().String(),
				Task:  evt.Task,
				State: "running",
				Total: evt.Total,
			}
		case progress.StageRowDone:
			s.snap.FailedFields += evt.Failures
		case progress.StageCheckpoint:
			s.snap.Checkpoints++
			s.snap.LastDestination = evt.Destination
			s.snap.LastCheckpoint = evt.TS
		case progress.StageCheckpointFailed:
			s.snap.Note = evt.Note
		case progress.StageRunDone:
			s.snap.State = "done"
		case progress.StageRunError:
			s.snap.State = "error"
			s.snap.Note = evt.Note
		}
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (s *StatusTracker) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Close implements the Sink interface; it performs no action.
func (s *StatusTracker) Close(context.Context) error {
	return nil
}
