// Package progress defines the event structures emitted by the harvest pipeline.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart         Stage = "RUN_START"
	StageRowDone          Stage = "ROW_DONE"
	StageCheckpoint       Stage = "CHECKPOINT"
	StageCheckpointFailed Stage = "CHECKPOINT_FAILED"
	StageRunDone          Stage = "RUN_DONE"
	StageRunError         Stage = "RUN_ERROR"
)

// Event captures a single milestone of a harvest run.
type Event struct {
	// RunID uniquely identifies the run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Task names the extraction task (html, chapters, translate, ...).
	Task string
	// Key is the row key for ROW_DONE events.
	Key string
	// Processed is the number of completed rows at emission time.
	Processed int
	// Total is the number of rows in the worklist.
	Total int
	// Failures counts failed or not-found fields (per row for ROW_DONE).
	Failures int
	// Destination is the sink destination for checkpoint events.
	Destination string
	// Dur captures row latency, checkpoint write time, or run wall time.
	Dur time.Duration
	// Note lets emitters attach low-volume context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError, StageCheckpointFailed:
	case StageRowDone:
		if e.Key == "" {
			return errors.New("row done requires key")
		}
	case StageCheckpoint:
		if e.Destination == "" {
			return errors.New("checkpoint requires destination")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Processed < 0 || e.Total < 0 {
		return errors.New("counts must be >= 0")
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
