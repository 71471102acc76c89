// Package pipeline runs an Extractor over every row of a worklist with a fixed
// pool of workers. A single coordinator goroutine owns the ResultTable, applies
// each row's Outcome, and writes the full table to the ResultSink every
// CheckpointEvery completed rows and once more at the end of the run.
package pipeline
