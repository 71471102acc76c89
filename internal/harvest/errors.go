package harvest

import (
	"errors"
	"fmt"
)

// Error classes shared across extractors, sinks, and the pipeline.
var (
	// ErrFetch marks network/transport failures and non-success statuses.
	ErrFetch = errors.New("fetch failed")
	// ErrStructureNotFound marks an expected anchor missing from fetched content.
	ErrStructureNotFound = errors.New("structure not found")
	// ErrTransform marks a failed text-transformation call for a single chunk.
	ErrTransform = errors.New("transform failed")
	// ErrNoSource marks a work item without a usable source reference.
	ErrNoSource = errors.New("no source reference")
	// ErrSourceUnreadable is fatal to a run: no worklist could be built.
	ErrSourceUnreadable = errors.New("source unreadable")
	// ErrSinkUnwritable is returned when the result table cannot be persisted.
	ErrSinkUnwritable = errors.New("sink unwritable")
)

// FetchError records a failed document retrieval.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap exposes the transport error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is reports ErrFetch as a match so callers can classify without a type assertion.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}

// NotFoundError records an absent structural anchor (tag, title, page, link).
// Placeholder is the visible text stored in the output cell.
type NotFoundError struct {
	Anchor      string
	Placeholder string
	Cause       error
}

func (e *NotFoundError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s not found: %v", e.Anchor, e.Cause)
	}
	return fmt.Sprintf("%s not found", e.Anchor)
}

// Unwrap exposes the underlying cause, if any.
func (e *NotFoundError) Unwrap() error {
	return e.Cause
}

// Is reports ErrStructureNotFound as a match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrStructureNotFound
}

// TransformError records the failure of one chunk in a chunked transformation.
type TransformError struct {
	Chunk int
	Err   error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("chunk %d: %v", e.Chunk, e.Err)
}

// Unwrap exposes the service error.
func (e *TransformError) Unwrap() error {
	return e.Err
}

// Is reports ErrTransform as a match.
func (e *TransformError) Is(target error) bool {
	return target == ErrTransform
}
