// Package harvest defines the core types and contracts shared by the worklist pipeline,
// its extractors, and its result sinks.
package harvest

import (
	"errors"
	"strings"
)

// WorkItem is one worklist row. It is built once by the row source and never mutated.
type WorkItem struct {
	// Index is the zero-based position of the row in the worklist.
	Index int
	// Key uniquely identifies the row within the worklist.
	Key string
	// Sources holds the non-empty source references (URLs or document links).
	Sources []string
	// Columns holds the original cell values in header order.
	Columns []string
}

// Source returns the first source reference, or "" when the row has none.
func (w WorkItem) Source() string {
	if len(w.Sources) == 0 {
		return ""
	}
	return w.Sources[0]
}

// HasSource reports whether the row carries at least one source reference.
func (w WorkItem) HasSource() bool {
	return strings.TrimSpace(w.Source()) != ""
}

// FieldStatus classifies a single extracted field.
type FieldStatus string

// Field status values.
const (
	FieldOK       FieldStatus = "ok"
	FieldFailed   FieldStatus = "failed"
	FieldNotFound FieldStatus = "not_found"
	FieldNoSource FieldStatus = "no_source"
)

// FieldResult is the outcome of extracting one named field.
type FieldResult struct {
	Name   string
	Status FieldStatus
	Text   string
	Err    error
}

// Text builds a successful field.
func Text(name, text string) FieldResult {
	return FieldResult{Name: name, Status: FieldOK, Text: text}
}

// NoSource builds the placeholder for a row without a source reference.
func NoSource(name string) FieldResult {
	return FieldResult{Name: name, Status: FieldNoSource}
}

// FromError classifies err into a failed or not-found field.
func FromError(name string, err error) FieldResult {
	var nf *NotFoundError
	switch {
	case err == nil:
		return Text(name, "")
	case errors.As(err, &nf):
		return FieldResult{Name: name, Status: FieldNotFound, Text: nf.Placeholder, Err: err}
	case errors.Is(err, ErrNoSource):
		return NoSource(name)
	default:
		return FieldResult{Name: name, Status: FieldFailed, Err: err}
	}
}

// OK reports whether the field carries extracted text.
func (f FieldResult) OK() bool {
	return f.Status == FieldOK
}

// Cell renders the value written to the result table. Failures stay visible so a
// reviewer can see which rows and fields failed and why.
func (f FieldResult) Cell() string {
	switch f.Status {
	case FieldOK, FieldNotFound:
		return f.Text
	case FieldFailed:
		if f.Err == nil {
			return "Error"
		}
		return "Error: " + f.Err.Error()
	default:
		return ""
	}
}

// Outcome is the result of processing one WorkItem. Failures are recorded per field.
type Outcome struct {
	Key      string
	Fields   []FieldResult
	Warnings []string
}

// Field returns the named field result.
func (o Outcome) Field(name string) (FieldResult, bool) {
	for _, f := range o.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldResult{}, false
}

// Failures counts fields that did not produce text.
func (o Outcome) Failures() int {
	n := 0
	for _, f := range o.Fields {
		if f.Status == FieldFailed || f.Status == FieldNotFound {
			n++
		}
	}
	return n
}

// FailAll builds an Outcome where every field carries err.
func FailAll(key string, fields []string, err error) Outcome {
	out := Outcome{Key: key, Fields: make([]FieldResult, 0, len(fields))}
	for _, name := range fields {
		out.Fields = append(out.Fields, FromError(name, err))
	}
	return out
}

// NoSourceOutcome builds the Outcome for a row whose source reference is empty.
func NoSourceOutcome(key string, fields []string) Outcome {
	out := Outcome{Key: key, Fields: make([]FieldResult, 0, len(fields))}
	for _, name := range fields {
		out.Fields = append(out.Fields, NoSource(name))
	}
	return out
}

// Complete returns o with every name in fields present, in fields order. Missing
// fields are recorded as failures so no declared column is silently dropped.
func (o Outcome) Complete(fields []string) Outcome {
	byName := make(map[string]FieldResult, len(o.Fields))
	for _, f := range o.Fields {
		byName[f.Name] = f
	}
	out := Outcome{Key: o.Key, Warnings: o.Warnings, Fields: make([]FieldResult, 0, len(fields))}
	for _, name := range fields {
		f, ok := byName[name]
		if !ok {
			f = FieldResult{Name: name, Status: FieldFailed, Err: errors.New("field not produced")}
		}
		out.Fields = append(out.Fields, f)
	}
	return out
}
