package harvest

import (
	"fmt"
)

// Row is one entry of the ResultTable.
type Row struct {
	Item      WorkItem
	Fields    []FieldResult
	Warnings  []string
	Completed bool
}

// ResultTable maps row keys to extracted fields for the lifetime of a run. It
// holds every worklist row from the start, in worklist order, so any snapshot
// is a complete table. It is not safe for concurrent mutation; the pipeline
// coordinator is its only writer.
type ResultTable struct {
	header    []string
	fields    []string
	rows      []Row
	index     map[string]int
	completed int
}

// NewResultTable builds a table holding one pending row per item. header names
// the input columns carried by each item; fields names the extracted columns.
func NewResultTable(header []string, fields []string, items []WorkItem) (*ResultTable, error) {
	t := &ResultTable{
		header: append([]string(nil), header...),
		fields: append([]string(nil), fields...),
		rows:   make([]Row, 0, len(items)),
		index:  make(map[string]int, len(items)),
	}
	for _, item := range items {
		if _, dup := t.index[item.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate row key %q", ErrSourceUnreadable, item.Key)
		}
		t.index[item.Key] = len(t.rows)
		t.rows = append(t.rows, Row{Item: item})
	}
	return t, nil
}

// Apply records the outcome for its row. All of the row's fields change in one
// call. Unknown keys and second outcomes for the same row are rejected.
func (t *ResultTable) Apply(outcome Outcome) error {
	i, ok := t.index[outcome.Key]
	if !ok {
		return fmt.Errorf("unknown row key %q", outcome.Key)
	}
	row := &t.rows[i]
	if row.Completed {
		return fmt.Errorf("row %q already completed", outcome.Key)
	}
	complete := outcome.Complete(t.fields)
	row.Fields = complete.Fields
	row.Warnings = append([]string(nil), complete.Warnings...)
	row.Completed = true
	t.completed++
	return nil
}

// Len returns the number of rows.
func (t *ResultTable) Len() int {
	return len(t.rows)
}

// Completed returns the number of rows with an applied outcome.
func (t *ResultTable) Completed() int {
	return t.completed
}

// Fields returns the extracted column names.
func (t *ResultTable) Fields() []string {
	return append([]string(nil), t.fields...)
}

// Keys returns the row keys in worklist order.
func (t *ResultTable) Keys() []string {
	keys := make([]string, len(t.rows))
	for i, r := range t.rows {
		keys[i] = r.Item.Key
	}
	return keys
}

// Row returns a copy of the row stored under key.
func (t *ResultTable) Row(key string) (Row, bool) {
	i, ok := t.index[key]
	if !ok {
		return Row{}, false
	}
	row := t.rows[i]
	row.Fields = append([]FieldResult(nil), row.Fields...)
	row.Warnings = append([]string(nil), row.Warnings...)
	return row, true
}

// Rows returns copies of all rows in worklist order.
func (t *ResultTable) Rows() []Row {
	out := make([]Row, 0, len(t.rows))
	for _, r := range t.rows {
		row, _ := t.Row(r.Item.Key)
		out = append(out, row)
	}
	return out
}

// Header returns the output header: input columns followed by extracted columns
// that do not already exist in the input.
func (t *ResultTable) Header() []string {
	header := append([]string(nil), t.header...)
	for _, f := range t.fields {
		if indexOf(t.header, f) < 0 {
			header = append(header, f)
		}
	}
	return header
}

// Records renders every row as cells aligned with Header. Pending rows keep
// their input values and leave extracted columns empty.
func (t *ResultTable) Records() [][]string {
	header := t.Header()
	out := make([][]string, 0, len(t.rows))
	for _, r := range t.rows {
		cells := make([]string, len(header))
		copy(cells, r.Item.Columns)
		if r.Completed {
			for _, f := range r.Fields {
				cells[indexOf(header, f.Name)] = f.Cell()
			}
		}
		out = append(out, cells)
	}
	return out
}

func indexOf(values []string, target string) int {
	for i, v := range values {
		if v == target {
			return i
		}
	}
	return -1
}
