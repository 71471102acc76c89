package harvest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleItems() []WorkItem {
	return []WorkItem{
		{Index: 0, Key: "A1", Sources: []string{"https://example.com/a"}, Columns: []string{"A1", "https://example.com/a"}},
		{Index: 1, Key: "B2", Columns: []string{"B2", ""}},
	}
}

func TestNewResultTableRejectsDuplicateKeys(t *testing.T) {
	t.Parallel()

	items := append(sampleItems(), WorkItem{Index: 2, Key: "A1"})
	_, err := NewResultTable([]string{"Code", "URL"}, []string{"Text"}, items)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnreadable)
}

func TestResultTableApplyAndRecords(t *testing.T) {
	t.Parallel()

	table, err := NewResultTable([]string{"Code", "URL"}, []string{"Text", "URL"}, sampleItems())
	require.NoError(t, err)
	assert.Equal(t, []string{"Code", "URL", "Text"}, table.Header())

	// Pending rows keep their input values.
	records := table.Records()
	require.Len(t, records, 2)
	assert.Equal(t, []string{"A1", "https://example.com/a", ""}, records[0])

	require.NoError(t, table.Apply(Outcome{
		Key:    "A1",
		Fields: []FieldResult{Text("Text", "hello"), Text("URL", "https://resolved.example.com")},
	}))
	assert.Equal(t, 1, table.Completed())

	records = table.Records()
	assert.Equal(t, []string{"A1", "https://resolved.example.com", "hello"}, records[0])
	assert.Equal(t, []string{"B2", "", ""}, records[1])
}

func TestResultTableApplyRejectsUnknownAndRepeatedKeys(t *testing.T) {
	t.Parallel()

	table, err := NewResultTable(nil, []string{"Text"}, sampleItems())
	require.NoError(t, err)

	require.Error(t, table.Apply(Outcome{Key: "missing"}))
	require.NoError(t, table.Apply(Outcome{Key: "B2", Fields: []FieldResult{Text("Text", "x")}}))
	require.Error(t, table.Apply(Outcome{Key: "B2", Fields: []FieldResult{Text("Text", "y")}}))

	row, ok := table.Row("B2")
	require.True(t, ok)
	assert.Equal(t, "x", row.Fields[0].Text)
}

func TestResultTableApplyFillsMissingFields(t *testing.T) {
	t.Parallel()

	table, err := NewResultTable(nil, []string{"Ch2 Text", "Ch3 Text"}, sampleItems())
	require.NoError(t, err)
	require.NoError(t, table.Apply(Outcome{Key: "A1", Fields: []FieldResult{Text("Ch3 Text", "three")}}))

	row, ok := table.Row("A1")
	require.True(t, ok)
	require.Len(t, row.Fields, 2)
	assert.Equal(t, FieldFailed, row.Fields[0].Status)
	assert.Equal(t, "three", row.Fields[1].Text)
}

func TestFieldResultCell(t *testing.T) {
	t.Parallel()

	fetchErr := &FetchError{URL: "https://example.com", Err: errors.New("404 Not Found")}
	notFound := &NotFoundError{Anchor: "p.lead", Placeholder: "Lead paragraph not found"}

	tests := []struct {
		name   string
		field  FieldResult
		want   string
		status FieldStatus
	}{
		{name: "ok", field: Text("f", "value"), want: "value", status: FieldOK},
		{name: "fetch error", field: FromError("f", fetchErr), want: "Error: fetch https://example.com: 404 Not Found", status: FieldFailed},
		{name: "not found", field: FromError("f", notFound), want: "Lead paragraph not found", status: FieldNotFound},
		{name: "no source", field: FromError("f", ErrNoSource), want: "", status: FieldNoSource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.field.Cell())
			assert.Equal(t, tt.status, tt.field.Status)
		})
	}
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, &FetchError{URL: "u", Err: errors.New("x")}, ErrFetch)
	assert.ErrorIs(t, &NotFoundError{Anchor: "div"}, ErrStructureNotFound)
	assert.ErrorIs(t, &TransformError{Chunk: 1, Err: errors.New("x")}, ErrTransform)
	assert.NotErrorIs(t, &FetchError{URL: "u", Err: errors.New("x")}, ErrStructureNotFound)
}

func TestOutcomeHelpers(t *testing.T) {
	t.Parallel()

	fields := []string{"a", "b"}
	failed := FailAll("k", fields, errors.New("boom"))
	assert.Equal(t, 2, failed.Failures())
	f, ok := failed.Field("b")
	require.True(t, ok)
	assert.Equal(t, "Error: boom", f.Cell())

	none := NoSourceOutcome("k", fields)
	assert.Equal(t, 0, none.Failures())
	for _, field := range none.Fields {
		assert.Equal(t, FieldNoSource, field.Status)
	}
}
