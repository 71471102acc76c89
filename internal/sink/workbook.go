// Package sink turns the result table into durable checkpoints.
package sink

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/JakeFAU/worklist-harvester/internal/harvest"
)

// ContentType is the MIME type of the encoded workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const defaultSheet = "Sheet1"

// Workbook writes the whole table as an xlsx object, replacing the previous
// checkpoint at the same path.
type Workbook struct {
	store harvest.BlobStore
	path  string
	sheet string
}

// NewWorkbook returns a sink writing to path on store.
func NewWorkbook(store harvest.BlobStore, path, sheet string) (*Workbook, error) {
	if store == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if path == "" {
		return nil, fmt.Errorf("output path is required")
	}
	if sheet == "" {
		sheet = defaultSheet
	}
	return &Workbook{store: store, path: path, sheet: sheet}, nil
}

// Write implements harvest.ResultSink.
func (w *Workbook) Write(ctx context.Context, table *harvest.ResultTable) (string, error) {
	data, err := Encode(table, w.sheet)
	if err != nil {
		return "", err
	}
	dest, err := w.store.PutObject(ctx, w.path, ContentType, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("put %s: %w", w.path, err)
	}
	return dest, nil
}

// Encode renders the header and every row of table into an xlsx workbook.
func Encode(table *harvest.ResultTable, sheet string) ([]byte, error) {
	if sheet == "" {
		sheet = defaultSheet
	}
	f := excelize.NewFile()
	defer f.Close()

	if sheet != defaultSheet {
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			return nil, fmt.Errorf("name sheet: %w", err)
		}
	}
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return nil, fmt.Errorf("open stream writer: %w", err)
	}
	if err := writeRow(sw, 1, table.Header()); err != nil {
		return nil, err
	}
	for i, record := range table.Records() {
		if err := writeRow(sw, i+2, record); err != nil {
			return nil, err
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("flush sheet: %w", err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(sw *excelize.StreamWriter, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := sw.SetRow(cell, cells); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}
