// Package rowsource reads the worklist spreadsheet into work items.
package rowsource

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JakeFAU/worklist-harvester/internal/harvest"
)

// Placeholder is substituted by the cell value in SourceTemplate.
const Placeholder = "{value}"

// Options selects the sheet and the columns that identify and locate each row.
type Options struct {
	Path string
	// Sheet defaults to the first sheet of the workbook.
	Sheet string
	// KeyColumn names the header of the row key. Empty keys rows by spreadsheet row number.
	KeyColumn string
	// SourceColumns name the headers carrying source references. Defaults to KeyColumn.
	SourceColumns []string
	// SourceTemplate, when set, turns each source cell into a reference by
	// replacing Placeholder, e.g. https://host/drb/{value}/EE.
	SourceTemplate string
}

// Worklist is the parsed input: its header and one item per data row.
type Worklist struct {
	Header []string
	Items  []harvest.WorkItem
	// Skipped lists the 1-based spreadsheet rows dropped because every cell was blank.
	Skipped []int
}

// Load opens opts.Path and reads it. Every failure wraps harvest.ErrSourceUnreadable.
func Load(ctx context.Context, opts Options) (Worklist, error) {
	f, err := os.Open(opts.Path)
	if err != nil {
		return Worklist{}, fmt.Errorf("%w: open %s: %v", harvest.ErrSourceUnreadable, opts.Path, err)
	}
	defer f.Close()
	return Read(ctx, f, opts)
}

// Read parses an xlsx stream.
func Read(ctx context.Context, r io.Reader, opts Options) (Worklist, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return Worklist{}, unreadable("open workbook: %v", err)
	}
	defer wb.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheet = wb.GetSheetName(0)
	}
	if idx, err := wb.GetSheetIndex(sheet); err != nil || idx == -1 {
		return Worklist{}, unreadable("sheet %q not found", sheet)
	}
	rows, err := wb.GetRows(sheet)
	if err != nil {
		return Worklist{}, unreadable("read sheet %q: %v", sheet, err)
	}
	if len(rows) == 0 {
		return Worklist{}, unreadable("sheet %q has no header row", sheet)
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}
	// Cells past the header keep their values under generated names.
	for _, raw := range rows[1:] {
		for i := len(header); i < len(raw); i++ {
			header = append(header, unnamedColumn(i))
		}
	}
	keyCol := -1
	if opts.KeyColumn != "" {
		if keyCol = indexOf(header, opts.KeyColumn); keyCol < 0 {
			return Worklist{}, unreadable("key column %q not found", opts.KeyColumn)
		}
	}
	sourceNames := opts.SourceColumns
	if len(sourceNames) == 0 && opts.KeyColumn != "" {
		sourceNames = []string{opts.KeyColumn}
	}
	if len(sourceNames) == 0 {
		return Worklist{}, unreadable("no source column configured")
	}
	sourceCols := make([]int, 0, len(sourceNames))
	for _, name := range sourceNames {
		idx := indexOf(header, name)
		if idx < 0 {
			return Worklist{}, unreadable("source column %q not found", name)
		}
		sourceCols = append(sourceCols, idx)
	}

	wl := Worklist{Header: header, Items: make([]harvest.WorkItem, 0, len(rows)-1)}
	seen := make(map[string]int, len(rows)-1)
	for i, raw := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return Worklist{}, fmt.Errorf("read worklist: %w", err)
		}
		rowNum := i + 2
		if blank(raw) {
			wl.Skipped = append(wl.Skipped, rowNum)
			continue
		}
		cols := make([]string, len(header))
		copy(cols, raw)

		key := ""
		if keyCol >= 0 {
			key = strings.TrimSpace(cols[keyCol])
		}
		if key == "" {
			key = "row-" + strconv.Itoa(rowNum)
		}
		if prev, dup := seen[key]; dup {
			return Worklist{}, unreadable("duplicate key %q on rows %d and %d", key, prev, rowNum)
		}
		seen[key] = rowNum

		wl.Items = append(wl.Items, harvest.WorkItem{
			Index:   len(wl.Items),
			Key:     key,
			Sources: sources(cols, sourceCols, opts.SourceTemplate),
			Columns: cols,
		})
	}
	return wl, nil
}

func sources(cols []string, idx []int, template string) []string {
	var out []string
	for _, i := range idx {
		v := strings.TrimSpace(cols[i])
		if v == "" {
			continue
		}
		if template != "" {
			v = strings.ReplaceAll(template, Placeholder, v)
		}
		out = append(out, v)
	}
	return out
}

func unnamedColumn(i int) string {
	return "Unnamed: " + strconv.Itoa(i)
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == strings.TrimSpace(name) {
			return i
		}
	}
	return -1
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func unreadable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", harvest.ErrSourceUnreadable, fmt.Sprintf(format, args...))
}
