package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap/zaptest"

	"github.com/google/uuid"

	"github.com/JakeFAU/worklist-harvester/internal/config"
	"github.com/JakeFAU/worklist-harvester/internal/fetcher/headless"
	"github.com/JakeFAU/worklist-harvester/internal/harvest"
)

func writeWorklist(t *testing.T, dir string, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	path := filepath.Join(dir, "input.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func readOutput(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	return rows
}

func readWorkbook(t *testing.T, data []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	return rows
}

func testConfig(input, output string) config.Config {
	return config.Config{
		Run:      config.RunConfig{Concurrency: 2, CheckpointEvery: 2},
		Input:    config.InputConfig{Path: input},
		Output:   config.OutputConfig{Path: output},
		HTTP:     config.HTTPConfig{TimeoutSeconds: 5, UserAgent: "harvester-test"},
		Headless: config.HeadlessConfig{MaxParallel: 1},
		Translate: config.TranslateConfig{
			SourceLang:   "ko",
			TargetLang:   "en",
			MaxChunkSize: 5000,
		},
		PDF: config.PDFConfig{Page: 2},
	}
}

func drugServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/drb/100/EE", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>안녕</p><p> 세계 </p></body></html>`))
	})
	mux.HandleFunc("/drb/200/EE", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	mux.HandleFunc("/translate", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("q") == "" {
			http.Error(w, "missing q", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`[[["Hello world","안녕 세계",null,null]],null,"ko"]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func runTask(t *testing.T, cfg config.Config, task string) (*harvest.ResultTable, *App, error) {
	t.Helper()
	a, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	table, runErr := a.Run(context.Background(), task)
	require.NoError(t, a.Close(context.Background()))
	return table, a, runErr
}

func TestRunHTMLTaskWritesWorkbook(t *testing.T) {
	t.Parallel()

	srv := drugServer(t)
	dir := t.TempDir()
	input := writeWorklist(t, dir, [][]any{
		{"Item standard code", "Name"},
		{"100", "Aspirin"},
		{"200", "Tylenol"},
	})
	output := filepath.Join(dir, "out", "result.xlsx")
	cfg := testConfig(input, output)
	cfg.Input.SourceTemplate = srv.URL + "/drb/{value}/EE"

	table, a, err := runTask(t, cfg, TaskHTML)
	require.NoError(t, err)
	require.Equal(t, 2, table.Completed())

	rows := readOutput(t, output)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"Item standard code", "Name", FieldKoreanText}, rows[0])
	require.Equal(t, []string{"100", "Aspirin", "안녕 세계"}, rows[1])
	require.True(t, strings.HasPrefix(rows[2][2], "Error: "), rows[2][2])

	snap := a.Status()
	assert.Equal(t, "done", snap.State)
	assert.Equal(t, 2, snap.Processed)
	assert.Equal(t, TaskHTML, snap.Task)
	assert.Equal(t, a.RunID().String(), snap.RunID)
	assert.Equal(t, "file://"+output, snap.LastDestination)
	assert.Equal(t, uuid.Version(7), a.RunID().Version())
}

// Not parallel: changes the working directory.
func TestRunWithRelativeOutputPath(t *testing.T) {
	srv := drugServer(t)
	dir := t.TempDir()
	input := writeWorklist(t, dir, [][]any{
		{"Item standard code"},
		{"100"},
	})
	t.Chdir(dir)

	cfg := testConfig(input, "harvest_output.xlsx")
	cfg.Input.SourceTemplate = srv.URL + "/drb/{value}/EE"

	table, a, err := runTask(t, cfg, TaskHTML)
	require.NoError(t, err)
	require.Equal(t, 1, table.Completed())
	assert.Equal(t, "file://"+filepath.Join(dir, "harvest_output.xlsx"), a.Status().LastDestination)

	rows := readOutput(t, filepath.Join(dir, "harvest_output.xlsx"))
	require.Equal(t, []string{"100", "안녕 세계"}, rows[1])
}

func TestDryRunKeepsOutputInMemory(t *testing.T) {
	t.Parallel()

	srv := drugServer(t)
	dir := t.TempDir()
	input := writeWorklist(t, dir, [][]any{
		{"Item standard code"},
		{"100"},
		{"200"},
		{"300"},
	})
	output := filepath.Join(dir, "dry.xlsx")
	cfg := testConfig(input, output)
	cfg.Input.SourceTemplate = srv.URL + "/drb/{value}/EE"
	cfg.Output.DryRun = true
	cfg.Output.GCSBucket = "never-dialed"
	cfg.DB.DSN = "postgres://never-dialed"

	table, a, err := runTask(t, cfg, TaskHTML)
	require.NoError(t, err)
	require.Equal(t, 3, table.Completed())

	_, statErr := os.Stat(output)
	require.ErrorIs(t, statErr, os.ErrNotExist)

	data, ok := a.dryStore.Get("dry.xlsx")
	require.True(t, ok)
	assert.Equal(t, 2, a.dryStore.Writes("dry.xlsx"))
	rows := readWorkbook(t, data)
	require.Len(t, rows, 4)
	require.Equal(t, []string{"100", "안녕 세계"}, rows[1])
	assert.Equal(t, "memory://dry.xlsx", a.Status().LastDestination)

	var stages []string
	for _, msg := range a.notices.Messages(dryRunTopic) {
		body, err := msg.Decode()
		require.NoError(t, err)
		stages = append(stages, body["stage"].(string))
	}
	require.Equal(t, []string{"CHECKPOINT", "CHECKPOINT", "RUN_DONE"}, stages)
}

func TestRenderRoutesPagesThroughBrowser(t *testing.T) {
	t.Parallel()

	cfg := testConfig("in.xlsx", filepath.Join(t.TempDir(), "o.xlsx"))
	a, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	plain, err := a.pageFetcher()
	require.NoError(t, err)
	require.Same(t, a.fetcher, plain)
	require.Nil(t, a.browser)
	require.NoError(t, a.Close(context.Background()))

	cfg.Headless.Render = true
	a, err = New(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	rendered, err := a.pageFetcher()
	require.NoError(t, err)
	require.IsType(t, &headless.Browser{}, rendered)
	require.Same(t, a.browser, rendered)

	for _, task := range []string{TaskHTML, TaskChapters, TaskTranslate} {
		p, err := LookupPreset(task)
		require.NoError(t, err)
		_, err = a.extractor(p)
		require.NoError(t, err, task)
	}
	require.NoError(t, a.Close(context.Background()))
}

func TestRunTranslateTaskAddsTranslation(t *testing.T) {
	t.Parallel()

	srv := drugServer(t)
	dir := t.TempDir()
	input := writeWorklist(t, dir, [][]any{
		{"Item standard code"},
		{"100"},
		{"200"},
	})
	output := filepath.Join(dir, "translated.xlsx")
	cfg := testConfig(input, output)
	cfg.Input.SourceTemplate = srv.URL + "/drb/{value}/EE"
	cfg.Translate.Endpoint = srv.URL + "/translate"

	table, _, err := runTask(t, cfg, TaskTranslate)
	require.NoError(t, err)

	ok, found := table.Row("100")
	require.True(t, found)
	require.Equal(t, "Hello world", ok.Fields[1].Text)

	failed, found := table.Row("200")
	require.True(t, found)
	require.Equal(t, harvest.FieldFailed, failed.Fields[0].Status)
	require.Equal(t, harvest.FieldFailed, failed.Fields[1].Status)

	rows := readOutput(t, output)
	require.Equal(t, []string{"Item standard code", FieldKoreanText, FieldEnglishText}, rows[0])
	require.Equal(t, []string{"100", "안녕 세계", "Hello world"}, rows[1])
}

func TestRunRejectsUnknownTask(t *testing.T) {
	t.Parallel()

	_, _, err := runTask(t, testConfig("missing.xlsx", filepath.Join(t.TempDir(), "o.xlsx")), "scrape")
	require.ErrorContains(t, err, `unknown task "scrape"`)
}

func TestRunMissingWorklistIsFatal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, _, err := runTask(t, testConfig(filepath.Join(dir, "missing.xlsx"), filepath.Join(dir, "o.xlsx")), TaskHTML)
	require.ErrorIs(t, err, harvest.ErrSourceUnreadable)
}

func TestPresetRowOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		task  string
		input config.InputConfig
		want  func(t *testing.T, p Preset, in config.InputConfig)
	}{
		{
			name:  "html preset supplies key and template",
			task:  TaskHTML,
			input: config.InputConfig{Path: "in.xlsx"},
			want: func(t *testing.T, p Preset, in config.InputConfig) {
				opts := p.RowOptions(in)
				require.Equal(t, "Item standard code", opts.KeyColumn)
				require.Equal(t, itemCodeTemplate, opts.SourceTemplate)
				require.Equal(t, "in.xlsx", opts.Path)
			},
		},
		{
			name:  "configured columns win",
			task:  TaskChapters,
			input: config.InputConfig{KeyColumn: "ID", SourceColumns: []string{"URL"}},
			want: func(t *testing.T, p Preset, in config.InputConfig) {
				opts := p.RowOptions(in)
				require.Equal(t, "ID", opts.KeyColumn)
				require.Equal(t, []string{"URL"}, opts.SourceColumns)
				require.Empty(t, opts.SourceTemplate)
			},
		},
		{
			name: "pdf preset reads link column",
			task: TaskPDFPage,
			want: func(t *testing.T, p Preset, in config.InputConfig) {
				require.Equal(t, []string{"PAR Link"}, p.RowOptions(in).SourceColumns)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := LookupPreset(tt.task)
			require.NoError(t, err)
			tt.want(t, p, tt.input)
		})
	}
}

func TestPresetsSorted(t *testing.T) {
	t.Parallel()

	var names []string
	for _, p := range Presets() {
		names = append(names, p.Name)
	}
	require.Equal(t, []string{TaskChapters, TaskHTML, TaskParLinks, TaskPDFPage, TaskTranslate}, names)
}

func TestTaskFieldOverrides(t *testing.T) {
	t.Parallel()

	rule := textRule(config.ExtractConfig{Field: "Body", Selector: "article p", Placeholder: "none"})
	require.Equal(t, "Body", rule.Field)
	require.Equal(t, "article p", rule.Anchor)
	require.Equal(t, "none", rule.Placeholder)

	pl := parLinkConfig(config.ExtractConfig{Marker: "SPC"})
	require.Equal(t, "SPC", pl.Marker)
	require.Equal(t, "PAR Link", pl.Field)

	cfg := config.Config{PDF: config.PDFConfig{Page: 3}}
	require.Equal(t, "Page 3 Content", pdfField(cfg))
	cfg.PDF.Page = 2
	require.Equal(t, FieldPageContent, pdfField(cfg))
}
