package app

import (
	"fmt"
	"slices"
	"sort"

	"github.com/JakeFAU/worklist-harvester/internal/config"
	"github.com/JakeFAU/worklist-harvester/internal/extract"
	"github.com/JakeFAU/worklist-harvester/internal/harvest"
	"github.com/JakeFAU/worklist-harvester/internal/rowsource"
)

// Task names.
const (
	TaskHTML      = "html"
	TaskTranslate = "translate"
	TaskChapters  = "chapters"
	TaskParLinks  = "parlinks"
	TaskPDFPage   = "pdfpage"
)

// Field names written by the built-in tasks.
const (
	FieldKoreanText  = "Extracted Korean Text"
	FieldEnglishText = "Translated English Text"
	FieldLead        = "Text Extract"
	FieldChapter3    = "Ch3 Text"
	FieldChapter2    = "Ch2 Text"
	FieldPageContent = "Page 2 Content"
)

const itemCodeTemplate = "https://nedrug.mfds.go.kr/pbp/cmn/html/drb/" + rowsource.Placeholder + "/EE"

// Preset supplies the worklist layout a task expects when the configuration
// leaves it unset.
type Preset struct {
	Name           string
	Short          string
	KeyColumn      string
	SourceColumns  []string
	SourceTemplate string
	// Browser marks tasks that need the headless browser.
	Browser bool
}

var presets = map[string]Preset{
	TaskHTML: {
		Name:           TaskHTML,
		Short:          "Extract all paragraph text from each item-code page",
		KeyColumn:      "Item standard code",
		SourceTemplate: itemCodeTemplate,
	},
	TaskTranslate: {
		Name:           TaskTranslate,
		Short:          "Extract paragraph text and translate it chunk by chunk",
		KeyColumn:      "Item standard code",
		SourceTemplate: itemCodeTemplate,
	},
	TaskChapters: {
		Name:          TaskChapters,
		Short:         "Extract the lead paragraph and chapters 2 and 3 of each report",
		SourceColumns: []string{"Source of Truth"},
	},
	TaskParLinks: {
		Name:          TaskParLinks,
		Short:         "Find the public assessment report link of each product page",
		SourceColumns: []string{"Source of truth"},
		Browser:       true,
	},
	TaskPDFPage: {
		Name:          TaskPDFPage,
		Short:         "Extract one page of text from each linked PDF",
		SourceColumns: []string{"PAR Link"},
	},
}

// Presets lists the built-in tasks sorted by name.
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LookupPreset returns the named task preset.
func LookupPreset(name string) (Preset, error) {
	p, ok := presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("unknown task %q", name)
	}
	return p, nil
}

// RowOptions merges the input configuration over the preset layout.
func (p Preset) RowOptions(in config.InputConfig) rowsource.Options {
	opts := rowsource.Options{
		Path:           in.Path,
		Sheet:          in.Sheet,
		KeyColumn:      in.KeyColumn,
		SourceColumns:  slices.Clone(in.SourceColumns),
		SourceTemplate: in.SourceTemplate,
	}
	if opts.KeyColumn == "" && len(opts.SourceColumns) == 0 {
		opts.KeyColumn = p.KeyColumn
		opts.SourceColumns = slices.Clone(p.SourceColumns)
	}
	if opts.SourceTemplate == "" && opts.KeyColumn == p.KeyColumn {
		opts.SourceTemplate = p.SourceTemplate
	}
	return opts
}

// textRule is the html task rule: every paragraph of the page, joined.
func textRule(cfg config.ExtractConfig) extract.Rule {
	rule := extract.Rule{Field: FieldKoreanText, Anchor: "p", Placeholder: cfg.Placeholder}
	if cfg.Field != "" {
		rule.Field = cfg.Field
	}
	if cfg.Selector != "" {
		rule.Anchor = cfg.Selector
	}
	return rule
}

func chapterPages() []extract.Page {
	return []extract.Page{
		{Rules: []extract.Rule{{
			Field:       FieldLead,
			Anchor:      "p.lead",
			First:       true,
			Placeholder: "Lead paragraph not found",
		}}},
		{Suffix: "/chapter/3", Rules: []extract.Rule{{
			Field:       FieldChapter3,
			Anchor:      `div.chapter[title="3 The technologies"]`,
			Item:        "p",
			First:       true,
			Placeholder: "Technologies section not found",
		}}},
		{Suffix: "/chapter/2", Rules: []extract.Rule{{
			Field:       FieldChapter2,
			Anchor:      `div.chapter[title="2 The technology"]`,
			Item:        "p",
			First:       true,
			Placeholder: "Chapter 2 section not found",
		}}},
	}
}

func parLinkConfig(cfg config.ExtractConfig) extract.ParLinkConfig {
	pl := extract.DefaultParLinkConfig()
	if cfg.Field != "" {
		pl.Field = cfg.Field
	}
	if cfg.Marker != "" {
		pl.Marker = cfg.Marker
	}
	if cfg.Placeholder != "" {
		pl.Placeholder = cfg.Placeholder
	}
	return pl
}

func pdfField(cfg config.Config) string {
	if cfg.Extract.Field != "" {
		return cfg.Extract.Field
	}
	if cfg.PDF.Page == 2 {
		return FieldPageContent
	}
	return fmt.Sprintf("Page %d Content", cfg.PDF.Page)
}

// compile-time checks that every task extractor satisfies the contract.
var (
	_ harvest.Extractor = (*extract.HTMLExtractor)(nil)
	_ harvest.Extractor = (*extract.ChapterExtractor)(nil)
	_ harvest.Extractor = (*extract.ParLinkExtractor)(nil)
	_ harvest.Extractor = (*extract.PDFPageExtractor)(nil)
	_ harvest.Extractor = (*extract.Translating)(nil)
)
