package extract

import (
	"context"
	"fmt"

	"github.com/JakeFAU/worklist-harvester/internal/harvest"
)

// Page is one sub-resource of a multi-fetch extractor: the base reference plus
// Suffix, and the rules applied to it.
type Page struct {
	Suffix string
	Rules  []Rule
}

// ChapterExtractor derives several sub-resource URLs from the row's base
// reference and extracts fields from each. A failed sub-fetch only affects the
// fields of its own page.
type ChapterExtractor struct {
	pages  []*HTMLExtractor
	fields []string
}

// NewChapters builds a multi-fetch extractor.
func NewChapters(fetcher harvest.Fetcher, pages ...Page) (*ChapterExtractor, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("at least one page is required")
	}
	e := &ChapterExtractor{}
	seen := make(map[string]struct{})
	for _, p := range pages {
		page, err := newHTML(fetcher, p.Suffix, p.Rules)
		if err != nil {
			return nil, fmt.Errorf("page %q: %w", p.Suffix, err)
		}
		for _, f := range page.Fields() {
			if _, dup := seen[f]; dup {
				return nil, fmt.Errorf("field %q declared twice", f)
			}
			seen[f] = struct{}{}
			e.fields = append(e.fields, f)
		}
		e.pages = append(e.pages, page)
	}
	return e, nil
}

// Fields implements harvest.Extractor.
func (e *ChapterExtractor) Fields() []string {
	return append([]string(nil), e.fields...)
}

// Extract implements harvest.Extractor.
func (e *ChapterExtractor) Extract(ctx context.Context, item harvest.WorkItem) (harvest.Outcome, error) {
	if !item.HasSource() {
		return harvest.NoSourceOutcome(item.Key, e.fields), nil
	}
	out := harvest.Outcome{Key: item.Key, Fields: make([]harvest.FieldResult, 0, len(e.fields))}
	for _, page := range e.pages {
		out.Fields = append(out.Fields, page.fields(ctx, item.Source())...)
	}
	return out, nil
}
