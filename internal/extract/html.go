package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/JakeFAU/worklist-harvester/internal/harvest"
)

// HTMLExtractor fetches one document per row and applies its rules to it.
type HTMLExtractor struct {
	fetcher harvest.Fetcher
	suffix  string
	rules   []Rule
}

// NewHTML returns a single-fetch extractor for the row's first source.
func NewHTML(fetcher harvest.Fetcher, rules ...Rule) (*HTMLExtractor, error) {
	return newHTML(fetcher, "", rules)
}

func newHTML(fetcher harvest.Fetcher, suffix string, rules []Rule) (*HTMLExtractor, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("at least one rule is required")
	}
	for _, r := range rules {
		if r.Field == "" || r.Anchor == "" {
			return nil, fmt.Errorf("rule requires field and anchor: %+v", r)
		}
	}
	return &HTMLExtractor{fetcher: fetcher, suffix: suffix, rules: append([]Rule(nil), rules...)}, nil
}

// Fields implements harvest.Extractor.
func (e *HTMLExtractor) Fields() []string {
	return ruleFields(e.rules)
}

// Extract implements harvest.Extractor.
func (e *HTMLExtractor) Extract(ctx context.Context, item harvest.WorkItem) (harvest.Outcome, error) {
	if !item.HasSource() {
		return harvest.NoSourceOutcome(item.Key, e.Fields()), nil
	}
	return harvest.Outcome{Key: item.Key, Fields: e.fields(ctx, item.Source())}, nil
}

func (e *HTMLExtractor) fields(ctx context.Context, base string) []harvest.FieldResult {
	url := strings.TrimSpace(base)
	if e.suffix != "" {
		url = strings.TrimRight(url, "/") + e.suffix
	}
	resp, err := e.fetcher.Fetch(ctx, harvest.FetchRequest{URL: url})
	if err != nil {
		return harvest.FailAll("", e.Fields(), err).Fields
	}
	doc, err := parseHTML(resp.Body)
	if err != nil {
		return harvest.FailAll("", e.Fields(), err).Fields
	}
	out := make([]harvest.FieldResult, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r.Apply(doc))
	}
	return out
}
