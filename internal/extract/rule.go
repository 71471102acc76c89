package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/worklist-harvester/internal/harvest"
)

// Rule selects the text of one field from an HTML document.
type Rule struct {
	Field string
	// Anchor is the CSS selector of the structural element the field hangs off.
	Anchor string
	// Item optionally selects descendants of the anchor; their texts are joined.
	Item string
	// First limits the rule to the first anchor match.
	First bool
	// Placeholder is stored when the anchor is missing. Empty means a missing
	// anchor yields an empty successful field.
	Placeholder string
}

// Apply evaluates the rule against doc.
func (r Rule) Apply(doc *goquery.Document) harvest.FieldResult {
	anchors := doc.Find(r.Anchor)
	if anchors.Length() == 0 {
		if r.Placeholder == "" {
			return harvest.Text(r.Field, "")
		}
		return harvest.FromError(r.Field, &harvest.NotFoundError{Anchor: r.Anchor, Placeholder: r.Placeholder})
	}
	if r.First {
		anchors = anchors.First()
	}
	nodes := anchors
	if r.Item != "" {
		nodes = anchors.Find(r.Item)
	}
	parts := make([]string, 0, nodes.Length())
	nodes.Each(func(_ int, s *goquery.Selection) {
		if text := normalize(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return harvest.Text(r.Field, strings.Join(parts, " "))
}

func parseHTML(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// normalize collapses runs of whitespace and trims the ends.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func ruleFields(rules []Rule) []string {
	fields := make([]string, 0, len(rules))
	for _, r := range rules {
		fields = append(fields, r.Field)
	}
	return fields
}
