package extract

import (
	"context"
	"fmt"
	"slices"

	"github.com/JakeFAU/worklist-harvester/internal/harvest"
	"github.com/JakeFAU/worklist-harvester/internal/transform"
)

// Chunker is the chunked transformation the decorator delegates to.
type Chunker interface {
	Transform(ctx context.Context, text string, fn transform.Func) (transform.Result, error)
}

// Translating adds a transformed copy of one inner field. A failed or missing
// source field is mirrored into the target field; chunk failures become
// Outcome warnings.
type Translating struct {
	inner   harvest.Extractor
	chunker Chunker
	fn      transform.Func
	source  string
	target  string
}

// NewTranslating decorates inner, translating source into the new target field.
func NewTranslating(inner harvest.Extractor, chunker Chunker, fn transform.Func, source, target string) (*Translating, error) {
	if inner == nil || chunker == nil || fn == nil {
		return nil, fmt.Errorf("inner extractor, chunker and transform func are required")
	}
	fields := inner.Fields()
	if !slices.Contains(fields, source) {
		return nil, fmt.Errorf("inner extractor has no field %q", source)
	}
	if target == "" || slices.Contains(fields, target) {
		return nil, fmt.Errorf("target field %q must be new and non-empty", target)
	}
	return &Translating{inner: inner, chunker: chunker, fn: fn, source: source, target: target}, nil
}

// Fields implements harvest.Extractor.
func (t *Translating) Fields() []string {
	return append(t.inner.Fields(), t.target)
}

// Extract implements harvest.Extractor.
func (t *Translating) Extract(ctx context.Context, item harvest.WorkItem) (harvest.Outcome, error) {
	if !item.HasSource() {
		return harvest.NoSourceOutcome(item.Key, t.Fields()), nil
	}
	out, err := t.inner.Extract(ctx, item)
	if err != nil {
		return harvest.Outcome{}, err
	}
	src, ok := out.Field(t.source)
	switch {
	case !ok:
		out.Fields = append(out.Fields, harvest.FieldResult{
			Name: t.target, Status: harvest.FieldFailed, Err: fmt.Errorf("source field %q missing", t.source),
		})
	case !src.OK():
		mirrored := src
		mirrored.Name = t.target
		out.Fields = append(out.Fields, mirrored)
	case src.Text == "":
		out.Fields = append(out.Fields, harvest.Text(t.target, ""))
	default:
		res, err := t.chunker.Transform(ctx, src.Text, t.fn)
		for _, w := range res.Warnings {
			out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %v", t.target, w))
		}
		if err != nil {
			out.Fields = append(out.Fields, harvest.FromError(t.target, err))
		} else {
			out.Fields = append(out.Fields, harvest.Text(t.target, res.Text))
		}
	}
	return out, nil
}
