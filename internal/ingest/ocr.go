package ingest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/rshade/greenledger/internal/greenops"
	"github.com/rshade/greenledger/internal/logging"
)

// ErrInvalidOCRPayload is returned when the payload is not JSON or carries
// no line items.
var ErrInvalidOCRPayload = errors.New("invalid OCR payload") //nolint:gochecknoglobals // sentinel

// OCROptions tunes ParseOCRResult.
type OCROptions struct {
	// MinConfidence drops candidates scored below it (0..1).
	MinConfidence float64
	// DefaultScope applies to lines that name no scope.
	DefaultScope greenops.Scope
}

// OCRResult holds the draft entries extracted from one document.
type OCRResult struct {
	DocumentID string                   `json:"document_id,omitempty"`
	Supplier   string                   `json:"supplier,omitempty"`
	Entries    []greenops.ActivityEntry `json:"entries"`
	// Skipped explains every line that did not become a draft.
	Skipped []string `json:"skipped,omitempty"`
}

// ParseOCRResult extracts draft entries from the JSON produced by the invoice
// OCR function. The payload looks like
//
//	{"document": {"id": "...", "supplier": "...", "confidence": 0.9},
//	 "lines": [{"description": "...", "quantity": 1200, "unit": "kWh",
//	            "scope": "scope2", "category": "...", "emission_factor": 0.052,
//	            "confidence": 0.87}]}
//
// "items" is accepted in place of "lines", "qty" for "quantity" and
// "factor" for "emission_factor". Confidence may be a ratio or a percentage;
// a line without one inherits the document confidence. Every entry is a draft:
// it counts toward totals and compliance only after a person validates it.
func ParseOCRResult(ctx context.Context, data []byte, opts OCROptions) (OCRResult, error) {
	log := logging.FromContext(ctx)
	if !gjson.ValidBytes(data) {
		return OCRResult{}, fmt.Errorf("%w: not valid JSON", ErrInvalidOCRPayload)
	}
	doc := gjson.ParseBytes(data)

	lines := doc.Get("lines")
	if !lines.Exists() {
		lines = doc.Get("items")
	}
	if !lines.IsArray() {
		return OCRResult{}, fmt.Errorf("%w: no lines array", ErrInvalidOCRPayload)
	}

	result := OCRResult{
		DocumentID: doc.Get("document.id").String(),
		Supplier:   doc.Get("document.supplier").String(),
	}
	docConfidence := normalizeConfidence(doc.Get("document.confidence"))

	for i, line := range lines.Array() {
		e, reason := draftFromLine(line, i, result, docConfidence, opts)
		if reason != "" {
			result.Skipped = append(result.Skipped, fmt.Sprintf("line %d: %s", i+1, reason))
			continue
		}
		result.Entries = append(result.Entries, e)
	}

	log.Debug().
		Str("component", "ingest").
		Str("operation", "parse_ocr").
		Str("document_id", result.DocumentID).
		Int("draft_count", len(result.Entries)).
		Int("skipped_count", len(result.Skipped)).
		Msg("OCR payload parsed")
	return result, nil
}

func draftFromLine(line gjson.Result, index int, res OCRResult, docConfidence float64, opts OCROptions) (greenops.ActivityEntry, string) {
	quantity := firstOf(line, "quantity", "qty")
	if !quantity.Exists() {
		return greenops.ActivityEntry{}, "no quantity"
	}

	scope := opts.DefaultScope
	if raw := line.Get("scope"); raw.Exists() {
		parsed, err := greenops.ParseScope(raw.String())
		if err != nil {
			return greenops.ActivityEntry{}, err.Error()
		}
		scope = parsed
	}
	if scope == "" {
		return greenops.ActivityEntry{}, "no scope"
	}

	confidence := docConfidence
	if c := line.Get("confidence"); c.Exists() {
		confidence = normalizeConfidence(c)
	}
	if confidence < opts.MinConfidence {
		return greenops.ActivityEntry{}, fmt.Sprintf("confidence %.2f below %.2f", confidence, opts.MinConfidence)
	}

	e := greenops.ActivityEntry{
		Scope:                scope,
		Category:             line.Get("category").String(),
		Subcategory:          res.Supplier,
		Type:                 line.Get("type").String(),
		Description:          firstOf(line, "description", "label").String(),
		Quantity:             quantity.Float(),
		Unit:                 line.Get("unit").String(),
		EmissionFactorValue:  firstOf(line, "emission_factor", "factor").Float(),
		EmissionFactorUnit:   line.Get("emission_factor_unit").String(),
		EmissionFactorSource: "ocr",
		Status:               greenops.StatusDraft,
		Confidence:           confidence,
	}
	if res.DocumentID != "" {
		e.ID = res.DocumentID + "-" + strconv.Itoa(index+1)
		e.FormulaDetail = "document " + res.DocumentID
	}
	if err := e.Validate(); err != nil {
		return greenops.ActivityEntry{}, err.Error()
	}
	return e, ""
}

func firstOf(r gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

// normalizeConfidence maps ratios and percentages ("87", "87%", 0.87) to
// [0,1]. A missing value means full confidence.
func normalizeConfidence(r gjson.Result) float64 {
	if !r.Exists() {
		return 1
	}
	v := r.Float()
	if r.Type == gjson.String {
		v, _ = strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(r.Str), "%"), 64)
		if strings.HasSuffix(strings.TrimSpace(r.Str), "%") {
			v /= 100
		}
	}
	if v > 1 {
		v /= 100
	}
	return max(0, min(v, 1))
}
