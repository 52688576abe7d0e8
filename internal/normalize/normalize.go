// Package normalize converts raw parser and LLM output into typed extraction
// fields with per-field confidence, and aggregates overall confidence.
package normalize

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/docpipe/internal/model"
	"github.com/sells-group/docpipe/internal/parser"
)

// confidenceCap keeps every score strictly below certainty. Extraction is
// never exactly right by construction.
const confidenceCap = 0.99

// typeMismatchPenalty scales a field's confidence when its raw text fails to
// parse as the schema type but is kept as a string anyway.
const typeMismatchPenalty = 0.5

// Normalizer applies a field schema to raw parser output. It never fails on
// malformed input: unresolvable fields are dropped, unparseable values kept
// low-confidence.
type Normalizer struct {
	schema *model.FieldSchema
}

// New creates a Normalizer for the given schema.
func New(schema *model.FieldSchema) *Normalizer {
	return &Normalizer{schema: schema}
}

// Schema returns the normalizer's field schema.
func (n *Normalizer) Schema() *model.FieldSchema {
	return n.schema
}

// Fields types and canonicalizes raw field candidates. Labels that resolve
// to no schema field are dropped. When multiple candidates resolve to the
// same key the highest-confidence one wins.
func (n *Normalizer) Fields(raw []parser.RawField, source model.FieldSource) []model.ExtractionField {
	best := make(map[string]model.ExtractionField, len(raw))
	for _, rf := range raw {
		def := n.schema.Resolve(rf.Label)
		if def == nil {
			zap.L().Debug("normalize: unknown field label dropped",
				zap.String("label", rf.Label),
			)
			continue
		}

		value, conf := n.typeValue(def, rf.Text, rf.Confidence)
		if value == nil {
			// Missing optional value: absent, not a placeholder.
			continue
		}

		f := model.ExtractionField{
			Key:        def.Key,
			Value:      value,
			RawText:    rf.Text,
			Confidence: conf,
			Source:     source,
			PageNumber: rf.PageNumber,
			Bounds:     rf.Bounds,
		}
		if prev, ok := best[def.Key]; !ok || f.Confidence > prev.Confidence {
			best[def.Key] = f
		}
	}

	out := make([]model.ExtractionField, 0, len(best))
	for _, def := range n.schema.Fields {
		if f, ok := best[def.Key]; ok {
			out = append(out, f)
		}
	}
	return out
}

// typeValue converts raw text to the schema type. On parse failure the raw
// string is retained with penalized confidence rather than erroring out.
func (n *Normalizer) typeValue(def *model.FieldDefinition, text string, conf float64) (any, float64) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, 0
	}
	conf = capConfidence(conf)

	switch def.Type {
	case model.FieldTypeDate:
		if iso, err := ParseDate(text); err == nil {
			return iso, conf
		}
	case model.FieldTypeCurrency:
		if amount, _, err := ParseCurrency(text); err == nil {
			return amount, conf
		}
	case model.FieldTypeNumber:
		if num, err := ParseNumber(text); err == nil {
			return num, conf
		}
	case model.FieldTypeBool:
		if b, err := ParseBool(text); err == nil {
			return b, conf
		}
	case model.FieldTypeEnum:
		if v, err := CanonicalEnum(text, def.EnumValues); err == nil {
			return v, conf
		}
	case model.FieldTypeString:
		return text, conf
	}

	return text, capConfidence(conf * typeMismatchPenalty)
}

// Tables converts parser tables to extraction tables.
func Tables(raw []parser.Table) []model.ExtractionTable {
	out := make([]model.ExtractionTable, 0, len(raw))
	for _, t := range raw {
		out = append(out, model.ExtractionTable{
			Name:       t.Name,
			PageNumber: t.PageNumber,
			Headers:    t.Headers,
			Rows:       t.Rows,
		})
	}
	return out
}

// OverallConfidence aggregates field confidences into the extraction's
// overall score: a weighted mean with critical fields counted double and
// missing required fields counted as zeros. The parser's own confidence is
// the floor input when no fields were produced.
func (n *Normalizer) OverallConfidence(parserConfidence float64, fields []model.ExtractionField) float64 {
	present := make(map[string]float64, len(fields))
	for _, f := range fields {
		present[f.Key] = f.Confidence
	}

	var sum, weight float64
	for i := range n.schema.Fields {
		def := &n.schema.Fields[i]
		conf, ok := present[def.Key]
		if !ok {
			if !def.Required {
				continue
			}
			conf = 0
		}
		w := 1.0
		if def.Critical {
			w = 2.0
		}
		sum += conf * w
		weight += w
	}

	if weight == 0 {
		return capConfidence(parserConfidence)
	}
	return capConfidence(sum / weight)
}

func capConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > confidenceCap {
		return confidenceCap
	}
	return c
}

// leaseMarkers are phrases that identify a commercial lease in plain text.
var leaseMarkers = []string{
	"lease agreement", "landlord", "tenant", "demised premises",
	"base rent", "lessor", "lessee",
}

// ClassifyDocument assigns a coarse document type from the mime type and
// parsed content.
func ClassifyDocument(mimeType string, result *parser.ParseResult) model.DocumentType {
	switch {
	case strings.Contains(mimeType, "spreadsheet"), mimeType == "application/vnd.ms-excel":
		return model.DocTypeSpreadsheet
	case strings.HasPrefix(mimeType, "image/"):
		return model.DocTypeScan
	}

	if result != nil {
		text := strings.ToLower(result.Text)
		hits := 0
		for _, m := range leaseMarkers {
			if strings.Contains(text, m) {
				hits++
			}
		}
		if hits >= 2 {
			return model.DocTypeLease
		}
		if len(result.Tables) > 0 && len(strings.TrimSpace(result.Text)) == 0 {
			return model.DocTypeSpreadsheet
		}
	}
	return model.DocTypeUnknown
}
