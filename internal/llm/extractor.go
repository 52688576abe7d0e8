// Package llm supplements parser output with LLM-extracted field candidates
// when the parser leaves schema fields uncovered.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docpipe/internal/model"
	"github.com/sells-group/docpipe/internal/parser"
	"github.com/sells-group/docpipe/pkg/anthropic"
)

// maxDocumentChars bounds how much document text goes into one prompt.
const maxDocumentChars = 60_000

// llmConfidenceCeiling caps confidences self-reported by the model, which
// skew optimistic.
const llmConfidenceCeiling = 0.85

// Extractor asks an LLM for field values the parser did not produce.
type Extractor struct {
	client anthropic.Client
	model  string
	schema *model.FieldSchema
}

// NewExtractor creates an Extractor for the given schema.
func NewExtractor(client anthropic.Client, modelID string, schema *model.FieldSchema) *Extractor {
	return &Extractor{client: client, model: modelID, schema: schema}
}

// Missing reports the schema fields absent from present, required first.
func (e *Extractor) Missing(present []parser.RawField) []string {
	return MissingFields(e.schema, present)
}

// llmField is the JSON shape the model is instructed to emit.
type llmField struct {
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Page       int     `json:"page,omitempty"`
}

// Extract returns raw field candidates for the schema fields named in
// missing. Failures are logged and swallowed: the LLM pass is supplemental
// and must never fail an extraction.
func (e *Extractor) Extract(ctx context.Context, text string, missing []string) []parser.RawField {
	if len(missing) == 0 || strings.TrimSpace(text) == "" {
		return nil
	}
	if len(text) > maxDocumentChars {
		text = text[:maxDocumentChars]
	}

	temp := 0.0
	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       e.model,
		MaxTokens:   2048,
		System:      e.systemPrompt(missing),
		Messages:    []anthropic.Message{{Role: "user", Content: text}},
		Temperature: &temp,
	})
	if err != nil {
		zap.L().Warn("llm: field extraction failed", zap.Error(err))
		return nil
	}

	fields, err := parseResponse(resp.Text)
	if err != nil {
		zap.L().Warn("llm: unparseable extraction response", zap.Error(err))
		return nil
	}

	out := make([]parser.RawField, 0, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f.Value) == "" {
			continue
		}
		conf := f.Confidence
		if conf > llmConfidenceCeiling {
			conf = llmConfidenceCeiling
		}
		out = append(out, parser.RawField{
			Label:      f.Key,
			Text:       f.Value,
			Confidence: conf,
			PageNumber: f.Page,
		})
	}
	return out
}

func (e *Extractor) systemPrompt(missing []string) string {
	var sb strings.Builder
	sb.WriteString("You extract structured fields from commercial lease documents. ")
	sb.WriteString("Return ONLY a JSON array, no prose. Each element: ")
	sb.WriteString(`{"key": string, "value": string, "confidence": number 0-1, "page": int}. `)
	sb.WriteString("Omit fields not present in the document. Extract these fields:\n")
	for _, key := range missing {
		def := e.schema.ByKey(key)
		if def == nil {
			continue
		}
		fmt.Fprintf(&sb, "- %s (%s", def.Key, def.Type)
		if len(def.EnumValues) > 0 {
			fmt.Fprintf(&sb, "; one of %s", strings.Join(def.EnumValues, ", "))
		}
		sb.WriteString(")\n")
	}
	return sb.String()
}

// parseResponse tolerates a fenced code block around the JSON array.
func parseResponse(text string) ([]llmField, error) {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "["); i >= 0 {
		if j := strings.LastIndex(text, "]"); j > i {
			text = text[i : j+1]
		}
	}
	var fields []llmField
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, eris.Wrap(err, "llm: decode field array")
	}
	return fields, nil
}

// MissingFields lists schema keys absent from the parsed candidates,
// required fields first.
func MissingFields(schema *model.FieldSchema, present []parser.RawField) []string {
	have := make(map[string]bool, len(present))
	for _, rf := range present {
		if def := schema.Resolve(rf.Label); def != nil {
			have[def.Key] = true
		}
	}
	var required, optional []string
	for _, def := range schema.Fields {
		if have[def.Key] {
			continue
		}
		if def.Required {
			required = append(required, def.Key)
		} else {
			optional = append(optional, def.Key)
		}
	}
	return append(required, optional...)
}
