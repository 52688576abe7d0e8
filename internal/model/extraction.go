package model

import "time"

// ExtractionStatus tracks a single parsing attempt.
type ExtractionStatus string

const (
	ExtractionProcessing ExtractionStatus = "processing"
	ExtractionCompleted  ExtractionStatus = "completed"
	ExtractionFailed     ExtractionStatus = "failed"
)

// Terminal reports whether the status can no longer change. Terminal
// extractions are superseded by new versions, never mutated.
func (s ExtractionStatus) Terminal() bool {
	return s == ExtractionCompleted || s == ExtractionFailed
}

// DocumentType is the coarse classification assigned during extraction.
type DocumentType string

const (
	DocTypeLease       DocumentType = "commercial_lease"
	DocTypeSpreadsheet DocumentType = "spreadsheet"
	DocTypeScan        DocumentType = "scan"
	DocTypeUnknown     DocumentType = "unknown"
)

// Extraction is one parsing attempt over a document. Versions are monotonic
// per document starting at 1; exactly one extraction per document carries
// IsCurrent at any time.
type Extraction struct {
	ID           string           `json:"id"`
	TenantID     string           `json:"tenant_id"`
	DocumentID   string           `json:"document_id"`
	Version      int              `json:"version"`
	Status       ExtractionStatus `json:"status"`
	Confidence   float64          `json:"confidence"`
	DocumentType DocumentType     `json:"document_type,omitempty"`
	ParserUsed   string           `json:"parser_used,omitempty"`
	IsCurrent    bool             `json:"is_current"`
	ErrorMessage string           `json:"error_message,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
}

// FieldSource identifies how a field value was produced.
type FieldSource string

const (
	FieldSourceParser FieldSource = "parser"
	FieldSourceLLM    FieldSource = "llm"
	FieldSourceRule   FieldSource = "rule"
)

// BoundingBox locates a value on a page, in page-relative coordinates.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"w"`
	Height float64 `json:"h"`
}

// ExtractionField is one key/value fact produced by an extraction. The
// parser-derived Value and Confidence are retained when a human override is
// applied; the override lives in OverrideValue with actor and time for audit.
type ExtractionField struct {
	ID           string       `json:"id"`
	ExtractionID string       `json:"extraction_id"`
	Key          string       `json:"key"`
	Value        any          `json:"value"`
	RawText      string       `json:"raw_text,omitempty"`
	Confidence   float64      `json:"confidence"`
	Source       FieldSource  `json:"source"`
	PageNumber   int          `json:"page_number,omitempty"`
	Bounds       *BoundingBox `json:"bounds,omitempty"`

	IsOverride    bool       `json:"is_override"`
	OverrideValue any        `json:"override_value,omitempty"`
	OverriddenBy  string     `json:"overridden_by,omitempty"`
	OverriddenAt  *time.Time `json:"overridden_at,omitempty"`
}

// EffectiveValue returns the override value when one has been applied,
// otherwise the parser-derived value.
func (f *ExtractionField) EffectiveValue() any {
	if f.IsOverride {
		return f.OverrideValue
	}
	return f.Value
}

// ExtractionTable is a tabular extraction result. Immutable once created.
type ExtractionTable struct {
	ID           string     `json:"id"`
	ExtractionID string     `json:"extraction_id"`
	Name         string     `json:"name,omitempty"`
	PageNumber   int        `json:"page_number,omitempty"`
	Headers      []string   `json:"headers"`
	Rows         [][]string `json:"rows"`
}
