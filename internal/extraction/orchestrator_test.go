package extraction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docpipe/internal/model"
	"github.com/sells-group/docpipe/internal/normalize"
	"github.com/sells-group/docpipe/internal/parser"
	"github.com/sells-group/docpipe/internal/redact"
	"github.com/sells-group/docpipe/internal/review"
	"github.com/sells-group/docpipe/internal/store"
)

// pipeStore records what the orchestrator persists.
type pipeStore struct {
	store.Store

	extraction *model.Extraction
	final      *store.ExtractionFinal
	fields     []model.ExtractionField
	tables     []model.ExtractionTable
	queueItems []*model.ReviewQueueItem
	docStatus  model.DocumentStatus
}

func (p *pipeStore) CreateExtraction(_ context.Context, tenantID, documentID string) (*model.Extraction, error) {
	p.extraction = &model.Extraction{
		ID:         "ext-1",
		TenantID:   tenantID,
		DocumentID: documentID,
		Version:    1,
		Status:     model.ExtractionProcessing,
		CreatedAt:  time.Now(),
	}
	cp := *p.extraction
	return &cp, nil
}

func (p *pipeStore) UpdateDocumentStatus(_ context.Context, _, _ string, status model.DocumentStatus, _ string) error {
	p.docStatus = status
	return nil
}

func (p *pipeStore) InsertFields(_ context.Context, _, _ string, fields []model.ExtractionField) error {
	p.fields = fields
	return nil
}

func (p *pipeStore) InsertTables(_ context.Context, _, _ string, tables []model.ExtractionTable) error {
	p.tables = tables
	return nil
}

func (p *pipeStore) FinalizeExtraction(_ context.Context, _, _ string, fin store.ExtractionFinal) (*model.Extraction, error) {
	p.final = &fin
	out := *p.extraction
	out.Status = fin.Status
	out.Confidence = fin.Confidence
	out.DocumentType = fin.DocumentType
	out.ParserUsed = fin.ParserUsed
	out.ErrorMessage = fin.ErrorMessage
	out.IsCurrent = true
	return &out, nil
}

func (p *pipeStore) UpsertQueueItem(_ context.Context, item *model.ReviewQueueItem) (*model.ReviewQueueItem, error) {
	p.queueItems = append(p.queueItems, item)
	cp := *item
	cp.ID = "q-1"
	cp.Status = model.QueuePending
	return &cp, nil
}

type stubParser struct {
	name   string
	result *parser.ParseResult
	err    error
}

func (s *stubParser) Name() string                   { return s.name }
func (s *stubParser) Supports(string) bool           { return true }
func (s *stubParser) HealthCheck(context.Context) error { return nil }
func (s *stubParser) Parse(context.Context, []byte, string) (*parser.ParseResult, error) {
	return s.result, s.err
}

func orchSchema() *model.FieldSchema {
	return model.NewFieldSchema([]model.FieldDefinition{
		{Key: "base_rent", Type: model.FieldTypeCurrency, Required: true, Critical: true, Aliases: []string{"monthly rent"}},
		{Key: "tenant_name", Type: model.FieldTypeString, Required: true, Aliases: []string{"lessee"}},
	})
}

func testDoc() *model.Document {
	return &model.Document{ID: "doc-1", TenantID: "t1", MimeType: "application/pdf"}
}

func newTestOrchestrator(st store.Store, p parser.Parser, supplement FieldExtractor) *Orchestrator {
	router := parser.NewRouter(parser.RouterConfig{
		Chains: map[string][]string{"application/pdf": {p.Name()}},
	})
	router.Register(p)

	schema := orchSchema()
	reviews := review.NewService(st, schema, review.DefaultConfig())
	return NewOrchestrator(st, router, normalize.New(schema), redact.Passthrough{}, reviews, supplement)
}

func TestProcessCompletesAndQueuesLowConfidence(t *testing.T) {
	st := &pipeStore{}
	p := &stubParser{name: "pdftext", result: &parser.ParseResult{
		Text:       "LEASE AGREEMENT between Landlord and Tenant",
		Confidence: 0.40,
		Fields: []parser.RawField{
			{Label: "Monthly Rent", Text: "$4,250.00", Confidence: 0.90},
			{Label: "Lessee", Text: "Acme Holdings LLC", Confidence: 0.85},
		},
		Tables: []parser.Table{{Headers: []string{"unit", "rent"}, Rows: [][]string{{"101", "$4,250"}}}},
	}}

	o := newTestOrchestrator(st, p, nil)
	ext, err := o.Process(context.Background(), "t1", testDoc(), []byte("%PDF"))
	require.NoError(t, err)

	assert.Equal(t, model.ExtractionCompleted, ext.Status)
	assert.Equal(t, "pdftext", ext.ParserUsed)
	assert.Equal(t, model.DocTypeLease, ext.DocumentType)
	require.Len(t, st.fields, 2)
	require.Len(t, st.tables, 1)
	assert.Equal(t, model.DocumentReady, st.docStatus)

	// pdftext is the fallback parser, so the extraction lands in review.
	require.Len(t, st.queueItems, 1)
	assert.Equal(t, "ext-1", st.queueItems[0].ExtractionID)
}

func TestProcessParserExhaustionFinalizesFailed(t *testing.T) {
	st := &pipeStore{}
	p := &stubParser{name: "pdftext", err: parser.NewTransientError("pdftext", errors.New("service down"))}

	o := newTestOrchestrator(st, p, nil)
	_, err := o.Process(context.Background(), "t1", testDoc(), []byte("%PDF"))
	require.Error(t, err)

	var fe *FailedError
	require.ErrorAs(t, err, &fe)
	assert.True(t, fe.Transient)
	assert.Equal(t, "ext-1", fe.ExtractionID)

	require.NotNil(t, st.final)
	assert.Equal(t, model.ExtractionFailed, st.final.Status)
	assert.NotEmpty(t, st.final.ErrorMessage)
	assert.Equal(t, model.DocumentFailed, st.docStatus)
	// Failed extractions never reach the review queue.
	assert.Empty(t, st.queueItems)
}

func TestProcessCancelledRunFinalizesFailed(t *testing.T) {
	st := &pipeStore{}
	p := &stubParser{name: "pdftext", result: &parser.ParseResult{Text: "ok", Confidence: 0.9}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := newTestOrchestrator(st, p, nil)
	_, err := o.Process(ctx, "t1", testDoc(), []byte("%PDF"))
	require.Error(t, err)

	require.NotNil(t, st.final)
	assert.Equal(t, model.ExtractionFailed, st.final.Status)
	assert.Contains(t, st.final.ErrorMessage, "cancel")
}

type stubSupplement struct {
	asked    []string
	returned []parser.RawField
}

func (s *stubSupplement) Extract(_ context.Context, _ string, missing []string) []parser.RawField {
	s.asked = missing
	return s.returned
}

func (s *stubSupplement) Missing(present []parser.RawField) []string {
	seen := map[string]bool{}
	for _, f := range present {
		seen[f.Label] = true
	}
	var out []string
	for _, key := range []string{"base_rent", "tenant_name"} {
		if !seen[key] {
			out = append(out, key)
		}
	}
	return out
}

func TestProcessSupplementsMissingFields(t *testing.T) {
	st := &pipeStore{}
	p := &stubParser{name: "pdftext", result: &parser.ParseResult{
		Text:       "lease text",
		Confidence: 0.90,
		Fields: []parser.RawField{
			{Label: "base_rent", Text: "$4,250.00", Confidence: 0.90},
		},
	}}
	supplement := &stubSupplement{returned: []parser.RawField{
		{Label: "tenant_name", Text: "Acme Holdings LLC", Confidence: 0.80},
	}}

	o := newTestOrchestrator(st, p, supplement)
	_, err := o.Process(context.Background(), "t1", testDoc(), []byte("%PDF"))
	require.NoError(t, err)

	assert.Equal(t, []string{"tenant_name"}, supplement.asked)
	require.Len(t, st.fields, 2)

	bySource := map[model.FieldSource]string{}
	for _, f := range st.fields {
		bySource[f.Source] = f.Key
	}
	assert.Equal(t, "base_rent", bySource[model.FieldSourceParser])
	assert.Equal(t, "tenant_name", bySource[model.FieldSourceLLM])
}
