// Package extraction drives one document through the parser chain and
// normalizer, persisting a new immutable extraction version and handing
// completed work to the review queue.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/docpipe/internal/model"
	"github.com/sells-group/docpipe/internal/normalize"
	"github.com/sells-group/docpipe/internal/parser"
	"github.com/sells-group/docpipe/internal/redact"
	"github.com/sells-group/docpipe/internal/review"
	"github.com/sells-group/docpipe/internal/store"
)

// FailedError is terminal for one orchestration run. The run is not retried
// by the orchestrator; a retry is an explicit new run producing a new
// version. Transient distinguishes "try again later" (parser timeouts) from
// a hard failure.
type FailedError struct {
	DocumentID   string
	ExtractionID string
	Err          error
	Transient    bool
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("extraction %s for document %s failed: %v", e.ExtractionID, e.DocumentID, e.Err)
}

func (e *FailedError) Unwrap() error { return e.Err }

// FieldExtractor supplements parser output with additional field candidates
// (the LLM pass). Implementations must be best-effort and never fail.
type FieldExtractor interface {
	Extract(ctx context.Context, text string, missing []string) []parser.RawField
	Missing(present []parser.RawField) []string
}

// Orchestrator runs the extract-normalize-persist pipeline for one document
// at a time. Multiple orchestrators run concurrently across workers; the
// store's conditional writes keep versioning consistent.
type Orchestrator struct {
	store      store.Store
	router     *parser.Router
	normalizer *normalize.Normalizer
	redactor   redact.Redactor
	reviews    *review.Service
	supplement FieldExtractor // optional
}

// NewOrchestrator wires the pipeline. supplement may be nil.
func NewOrchestrator(st store.Store, router *parser.Router, n *normalize.Normalizer, r redact.Redactor, reviews *review.Service, supplement FieldExtractor) *Orchestrator {
	return &Orchestrator{
		store:      st,
		router:     router,
		normalizer: n,
		redactor:   r,
		reviews:    reviews,
		supplement: supplement,
	}
}

// Process parses a document, persists a new extraction version, and
// evaluates review queueing. On any failure the extraction lands in
// status=failed; a cancelled run is finalized with the cancellation error so
// nothing is left in processing.
func (o *Orchestrator) Process(ctx context.Context, tenantID string, doc *model.Document, content []byte) (*model.Extraction, error) {
	ext, err := o.store.CreateExtraction(ctx, tenantID, doc.ID)
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: create extraction")
	}

	log := zap.L().With(
		zap.String("tenant_id", tenantID),
		zap.String("document_id", doc.ID),
		zap.String("extraction_id", ext.ID),
		zap.Int("version", ext.Version),
	)
	log.Info("orchestrator: extraction started", zap.String("mime_type", doc.MimeType))

	if err := o.store.UpdateDocumentStatus(ctx, tenantID, doc.ID, model.DocumentProcessing, ""); err != nil {
		log.Warn("orchestrator: document status update failed", zap.Error(err))
	}

	result, parserUsed, parseErr := o.router.Parse(ctx, content, doc.MimeType)
	if parseErr != nil {
		return nil, o.fail(ctx, tenantID, doc, ext, parseErr)
	}
	log.Info("orchestrator: parsed",
		zap.String("parser", parserUsed),
		zap.Float64("parser_confidence", result.Confidence),
	)

	if err := ctx.Err(); err != nil {
		return nil, o.fail(ctx, tenantID, doc, ext, eris.Wrap(err, "cancelled"))
	}

	rawFields := result.Fields
	parserCount := len(rawFields)
	if o.supplement != nil {
		if missing := o.supplement.Missing(rawFields); len(missing) > 0 {
			extra := o.supplement.Extract(ctx, result.Text, missing)
			log.Debug("orchestrator: llm supplement",
				zap.Int("requested", len(missing)),
				zap.Int("returned", len(extra)),
			)
			rawFields = append(rawFields, extra...)
		}
	}

	// Redaction happens before anything derived from document content is
	// written: field raw text first, table cells below. Raw candidates carry
	// no provenance, so the parser/LLM split is positional.
	redactedRaw, err := o.redactFields(ctx, rawFields)
	if err != nil {
		return nil, o.fail(ctx, tenantID, doc, ext, eris.Wrap(err, "redact fields"))
	}

	parserFields := o.normalizer.Fields(redactedRaw[:parserCount], model.FieldSourceParser)
	llmFields := o.normalizer.Fields(redactedRaw[parserCount:], model.FieldSourceLLM)
	fields := mergeFields(parserFields, llmFields)

	tables, err := o.redactTables(ctx, normalize.Tables(result.Tables))
	if err != nil {
		return nil, o.fail(ctx, tenantID, doc, ext, eris.Wrap(err, "redact tables"))
	}

	if err := ctx.Err(); err != nil {
		return nil, o.fail(ctx, tenantID, doc, ext, eris.Wrap(err, "cancelled"))
	}

	if len(fields) > 0 {
		if err := o.store.InsertFields(ctx, tenantID, ext.ID, fields); err != nil {
			return nil, o.fail(ctx, tenantID, doc, ext, eris.Wrap(err, "persist fields"))
		}
	}
	if len(tables) > 0 {
		if err := o.store.InsertTables(ctx, tenantID, ext.ID, tables); err != nil {
			return nil, o.fail(ctx, tenantID, doc, ext, eris.Wrap(err, "persist tables"))
		}
	}

	final, err := o.store.FinalizeExtraction(ctx, tenantID, ext.ID, store.ExtractionFinal{
		Status:       model.ExtractionCompleted,
		Confidence:   o.normalizer.OverallConfidence(result.Confidence, fields),
		DocumentType: normalize.ClassifyDocument(doc.MimeType, result),
		ParserUsed:   parserUsed,
	})
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: finalize extraction")
	}

	if err := o.store.UpdateDocumentStatus(ctx, tenantID, doc.ID, model.DocumentReady, ""); err != nil {
		log.Warn("orchestrator: document status update failed", zap.Error(err))
	}

	if _, err := o.reviews.Evaluate(ctx, final, fields); err != nil {
		// The extraction itself succeeded; queueing is retried on the next
		// evaluation pass.
		log.Error("orchestrator: review evaluation failed", zap.Error(err))
	}

	log.Info("orchestrator: extraction completed",
		zap.Float64("confidence", final.Confidence),
		zap.Int("fields", len(fields)),
		zap.Int("tables", len(tables)),
	)
	return final, nil
}

// fail finalizes the extraction as failed. Bookkeeping writes run on a
// detached context so a cancelled run still leaves a terminal row.
func (o *Orchestrator) fail(ctx context.Context, tenantID string, doc *model.Document, ext *model.Extraction, cause error) error {
	writeCtx := context.WithoutCancel(ctx)

	if _, err := o.store.FinalizeExtraction(writeCtx, tenantID, ext.ID, store.ExtractionFinal{
		Status:       model.ExtractionFailed,
		ErrorMessage: cause.Error(),
	}); err != nil && !errors.Is(err, store.ErrStateConflict) {
		zap.L().Error("orchestrator: failed-state finalize failed",
			zap.String("tenant_id", tenantID),
			zap.String("extraction_id", ext.ID),
			zap.Error(err),
		)
	}
	if err := o.store.UpdateDocumentStatus(writeCtx, tenantID, doc.ID, model.DocumentFailed, cause.Error()); err != nil {
		zap.L().Warn("orchestrator: document status update failed",
			zap.String("document_id", doc.ID),
			zap.Error(err),
		)
	}

	var pe *parser.Error
	transient := errors.As(cause, &pe) && pe.Transient

	zap.L().Error("orchestrator: extraction failed",
		zap.String("tenant_id", tenantID),
		zap.String("document_id", doc.ID),
		zap.String("extraction_id", ext.ID),
		zap.Bool("transient", transient),
		zap.Error(cause),
	)
	return &FailedError{
		DocumentID:   doc.ID,
		ExtractionID: ext.ID,
		Err:          cause,
		Transient:    transient,
	}
}

// redactFields scrubs every candidate's raw text in one redaction call by
// round-tripping the text slice through JSON.
func (o *Orchestrator) redactFields(ctx context.Context, raw []parser.RawField) ([]parser.RawField, error) {
	if len(raw) == 0 {
		return raw, nil
	}
	texts := make([]string, len(raw))
	for i, f := range raw {
		texts[i] = f.Text
	}
	encoded, err := json.Marshal(texts)
	if err != nil {
		return nil, eris.Wrap(err, "marshal field texts")
	}
	scrubbed, err := o.redactor.Redact(ctx, encoded, "application/json")
	if err != nil {
		return nil, err
	}
	var cleaned []string
	if err := json.Unmarshal(scrubbed, &cleaned); err != nil {
		return nil, eris.Wrap(err, "unmarshal redacted field texts")
	}
	if len(cleaned) != len(raw) {
		return nil, eris.Errorf("redactor returned %d texts for %d fields", len(cleaned), len(raw))
	}

	out := make([]parser.RawField, len(raw))
	copy(out, raw)
	for i := range out {
		out[i].Text = cleaned[i]
	}
	return out, nil
}

// redactTables scrubs table content the same way.
func (o *Orchestrator) redactTables(ctx context.Context, tables []model.ExtractionTable) ([]model.ExtractionTable, error) {
	if len(tables) == 0 {
		return tables, nil
	}
	encoded, err := json.Marshal(tables)
	if err != nil {
		return nil, eris.Wrap(err, "marshal tables")
	}
	scrubbed, err := o.redactor.Redact(ctx, encoded, "application/json")
	if err != nil {
		return nil, err
	}
	var out []model.ExtractionTable
	if err := json.Unmarshal(scrubbed, &out); err != nil {
		return nil, eris.Wrap(err, "unmarshal redacted tables")
	}
	return out, nil
}

// mergeFields keeps the higher-confidence candidate per key, preferring the
// parser on ties.
func mergeFields(parserFields, llmFields []model.ExtractionField) []model.ExtractionField {
	byKey := make(map[string]model.ExtractionField, len(parserFields)+len(llmFields))
	order := make([]string, 0, len(parserFields)+len(llmFields))
	for _, f := range parserFields {
		byKey[f.Key] = f
		order = append(order, f.Key)
	}
	for _, f := range llmFields {
		if prev, ok := byKey[f.Key]; ok {
			if f.Confidence > prev.Confidence {
				byKey[f.Key] = f
			}
			continue
		}
		byKey[f.Key] = f
		order = append(order, f.Key)
	}
	out := make([]model.ExtractionField, 0, len(order))
	for _, key := range order {
		out = append(out, byKey[key])
	}
	return out
}
