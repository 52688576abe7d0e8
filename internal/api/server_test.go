package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/docpipe/internal/extraction"
	"github.com/sells-group/docpipe/internal/model"
	"github.com/sells-group/docpipe/internal/normalize"
	"github.com/sells-group/docpipe/internal/parser"
	"github.com/sells-group/docpipe/internal/redact"
	"github.com/sells-group/docpipe/internal/review"
	"github.com/sells-group/docpipe/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type stubParser struct {
	result *parser.ParseResult
}

func (p *stubParser) Name() string                      { return "stub" }
func (p *stubParser) Supports(string) bool              { return true }
func (p *stubParser) HealthCheck(context.Context) error { return nil }
func (p *stubParser) Parse(context.Context, []byte, string) (*parser.ParseResult, error) {
	return p.result, nil
}

type testAPI struct {
	handler http.Handler
	store   *store.SQLiteStore
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	schema := model.NewFieldSchema([]model.FieldDefinition{
		{Key: "base_rent", Type: model.FieldTypeCurrency, Required: true, Critical: true},
		{Key: "tenant_name", Type: model.FieldTypeString, Required: true},
	})

	router := parser.NewRouter(parser.RouterConfig{
		Chains:         map[string][]string{"*": {"stub"}},
		AdapterTimeout: time.Second,
	})
	router.Register(&stubParser{result: &parser.ParseResult{
		Text: "THIS LEASE...",
		Fields: []parser.RawField{
			{Label: "base_rent", Text: "$4,500.00", Confidence: 0.9, PageNumber: 2},
		},
		Confidence: 0.9,
	}})

	reviews := review.NewService(st, schema, review.DefaultConfig())
	orch := extraction.NewOrchestrator(st, router, normalize.New(schema), redact.Passthrough{}, reviews, nil)

	handler := NewHandler(Deps{
		Store:        st,
		Reviews:      reviews,
		Orchestrator: orch,
		Tokens:       map[string]string{"tok-acme": "acme", "tok-globex": "globex"},
	})
	return &testAPI{handler: handler, store: st}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) doJSON(t *testing.T, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	return a.do(t, method, path, token, body, "application/json")
}

func multipartUpload(t *testing.T, fileName, mimeType string, content []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	hdr.Set("Content-Type", mimeType)
	part, err := w.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

// waitForDocument polls until the background extraction settles.
func (a *testAPI) waitForDocument(t *testing.T, token, docID string) model.DocumentStatus {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := a.do(t, http.MethodGet, "/documents/"+docID, token, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var doc model.Document
		decodeBody(t, rec, &doc)
		if doc.Status == model.DocumentReady || doc.Status == model.DocumentFailed {
			return doc.Status
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("document never settled")
	return ""
}

func TestHealthRequiresNoAuth(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(t, http.MethodGet, "/health", "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/queue", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodGet, "/queue", "tok-bogus", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUploadFlow(t *testing.T) {
	a := newTestAPI(t)
	content := []byte("%PDF-1.7 lease body")

	body, contentType := multipartUpload(t, "lease.pdf", "application/pdf", content)
	rec := a.do(t, http.MethodPost, "/documents", "tok-acme", body, contentType)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var accepted struct {
		DocumentID string `json:"document_id"`
	}
	decodeBody(t, rec, &accepted)
	require.NotEmpty(t, accepted.DocumentID)

	status := a.waitForDocument(t, "tok-acme", accepted.DocumentID)
	assert.Equal(t, model.DocumentReady, status)

	// One completed extraction with the parsed field.
	rec = a.do(t, http.MethodGet, "/documents/"+accepted.DocumentID+"/extractions", "tok-acme", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var extList struct {
		Extractions []model.Extraction `json:"extractions"`
	}
	decodeBody(t, rec, &extList)
	require.Len(t, extList.Extractions, 1)
	ext := extList.Extractions[0]
	assert.Equal(t, model.ExtractionCompleted, ext.Status)
	assert.Equal(t, 1, ext.Version)
	assert.Equal(t, "stub", ext.ParserUsed)

	rec = a.do(t, http.MethodGet, "/extractions/"+ext.ID+"/fields", "tok-acme", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var fieldList struct {
		Fields []model.ExtractionField `json:"fields"`
	}
	decodeBody(t, rec, &fieldList)
	require.Len(t, fieldList.Fields, 1)
	assert.Equal(t, "base_rent", fieldList.Fields[0].Key)

	// Missing required field pulled the confidence below threshold.
	rec = a.do(t, http.MethodGet, "/queue", "tok-acme", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var queue struct {
		Items []model.ReviewQueueItem `json:"items"`
	}
	decodeBody(t, rec, &queue)
	require.Len(t, queue.Items, 1)
	assert.Equal(t, ext.ID, queue.Items[0].ExtractionID)

	// Same bytes again: conflict with a pointer to the existing document.
	body, contentType = multipartUpload(t, "lease-copy.pdf", "application/pdf", content)
	rec = a.do(t, http.MethodPost, "/documents", "tok-acme", body, contentType)
	require.Equal(t, http.StatusConflict, rec.Code)
	var dup struct {
		DocumentID string `json:"document_id"`
	}
	decodeBody(t, rec, &dup)
	assert.Equal(t, accepted.DocumentID, dup.DocumentID)

	// Another tenant cannot see the document.
	rec = a.do(t, http.MethodGet, "/documents/"+accepted.DocumentID, "tok-globex", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadRequiresFile(t *testing.T) {
	a := newTestAPI(t)
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("name", "lease.pdf"))
	require.NoError(t, w.Close())

	rec := a.do(t, http.MethodPost, "/documents", "tok-acme", &buf, w.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueueClaimFlow(t *testing.T) {
	a := newTestAPI(t)

	body, contentType := multipartUpload(t, "lease.pdf", "application/pdf", []byte("%PDF-1.7 claim flow"))
	rec := a.do(t, http.MethodPost, "/documents", "tok-acme", body, contentType)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var accepted struct {
		DocumentID string `json:"document_id"`
	}
	decodeBody(t, rec, &accepted)
	a.waitForDocument(t, "tok-acme", accepted.DocumentID)

	rec = a.do(t, http.MethodGet, "/queue", "tok-acme", nil, "")
	var queue struct {
		Items []model.ReviewQueueItem `json:"items"`
	}
	decodeBody(t, rec, &queue)
	require.Len(t, queue.Items, 1)
	itemID := queue.Items[0].ID

	rec = a.doJSON(t, http.MethodPost, "/queue/"+itemID+"/claim", "tok-acme", map[string]string{"user": "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	var item model.ReviewQueueItem
	decodeBody(t, rec, &item)
	assert.Equal(t, model.QueueClaimed, item.Status)
	assert.Equal(t, "alice", item.ClaimedBy)

	// A second claim conflicts and names the holder.
	rec = a.doJSON(t, http.MethodPost, "/queue/"+itemID+"/claim", "tok-acme", map[string]string{"user": "bob"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "alice")

	// Completing someone else's claim is forbidden.
	rec = a.doJSON(t, http.MethodPost, "/queue/"+itemID+"/complete", "tok-acme", map[string]string{"user": "bob"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.doJSON(t, http.MethodPost, "/queue/"+itemID+"/complete", "tok-acme", map[string]string{"user": "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &item)
	assert.Equal(t, model.QueueCompleted, item.Status)

	// Terminal items cannot be claimed again.
	rec = a.doJSON(t, http.MethodPost, "/queue/"+itemID+"/claim", "tok-acme", map[string]string{"user": "bob"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestQueueActionValidation(t *testing.T) {
	a := newTestAPI(t)

	rec := a.doJSON(t, http.MethodPost, "/queue/some-id/claim", "tok-acme", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.doJSON(t, http.MethodPost, "/queue/missing/claim", "tok-acme", map[string]string{"user": "alice"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(t, http.MethodGet, "/queue?limit=nope", "tok-acme", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOverrideField(t *testing.T) {
	a := newTestAPI(t)

	body, contentType := multipartUpload(t, "lease.pdf", "application/pdf", []byte("%PDF-1.7 override"))
	rec := a.do(t, http.MethodPost, "/documents", "tok-acme", body, contentType)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var accepted struct {
		DocumentID string `json:"document_id"`
	}
	decodeBody(t, rec, &accepted)
	a.waitForDocument(t, "tok-acme", accepted.DocumentID)

	rec = a.do(t, http.MethodGet, "/documents/"+accepted.DocumentID+"/extractions", "tok-acme", nil, "")
	var extList struct {
		Extractions []model.Extraction `json:"extractions"`
	}
	decodeBody(t, rec, &extList)
	require.Len(t, extList.Extractions, 1)

	rec = a.do(t, http.MethodGet, "/extractions/"+extList.Extractions[0].ID+"/fields", "tok-acme", nil, "")
	var fieldList struct {
		Fields []model.ExtractionField `json:"fields"`
	}
	decodeBody(t, rec, &fieldList)
	require.Len(t, fieldList.Fields, 1)
	fieldID := fieldList.Fields[0].ID

	rec = a.doJSON(t, http.MethodPost, "/fields/"+fieldID+"/override", "tok-acme", map[string]any{
		"value": 4750.0,
		"actor": "reviewer@acme",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var field model.ExtractionField
	decodeBody(t, rec, &field)
	assert.True(t, field.IsOverride)
	assert.Equal(t, 4750.0, field.OverrideValue)
	assert.Equal(t, "reviewer@acme", field.OverriddenBy)

	// Actor is mandatory.
	rec = a.doJSON(t, http.MethodPost, "/fields/"+fieldID+"/override", "tok-acme", map[string]any{"value": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
