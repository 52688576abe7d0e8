package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docpipe/internal/model"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "docpipe_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedDocument(t *testing.T, st *SQLiteStore, tenantID, hash string) *model.Document {
	t.Helper()
	doc, err := st.CreateDocument(context.Background(), &model.Document{
		TenantID:    tenantID,
		FileName:    "lease.pdf",
		ContentHash: hash,
		MimeType:    "application/pdf",
		SizeBytes:   2048,
	})
	require.NoError(t, err)
	return doc
}

func seedQueueItem(t *testing.T, st *SQLiteStore, tenantID string, priority int) *model.ReviewQueueItem {
	t.Helper()
	doc := seedDocument(t, st, tenantID, "hash-"+uuid.New().String())
	ext, err := st.CreateExtraction(context.Background(), tenantID, doc.ID)
	require.NoError(t, err)
	item, err := st.UpsertQueueItem(context.Background(), &model.ReviewQueueItem{
		TenantID:     tenantID,
		DocumentID:   doc.ID,
		ExtractionID: ext.ID,
		Priority:     priority,
	})
	require.NoError(t, err)
	return item
}

func TestSQLiteDocuments(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()

	doc := seedDocument(t, st, "acme", "hash-1")
	assert.Equal(t, model.DocumentPending, doc.Status)

	got, err := st.GetDocument(ctx, "acme", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.FileName, got.FileName)
	assert.Equal(t, int64(2048), got.SizeBytes)

	byHash, err := st.GetDocumentByHash(ctx, "acme", "hash-1")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, byHash.ID)

	_, err = st.CreateDocument(ctx, &model.Document{
		TenantID: "acme", FileName: "copy.pdf", ContentHash: "hash-1",
	})
	assert.ErrorIs(t, err, ErrDuplicate)

	// Same hash under a different tenant is a new document.
	_, err = st.CreateDocument(ctx, &model.Document{
		TenantID: "globex", FileName: "lease.pdf", ContentHash: "hash-1",
	})
	assert.NoError(t, err)

	require.NoError(t, st.UpdateDocumentStatus(ctx, "acme", doc.ID, model.DocumentReady, ""))
	got, err = st.GetDocument(ctx, "acme", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, model.DocumentReady, got.Status)

	assert.ErrorIs(t, st.UpdateDocumentStatus(ctx, "acme", "missing", model.DocumentReady, ""), ErrNotFound)
	_, err = st.GetDocument(ctx, "globex", doc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteExtractionVersioning(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()
	doc := seedDocument(t, st, "acme", "hash-1")

	first, err := st.CreateExtraction(ctx, "acme", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)
	assert.True(t, first.IsCurrent)

	second, err := st.CreateExtraction(ctx, "acme", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)

	prev, err := st.GetExtraction(ctx, "acme", first.ID)
	require.NoError(t, err)
	assert.False(t, prev.IsCurrent)

	current, err := st.GetCurrentExtraction(ctx, "acme", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.ID)

	list, err := st.ListExtractions(ctx, "acme", doc.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2, list[0].Version)
	assert.Equal(t, 1, list[1].Version)
}

func TestSQLiteFinalizeExtraction(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()
	doc := seedDocument(t, st, "acme", "hash-1")
	ext, err := st.CreateExtraction(ctx, "acme", doc.ID)
	require.NoError(t, err)

	done, err := st.FinalizeExtraction(ctx, "acme", ext.ID, ExtractionFinal{
		Status:       model.ExtractionCompleted,
		Confidence:   0.88,
		DocumentType: model.DocTypeLease,
		ParserUsed:   "docuparse",
	})
	require.NoError(t, err)
	assert.Equal(t, model.ExtractionCompleted, done.Status)
	assert.InDelta(t, 0.88, done.Confidence, 1e-9)
	assert.Equal(t, model.DocTypeLease, done.DocumentType)
	require.NotNil(t, done.CompletedAt)

	// Completed is terminal.
	_, err = st.FinalizeExtraction(ctx, "acme", ext.ID, ExtractionFinal{Status: model.ExtractionFailed})
	assert.ErrorIs(t, err, ErrStateConflict)

	_, err = st.FinalizeExtraction(ctx, "acme", "missing", ExtractionFinal{Status: model.ExtractionCompleted})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteFieldsRoundTrip(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()
	doc := seedDocument(t, st, "acme", "hash-1")
	ext, err := st.CreateExtraction(ctx, "acme", doc.ID)
	require.NoError(t, err)

	fields := []model.ExtractionField{
		{
			Key:        "base_rent",
			Value:      4500.0,
			RawText:    "$4,500.00",
			Confidence: 0.92,
			Source:     model.FieldSourceParser,
			PageNumber: 3,
			Bounds:     &model.BoundingBox{X: 0.1, Y: 0.4, Width: 0.2, Height: 0.03},
		},
		{
			Key:        "tenant_name",
			Value:      "Acme Corp",
			RawText:    "Acme Corp",
			Confidence: 0.97,
			Source:     model.FieldSourceLLM,
		},
	}
	require.NoError(t, st.InsertFields(ctx, "acme", ext.ID, fields))

	got, err := st.ListFields(ctx, "acme", ext.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "base_rent", got[0].Key)
	assert.Equal(t, 4500.0, got[0].Value)
	assert.Equal(t, model.FieldSourceParser, got[0].Source)
	require.NotNil(t, got[0].Bounds)
	assert.InDelta(t, 0.4, got[0].Bounds.Y, 1e-9)
	assert.Equal(t, "tenant_name", got[1].Key)
	assert.Nil(t, got[1].Bounds)

	over, err := st.OverrideField(ctx, "acme", got[0].ID, 4750.0, "reviewer@acme")
	require.NoError(t, err)
	assert.True(t, over.IsOverride)
	assert.Equal(t, 4750.0, over.OverrideValue)
	assert.Equal(t, "reviewer@acme", over.OverriddenBy)
	require.NotNil(t, over.OverriddenAt)
	assert.Equal(t, 4750.0, over.EffectiveValue())
	assert.Equal(t, 4500.0, over.Value)

	_, err = st.OverrideField(ctx, "acme", "missing", 1.0, "reviewer@acme")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteTablesRoundTrip(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()
	doc := seedDocument(t, st, "acme", "hash-1")
	ext, err := st.CreateExtraction(ctx, "acme", doc.ID)
	require.NoError(t, err)

	tables := []model.ExtractionTable{
		{
			Name:       "rent schedule",
			PageNumber: 5,
			Headers:    []string{"year", "monthly rent"},
			Rows:       [][]string{{"1", "4500"}, {"2", "4635"}},
		},
	}
	require.NoError(t, st.InsertTables(ctx, "acme", ext.ID, tables))

	got, err := st.ListTables(ctx, "acme", ext.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "rent schedule", got[0].Name)
	assert.Equal(t, []string{"year", "monthly rent"}, got[0].Headers)
	require.Len(t, got[0].Rows, 2)
	assert.Equal(t, []string{"2", "4635"}, got[0].Rows[1])
}

func TestSQLiteQueueClaimLifecycle(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()
	item := seedQueueItem(t, st, "acme", 40)
	assert.Equal(t, model.QueuePending, item.Status)

	claimed, err := st.ClaimQueueItem(ctx, "acme", item.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.QueueClaimed, claimed.Status)
	assert.Equal(t, "alice", claimed.ClaimedBy)
	require.NotNil(t, claimed.ClaimedAt)

	_, err = st.ClaimQueueItem(ctx, "acme", item.ID, "bob")
	assert.ErrorIs(t, err, ErrStateConflict)

	_, err = st.FinishQueueItem(ctx, "acme", item.ID, "bob", model.QueueCompleted)
	assert.ErrorIs(t, err, ErrStateConflict)

	done, err := st.FinishQueueItem(ctx, "acme", item.ID, "alice", model.QueueCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.QueueCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)

	_, err = st.ClaimQueueItem(ctx, "acme", item.ID, "alice")
	assert.ErrorIs(t, err, ErrStateConflict)
	_, err = st.ClaimQueueItem(ctx, "acme", "missing", "alice")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteQueueSkipPending(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()
	item := seedQueueItem(t, st, "acme", 10)

	skipped, err := st.SkipPendingQueueItem(ctx, "acme", item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QueueSkipped, skipped.Status)

	_, err = st.SkipPendingQueueItem(ctx, "acme", item.ID)
	assert.ErrorIs(t, err, ErrStateConflict)
}

func TestSQLiteQueueUpsert(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()
	item := seedQueueItem(t, st, "acme", 20)

	// Re-evaluation refreshes priority on the same row.
	refreshed, err := st.UpsertQueueItem(ctx, &model.ReviewQueueItem{
		TenantID:     "acme",
		DocumentID:   item.DocumentID,
		ExtractionID: item.ExtractionID,
		Priority:     35,
	})
	require.NoError(t, err)
	assert.Equal(t, item.ID, refreshed.ID)
	assert.Equal(t, 35, refreshed.Priority)

	// Terminal items are left untouched.
	_, err = st.SkipPendingQueueItem(ctx, "acme", item.ID)
	require.NoError(t, err)
	after, err := st.UpsertQueueItem(ctx, &model.ReviewQueueItem{
		TenantID:     "acme",
		DocumentID:   item.DocumentID,
		ExtractionID: item.ExtractionID,
		Priority:     60,
	})
	require.NoError(t, err)
	assert.Equal(t, model.QueueSkipped, after.Status)
	assert.Equal(t, 35, after.Priority)
}

func TestSQLiteListQueueOrdering(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()

	low := seedQueueItem(t, st, "acme", 10)
	high := seedQueueItem(t, st, "acme", 90)
	mid := seedQueueItem(t, st, "acme", 50)
	seedQueueItem(t, st, "globex", 99)

	items, err := st.ListQueue(ctx, "acme", QueueFilter{})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, high.ID, items[0].ID)
	assert.Equal(t, mid.ID, items[1].ID)
	assert.Equal(t, low.ID, items[2].ID)

	items, err = st.ListQueue(ctx, "acme", QueueFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, high.ID, items[0].ID)

	_, err = st.ClaimQueueItem(ctx, "acme", high.ID, "alice")
	require.NoError(t, err)
	items, err = st.ListQueue(ctx, "acme", QueueFilter{Status: model.QueueClaimed})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, high.ID, items[0].ID)
}

func TestSQLiteReleaseStaleClaims(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()

	stale := seedQueueItem(t, st, "acme", 40)
	fresh := seedQueueItem(t, st, "acme", 30)
	_, err := st.ClaimQueueItem(ctx, "acme", stale.ID, "alice")
	require.NoError(t, err)
	_, err = st.ClaimQueueItem(ctx, "acme", fresh.ID, "bob")
	require.NoError(t, err)

	// Backdate one claim past the cutoff.
	old := time.Now().UTC().Add(-2 * time.Hour)
	_, err = st.db.ExecContext(ctx, `UPDATE review_queue SET claimed_at = ? WHERE id = ?`, old, stale.ID)
	require.NoError(t, err)

	n, err := st.ReleaseStaleClaims(ctx, time.Now().UTC().Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	released, err := st.GetQueueItem(ctx, "acme", stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QueuePending, released.Status)
	assert.Empty(t, released.ClaimedBy)
	assert.Nil(t, released.ClaimedAt)

	kept, err := st.GetQueueItem(ctx, "acme", fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.QueueClaimed, kept.Status)
	assert.Equal(t, "bob", kept.ClaimedBy)
}
