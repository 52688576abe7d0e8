// Package store persists documents, extractions, and the review queue. The
// relational store is the single arbiter of races: version assignment and
// queue claims are conditional writes, never read-modify-write.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docpipe/internal/model"
)

// Sentinel errors surfaced by both backends. Callers translate these into
// user-facing typed errors.
var (
	// ErrNotFound means no row matched the tenant-scoped lookup.
	ErrNotFound = eris.New("store: not found")
	// ErrDuplicate means a uniqueness constraint was hit (document content
	// hash per tenant).
	ErrDuplicate = eris.New("store: duplicate")
	// ErrStateConflict means a conditional update matched zero rows because
	// the row was not in the required state.
	ErrStateConflict = eris.New("store: state conflict")
)

// ExtractionFinal carries the terminal attributes written when an extraction
// finishes.
type ExtractionFinal struct {
	Status       model.ExtractionStatus
	Confidence   float64
	DocumentType model.DocumentType
	ParserUsed   string
	ErrorMessage string
}

// QueueFilter restricts review queue listings.
type QueueFilter struct {
	Status model.QueueStatus
	Limit  int
}

// Store is the persistence interface for the extraction and review pipeline.
// Every operation is scoped by tenant id; implementations must filter every
// query and write by it.
type Store interface {
	// Documents
	CreateDocument(ctx context.Context, doc *model.Document) (*model.Document, error)
	GetDocument(ctx context.Context, tenantID, id string) (*model.Document, error)
	GetDocumentByHash(ctx context.Context, tenantID, contentHash string) (*model.Document, error)
	UpdateDocumentStatus(ctx context.Context, tenantID, id string, status model.DocumentStatus, errMsg string) error

	// Extractions. CreateExtraction atomically assigns version =
	// max(existing)+1 and flips the prior current row; FinalizeExtraction
	// only succeeds while the row is still processing.
	CreateExtraction(ctx context.Context, tenantID, documentID string) (*model.Extraction, error)
	FinalizeExtraction(ctx context.Context, tenantID, id string, fin ExtractionFinal) (*model.Extraction, error)
	GetExtraction(ctx context.Context, tenantID, id string) (*model.Extraction, error)
	GetCurrentExtraction(ctx context.Context, tenantID, documentID string) (*model.Extraction, error)
	ListExtractions(ctx context.Context, tenantID, documentID string) ([]model.Extraction, error)

	// Fields and tables
	InsertFields(ctx context.Context, tenantID, extractionID string, fields []model.ExtractionField) error
	InsertTables(ctx context.Context, tenantID, extractionID string, tables []model.ExtractionTable) error
	ListFields(ctx context.Context, tenantID, extractionID string) ([]model.ExtractionField, error)
	ListTables(ctx context.Context, tenantID, extractionID string) ([]model.ExtractionTable, error)
	OverrideField(ctx context.Context, tenantID, fieldID string, value any, actor string) (*model.ExtractionField, error)

	// Review queue. UpsertQueueItem keys on extraction id and never moves a
	// terminal item back to pending. Claim and Finish are single conditional
	// updates; zero matched rows surfaces ErrStateConflict.
	UpsertQueueItem(ctx context.Context, item *model.ReviewQueueItem) (*model.ReviewQueueItem, error)
	GetQueueItem(ctx context.Context, tenantID, id string) (*model.ReviewQueueItem, error)
	ListQueue(ctx context.Context, tenantID string, filter QueueFilter) ([]model.ReviewQueueItem, error)
	ClaimQueueItem(ctx context.Context, tenantID, id, user string) (*model.ReviewQueueItem, error)
	FinishQueueItem(ctx context.Context, tenantID, id, user string, to model.QueueStatus) (*model.ReviewQueueItem, error)
	SkipPendingQueueItem(ctx context.Context, tenantID, id string) (*model.ReviewQueueItem, error)
	ReleaseStaleClaims(ctx context.Context, claimedBefore time.Time) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
