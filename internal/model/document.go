package model

import "time"

// DocumentStatus tracks a document through the ingestion lifecycle.
type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "pending"
	DocumentProcessing DocumentStatus = "processing"
	DocumentReady      DocumentStatus = "ready"
	DocumentFailed     DocumentStatus = "failed"
)

// SourceType identifies where a document was captured from.
type SourceType string

const (
	SourceUpload SourceType = "upload"
	SourceSync   SourceType = "sync"
	SourceEmail  SourceType = "email"
)

// Document is an immutable record of a captured file. Only Status and
// ErrorMessage change after creation; content-identifying attributes never do.
// The (TenantID, ContentHash) pair is the dedup key.
type Document struct {
	ID           string         `json:"id"`
	TenantID     string         `json:"tenant_id"`
	FileName     string         `json:"file_name"`
	ContentHash  string         `json:"content_hash"`
	MimeType     string         `json:"mime_type"`
	SizeBytes    int64          `json:"size_bytes"`
	SourceType   SourceType     `json:"source_type"`
	Status       DocumentStatus `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
