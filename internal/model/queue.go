package model

import "time"

// QueueStatus tracks a review queue item.
type QueueStatus string

const (
	QueuePending   QueueStatus = "pending"
	QueueClaimed   QueueStatus = "claimed"
	QueueCompleted QueueStatus = "completed"
	QueueSkipped   QueueStatus = "skipped"
)

// Terminal reports whether the item has left the queue for good.
func (s QueueStatus) Terminal() bool {
	return s == QueueCompleted || s == QueueSkipped
}

// ReviewQueueItem is a unit of human review work. At most one active
// (non-terminal) item exists per extraction; the ExtractionID back-reference
// never implies ownership of the extraction itself.
type ReviewQueueItem struct {
	ID           string      `json:"id"`
	TenantID     string      `json:"tenant_id"`
	DocumentID   string      `json:"document_id"`
	ExtractionID string      `json:"extraction_id"`
	Priority     int         `json:"priority"`
	Status       QueueStatus `json:"status"`
	ClaimedBy    string      `json:"claimed_by,omitempty"`
	ClaimedAt    *time.Time  `json:"claimed_at,omitempty"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}
