package domain

import "time"

// BatchStatus is the lifecycle state of a batch manifest.
type BatchStatus string

const (
	BatchStatusPending   BatchStatus = "pending"
	BatchStatusCompleted BatchStatus = "completed"
)

// BatchMetadata describes one fetched window: its pagination bounds and state.
type BatchMetadata struct {
	BatchID       string      `json:"batch_id"`
	CreatedAt     time.Time   `json:"created_at"`
	DocumentCount int         `json:"document_count"`
	FirstObjectID string      `json:"first_object_id,omitempty"`
	LastObjectID  string      `json:"last_object_id,omitempty"`
	Status        BatchStatus `json:"status"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty"`
}

// BatchManifest is a durable snapshot of one fetched window, used for crash
// recovery independent of re-querying the source. A manifest lives in exactly
// one of the pending/completed areas at any time, and DocumentCount always
// equals len(Documents).
type BatchManifest struct {
	Metadata  BatchMetadata     `json:"metadata"`
	Documents []*SourceDocument `json:"documents"`
}
