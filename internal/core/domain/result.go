package domain

import "time"

// Classification is the analysis payload returned by the external service.
type Classification struct {
	Intent         string `json:"intent"         db:"intent"`
	Topic          string `json:"topic"          db:"topic"`
	Sentiment      string `json:"sentiment"      db:"sentiment"`
	Categorization string `json:"categorization" db:"categorization"`
}

// ProcessingMetadata records how a result came to be.
type ProcessingMetadata struct {
	BatchJobID         string `json:"batch_job_id"        db:"batch_job_id"`
	ProcessingAttempts int    `json:"processing_attempts" db:"processing_attempts"`
}

// ResultDocument is created exactly once per successful analysis. It is never
// updated in place; reprocessing a source document creates a new result.
type ResultDocument struct {
	ID                 string             `json:"_id"                 db:"id"`
	ConversationNumber string             `json:"conversation_number" db:"conversation_number"`
	SourceObjectID     string             `json:"source_object_id"    db:"source_object_id"`
	Classification     Classification     `json:"classification"`
	ProcessedAt        time.Time          `json:"processed_at"        db:"processed_at"`
	ProcessingMetadata ProcessingMetadata `json:"processing_metadata"`
}
