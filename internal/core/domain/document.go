package domain

import (
	"fmt"
	"strings"
	"time"
)

// DocumentStatus tracks where a source document is in its processing lifecycle.
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusProcessed  DocumentStatus = "processed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// SourceDocument is a record in the source collection. The payload is owned by
// the upstream producer and passed through opaquely; the ingestor only mutates
// status, processing_attempts, result_id and last_processed_at.
type SourceDocument struct {
	ID                 string         `json:"_id"                  db:"id"`
	ConversationNumber string         `json:"conversation_number"  db:"conversation_number"`
	Status             DocumentStatus `json:"status"               db:"status"`
	ProcessingAttempts int            `json:"processing_attempts"  db:"processing_attempts"`
	ResultID           string         `json:"result_id,omitempty"  db:"result_id"`
	LastProcessedAt    time.Time      `json:"last_processed_at"    db:"last_processed_at"`
	Payload            map[string]any `json:"payload"              db:"-"`
}

// ConversationText flattens the document payload into a single conversation
// transcript. Supported payload shapes, in order of preference:
// a "tweets" array, a "messages" array, then a bare "text"/"content" field.
// Returns "" when the document carries no usable text.
func (d *SourceDocument) ConversationText() string {
	var b strings.Builder

	if tweets, ok := d.Payload["tweets"].([]any); ok {
		for _, t := range tweets {
			tweet, ok := t.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := tweet["text"].(string); ok && text != "" {
				fmt.Fprintf(&b, "Customer: %s\n", text)
			}
		}
	}

	if strings.TrimSpace(b.String()) == "" {
		if messages, ok := d.Payload["messages"].([]any); ok {
			for _, m := range messages {
				msg, ok := m.(map[string]any)
				if !ok {
					continue
				}
				text, _ := msg["content"].(string)
				if text == "" {
					text, _ = msg["text"].(string)
				}
				sender, _ := msg["sender"].(string)
				if sender == "" {
					sender = "Customer"
				} else {
					sender = strings.ToUpper(sender[:1]) + sender[1:]
				}
				fmt.Fprintf(&b, "%s: %s\n", sender, text)
			}
		}
	}

	if strings.TrimSpace(b.String()) == "" {
		if text, ok := d.Payload["text"].(string); ok {
			return text
		}
		if text, ok := d.Payload["content"].(string); ok {
			return text
		}
	}

	return strings.TrimSpace(b.String())
}
