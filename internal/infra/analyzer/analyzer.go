// Package analyzer talks to the external classification service that
// labels conversation documents.
package analyzer

import (
	"context"
	"errors"

	"github.com/vietddude/ingestor/internal/core/domain"
)

// ErrEmptyConversation marks documents with no extractable text. They can
// never succeed, so the pipeline must not queue them for retry.
var ErrEmptyConversation = errors.New("invalid document: no conversation text")

// Analyzer classifies a single source document.
type Analyzer interface {
	Analyze(ctx context.Context, doc *domain.SourceDocument) (*domain.Classification, error)
	Health(ctx context.Context) error
}
