package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vietddude/ingestor/internal/core/domain"
)

// HTTPAnalyzer implements Analyzer against a JSON-over-HTTP classification
// endpoint.
type HTTPAnalyzer struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPAnalyzer creates an analyzer client for the given endpoint.
func NewHTTPAnalyzer(endpoint string, timeout time.Duration) *HTTPAnalyzer {
	return &HTTPAnalyzer{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type analyzeRequest struct {
	ConversationNumber string `json:"conversation_number"`
	ConversationText   string `json:"conversation"`
}

type analyzeResponse struct {
	Classification domain.Classification `json:"classification"`
	Error          string                `json:"error,omitempty"`
}

// Analyze sends the document's conversation text for classification. A
// document without text fails with ErrEmptyConversation before any network
// call is made.
func (a *HTTPAnalyzer) Analyze(
	ctx context.Context,
	doc *domain.SourceDocument,
) (*domain.Classification, error) {
	text := doc.ConversationText()
	if text == "" {
		return nil, fmt.Errorf("document %s: %w", doc.ID, ErrEmptyConversation)
	}

	body, err := json.Marshal(analyzeRequest{
		ConversationNumber: doc.ConversationNumber,
		ConversationText:   text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analyze request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyze request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read analyze response: %w", err)
	}

	// Error text matters here: the pipeline classifies failures by message
	// keywords to decide between retrying and giving up.
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("analyzer rate limited (429): %s", truncate(respBody))
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("analyzer rejected request as unauthorized (%d): %s", resp.StatusCode, truncate(respBody))
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("analyzer service unavailable (%d): %s", resp.StatusCode, truncate(respBody))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("analyzer returned %d: %s", resp.StatusCode, truncate(respBody))
	}

	var out analyzeResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to parse analyze response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("analyzer error: %s", out.Error)
	}
	return &out.Classification, nil
}

// Health checks the analyzer's health endpoint.
func (a *HTTPAnalyzer) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("analyzer unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("analyzer unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func truncate(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
