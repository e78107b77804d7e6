package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vietddude/ingestor/internal/core/domain"
	"github.com/vietddude/ingestor/internal/core/retry"
)

func testDoc(text string) *domain.SourceDocument {
	return &domain.SourceDocument{
		ID:                 "doc-1",
		ConversationNumber: "42",
		Payload:            map[string]any{"text": text},
	}
}

func TestAnalyze_Success(t *testing.T) {
	var gotReq analyzeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/classify" {
			t.Errorf("path = %s, want /classify", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(analyzeResponse{
			Classification: domain.Classification{
				Intent:    "support",
				Topic:     "billing",
				Sentiment: "negative",
			},
		})
	}))
	defer srv.Close()

	a := NewHTTPAnalyzer(srv.URL, 5*time.Second)
	cls, err := a.Analyze(context.Background(), testDoc("my invoice is wrong"))
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if cls.Intent != "support" || cls.Topic != "billing" {
		t.Errorf("classification = %+v", cls)
	}
	if gotReq.ConversationNumber != "42" {
		t.Errorf("ConversationNumber = %q, want 42", gotReq.ConversationNumber)
	}
	if gotReq.ConversationText != "my invoice is wrong" {
		t.Errorf("ConversationText = %q", gotReq.ConversationText)
	}
}

func TestAnalyze_EmptyConversationIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty document")
	}))
	defer srv.Close()

	a := NewHTTPAnalyzer(srv.URL, 5*time.Second)
	_, err := a.Analyze(context.Background(), testDoc(""))
	if !errors.Is(err, ErrEmptyConversation) {
		t.Fatalf("err = %v, want ErrEmptyConversation", err)
	}
	if got := retry.Classify(err); got != retry.ClassPermanent {
		t.Errorf("Classify = %s, want permanent", got)
	}
}

func TestAnalyze_StatusErrorClasses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   retry.Class
	}{
		{"rate limited", http.StatusTooManyRequests, retry.ClassResource},
		{"forbidden", http.StatusForbidden, retry.ClassPermanent},
		{"unauthorized", http.StatusUnauthorized, retry.ClassPermanent},
		{"server error", http.StatusInternalServerError, retry.ClassTransient},
		{"bad gateway", http.StatusBadGateway, retry.ClassTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			a := NewHTTPAnalyzer(srv.URL, 5*time.Second)
			_, err := a.Analyze(context.Background(), testDoc("hello"))
			if err == nil {
				t.Fatal("expected error")
			}
			if got := retry.Classify(err); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", err, got, tt.want)
			}
		})
	}
}

func TestAnalyze_ServiceLevelError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(analyzeResponse{Error: "model backend overloaded"})
	}))
	defer srv.Close()

	a := NewHTTPAnalyzer(srv.URL, 5*time.Second)
	_, err := a.Analyze(context.Background(), testDoc("hello"))
	if err == nil || !strings.Contains(err.Error(), "overloaded") {
		t.Fatalf("err = %v, want service error", err)
	}
	if got := retry.Classify(err); got != retry.ClassResource {
		t.Errorf("Classify = %s, want resource", got)
	}
}

func TestHealth(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %s, want /health", r.URL.Path)
		}
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	a := NewHTTPAnalyzer(srv.URL, 5*time.Second)
	if err := a.Health(context.Background()); err != nil {
		t.Errorf("Health on healthy service: %v", err)
	}

	healthy = false
	if err := a.Health(context.Background()); err == nil {
		t.Error("Health on unhealthy service: want error")
	}
}
