package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/civicner/internal/model"
)

func completionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected path /chat/completions, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Authorization header Bearer test-key, got %s", r.Header.Get("Authorization"))
		}

		var req openai.ChatCompletionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if len(req.Messages) != 2 || !strings.Contains(req.Messages[1].Content, "Run overview") {
			t.Errorf("Expected digest prompt, got %+v", req.Messages)
		}

		resp := openai.ChatCompletionResponse{
			ID:      "chatcmpl-123",
			Object:  "chat.completion",
			Created: 1677652288,
			Model:   req.Model,
			Choices: []openai.ChatCompletionChoice{
				{
					Index: 0,
					Message: openai.ChatCompletionMessage{
						Role:    "assistant",
						Content: content,
					},
					FinishReason: "stop",
				},
			},
			Usage: openai.Usage{
				TotalTokens: 100,
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func testRecords() []model.Record {
	return []model.Record{
		{
			ID:           "1",
			Post:         model.Post{BlueskyURL: "https://bsky.app/profile/a/post/1", Text: "Councillor Jane Doe in Leeds", LinkURL: "https://example.com/1"},
			AllLocations: []string{"Leeds"},
			AllPersons:   []model.PersonMention{{Name: "Jane Doe", Role: model.RoleCouncillor}},
		},
	}
}

func TestOpenAIProvider_Digest_Success(t *testing.T) {
	server := completionServer(t, "Jane Doe spoke in Leeds. Source: https://example.com/1.")

	provider, err := NewOpenAIProvider(Config{
		APIKey:         "test-key",
		BaseURL:        server.URL,
		Model:          "gpt-4o-mini",
		Timeout:        5,
		StrictEvidence: true,
	})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.Digest(context.Background(), DigestRequest{
		Records:     testRecords(),
		AllowedURLs: AllowedURLs(testRecords()),
	})
	if err != nil {
		t.Fatalf("Digest failed: %v", err)
	}

	if resp.Summary != "Jane Doe spoke in Leeds. Source: https://example.com/1." {
		t.Errorf("Unexpected summary: %s", resp.Summary)
	}
	if len(resp.CitedURLs) != 1 || resp.CitedURLs[0] != "https://example.com/1" {
		t.Errorf("Unexpected cited URLs: %v", resp.CitedURLs)
	}
	if resp.Model != "gpt-4o-mini" || resp.TokensUsed != 100 {
		t.Errorf("Unexpected model/tokens: %s %d", resp.Model, resp.TokensUsed)
	}
}

func TestOpenAIProvider_Digest_CitationLeak(t *testing.T) {
	server := completionServer(t, "See https://made-up.example/story")

	provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5, StrictEvidence: true})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	_, err = provider.Digest(context.Background(), DigestRequest{
		Records:     testRecords(),
		AllowedURLs: AllowedURLs(testRecords()),
	})
	if !errors.Is(err, ErrCitationLeak) {
		t.Fatalf("Expected citation leak, got %v", err)
	}

	// Lenient mode lets the same answer through
	lenient, _ := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	if _, err := lenient.Digest(context.Background(), DigestRequest{Records: testRecords()}); err != nil {
		t.Errorf("Expected lenient digest to succeed, got %v", err)
	}
}

func TestOpenAIProvider_Digest_APIErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error": {"message": "Internal Server Error", "type": "server_error"}}`},
		{"rate limit", http.StatusTooManyRequests, `{"error": {"message": "Rate limit exceeded", "type": "rate_limit_error"}}`},
		{"malformed", http.StatusOK, `{malformed json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
			if err != nil {
				t.Fatalf("Failed to create provider: %v", err)
			}
			if _, err := provider.Digest(context.Background(), DigestRequest{}); err == nil {
				t.Fatal("Expected error, got nil")
			}
		})
	}
}

func TestOpenAIProvider_Digest_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	// The caller's shorter deadline wins over the configured timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := provider.Digest(ctx, DigestRequest{}); err == nil {
		t.Fatal("Expected timeout error, got nil")
	}
}

func TestOpenAIProvider_IsAvailable(t *testing.T) {
	var available atomic.Bool
	available.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if available.Load() && r.URL.Path == "/models" {
			_, _ = w.Write([]byte(`{"data": [{"id": "gpt-4o-mini"}]}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	provider, err := NewOpenAIProvider(Config{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	if !provider.IsAvailable(context.Background()) {
		t.Error("Expected available to be true")
	}

	available.Store(false)
	if provider.IsAvailable(context.Background()) {
		t.Error("Expected available to be false on error")
	}
}

func TestNewOpenAIProvider_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIProvider(Config{}); err == nil {
		t.Error("Expected error without API key")
	}
}

func TestExtractURLs(t *testing.T) {
	got := extractURLs("See (https://a.example/x), https://b.example/y. and https://a.example/x!")
	want := []string{"https://a.example/x", "https://b.example/y"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %s at %d, got %s", want[i], i, got[i])
		}
	}
}
