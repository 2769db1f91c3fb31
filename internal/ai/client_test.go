package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerateMissingCredential(t *testing.T) {
	client := NewClient("http://localhost:0", "", "gemini-1.5-flash")
	_, err := client.Generate(context.Background(), AssistRequest{Prompt: "hi"})
	if !errors.Is(err, ErrMissingCredential) {
		t.Errorf("want ErrMissingCredential, got %v", err)
	}
}

func TestGenerateReturnsFirstCandidate(t *testing.T) {
	var captured generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-1.5-flash:generateContent") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"polished text"}]}},{"content":{"parts":[{"text":"second"}]}}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", "gemini-1.5-flash")
	got, err := client.Generate(context.Background(), AssistRequest{
		Prompt: "improve my summary",
		Resume: "ten years of Go",
		Action: ActionImprove,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "polished text" {
		t.Errorf("got %q, want first candidate", got)
	}

	cfg := captured.GenerationConfig
	if cfg.Temperature != 0.4 || cfg.TopK != 32 || cfg.TopP != 1 || cfg.MaxOutputTokens != 2048 {
		t.Errorf("sampling params drifted: %+v", cfg)
	}
	if len(captured.Contents) != 1 {
		t.Fatalf("contents = %d, want 1", len(captured.Contents))
	}
	text := captured.Contents[0].Parts[0].Text
	if !strings.Contains(text, "ten years of Go") || !strings.Contains(text, "improve my summary") {
		t.Errorf("prompt assembly lost context: %q", text)
	}
}

func TestGenerateNoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"prompt blocked"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret", "gemini-1.5-flash")
	_, err := client.Generate(context.Background(), AssistRequest{Prompt: "hi"})

	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("want GenerationError, got %v", err)
	}
	if !strings.Contains(genErr.Error(), "prompt blocked") {
		t.Errorf("upstream message lost: %v", genErr)
	}
}
