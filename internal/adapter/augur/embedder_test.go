package augur

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaEmbedder_Encode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.Model != "embeddinggemma" {
			t.Errorf("unexpected model: %s", req.Model)
		}
		embeddings := make([][]float32, len(req.Input))
		for i := range embeddings {
			embeddings[i] = []float32{0.1, 0.2, 0.3}
		}
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: embeddings})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "embeddinggemma", 5)
	got, err := e.Encode(context.Background(), []string{"first", "second"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(got))
	}
	if len(got[0]) != 3 {
		t.Fatalf("expected 3 dimensions, got %d", len(got[0]))
	}
}

func TestOllamaEmbedder_Encode_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: [][]float32{{0.1}}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "embeddinggemma", 5)
	if _, err := e.Encode(context.Background(), []string{"first", "second"}); err == nil {
		t.Fatal("expected error on embedding count mismatch")
	}
}

func TestOllamaEmbedder_Encode_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "embeddinggemma", 5)
	if _, err := e.Encode(context.Background(), []string{"text"}); err == nil {
		t.Fatal("expected error on 502 response")
	}
}

func TestOllamaEmbedder_Version(t *testing.T) {
	e := NewOllamaEmbedder("http://localhost:11434", "embeddinggemma", 5)
	if e.Version() != "embeddinggemma" {
		t.Fatalf("unexpected version: %s", e.Version())
	}
}
