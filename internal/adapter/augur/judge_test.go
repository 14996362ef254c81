package augur

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseRating(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  int
	}{
		{"bare number", "85", 85},
		{"number with prose", "The answer rates 70 out of 100.", 70},
		{"leading whitespace", "  42\n", 42},
		{"over range clamps", "150", 100},
		{"zero", "0", 0},
		{"no number falls back", "I cannot rate this.", 50},
		{"empty reply falls back", "", 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseRating(tt.reply); got != tt.want {
				t.Fatalf("parseRating(%q) = %d, want %d", tt.reply, got, tt.want)
			}
		})
	}
}

func judgeServer(t *testing.T, content string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req judgeChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if len(req.Messages) != 1 {
			t.Errorf("expected 1 message, got %d", len(req.Messages))
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"message": map[string]string{"content": content},
			"done":    true,
		})
	}))
}

func TestOllamaJudge_Judge(t *testing.T) {
	srv := judgeServer(t, "80", http.StatusOK)
	defer srv.Close()

	judge := NewOllamaJudge(srv.URL, "test-judge", 5, 0)
	got, err := judge.Judge(context.Background(), "q?", "a.", "reference")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0.8 {
		t.Fatalf("expected 0.8, got %v", got)
	}
}

func TestOllamaJudge_Judge_GarbledReplyFallsBack(t *testing.T) {
	srv := judgeServer(t, "well, it depends", http.StatusOK)
	defer srv.Close()

	judge := NewOllamaJudge(srv.URL, "test-judge", 5, 0)
	got, err := judge.Judge(context.Background(), "q?", "a.", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 0.5 {
		t.Fatalf("expected neutral 0.5, got %v", got)
	}
}

func TestOllamaJudge_Judge_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	judge := NewOllamaJudge(srv.URL, "test-judge", 5, 0)
	if _, err := judge.Judge(context.Background(), "q?", "a.", ""); err == nil {
		t.Fatal("expected error on 500 response")
	}
}
