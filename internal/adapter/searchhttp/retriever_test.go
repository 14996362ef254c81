package searchhttp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quality-guardian/internal/adapter/searchhttp"
)

func TestRetriever_Retrieve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/search", r.URL.Path)
		assert.Equal(t, "great wall", r.URL.Query().Get("q"))
		assert.Equal(t, "3", r.URL.Query().Get("limit"))

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"query": "great wall",
			"hits": []map[string]interface{}{
				{"id": "d1", "title": "Great Wall", "content": "Built for defense.", "score": 0.9},
				{"id": "d2", "title": "Ming dynasty", "content": "Major construction era.", "score": 0.7},
			},
		})
	}))
	defer srv.Close()

	r := searchhttp.NewRetriever(srv.URL, 5)
	docs, err := r.Retrieve(context.Background(), "great wall", 3)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "d1", docs[0].ID)
	assert.Equal(t, "Built for defense.", docs[0].Content)
	assert.Equal(t, float32(0.9), docs[0].Score)
}

func TestRetriever_Retrieve_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := searchhttp.NewRetriever(srv.URL, 5)
	_, err := r.Retrieve(context.Background(), "q", 3)
	assert.Error(t, err)
}
