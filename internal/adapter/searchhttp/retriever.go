package searchhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"quality-guardian/internal/domain"
)

// Retriever queries the knowledge-base search service for reference
// documents. Stage C falls back to it when a request carries no
// reference context of its own.
type Retriever struct {
	BaseURL string
	Client  *http.Client
}

func NewRetriever(baseURL string, timeoutSeconds int) *Retriever {
	return &Retriever{
		BaseURL: baseURL,
		Client: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
	}
}

type searchResponse struct {
	Query string      `json:"query"`
	Hits  []searchHit `json:"hits"`
}

type searchHit struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float32 `json:"score"`
}

func (r *Retriever) Retrieve(ctx context.Context, query string, limit int) ([]domain.Document, error) {
	u, err := url.Parse(fmt.Sprintf("%s/v1/search", r.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	q := u.Query()
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status: %d", resp.StatusCode)
	}

	var sResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sResp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	docs := make([]domain.Document, len(sResp.Hits))
	for i, h := range sResp.Hits {
		docs[i] = domain.Document{
			ID:      h.ID,
			Title:   h.Title,
			Content: h.Content,
			Score:   h.Score,
		}
	}
	return docs, nil
}

var _ domain.DocumentRetriever = (*Retriever)(nil)
