package augur

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"quality-guardian/internal/domain"
)

// RemoteProbe is an ensemble member backed by an external classifier
// service. It posts the request text plus the extracted features and
// expects a hallucination probability back. Deployments mix remote
// probes with the built-in local ones.
type RemoteProbe struct {
	name    string
	weight  float64
	BaseURL string
	Client  *http.Client
}

func NewRemoteProbe(name string, weight float64, baseURL string, timeoutSeconds int) *RemoteProbe {
	timeout := 5 * time.Second
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	return &RemoteProbe{
		name:    name,
		weight:  weight,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

type probeRequest struct {
	Question          string   `json:"question"`
	CandidateAnswer   string   `json:"candidate_answer"`
	ReferenceContext  string   `json:"reference_context,omitempty"`
	WordCount         int      `json:"word_count"`
	SentenceCount     int      `json:"sentence_count"`
	AvgSentenceLength float64  `json:"avg_sentence_length"`
	DistinctRatio     float64  `json:"distinct_ratio"`
	Entities          []string `json:"entities,omitempty"`
	Patterns          []string `json:"patterns,omitempty"`
}

type probeResponse struct {
	Probability float64 `json:"hallucination_probability"`
}

func (p *RemoteProbe) Name() string    { return p.name }
func (p *RemoteProbe) Weight() float64 { return p.weight }

func (p *RemoteProbe) Predict(ctx context.Context, req domain.DetectionRequest, features domain.TextFeatures) (float64, error) {
	body := probeRequest{
		Question:          req.Question,
		CandidateAnswer:   req.CandidateAnswer,
		ReferenceContext:  req.ReferenceContext,
		WordCount:         features.WordCount,
		SentenceCount:     features.SentenceCount,
		AvgSentenceLength: features.AvgSentenceLength,
		DistinctRatio:     features.DistinctRatio,
		Entities:          features.UniqueEntities,
		Patterns:          features.LinguisticPatterns,
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal probe request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/predict", p.BaseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return 0, fmt.Errorf("failed to create probe request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("failed to call probe %s: %w", p.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("probe %s returned status: %d", p.name, resp.StatusCode)
	}

	var respBody probeResponse
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return 0, fmt.Errorf("failed to decode probe response: %w", err)
	}
	if respBody.Probability < 0 || respBody.Probability > 1 {
		return 0, fmt.Errorf("probe %s returned probability out of range: %f",
			p.name, respBody.Probability)
	}
	return respBody.Probability, nil
}

var _ domain.ProbeModel = (*RemoteProbe)(nil)
